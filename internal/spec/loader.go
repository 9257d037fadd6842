package spec

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/roach88/flowdoc/internal/errs"
)

// Format identifies a flow file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
)

// LoadOptions controls how flow files are turned into a FlowSpec.
type LoadOptions struct {
	// NewID generates uuids for flows and jobs that do not declare one.
	// Defaults to uuid.NewString.
	NewID func() string
}

func (o LoadOptions) newID() string {
	if o.NewID != nil {
		return o.NewID()
	}
	return uuid.NewString()
}

// FormatForPath infers the Format from a file extension.
func FormatForPath(path string) (Format, error) {
	switch filepath.Ext(path) {
	case ".yaml", ".yml", ".json":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", errs.Validation("spec.format", "unsupported flow file %q (want .yaml, .yml, .json or .cue)", path)
	}
}

// LoadFile reads and loads a flow file, inferring the format from its extension.
func LoadFile(path string, opts LoadOptions) (*FlowSpec, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flow file: %w", err)
	}
	return Load(data, format, filepath.Base(path), opts)
}

// Load decodes a flow file, fills in missing identities, resolves parent
// references by name, and validates the result.
//
// CUE sources are evaluated, required to be concrete, and exported to JSON,
// which is then decoded with the YAML decoder so both syntaxes share one
// decoding path.
func Load(data []byte, format Format, filename string, opts LoadOptions) (*FlowSpec, error) {
	const op = "spec.load"

	var yamlSrc []byte
	switch format {
	case FormatYAML:
		yamlSrc = data
	case FormatCUE:
		exported, err := exportCUE(data, filename)
		if err != nil {
			return nil, errs.Wrap(errs.KindValidation, op, err, "evaluate %s", filename)
		}
		yamlSrc = exported
	default:
		return nil, errs.Validation(op, "unknown format %q", format)
	}

	var flow FlowSpec
	dec := yaml.NewDecoder(bytes.NewReader(yamlSrc))
	dec.KnownFields(true)
	if err := dec.Decode(&flow); err != nil {
		return nil, errs.Wrap(errs.KindValidation, op, err, "decode %s", filename)
	}

	if err := resolve(&flow, opts); err != nil {
		return nil, err
	}
	if err := flow.Validate(); err != nil {
		return nil, err
	}
	return &flow, nil
}

func exportCUE(data []byte, filename string) ([]byte, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, err
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, err
	}
	return v.MarshalJSON()
}

// resolve assigns missing uuids and indices and rewrites parent names to uuids.
func resolve(flow *FlowSpec, opts LoadOptions) error {
	const op = "spec.resolve"

	if flow.UUID == "" {
		flow.UUID = opts.newID()
	}

	byName := make(map[string]string, len(flow.Jobs))
	ambiguous := make(map[string]bool)
	for i := range flow.Jobs {
		j := &flow.Jobs[i]
		if j.UUID == "" {
			j.UUID = opts.newID()
		}
		if j.Index == 0 {
			j.Index = 1
		}
		if j.Name == "" {
			return errs.Validation(op, "job %d of flow %q has no name", i, flow.Name)
		}
		if _, dup := byName[j.Name]; dup {
			ambiguous[j.Name] = true
		}
		byName[j.Name] = j.UUID
	}

	uuids := make(map[string]bool, len(flow.Jobs))
	for _, j := range flow.Jobs {
		uuids[j.UUID] = true
	}

	for i := range flow.Jobs {
		j := &flow.Jobs[i]
		for k, ref := range j.Parents {
			if uuids[ref] {
				continue
			}
			if ambiguous[ref] {
				return errs.Validation(op, "job %q: parent name %q matches several jobs", j.Name, ref)
			}
			id, ok := byName[ref]
			if !ok {
				return errs.Validation(op, "job %q: unknown parent %q", j.Name, ref)
			}
			j.Parents[k] = id
		}
	}
	return nil
}
