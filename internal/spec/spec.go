package spec

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/flowdoc/internal/doc"
	"github.com/roach88/flowdoc/internal/errs"
)

// ManagerConfig holds the per-job overrides the execution manager honours.
type ManagerConfig struct {
	Worker     string      `yaml:"worker,omitempty"`
	ExecConfig *ExecConfig `yaml:"exec_config,omitempty"`
	Resources  *Resources  `yaml:"resources,omitempty"`
}

// JobConfig is the configuration block of a job.
type JobConfig struct {
	Manager ManagerConfig `yaml:"manager_config,omitempty"`
}

// JobSpec is a submitted job specification.
type JobSpec struct {
	UUID     string         `yaml:"uuid,omitempty"`
	Index    int            `yaml:"index,omitempty"`
	Name     string         `yaml:"name"`
	Function string         `yaml:"function,omitempty"`
	Args     []any          `yaml:"args,omitempty"`
	Kwargs   map[string]any `yaml:"kwargs,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`

	// Parents references other jobs of the same flow by uuid or by name.
	// Load resolves every reference to a uuid.
	Parents []string `yaml:"parents,omitempty"`

	Config JobConfig `yaml:"config,omitempty"`
}

// FlowSpec is a submitted flow specification.
type FlowSpec struct {
	UUID     string         `yaml:"uuid,omitempty"`
	Name     string         `yaml:"name"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
	Jobs     []JobSpec      `yaml:"jobs"`
}

// Document normalizes the job specification into a storable mapping.
// It fails with a validation error when the identity is incomplete or a
// payload value has no document representation.
func (j JobSpec) Document() (doc.Map, error) {
	const op = "spec.job_document"

	if j.UUID == "" {
		return nil, errs.Validation(op, "job %q has no uuid", j.Name)
	}
	if j.Index < 1 {
		return nil, errs.Validation(op, "job %s has index %d, want >= 1", j.UUID, j.Index)
	}

	m := doc.Map{
		"uuid":     doc.String(j.UUID),
		"index":    doc.Int(j.Index),
		"name":     doc.String(j.Name),
		"function": doc.String(j.Function),
	}

	payload := []struct {
		key string
		val any
	}{
		{"args", j.Args},
		{"kwargs", j.Kwargs},
		{"metadata", j.Metadata},
	}
	for _, p := range payload {
		v, err := doc.FromGo(p.val)
		if err != nil {
			return nil, errs.Wrap(errs.KindValidation, op, err, "job %s: %s", j.UUID, p.key)
		}
		if doc.IsNull(v) {
			if p.key == "args" {
				v = doc.Array{}
			} else {
				v = doc.Map{}
			}
		}
		m[p.key] = v
	}

	mc, err := j.Config.Manager.document()
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, op, err, "job %s: manager_config", j.UUID)
	}
	m["config"] = doc.Map{"manager_config": mc}

	return m, nil
}

func (mc ManagerConfig) document() (doc.Map, error) {
	m := doc.Map{}
	if mc.Worker != "" {
		m["worker"] = doc.String(mc.Worker)
	}
	if mc.ExecConfig != nil {
		v, err := mc.ExecConfig.ToDocument()
		if err != nil {
			return nil, fmt.Errorf("exec_config: %w", err)
		}
		m["exec_config"] = v
	}
	if mc.Resources != nil {
		v, err := mc.Resources.ToDocument()
		if err != nil {
			return nil, fmt.Errorf("resources: %w", err)
		}
		m["resources"] = v
	}
	return m, nil
}

// Validate checks flow-level identity: a uuid, unique job uuids, and parent
// references that resolve inside the flow. It expects references resolved
// to uuids (see Load). Every problem found is reported, not just the first.
func (f FlowSpec) Validate() error {
	const op = "spec.validate_flow"

	var problems *multierror.Error
	if f.UUID == "" {
		problems = multierror.Append(problems, errs.Validation(op, "flow %q has no uuid", f.Name))
	}
	seen := make(map[string]bool, len(f.Jobs))
	for _, j := range f.Jobs {
		if j.UUID == "" {
			problems = multierror.Append(problems, errs.Validation(op, "job %q has no uuid", j.Name))
			continue
		}
		if seen[j.UUID] {
			problems = multierror.Append(problems, errs.Validation(op, "duplicate job uuid %s", j.UUID))
		}
		seen[j.UUID] = true
	}
	for _, j := range f.Jobs {
		for _, p := range j.Parents {
			if p == j.UUID {
				problems = multierror.Append(problems, errs.Validation(op, "job %s lists itself as parent", j.UUID))
			} else if !seen[p] {
				problems = multierror.Append(problems, errs.Validation(op, "job %s references unknown parent %q", j.UUID, p))
			}
		}
	}
	if problems == nil {
		return nil
	}
	problems.ErrorFormat = joinProblems
	return problems
}

// joinProblems renders validation problems on one line.
func joinProblems(list []error) string {
	if len(list) == 1 {
		return list[0].Error()
	}
	msgs := make([]string, len(list))
	for i, err := range list {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d problems: %s", len(list), strings.Join(msgs, "; "))
}
