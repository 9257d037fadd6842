package spec

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/flowdoc/internal/doc"
)

// ResourceClass marks a structured resource specification inside a
// document or flow file: {"@class": "ResourceSpec", ...}.
const ResourceClass = "ResourceSpec"

// ClassKey is the key holding the ResourceClass marker.
const ClassKey = "@class"

// ResourceSpec is a structured queue resource request.
type ResourceSpec struct {
	QueueName         string         `yaml:"queue_name,omitempty"`
	JobName           string         `yaml:"job_name,omitempty"`
	Memory            int64          `yaml:"memory,omitempty"` // MB
	Nodes             int64          `yaml:"nodes,omitempty"`
	ProcessesPerNode  int64          `yaml:"processes_per_node,omitempty"`
	Processes         int64          `yaml:"processes,omitempty"`
	ThreadsPerProcess int64          `yaml:"threads_per_process,omitempty"`
	GPUsPerJob        int64          `yaml:"gpus_per_job,omitempty"`
	TimeLimit         int64          `yaml:"time_limit,omitempty"` // seconds
	Account           string         `yaml:"account,omitempty"`
	QOS               string         `yaml:"qos,omitempty"`
	Priority          int64          `yaml:"priority,omitempty"`
	OutputFilepath    string         `yaml:"output_filepath,omitempty"`
	ErrorFilepath     string         `yaml:"error_filepath,omitempty"`
	Email             string         `yaml:"email_address,omitempty"`
	SchedulerKwargs   map[string]any `yaml:"scheduler_kwargs,omitempty"`
}

// ToDocument implements doc.Marshaler. Zero fields are omitted and the
// ResourceClass marker is always present.
func (r ResourceSpec) ToDocument() (doc.Value, error) {
	m := doc.Map{ClassKey: doc.String(ResourceClass)}
	putString(m, "queue_name", r.QueueName)
	putString(m, "job_name", r.JobName)
	putInt(m, "memory", r.Memory)
	putInt(m, "nodes", r.Nodes)
	putInt(m, "processes_per_node", r.ProcessesPerNode)
	putInt(m, "processes", r.Processes)
	putInt(m, "threads_per_process", r.ThreadsPerProcess)
	putInt(m, "gpus_per_job", r.GPUsPerJob)
	putInt(m, "time_limit", r.TimeLimit)
	putString(m, "account", r.Account)
	putString(m, "qos", r.QOS)
	putInt(m, "priority", r.Priority)
	putString(m, "output_filepath", r.OutputFilepath)
	putString(m, "error_filepath", r.ErrorFilepath)
	putString(m, "email_address", r.Email)
	if r.SchedulerKwargs != nil {
		kw, err := doc.MapFromGo(r.SchedulerKwargs)
		if err != nil {
			return nil, fmt.Errorf("scheduler_kwargs: %w", err)
		}
		m["scheduler_kwargs"] = kw
	}
	return m, nil
}

// Resources is either a structured ResourceSpec or a raw mapping handed to
// the queue backend untouched. Exactly one arm is set. Build the raw arm with
// RawResources so it holds the same Go values a stored document decodes to.
type Resources struct {
	Spec *ResourceSpec
	Raw  map[string]any
}

// StructuredResources wraps a ResourceSpec.
func StructuredResources(r ResourceSpec) *Resources {
	return &Resources{Spec: &r}
}

// RawResources wraps a raw mapping, normalizing its values to the plain
// forms doc.ToGo yields (int64 integers, UTC millisecond times, []any).
// A mapping with no document form is kept as given and fails at
// serialization.
func RawResources(m map[string]any) *Resources {
	if m == nil {
		return &Resources{}
	}
	v, err := doc.FromGo(m)
	if err != nil {
		return &Resources{Raw: m}
	}
	return &Resources{Raw: doc.ToGo(v).(map[string]any)}
}

// ToDocument implements doc.Marshaler.
func (r Resources) ToDocument() (doc.Value, error) {
	if r.Spec != nil {
		return r.Spec.ToDocument()
	}
	if r.Raw == nil {
		return doc.Null{}, nil
	}
	return doc.FromGo(r.Raw)
}

// UnmarshalYAML picks the structured arm when the mapping carries the
// ResourceClass marker, the raw arm otherwise.
func (r *Resources) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("resources: %w", err)
	}
	if raw[ClassKey] == ResourceClass {
		var s ResourceSpec
		if err := node.Decode(&s); err != nil {
			return fmt.Errorf("resources: %w", err)
		}
		*r = Resources{Spec: &s}
		return nil
	}
	*r = *RawResources(raw)
	return nil
}

// ExecutionConfig describes the environment prepared around a job run.
type ExecutionConfig struct {
	Modules    []string          `yaml:"modules,omitempty"`
	ExportVars map[string]string `yaml:"export,omitempty"`
	PreRun     string            `yaml:"pre_run,omitempty"`
	PostRun    string            `yaml:"post_run,omitempty"`
}

// ToDocument implements doc.Marshaler. Zero fields are omitted.
func (e ExecutionConfig) ToDocument() (doc.Value, error) {
	m := doc.Map{}
	if e.Modules != nil {
		m["modules"] = doc.Strings(e.Modules)
	}
	if e.ExportVars != nil {
		v, _ := doc.FromGo(e.ExportVars)
		m["export"] = v
	}
	putString(m, "pre_run", e.PreRun)
	putString(m, "post_run", e.PostRun)
	return m, nil
}

// ExecConfig is either the name of an execution config defined elsewhere or
// an inline ExecutionConfig.
type ExecConfig struct {
	Name   string
	Inline *ExecutionConfig
}

// NamedExecConfig references an execution config by name.
func NamedExecConfig(name string) *ExecConfig {
	return &ExecConfig{Name: name}
}

// InlineExecConfig wraps an inline execution config.
func InlineExecConfig(e ExecutionConfig) *ExecConfig {
	return &ExecConfig{Inline: &e}
}

// ToDocument implements doc.Marshaler.
func (e ExecConfig) ToDocument() (doc.Value, error) {
	if e.Inline != nil {
		return e.Inline.ToDocument()
	}
	return doc.String(e.Name), nil
}

// UnmarshalYAML accepts a scalar name or an inline mapping.
func (e *ExecConfig) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*e = ExecConfig{Name: node.Value}
		return nil
	case yaml.MappingNode:
		var inline ExecutionConfig
		if err := node.Decode(&inline); err != nil {
			return fmt.Errorf("exec_config: %w", err)
		}
		*e = ExecConfig{Inline: &inline}
		return nil
	default:
		return fmt.Errorf("exec_config: expected name or mapping at line %d", node.Line)
	}
}

func putString(m doc.Map, key, s string) {
	if s != "" {
		m[key] = doc.String(s)
	}
}

func putInt(m doc.Map, key string, n int64) {
	if n != 0 {
		m[key] = doc.Int(n)
	}
}
