// Package spec defines the workflow specification objects that flowdoc builds
// records from, and loads them from YAML or CUE flow files.
//
// A JobSpec carries the job's identity (uuid, index), its callable and
// arguments, and a manager-level configuration override (worker, execution
// config, resources). Overrides found here take precedence over the defaults
// a caller passes when building the initial job record.
package spec
