package record

import (
	"github.com/roach88/flowdoc/internal/doc"
	"github.com/roach88/flowdoc/internal/errs"
	"github.com/roach88/flowdoc/internal/spec"
	"github.com/roach88/flowdoc/internal/state"
)

// Serialize returns the storage document of the record. Optional fields that
// are unset are written as explicit nulls so that every job document carries
// the same keys.
func (r *JobRecord) Serialize() (doc.Map, error) {
	const op = "record.job.serialize"

	execConfig, err := optDocument(r.ExecConfig)
	if err != nil {
		return nil, errs.Wrap(errs.KindSerialization, op, err, "job %s exec_config", r.UUID)
	}
	resources, err := optDocument(r.Resources)
	if err != nil {
		return nil, errs.Wrap(errs.KindSerialization, op, err, "job %s resources", r.UUID)
	}

	job := r.Job
	if job == nil {
		job = doc.Map{}
	}
	var parents doc.Value = doc.Null{}
	if r.Parents != nil {
		parents = doc.Strings(r.Parents)
	}
	var storedData doc.Value = doc.Null{}
	if r.StoredData != nil {
		storedData = doc.Clone(r.StoredData)
	}

	m := doc.Map{
		"job":            doc.Clone(job),
		"uuid":           doc.String(r.UUID),
		"index":          doc.Int(r.Index),
		"db_id":          doc.Int(r.DBID),
		"worker":         doc.String(r.Worker),
		"state":          doc.String(r.State),
		"remote":         r.Remote.document(),
		"parents":        parents,
		"previous_state": optState(r.PreviousState),
		"error":          doc.OptString(r.Error),
		"lock_id":        doc.OptString(r.LockID),
		"lock_time":      doc.OptTime(r.LockTime),
		"run_dir":        doc.OptString(r.RunDir),
		"start_time":     doc.OptTime(r.StartTime),
		"end_time":       doc.OptTime(r.EndTime),
		"created_on":     doc.NewTime(r.CreatedOn),
		"updated_on":     doc.NewTime(r.UpdatedOn),
		"priority":       doc.Int(r.Priority),
		"exec_config":    execConfig,
		"resources":      resources,
		"stored_data":    storedData,
		"history":        doc.Strings(r.History),
	}
	return m, nil
}

func (ri RemoteInfo) document() doc.Map {
	var qs doc.Value = doc.Null{}
	if ri.QueueState != nil {
		qs = doc.String(*ri.QueueState)
	}
	return doc.Map{
		"step_attempts":    doc.Int(ri.StepAttempts),
		"queue_state":      qs,
		"process_id":       doc.OptString(ri.ProcessID),
		"retry_time_limit": doc.OptTime(ri.RetryTimeLimit),
		"error":            doc.OptString(ri.Error),
	}
}

func optState(s *state.JobState) doc.Value {
	if s == nil {
		return doc.Null{}
	}
	return doc.String(*s)
}

func optDocument[T doc.Marshaler](v *T) (doc.Value, error) {
	if v == nil {
		return doc.Null{}, nil
	}
	return (*v).ToDocument()
}

// DecodeJobRecord rebuilds a JobRecord from its storage document. Missing
// optional fields decode as unset; a missing required field or a field of the
// wrong type is a validation error.
func DecodeJobRecord(m doc.Map) (*JobRecord, error) {
	const op = "record.job.decode"

	r := newReader(op, m)
	rec := &JobRecord{
		Job:        r.mapping("job"),
		UUID:       r.str("uuid"),
		Index:      int(r.integer("index")),
		DBID:       r.integer("db_id"),
		Worker:     r.str("worker"),
		Parents:    r.strings("parents"),
		Error:      r.optStr("error"),
		LockID:     r.optStr("lock_id"),
		LockTime:   r.optTime("lock_time"),
		RunDir:     r.optStr("run_dir"),
		StartTime:  r.optTime("start_time"),
		EndTime:    r.optTime("end_time"),
		CreatedOn:  r.time("created_on"),
		UpdatedOn:  r.time("updated_on"),
		Priority:   int(r.optInteger("priority")),
		StoredData: r.mapping("stored_data"),
		History:    r.strings("history"),
	}
	if rec.Job == nil {
		rec.Job = doc.Map{}
	}

	stateName := r.str("state")
	prev := r.optStr("previous_state")

	remote := r.sub("remote")
	rec.Remote = RemoteInfo{
		StepAttempts:   int(remote.optInteger("step_attempts")),
		ProcessID:      remote.optStr("process_id"),
		RetryTimeLimit: remote.optTime("retry_time_limit"),
		Error:          remote.optStr("error"),
	}
	queueState := remote.optStr("queue_state")
	r.merge(remote)

	execConfig, _ := r.value("exec_config")
	resources, _ := r.value("resources")
	if r.err != nil {
		return nil, r.err
	}

	var err error
	if rec.State, err = state.ParseJobState(stateName); err != nil {
		return nil, errs.Wrap(errs.KindValidation, op, err, "job %s", rec.UUID)
	}
	if prev != nil {
		ps, err := state.ParseJobState(*prev)
		if err != nil {
			return nil, errs.Wrap(errs.KindValidation, op, err, "job %s previous_state", rec.UUID)
		}
		rec.PreviousState = &ps
	}
	if queueState != nil {
		qs, err := state.ParseQueueState(*queueState)
		if err != nil {
			return nil, errs.Wrap(errs.KindValidation, op, err, "job %s remote.queue_state", rec.UUID)
		}
		rec.Remote.QueueState = &qs
	}
	if rec.ExecConfig, err = decodeExecConfig(execConfig); err != nil {
		return nil, errs.Wrap(errs.KindValidation, op, err, "job %s", rec.UUID)
	}
	if rec.Resources, err = decodeResources(resources); err != nil {
		return nil, errs.Wrap(errs.KindValidation, op, err, "job %s", rec.UUID)
	}
	return rec, nil
}

func decodeExecConfig(v doc.Value) (*spec.ExecConfig, error) {
	const op = "record.exec_config.decode"

	switch val := v.(type) {
	case nil:
		return nil, nil
	case doc.String:
		return spec.NamedExecConfig(string(val)), nil
	case doc.Map:
		r := newReader(op, val)
		inline := spec.ExecutionConfig{
			Modules: r.strings("modules"),
			PreRun:  derefOr(r.optStr("pre_run")),
			PostRun: derefOr(r.optStr("post_run")),
		}
		if export := r.mapping("export"); export != nil {
			inline.ExportVars = make(map[string]string, len(export))
			for k, ev := range export {
				s, ok := ev.(doc.String)
				if !ok {
					return nil, errs.Validation(op, "export %q: want string, got %T", k, ev)
				}
				inline.ExportVars[k] = string(s)
			}
		}
		if r.err != nil {
			return nil, r.err
		}
		return spec.InlineExecConfig(inline), nil
	default:
		return nil, errs.Validation(op, "want name or mapping, got %T", v)
	}
}

func decodeResources(v doc.Value) (*spec.Resources, error) {
	const op = "record.resources.decode"

	if v == nil {
		return nil, nil
	}
	m, ok := v.(doc.Map)
	if !ok {
		return nil, errs.Validation(op, "want mapping, got %T", v)
	}
	if m[spec.ClassKey] != doc.String(spec.ResourceClass) {
		return spec.RawResources(doc.ToGo(m).(map[string]any)), nil
	}

	r := newReader(op, m)
	rs := spec.ResourceSpec{
		QueueName:         derefOr(r.optStr("queue_name")),
		JobName:           derefOr(r.optStr("job_name")),
		Memory:            r.optInteger("memory"),
		Nodes:             r.optInteger("nodes"),
		ProcessesPerNode:  r.optInteger("processes_per_node"),
		Processes:         r.optInteger("processes"),
		ThreadsPerProcess: r.optInteger("threads_per_process"),
		GPUsPerJob:        r.optInteger("gpus_per_job"),
		TimeLimit:         r.optInteger("time_limit"),
		Account:           derefOr(r.optStr("account")),
		QOS:               derefOr(r.optStr("qos")),
		Priority:          r.optInteger("priority"),
		OutputFilepath:    derefOr(r.optStr("output_filepath")),
		ErrorFilepath:     derefOr(r.optStr("error_filepath")),
		Email:             derefOr(r.optStr("email_address")),
	}
	if kw := r.mapping("scheduler_kwargs"); kw != nil {
		rs.SchedulerKwargs = doc.ToGo(kw).(map[string]any)
	}
	if r.err != nil {
		return nil, r.err
	}
	return spec.StructuredResources(rs), nil
}

func derefOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
