// Package dynamic applies the graph changes a running job requests when it
// returns a dynamic response: a new version of itself (replace), jobs spliced
// between it and its children (detour), or jobs appended to the flow
// (addition).
package dynamic

import (
	"slices"

	"github.com/roach88/flowdoc/internal/doc"
	"github.com/roach88/flowdoc/internal/errs"
	"github.com/roach88/flowdoc/internal/record"
	"github.com/roach88/flowdoc/internal/state"
)

// NewJob is a job version to register in the flow. Parents may name jobs
// already in the flow or jobs earlier in the same response.
type NewJob struct {
	UUID    string
	DBID    int64
	Parents []string
}

// Response is a dynamic response emitted by job Job.
type Response struct {
	Type state.DynamicResponseType
	Job  string

	// ReplaceDBID is the db_id of the version created by a replace.
	ReplaceDBID int64

	// Jobs are the jobs added by a detour or an addition, in order.
	Jobs []NewJob
}

// Apply performs the response on flow and returns the partial update that
// brings the stored flow document to the same state. The changes are made on
// a copy and validated first; on error flow is left untouched.
func Apply(flow *record.FlowRecord, r Response) (doc.Update, error) {
	const op = "dynamic.apply"

	if _, err := state.ParseDynamicResponseType(string(r.Type)); err != nil {
		return nil, err
	}
	if _, err := flow.Versions(r.Job); err != nil {
		return nil, err
	}

	next := flow.Clone()
	var err error
	switch r.Type {
	case state.DynamicReplace:
		err = replace(next, r)
	case state.DynamicDetour:
		err = detour(next, r)
	case state.DynamicAddition:
		err = addJobs(next, r.Jobs)
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindOf(err), op, err, "%s from job %s", r.Type, r.Job)
	}
	if err := next.Validate(); err != nil {
		return nil, errs.Wrap(errs.KindGraphIntegrity, op, err, "%s from job %s", r.Type, r.Job)
	}

	m, err := next.Serialize()
	if err != nil {
		return nil, err
	}
	*flow = *next
	flow.Invalidate()

	return doc.Update{
		"jobs":    m["jobs"],
		"ids":     m["ids"],
		"parents": m["parents"],
	}, nil
}

// replace registers the next version of the job, depending on the same
// parents as its latest version. Children keep pointing at the uuid and so
// pick up the new version without edits.
func replace(f *record.FlowRecord, r Response) error {
	if r.ReplaceDBID < 1 {
		return errs.Validation("dynamic.replace", "job %s: replacement db_id %d, want >= 1", r.Job, r.ReplaceDBID)
	}
	latest, err := f.LatestIndex(r.Job)
	if err != nil {
		return err
	}
	indexed, err := f.IndexParents()
	if err != nil {
		return err
	}
	parents := slices.Clone(indexed[r.Job][latest])
	return f.AddJobVersion(record.JobID{DBID: r.ReplaceDBID, UUID: r.Job, Index: latest + 1}, parents)
}

// detour adds the new jobs and makes every existing child of the job also
// wait for the leaves of the new jobs, at the child's latest index.
func detour(f *record.FlowRecord, r Response) error {
	children, err := f.Children()
	if err != nil {
		return err
	}
	var targets []string
	for _, ch := range children[r.Job] {
		if !slices.Contains(targets, ch.UUID) {
			targets = append(targets, ch.UUID)
		}
	}

	if err := addJobs(f, r.Jobs); err != nil {
		return err
	}
	leaves := leafUUIDs(r.Jobs)
	for _, child := range targets {
		latest, err := f.LatestIndex(child)
		if err != nil {
			return err
		}
		if err := f.AppendParents(child, latest, leaves); err != nil {
			return err
		}
	}
	return nil
}

func addJobs(f *record.FlowRecord, jobs []NewJob) error {
	if len(jobs) == 0 {
		return errs.Validation("dynamic.add_jobs", "no jobs to add")
	}
	for _, j := range jobs {
		if err := f.AddJobVersion(record.JobID{DBID: j.DBID, UUID: j.UUID, Index: 1}, j.Parents); err != nil {
			return err
		}
	}
	return nil
}

// leafUUIDs returns the jobs no other job of the list depends on, in order.
func leafUUIDs(jobs []NewJob) []string {
	inner := make(map[string]bool)
	for _, j := range jobs {
		for _, p := range j.Parents {
			inner[p] = true
		}
	}
	var leaves []string
	for _, j := range jobs {
		if !inner[j.UUID] {
			leaves = append(leaves, j.UUID)
		}
	}
	return leaves
}
