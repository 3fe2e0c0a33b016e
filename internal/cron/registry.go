package cron

import "context"

// Job is a unit of scheduled work. Name labels metrics and log lines,
// so it must stay stable across deploys.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the set of jobs a cron worker executes each tick.
type Registry struct {
	jobs []Job
}

// NewRegistry builds a registry from the given jobs, skipping nils so
// callers can pass conditionally-constructed jobs directly.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

// Register appends a job. Nil jobs are ignored.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

// Jobs returns a copy of the registered jobs in registration order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
