package syncjob

import "sync"

// Registry holds the live jobs, keyed by job id. Only insertion, removal and
// lookup are guarded here; a job's own counters are protected by its mutex.
type Registry interface {
	Put(job *Job)
	Get(id string) (*Job, bool)
	Delete(id string)
	List() []*Job
}

type InMemoryRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewInMemoryRegistry() Registry {
	return &InMemoryRegistry{
		jobs: make(map[string]*Job),
	}
}

func (r *InMemoryRegistry) Put(job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
}

func (r *InMemoryRegistry) Get(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	return job, ok
}

func (r *InMemoryRegistry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

func (r *InMemoryRegistry) List() []*Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	jobs := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}
