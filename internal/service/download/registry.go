package download

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/podkeep/podkeep/internal/common"
)

// activeDownload is the in-flight transfer handle kept in the registry. The
// byte counter is fed from the progress callback so the budget check can see
// space already committed to running transfers.
type activeDownload struct {
	id        string
	episodeID string
	path      string

	mu      sync.Mutex
	job     TransferJob
	stopped bool

	bytes atomic.Int64
}

// setJob publishes the job handle. A stop that raced ahead of it is applied
// immediately so a cancel between registration and transfer start still
// takes effect.
func (d *activeDownload) setJob(job TransferJob) {
	d.mu.Lock()
	d.job = job
	stopped := d.stopped
	d.mu.Unlock()

	if stopped {
		job.Stop()
	}
}

func (d *activeDownload) stop() {
	d.mu.Lock()
	d.stopped = true
	job := d.job
	d.mu.Unlock()

	if job != nil {
		job.Stop()
	}
}

// Registry tracks in-flight transfers by episode id. It is the only shared
// mutable state in the download subsystem and the sole same-process
// concurrency control: at most one transfer per episode. It is process-local;
// an in-flight download is abandoned on restart and the ledger remains the
// source of truth for "downloaded".
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*activeDownload
}

func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*activeDownload),
	}
}

func (r *Registry) Has(episodeID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.jobs[episodeID]

	return exists
}

// Add registers a transfer for an episode. A second registration for the same
// episode fails with ErrAlreadyInProgress.
func (r *Registry) Add(episodeID, path string) (*activeDownload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[episodeID]; exists {
		return nil, common.ErrAlreadyInProgress
	}

	entry := &activeDownload{
		id:        uuid.NewString(),
		episodeID: episodeID,
		path:      path,
	}
	r.jobs[episodeID] = entry

	return entry, nil
}

// Remove drops the registry entry, but only while it is still the same
// registration. Completion, failure and cancellation paths all call it;
// comparing entry ids keeps a slow unwind of a cancelled call from deleting
// the entry a retry has registered in the meantime. Removing an absent or
// replaced entry is a no-op.
func (r *Registry) Remove(episodeID, entryID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, exists := r.jobs[episodeID]; exists && entry.id == entryID {
		delete(r.jobs, episodeID)
	}
}

func (r *Registry) Get(episodeID string) *activeDownload {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.jobs[episodeID]
}

// TotalActiveBytes sums the bytes written so far by all in-flight transfers.
func (r *Registry) TotalActiveBytes() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total int64
	for _, entry := range r.jobs {
		total += entry.bytes.Load()
	}

	return total
}
