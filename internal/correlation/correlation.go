// Package correlation tracks in-flight requests by an internal identifier,
// exposing only a name/channel-scoped Handle to application code, and
// supports single and bulk cancellation plus rolling statistics.
package correlation

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a handle's lifecycle state.
type Status int

const (
	Pending Status = iota
	Completed
	Failed
	Cancelled
	TimedOut
	Unknown
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	case TimedOut:
		return "timeout"
	default:
		return "unknown"
	}
}

// Signal is the single-use message a handle's owner selects on: exactly
// one is ever sent per handle, by whichever of response/cancel/timeout
// resolves it first.
type Signal struct {
	Status Status
	Value  interface{}
	Err    error
}

// Handle is the client-visible token for one pending request. The
// internal identifier is never exposed; callers see only Name and
// Channel.
type Handle struct {
	id      string
	name    string
	channel string
}

// Name returns the request name this handle was created for.
func (h *Handle) Name() string { return h.name }

// Channel returns the channel tag this handle was created for.
func (h *Handle) Channel() string { return h.channel }

type tracked struct {
	handle    *Handle
	createdAt time.Time
	status    Status
	signal    chan Signal
}

// Statistics summarizes correlation registry activity.
type Statistics struct {
	TotalPending        int     `json:"total_pending"`
	TotalResolved       int64   `json:"total_resolved"`
	AverageResponseTime float64 `json:"average_response_time"`
}

// Registry is an instance-scoped, concurrency-safe correlation table.
// Never process-global: each client/server instance owns one.
type Registry struct {
	mu            sync.Mutex
	entries       map[string]*tracked
	totalResolved int64
	totalRespTime time.Duration
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*tracked)}
}

// Register allocates an internal id and returns a Handle plus the
// single-use channel its owner should select on for resolution.
func (r *Registry) Register(name, channel string) (*Handle, <-chan Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := &Handle{id: uuid.New().String(), name: name, channel: channel}
	t := &tracked{
		handle:    h,
		createdAt: time.Now(),
		status:    Pending,
		signal:    make(chan Signal, 1),
	}
	r.entries[h.id] = t
	return h, t.signal
}

func (r *Registry) resolve(id string, status Status, sig Signal, countTowardAverage bool) bool {
	r.mu.Lock()
	t, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.entries, id)
	t.status = status
	if countTowardAverage {
		r.totalResolved++
		r.totalRespTime += time.Since(t.createdAt)
	}
	r.mu.Unlock()

	select {
	case t.signal <- sig:
	default:
	}
	return true
}

// Complete resolves handle.id with a successful value, updating rolling
// statistics.
func (r *Registry) Complete(handle *Handle, value interface{}) bool {
	return r.resolve(handle.id, Completed, Signal{Status: Completed, Value: value}, true)
}

// Fail resolves handle.id with an error (e.g. dispatch/internal failure),
// still counted toward resolution statistics.
func (r *Registry) Fail(handle *Handle, err error) bool {
	return r.resolve(handle.id, Failed, Signal{Status: Failed, Err: err}, true)
}

// Timeout resolves handle.id as timed out.
func (r *Registry) Timeout(handle *Handle, err error) bool {
	return r.resolve(handle.id, TimedOut, Signal{Status: TimedOut, Err: err}, true)
}

// CancelOne marks handle cancelled and signals its waiting consumer.
// Returns false if the handle was already resolved.
func (r *Registry) CancelOne(handle *Handle) bool {
	return r.resolve(handle.id, Cancelled, Signal{Status: Cancelled}, false)
}

// CancelAll cancels every live handle, returning the count cancelled.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	live := make([]*tracked, 0, len(r.entries))
	for id, t := range r.entries {
		live = append(live, t)
		delete(r.entries, id)
	}
	r.mu.Unlock()

	for _, t := range live {
		t.status = Cancelled
		select {
		case t.signal <- Signal{Status: Cancelled}:
		default:
		}
	}
	return len(live)
}

// Status reports Pending while handle is live and Unknown once it has been
// resolved by any path. It does not report Completed, Failed, Cancelled or
// TimedOut: the terminal state is carried only by the resolution Signal
// delivered to the handle's owner.
func (r *Registry) Status(handle *Handle) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.entries[handle.id]; ok {
		return t.status
	}
	return Unknown
}

// PendingCount returns the number of live (unresolved) handles.
func (r *Registry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// PendingHandles returns the handle of every live request, in no
// particular order.
func (r *Registry) PendingHandles() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Handle, 0, len(r.entries))
	for _, t := range r.entries {
		out = append(out, t.handle)
	}
	return out
}

// Statistics returns a coherent snapshot of cumulative registry activity.
func (r *Registry) Statistics() Statistics {
	r.mu.Lock()
	defer r.mu.Unlock()
	var avg float64
	if r.totalResolved > 0 {
		avg = r.totalRespTime.Seconds() / float64(r.totalResolved)
	}
	return Statistics{
		TotalPending:        len(r.entries),
		TotalResolved:       r.totalResolved,
		AverageResponseTime: avg,
	}
}
