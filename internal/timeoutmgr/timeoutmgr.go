// Package timeoutmgr registers, cancels, extends, and fires per-request
// and bilateral (request/response) timeouts.
package timeoutmgr

import (
	"fmt"
	"sync"
	"time"
)

type entry struct {
	timer        *time.Timer
	callback     func()
	deadline     time.Time
	duration     time.Duration
	registeredAt time.Time
	seq          uint64
}

// Statistics summarizes timeout manager activity for diagnostics.
type Statistics struct {
	ActiveTimeouts  int           `json:"active_timeouts"`
	TotalRegistered int64         `json:"total_registered"`
	TotalCancelled  int64         `json:"total_cancelled"`
	TotalExpired    int64         `json:"total_expired"`
	AverageTimeout  time.Duration `json:"average_timeout"`
	LongestTimeout  time.Duration `json:"longest_timeout"`
	ShortestTimeout time.Duration `json:"shortest_timeout"`
	QueueLabel      string        `json:"queue_label"`
}

// Manager is a thread-safe, reentrant registry of one-shot deadline
// callbacks keyed by arbitrary string ids.
type Manager struct {
	mu       sync.Mutex
	entries  map[string]*entry
	seq      uint64
	regCount int64
	cancel   int64
	expired  int64
	totalDur time.Duration
	maxDur   time.Duration
	minDur   time.Duration
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{
		entries: make(map[string]*entry),
		minDur:  time.Hour * 24,
	}
}

// Register schedules a one-shot callback for id, firing after d. Any
// existing registration for id is cancelled and replaced.
func (m *Manager) Register(id string, d time.Duration, onFire func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registerLocked(id, d, onFire)
}

func (m *Manager) registerLocked(id string, d time.Duration, onFire func()) {
	if existing, ok := m.entries[id]; ok {
		existing.timer.Stop()
		m.cancel++
	}
	m.regCount++
	m.totalDur += d
	if d > m.maxDur {
		m.maxDur = d
	}
	if d < m.minDur {
		m.minDur = d
	}
	m.seq++
	seq := m.seq

	e := &entry{
		duration:     d,
		registeredAt: time.Now(),
		deadline:     time.Now().Add(d),
		callback:     onFire,
		seq:          seq,
	}
	e.timer = time.AfterFunc(d, func() { m.fire(id, seq) })
	m.entries[id] = e
}

func (m *Manager) fire(id string, seq uint64) {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok || e.seq != seq {
		m.mu.Unlock()
		return
	}
	delete(m.entries, id)
	m.expired++
	cb := e.callback
	m.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// RegisterWithErrorHandling validates seconds > 0 and a non-empty id
// before registering; on an invalid call it invokes onError asynchronously
// and never registers.
func (m *Manager) RegisterWithErrorHandling(id string, d time.Duration, onFire func(), onError func(error)) {
	if id == "" {
		go onError(fmt.Errorf("timeout id must not be empty"))
		return
	}
	if d <= 0 {
		go onError(fmt.Errorf("timeout duration must be positive"))
		return
	}
	m.Register(id, d, onFire)
}

// Cancel removes id's live registration, returning true iff one existed.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(m.entries, id)
	m.cancel++
	return true
}

// Extend pushes id's deadline to now + remaining + additional, returning
// false if id is unknown or already fired. A non-positive additional is a
// no-op that still reports the registration as live.
func (m *Manager) Extend(id string, additional time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return false
	}
	if additional <= 0 {
		return true
	}
	e.timer.Stop()
	remaining := time.Until(e.deadline)
	if remaining < 0 {
		remaining = 0
	}
	newDuration := remaining + additional
	m.seq++
	seq := m.seq
	e.seq = seq
	e.duration = newDuration
	e.deadline = time.Now().Add(newDuration)
	id2 := id
	e.timer = time.AfterFunc(newDuration, func() { m.fire(id2, seq) })
	return true
}

// RegisterBilateral registers two independently-timed, independently
// callbacked entries keyed by base+"-request" and base+"-response".
func (m *Manager) RegisterBilateral(base string, requestTimeout, responseTimeout time.Duration, onRequestFire, onResponseFire func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registerLocked(base+"-request", requestTimeout, onRequestFire)
	m.registerLocked(base+"-response", responseTimeout, onResponseFire)
}

// CancelBilateral cancels both halves of a bilateral registration,
// returning how many of the two were still live (0, 1, or 2).
func (m *Manager) CancelBilateral(base string) int {
	count := 0
	if m.Cancel(base + "-request") {
		count++
	}
	if m.Cancel(base + "-response") {
		count++
	}
	return count
}

// ActiveCount returns the number of live registrations.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Statistics returns a snapshot of cumulative manager activity.
func (m *Manager) Statistics() Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()
	var avg time.Duration
	if m.regCount > 0 {
		avg = m.totalDur / time.Duration(m.regCount)
	}
	minDur := m.minDur
	if m.regCount == 0 {
		minDur = 0
	}
	return Statistics{
		ActiveTimeouts:  len(m.entries),
		TotalRegistered: m.regCount,
		TotalCancelled:  m.cancel,
		TotalExpired:    m.expired,
		AverageTimeout:  avg,
		LongestTimeout:  m.maxDur,
		ShortestTimeout: minDur,
		QueueLabel:      "timeoutmgr.default",
	}
}

// Close cancels every live registration. Subsequent use of the Manager is
// safe but starts from an empty state.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.entries {
		e.timer.Stop()
		delete(m.entries, id)
		m.cancel++
	}
}
