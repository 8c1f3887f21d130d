package dgramserver

import (
	"container/list"
	"sync"
	"time"
)

// clientKey identifies one reply destination: a datagram client is never
// "connected" the way a stream socket is, so activity is tracked per
// (channel, reply path) pair instead of per file descriptor.
type clientKey struct {
	channel string
	replyTo string
}

// clientActivity is the bookkeeping kept per tracked client.
type clientActivity struct {
	key          clientKey
	RequestCount int64
	FirstSeen    time.Time
	LastSeen     time.Time
}

// activityTracker is a size-bounded, least-recently-used table of recent
// client activity, adapted from the connection-pool bookkeeping the teacher
// uses for its (stream-oriented) connection pool: here there is no
// connection to reuse, only recency to bound.
type activityTracker struct {
	mu       sync.Mutex
	limit    int
	order    *list.List
	elements map[clientKey]*list.Element
}

func newActivityTracker(limit int) *activityTracker {
	if limit <= 0 {
		limit = 1
	}
	return &activityTracker{
		limit:    limit,
		order:    list.New(),
		elements: make(map[clientKey]*list.Element),
	}
}

// Touch records one request from (channel, replyTo), creating an entry if
// needed and evicting the least-recently-used entry if the tracker is at
// capacity.
func (t *activityTracker) Touch(channel, replyTo string) {
	if replyTo == "" {
		return
	}
	key := clientKey{channel: channel, replyTo: replyTo}
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if el, ok := t.elements[key]; ok {
		ca := el.Value.(*clientActivity)
		ca.RequestCount++
		ca.LastSeen = now
		t.order.MoveToFront(el)
		return
	}

	if t.order.Len() >= t.limit {
		oldest := t.order.Back()
		if oldest != nil {
			t.order.Remove(oldest)
			delete(t.elements, oldest.Value.(*clientActivity).key)
		}
	}

	ca := &clientActivity{key: key, RequestCount: 1, FirstSeen: now, LastSeen: now}
	el := t.order.PushFront(ca)
	t.elements[key] = el
}

// Len returns the number of clients currently tracked.
func (t *activityTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.order.Len()
}

// Snapshot returns a copy of every tracked client's activity, most recently
// active first.
func (t *activityTracker) Snapshot() []clientActivity {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]clientActivity, 0, t.order.Len())
	for el := t.order.Front(); el != nil; el = el.Next() {
		out = append(out, *el.Value.(*clientActivity))
	}
	return out
}
