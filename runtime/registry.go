package runtime

import (
	"sync"

	"sealmax-messenger/contract"
)

type connSet map[contract.EventSink]struct{}

var _ contract.IRegistry = (*Registry)(nil)

// Registry owns live-connection membership: which sinks belong to
// which authenticated user. A user may hold several connections at
// once (multiple devices), so sinks are bucketed per user.
//
// Registry is safe for concurrent use by connection handlers and the
// router's fan-out loop.
type Registry struct {
	mu     sync.RWMutex
	owners map[contract.EventSink]int64
	byUser map[int64]connSet
}

func NewRegistry() *Registry {
	return &Registry{
		owners: make(map[contract.EventSink]int64),
		byUser: make(map[int64]connSet),
	}
}

// Register adds a sink under a user's bucket. From this point on the
// sink is a delivery target for that user.
func (r *Registry) Register(userID int64, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.owners[sink] = userID
	if _, ok := r.byUser[userID]; !ok {
		r.byUser[userID] = make(connSet)
	}
	r.byUser[userID][sink] = struct{}{}
}

// Unregister removes a sink. Idempotent: disconnect handling can race
// with cleanup, and removing an already-removed sink is a no-op.
// Empty buckets are dropped so the map does not grow forever.
func (r *Registry) Unregister(sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owners[sink]
	if !ok {
		return
	}
	delete(r.owners, sink)

	if bucket, ok := r.byUser[userID]; ok {
		delete(bucket, sink)
		if len(bucket) == 0 {
			delete(r.byUser, userID)
		}
	}
}

// ConnectionsFor returns the live sinks of one user. Empty if the user
// has no live connection; messages to them are then only persisted.
func (r *Registry) ConnectionsFor(userID int64) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, ok := r.byUser[userID]
	if !ok {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(bucket))
	for sink := range bucket {
		sinks = append(sinks, sink)
	}
	return sinks
}

// All returns every live sink across all users, each exactly once.
func (r *Registry) All() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sinks := make([]contract.EventSink, 0, len(r.owners))
	for sink := range r.owners {
		sinks = append(sinks, sink)
	}
	return sinks
}

// Size returns the number of live connections, for metrics.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}
