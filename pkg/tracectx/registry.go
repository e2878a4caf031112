package tracectx

import "sync"

// shardCount must be a power of two.
const shardCount = 32

// registry maps live execution nodes to their trace context value.
// It is owned by an Observer; nothing else writes to it.
type registry struct {
	shards [shardCount]registryShard
}

type registryShard struct {
	mu      sync.RWMutex
	entries map[NodeID]string
}

func newRegistry() *registry {
	r := &registry{}
	for i := range r.shards {
		r.shards[i].entries = make(map[NodeID]string)
	}
	return r
}

func (r *registry) shard(node NodeID) *registryShard {
	return &r.shards[uint64(node)&(shardCount-1)]
}

func (r *registry) set(node NodeID, value string) {
	s := r.shard(node)
	s.mu.Lock()
	s.entries[node] = value
	s.mu.Unlock()
}

// get reports ("", false) for nodes without an entry.
func (r *registry) get(node NodeID) (string, bool) {
	s := r.shard(node)
	s.mu.RLock()
	value, ok := s.entries[node]
	s.mu.RUnlock()
	return value, ok
}

// delete is a no-op for unknown nodes.
func (r *registry) delete(node NodeID) {
	s := r.shard(node)
	s.mu.Lock()
	delete(s.entries, node)
	s.mu.Unlock()
}

func (r *registry) len() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}
