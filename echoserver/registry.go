package echoserver

import (
	"sync"
	"sync/atomic"
)

// registry is the set of open sessions keyed by ID. It is safe for
// concurrent use.
type registry struct {
	m sync.Map
	n atomic.Int64
}

func (r *registry) store(s *Session) {
	if _, loaded := r.m.LoadOrStore(s.id, s); !loaded {
		r.n.Add(1)
	}
}

func (r *registry) load(id uint32) (*Session, bool) {
	v, ok := r.m.Load(id)
	if !ok {
		return nil, false
	}

	return v.(*Session), true
}

func (r *registry) delete(id uint32) {
	if _, loaded := r.m.LoadAndDelete(id); loaded {
		r.n.Add(-1)
	}
}

func (r *registry) len() int {
	return int(r.n.Load())
}

// snapshot returns the sessions open at the time of the call.
func (r *registry) snapshot() []*Session {
	var out []*Session
	r.m.Range(func(_, v any) bool {
		out = append(out, v.(*Session))
		return true
	})

	return out
}
