package fanout

import "sync"

// Registry is an ordered set of callback subscriptions. Delivery is
// synchronous and in registration order; Publish operates on a snapshot of
// the subscriber list, so a listener added during delivery is not invoked
// for the in-progress value. Removal goes through the Subscription handle,
// which stays unambiguous even when the same closure is registered twice.
type Registry[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   []*Subscription[T]
}

type Subscription[T any] struct {
	id       uint64
	fn       func(T)
	registry *Registry[T]
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{}
}

func (r *Registry[T]) Add(fn func(T)) *Subscription[T] {
	if fn == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	sub := &Subscription[T]{id: r.nextID, fn: fn, registry: r}
	r.subs = append(r.subs, sub)
	return sub
}

func (r *Registry[T]) Remove(sub *Subscription[T]) {
	if sub == nil || sub.registry != r {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.subs {
		if s.id == sub.id {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			return
		}
	}
}

func (r *Registry[T]) Publish(v T) {
	r.mu.Lock()
	snapshot := make([]*Subscription[T], len(r.subs))
	copy(snapshot, r.subs)
	r.mu.Unlock()
	for _, s := range snapshot {
		s.fn(v)
	}
}

func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Cancel removes the subscription from its registry. Safe to call more
// than once and on a nil handle.
func (s *Subscription[T]) Cancel() {
	if s == nil || s.registry == nil {
		return
	}
	s.registry.Remove(s)
}
