package mediator

import "sync"

// ring keeps the last published payloads of an account.
type ring struct {
	mu    sync.Mutex
	buf   []any
	next  int
	full  bool
	last  any
	valid bool
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]any, capacity)}
}

func (r *ring) push(v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last, r.valid = v, true
	if len(r.buf) == 0 {
		return
	}
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) latest() (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.valid
}

func (r *ring) items() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]any(nil), r.buf[:r.next]...)
	}
	out := make([]any, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}
