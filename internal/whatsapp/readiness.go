package whatsapp

import "sync"

// Readiness is a single-fire signal for the one-way not-ready to ready
// transition. It never resets once signaled.
type Readiness struct {
	once sync.Once
	ch   chan struct{}
}

// NewReadiness creates an unsignaled Readiness.
func NewReadiness() *Readiness {
	return &Readiness{ch: make(chan struct{})}
}

// Signal marks the client as ready. Subsequent calls are no-ops.
func (r *Readiness) Signal() {
	r.once.Do(func() { close(r.ch) })
}

// Ready reports whether Signal has fired.
func (r *Readiness) Ready() bool {
	select {
	case <-r.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed once the client is ready.
func (r *Readiness) Done() <-chan struct{} {
	return r.ch
}
