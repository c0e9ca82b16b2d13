package session

// Op identifies one session call for the benefit of an interceptor: its
// command name, the session it is running against, the phase the session
// was in before the call, and the bookkeeping step itself (Run).
//
// This is the same onion-model shape this module's lineage uses to wrap
// RPC handlers, generalized from wrapping a business handler to wrapping a
// session's build-and-record step.
type Op struct {
	Name        string
	Session     *Session
	PhaseBefore Phase
	Run         func() error
}

// HandlerFunc is the signature an Op passes through the interceptor chain.
type HandlerFunc func(Op) error

// Interceptor wraps a HandlerFunc to add cross-cutting behavior (logging,
// metrics) around every session call, without touching the call itself.
type Interceptor func(next HandlerFunc) HandlerFunc

// Chain composes interceptors so the first one given is the outermost
// layer: Chain(A, B)(h) runs A.before, B.before, h, B.after, A.after.
func Chain(interceptors ...Interceptor) Interceptor {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(interceptors) - 1; i >= 0; i-- {
			next = interceptors[i](next)
		}
		return next
	}
}
