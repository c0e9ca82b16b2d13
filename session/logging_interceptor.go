package session

import "log"

// LoggingInterceptor records the command name, the phase transition, and
// any error for each session call.
//
// Example output:
//
//	session: op=subscribe phase=connected->connected err=<nil>
func LoggingInterceptor() Interceptor {
	return func(next HandlerFunc) HandlerFunc {
		return func(op Op) error {
			err := next(op)
			log.Printf("session: op=%s phase=%s->%s err=%v", op.Name, op.PhaseBefore, op.Session.Phase(), err)
			return err
		}
	}
}
