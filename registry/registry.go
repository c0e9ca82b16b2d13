// Package registry supplies the failover iterator with a dynamically
// refreshed broker list, as an optional supplement to a failover URI's
// statically parsed one. Service discovery solves "how does the failover
// iterator learn about brokers that were never in the original URI": new
// brokers rolled into a cluster, old ones retired, without the caller
// having to reparse and replace the URI by hand.
package registry

import "gostomp/failover"

// BrokerRegistry is the interface a discovery backend implements. It is a
// superset of failover.BrokerRegistry, which needs only Watch, so any
// BrokerRegistry can be handed to failover.Iterator.WithRegistry.
type BrokerRegistry interface {
	// Discover returns the current broker list for serviceName.
	Discover(serviceName string) ([]failover.Broker, error)

	// Watch returns a channel that receives a fresh broker list whenever
	// the service's set of brokers changes. The channel is never closed by
	// a well-behaved implementation except when the registry itself is
	// closed.
	Watch(serviceName string) <-chan []failover.Broker
}
