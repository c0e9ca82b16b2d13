package registry

import (
	"testing"

	"gostomp/failover"
)

func TestBrokerKeyAndServicePrefix(t *testing.T) {
	broker := failover.Broker{Scheme: "tcp", Host: "broker1", Port: 61613}
	key := brokerKey("orders", broker)
	want := "/gostomp/brokers/orders/tcp://broker1:61613"
	if key != want {
		t.Fatalf("brokerKey() = %q, want %q", key, want)
	}
	if got := servicePrefix("orders"); got != "/gostomp/brokers/orders/" {
		t.Fatalf("servicePrefix() = %q", got)
	}
}

// fakeRegistry only needs to satisfy the BrokerRegistry interface; it
// exercises that EtcdBrokerRegistry's method set is not the only shape
// failover.Iterator.WithRegistry can accept.
type fakeRegistry struct {
	brokers []failover.Broker
}

func (f *fakeRegistry) Discover(string) ([]failover.Broker, error) { return f.brokers, nil }

func (f *fakeRegistry) Watch(string) <-chan []failover.Broker {
	ch := make(chan []failover.Broker, 1)
	ch <- f.brokers
	close(ch)
	return ch
}

func TestFakeRegistrySatisfiesInterface(t *testing.T) {
	var _ BrokerRegistry = (*fakeRegistry)(nil)
	var _ failover.BrokerRegistry = (*fakeRegistry)(nil)
}
