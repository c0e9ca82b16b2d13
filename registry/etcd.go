package registry

import (
	"context"
	"encoding/json"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"gostomp/failover"
)

// keyPrefix mirrors this module's lineage convention of namespacing every
// key under a fixed application prefix: /gostomp/brokers/{serviceName}/{addr}.
const keyPrefix = "/gostomp/brokers/"

// EtcdBrokerRegistry implements BrokerRegistry on top of an etcd v3 client.
// Each broker is stored as a JSON value under a service-scoped key prefix
// and kept alive with a TTL lease, exactly as a registered RPC server
// instance would be in this module's lineage, repurposed here to register
// STOMP broker endpoints instead of service instances.
type EtcdBrokerRegistry struct {
	client        *clientv3.Client
	debounceLimit rate.Limit
}

// EtcdOptions configures an EtcdBrokerRegistry.
type EtcdOptions struct {
	Endpoints []string
	// Logger receives the etcd client's own operational logging. A nil
	// Logger defaults to zap.NewNop(), so the etcd client logs nothing
	// unless a logger is supplied.
	Logger *zap.Logger
	// WatchDebounce caps how many refreshed broker-list notifications Watch
	// publishes per second, smoothing over bursts of etcd watch events
	// (e.g. a rolling broker restart touching every key within
	// milliseconds). Zero defaults to 2 per second.
	WatchDebounce float64
}

// NewEtcdBrokerRegistry connects to the given etcd endpoints.
func NewEtcdBrokerRegistry(opts EtcdOptions) (*EtcdBrokerRegistry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	debounce := opts.WatchDebounce
	if debounce <= 0 {
		debounce = 2
	}
	c, err := clientv3.New(clientv3.Config{
		Endpoints: opts.Endpoints,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	return &EtcdBrokerRegistry{client: c, debounceLimit: rate.Limit(debounce)}, nil
}

// Register publishes a broker endpoint for serviceName with a TTL lease; if
// the process registering it dies, the lease expires and the entry is
// automatically removed.
func (r *EtcdBrokerRegistry) Register(serviceName string, broker failover.Broker, ttlSeconds int64) error {
	ctx := context.Background()
	lease, err := r.client.Grant(ctx, ttlSeconds)
	if err != nil {
		return err
	}
	val, err := json.Marshal(broker)
	if err != nil {
		return err
	}
	key := brokerKey(serviceName, broker)
	if _, err := r.client.Put(ctx, key, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return err
	}
	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return err
	}
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister removes a broker endpoint immediately, ahead of its lease
// expiring.
func (r *EtcdBrokerRegistry) Deregister(serviceName string, broker failover.Broker) error {
	ctx := context.Background()
	_, err := r.client.Delete(ctx, brokerKey(serviceName, broker))
	return err
}

// brokerKey builds the etcd key a broker endpoint is stored under.
func brokerKey(serviceName string, broker failover.Broker) string {
	return servicePrefix(serviceName) + broker.String()
}

// servicePrefix builds the key prefix every broker of serviceName is stored
// under.
func servicePrefix(serviceName string) string {
	return keyPrefix + serviceName + "/"
}

// Discover returns the current broker list for serviceName.
func (r *EtcdBrokerRegistry) Discover(serviceName string) ([]failover.Broker, error) {
	ctx := context.Background()
	prefix := servicePrefix(serviceName)
	resp, err := r.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	brokers := make([]failover.Broker, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var b failover.Broker
		if err := json.Unmarshal(kv.Value, &b); err != nil {
			continue
		}
		brokers = append(brokers, b)
	}
	return brokers, nil
}

// Watch monitors serviceName's key prefix and emits a refreshed broker list
// whenever it changes, debounced by WatchDebounce so a burst of etcd events
// produces at most a few publishes per second rather than one per event.
func (r *EtcdBrokerRegistry) Watch(serviceName string) <-chan []failover.Broker {
	ctx := context.Background()
	out := make(chan []failover.Broker, 1)
	prefix := servicePrefix(serviceName)
	limiter := rate.NewLimiter(r.debounceLimit, 1)

	go func() {
		defer close(out)
		watchCh := r.client.Watch(ctx, prefix, clientv3.WithPrefix())
		for range watchCh {
			if !limiter.Allow() {
				continue
			}
			brokers, err := r.Discover(serviceName)
			if err != nil {
				continue
			}
			select {
			case out <- brokers:
			default:
				// A consumer slower than the debounce rate keeps the latest
				// snapshot only; stale intermediate ones are not worth
				// buffering.
				select {
				case <-out:
				default:
				}
				out <- brokers
			}
		}
	}()

	return out
}

// Close releases the underlying etcd client connection.
func (r *EtcdBrokerRegistry) Close() error {
	return r.client.Close()
}

var _ BrokerRegistry = (*EtcdBrokerRegistry)(nil)
