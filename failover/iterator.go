package failover

import (
	"math/rand"
	"net"
	"os"
	"regexp"
	"sort"
	"time"

	"gostomp/stomperr"
)

// BrokerRegistry is the subset of the broker registry package's interface
// the iterator needs: a channel of fresher broker lists for a named
// service. A nil registry (the default) means the iterator uses only the
// statically parsed broker list forever.
type BrokerRegistry interface {
	Watch(serviceName string) <-chan []Broker
}

// Iterator sequences reconnect attempts across a URI's broker list,
// producing a (broker, delay) pair per call to Next. It is a pure,
// non-blocking computation: the returned delay is advisory, the caller is
// the one that actually waits and dials.
type Iterator struct {
	uri *URI

	registry    BrokerRegistry
	serviceName string
	watchCh     <-chan []Broker
	dynamic     []Broker // last list observed from the registry, if any

	first bool // true until a handshake has ever succeeded

	reconnectDelay float64 // ms, current
	attempts       int
	maxAttempts    int

	cycle []Broker
	idx   int

	rng *rand.Rand
}

// NewIterator builds an iterator over uri's static broker list.
func NewIterator(uri *URI) *Iterator {
	it := &Iterator{
		uri:   uri,
		first: true,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	it.resetCycle()
	return it
}

// WithRegistry attaches a dynamic broker registry: from the next full
// cycle onward, a fresher list observed from the registry supersedes the
// statically parsed one.
func (it *Iterator) WithRegistry(reg BrokerRegistry, serviceName string) *Iterator {
	it.registry = reg
	it.serviceName = serviceName
	it.watchCh = reg.Watch(serviceName)
	return it
}

// Succeeded tells the iterator a handshake with the most recently returned
// broker completed. The next reconnect sequence (the next run of Next calls
// after a subsequent failure) uses the steady-state attempt budget instead
// of the startup one, and starts counting attempts afresh.
func (it *Iterator) Succeeded() {
	it.first = false
	it.resetCycle()
}

// Next returns the next (broker, delay) pair. delay is seconds the caller
// should wait before dialing broker. Next fails with a *stomperr.ConnectTimeout
// once the attempt budget (startup or steady-state, whichever applies) is
// exhausted.
func (it *Iterator) Next() (Broker, float64, error) {
	if it.idx >= len(it.cycle) {
		it.refreshCycle()
	}
	broker := it.cycle[it.idx]
	it.idx++

	delay, err := it.nextDelay()
	if err != nil {
		return Broker{}, 0, err
	}
	return broker, delay, nil
}

func (it *Iterator) nextDelay() (float64, error) {
	it.attempts++
	if it.attempts == 0 {
		return 0, nil
	}
	if it.maxAttempts != -1 && it.attempts > it.maxAttempts {
		return 0, stomperr.NewConnectTimeout(it.attempts - 1)
	}
	jitter := 0.0
	if it.uri.Options.ReconnectDelayJitter > 0 {
		jitter = float64(it.uri.Options.ReconnectDelayJitter) * it.rng.Float64()
	}
	delayMs := it.reconnectDelay + jitter
	if delayMs < 0 {
		delayMs = 0
	}
	if max := float64(it.uri.Options.MaxReconnectDelay); delayMs > max {
		delayMs = max
	}
	multiplier := 1.0
	if it.uri.Options.UseExponentialBackOff {
		multiplier = it.uri.Options.BackOffMultiplier
	}
	it.reconnectDelay *= multiplier
	return delayMs / 1000.0, nil
}

func (it *Iterator) resetCycle() {
	opts := it.uri.Options
	it.reconnectDelay = float64(opts.InitialReconnectDelay)
	if it.first {
		it.maxAttempts = opts.StartupMaxReconnectAttempts
	} else {
		it.maxAttempts = opts.MaxReconnectAttempts
	}
	it.attempts = -1
	it.cycle = it.orderedBrokers()
	it.idx = 0
}

// refreshCycle starts a new pass through the broker list: it drains any
// pending registry update (non-blocking: a registry outage or silence
// never stalls the iterator) and re-applies randomize/priorityBackup.
func (it *Iterator) refreshCycle() {
	it.drainRegistry()
	it.cycle = it.orderedBrokers()
	it.idx = 0
}

func (it *Iterator) drainRegistry() {
	if it.watchCh == nil {
		return
	}
	for {
		select {
		case fresh, ok := <-it.watchCh:
			if !ok {
				it.watchCh = nil
				return
			}
			it.dynamic = fresh
		default:
			return
		}
	}
}

func (it *Iterator) orderedBrokers() []Broker {
	source := it.uri.Brokers
	if len(it.dynamic) > 0 {
		source = it.dynamic
	}
	brokers := make([]Broker, len(source))
	copy(brokers, source)

	if it.uri.Options.Randomize {
		it.rng.Shuffle(len(brokers), func(i, j int) { brokers[i], brokers[j] = brokers[j], brokers[i] })
	}
	if it.uri.Options.PriorityBackup {
		sort.SliceStable(brokers, func(i, j int) bool {
			return isLocalHost(brokers[i].Host) && !isLocalHost(brokers[j].Host)
		})
	}
	return brokers
}

var localhostIPv4 = regexp.MustCompile(`^127\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)

// isLocalHost reports whether host names the machine the process is
// running on: the literal "localhost", a 127.x.y.z loopback address, or an
// address that resolves to one of this host's own names. DNS failures are
// treated as "not local" rather than propagated.
func isLocalHost(host string) bool {
	if host == "localhost" {
		return true
	}
	if localhostIPv4.MatchString(host) {
		return true
	}
	return lookupMatchesLocal(host)
}

func lookupMatchesLocal(host string) bool {
	selfHostname, err := os.Hostname()
	if err != nil {
		return false
	}
	if host == selfHostname {
		return true
	}
	selfAddrs, err := net.LookupHost(selfHostname)
	if err != nil {
		return false
	}
	hostAddrs, err := net.LookupHost(host)
	if err != nil {
		return false
	}
	for _, a := range hostAddrs {
		for _, b := range selfAddrs {
			if a == b {
				return true
			}
		}
	}
	return false
}
