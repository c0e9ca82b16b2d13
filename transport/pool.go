package transport

import (
	"fmt"
	"sync"
)

// Pool manages a set of reusable Transports to a single address, for
// collaborators that use connections exclusively (one in-flight exchange
// at a time per connection) rather than multiplexing requests over a
// shared one.
//
// Pool design: a buffered channel as a natural FIFO queue. Buffered
// channels are concurrency-safe, and blocking on empty is built in.
type Pool struct {
	mu       sync.Mutex
	conns    chan *pooledTransport
	addr     string
	maxConns int
	curConns int
	factory  func() (Transport, error)
}

// pooledTransport wraps a Transport with pool metadata.
type pooledTransport struct {
	Transport
	pool     *Pool
	unusable bool // set true when the transport encountered an error
}

// NewPool creates a connection pool bounded at maxConns. Connections are
// created lazily: the pool starts empty and grows on demand.
func NewPool(addr string, maxConns int, factory func() (Transport, error)) *Pool {
	return &Pool{
		conns:    make(chan *pooledTransport, maxConns),
		addr:     addr,
		maxConns: maxConns,
		factory:  factory,
	}
}

// Get retrieves a transport from the pool: an idle one if available, else a
// freshly dialed one if under the limit, else it blocks until one is
// returned.
func (p *Pool) Get() (Transport, error) {
	select {
	case conn := <-p.conns:
		if conn.unusable {
			return p.createNew()
		}
		return conn, nil
	default:
		if p.curConns < p.maxConns {
			return p.createNew()
		}
		conn := <-p.conns
		return conn, nil
	}
}

// Put returns a transport to the pool. A transport obtained outside of Get
// is accepted too, as an unpooled one-shot member that is simply discarded
// on Put via Disconnect.
func (p *Pool) Put(t Transport) {
	conn, ok := t.(*pooledTransport)
	if !ok {
		_ = t.Disconnect()
		return
	}
	if conn.unusable {
		_ = conn.Disconnect()
		p.mu.Lock()
		p.curConns--
		p.mu.Unlock()
		return
	}
	p.conns <- conn
}

// MarkUnusable flags a transport obtained from Get as broken, so the next
// Put discards it instead of recycling it.
func MarkUnusable(t Transport) {
	if conn, ok := t.(*pooledTransport); ok {
		conn.unusable = true
	}
}

// Close shuts down the pool, disconnecting every idle transport.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	close(p.conns)
	for conn := range p.conns {
		_ = conn.Disconnect()
		p.curConns--
	}
	return nil
}

func (p *Pool) createNew() (Transport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.curConns >= p.maxConns {
		return nil, fmt.Errorf("transport pool exhausted for %s", p.addr)
	}

	t, err := p.factory()
	if err != nil {
		return nil, err
	}

	p.curConns++
	return &pooledTransport{Transport: t, pool: p}, nil
}
