package transport

import (
	"context"
	"testing"
	"time"
)

type fakeTransport struct {
	connected    bool
	disconnected bool
}

func (f *fakeTransport) Connect(ctx context.Context) error { f.connected = true; return nil }
func (f *fakeTransport) Send(b []byte) error                { return nil }
func (f *fakeTransport) ReceiveSome() ([]byte, error)        { return nil, nil }
func (f *fakeTransport) CanRead(time.Duration) (bool, error) { return true, nil }
func (f *fakeTransport) Disconnect() error                  { f.disconnected = true; return nil }

func TestPoolGetPutReusesTransport(t *testing.T) {
	var built int
	p := NewPool("addr", 2, func() (Transport, error) {
		built++
		return &fakeTransport{}, nil
	})

	t1, err := p.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	p.Put(t1)

	t2, err := p.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if built != 1 {
		t.Fatalf("built = %d, want 1 (transport should be reused)", built)
	}
	if t1 != t2 {
		t.Fatalf("expected Put then Get to return the same transport")
	}
}

func TestPoolExhaustedOverLimit(t *testing.T) {
	p := NewPool("addr", 1, func() (Transport, error) {
		return &fakeTransport{}, nil
	})
	if _, err := p.Get(); err != nil {
		t.Fatalf("first Get: %v", err)
	}
	// A second Get with nothing returned would block forever; instead
	// exercise createNew's limit check directly via a pool already at
	// capacity and nothing idle.
	p.mu.Lock()
	atLimit := p.curConns >= p.maxConns
	p.mu.Unlock()
	if !atLimit {
		t.Fatalf("expected pool to be at capacity after one Get with maxConns=1")
	}
	if _, err := p.createNew(); err == nil {
		t.Fatalf("expected pool-exhausted error")
	}
}

func TestPoolMarkUnusableDiscardsOnPut(t *testing.T) {
	p := NewPool("addr", 1, func() (Transport, error) {
		return &fakeTransport{}, nil
	})
	conn, err := p.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	MarkUnusable(conn)
	p.Put(conn)

	p.mu.Lock()
	cur := p.curConns
	p.mu.Unlock()
	if cur != 0 {
		t.Fatalf("curConns = %d, want 0 after discarding an unusable transport", cur)
	}
}
