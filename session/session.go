// Package session implements the STOMP session state machine: the
// authoritative, in-memory record of connection phase, negotiated version,
// active subscriptions, open transactions, outstanding receipts, and
// heart-beat timing. It wraps the pure builders in gostomp/command and adds
// the bookkeeping and phase legality checks a real conversation with a
// broker needs.
//
// A Session is not safe for concurrent use by multiple goroutines; exactly
// like the rest of the protocol engine, it assumes a single caller drives it
// at a time (see the module's concurrency model).
package session

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"gostomp/command"
	"gostomp/frame"
	"gostomp/stomperr"
	"gostomp/stompspec"
)

// Phase is one of the four states a session moves through.
type Phase string

const (
	Disconnected  Phase = "disconnected"
	Connecting    Phase = "connecting"
	Connected     Phase = "connected"
	Disconnecting Phase = "disconnecting"
)

// Subscription is the bookkeeping record kept for each active subscription.
type Subscription struct {
	Seq         int
	Destination string
	Headers     map[string]string
	Receipt     string
	Context     any
}

// Session is the STOMP session state machine.
type Session struct {
	ceilingVersion stompspec.Version
	version        stompspec.Version
	strict         bool

	phase   Phase
	nextSeq int

	subscriptions map[command.Token]*Subscription
	transactions  map[string]bool
	receipts      map[string]bool

	proposedVersions []stompspec.Version
	server, id       string

	lastSent, lastReceived                                 time.Time
	clientSendHB, clientRecvHB, serverSendHB, serverRecvHB int

	interceptors []Interceptor
}

// New creates a session whose protocol ceiling is version, and which, when
// strict is true (the recommended default), rejects calls made in an
// incompatible phase with a *stomperr.ProtocolError.
func New(version stompspec.Version, strict bool) *Session {
	if version == "" {
		version = stompspec.DefaultVersion
	}
	s := &Session{ceilingVersion: version, strict: strict}
	s.reset()
	s.flush()
	return s
}

// Use installs interceptors around every session operation, outermost
// first. Calling Use replaces any previously installed chain.
func (s *Session) Use(interceptors ...Interceptor) {
	s.interceptors = interceptors
}

// Version is the negotiated protocol version while connected, or the
// construction-time ceiling otherwise.
func (s *Session) Version() stompspec.Version { return s.version }

// Phase is the session's current state.
func (s *Session) Phase() Phase { return s.phase }

// Server is the server id advertised on CONNECTED.
func (s *Session) Server() string { return s.server }

// ID is the session id advertised on CONNECTED.
func (s *Session) ID() string { return s.id }

// Connect builds a CONNECT frame and moves the session to Connecting.
func (s *Session) Connect(args command.ConnectArgs) (f *frame.Frame, err error) {
	err = s.call("connect", []Phase{Disconnected}, func() error {
		versions := args.Versions
		if versions == nil {
			versions = stompspec.VersionsUpTo(s.ceilingVersion)
		}
		if err := s.setProposedVersions(versions); err != nil {
			return err
		}
		args.Versions = s.proposedVersions
		if args.HeartBeats != nil {
			s.clientSendHB, s.clientRecvHB = args.HeartBeats.Send, args.HeartBeats.Receive
		} else {
			s.clientSendHB, s.clientRecvHB = 0, 0
		}
		built, buildErr := command.Connect(args)
		if buildErr != nil {
			return buildErr
		}
		f = built
		s.phase = Connecting
		return nil
	})
	return f, err
}

func (s *Session) setProposedVersions(versions []stompspec.Version) error {
	legal := stompspec.VersionsUpTo(s.ceilingVersion)
	for _, v := range versions {
		if !containsVersion(legal, v) {
			return stomperr.NewProtocolError("invalid versions: %v [ceiling=%s]", versions, s.ceilingVersion)
		}
	}
	s.proposedVersions = versions
	return nil
}

func containsVersion(versions []stompspec.Version, v stompspec.Version) bool {
	for _, c := range versions {
		if c == v {
			return true
		}
	}
	return false
}

// Connected handles an incoming CONNECTED frame, negotiating the effective
// version and moving the session to Connected.
func (s *Session) Connected(f *frame.Frame) error {
	return s.call("connected", []Phase{Connecting}, func() error {
		versions := s.proposedVersions
		s.proposedVersions = nil // commands.connected is consulted exactly once, then forgotten
		v, server, id, hb, err := command.Connected(f, versions)
		if err != nil {
			return err
		}
		s.version = v
		s.server = server
		s.id = id
		s.serverSendHB, s.serverRecvHB = hb.Send, hb.Receive
		s.phase = Connected
		return nil
	})
}

// Disconnect builds a DISCONNECT frame and moves the session to
// Disconnecting.
func (s *Session) Disconnect(receipt string) (f *frame.Frame, err error) {
	err = s.call("disconnect", []Phase{Connected}, func() error {
		f = command.Disconnect(receipt, s.version)
		if err := s.trackReceipt(receipt); err != nil {
			return err
		}
		s.phase = Disconnecting
		return nil
	})
	return f, err
}

// Close resets the session to Disconnected and discards open transactions
// and outstanding receipts. When flush is true (the usual case), active
// subscriptions are discarded too; when false, they survive so the next
// successful Connect/Replay can re-establish them.
func (s *Session) Close(flush bool) {
	s.reset()
	if flush {
		s.flush()
	} else {
		s.receipts = make(map[string]bool)
		s.transactions = make(map[string]bool)
	}
}

// Send builds a SEND frame.
func (s *Session) Send(destination string, body []byte, headers map[string]string, receipt string) (f *frame.Frame, err error) {
	err = s.call("send", []Phase{Connected}, func() error {
		f = command.Send(destination, body, headers, receipt, s.version)
		return s.trackReceipt(receipt)
	})
	return f, err
}

// Subscribe builds a SUBSCRIBE frame, records the subscription, and returns
// the token later calls must use to refer to it.
func (s *Session) Subscribe(destination string, headers map[string]string, receipt string, context any) (f *frame.Frame, token command.Token, err error) {
	err = s.call("subscribe", []Phase{Connected}, func() error {
		built, builtToken, buildErr := command.Subscribe(destination, headers, receipt, s.version)
		if buildErr != nil {
			return buildErr
		}
		if _, exists := s.subscriptions[builtToken]; exists {
			return stomperr.NewProtocolError("already subscribed [%s]", builtToken)
		}
		if err := s.trackReceipt(receipt); err != nil {
			return err
		}
		s.subscriptions[builtToken] = &Subscription{
			Seq:         s.nextSeq,
			Destination: destination,
			Headers:     copyHeaders(headers),
			Receipt:     receipt,
			Context:     context,
		}
		s.nextSeq++
		f, token = built, builtToken
		return nil
	})
	return f, token, err
}

// Unsubscribe builds an UNSUBSCRIBE frame for token and forgets the
// subscription.
func (s *Session) Unsubscribe(token command.Token, receipt string) (f *frame.Frame, err error) {
	err = s.call("unsubscribe", []Phase{Connected}, func() error {
		built, buildErr := command.Unsubscribe(token, receipt, s.version)
		if buildErr != nil {
			return buildErr
		}
		if _, exists := s.subscriptions[token]; !exists {
			return stomperr.NewProtocolError("no such subscription [%s]", token)
		}
		if err := s.trackReceipt(receipt); err != nil {
			return err
		}
		delete(s.subscriptions, token)
		f = built
		return nil
	})
	return f, err
}

// Ack builds an ACK frame for a previously received MESSAGE frame.
func (s *Session) Ack(message *frame.Frame, receipt string) (f *frame.Frame, err error) {
	err = s.call("ack", []Phase{Connected}, func() error {
		built, buildErr := command.Ack(message, s.transactions, receipt)
		if buildErr != nil {
			return buildErr
		}
		if err := s.trackReceipt(receipt); err != nil {
			return err
		}
		f = built
		return nil
	})
	return f, err
}

// Nack builds a NACK frame for a previously received MESSAGE frame.
func (s *Session) Nack(message *frame.Frame, receipt string) (f *frame.Frame, err error) {
	err = s.call("nack", []Phase{Connected}, func() error {
		built, buildErr := command.Nack(message, s.transactions, receipt)
		if buildErr != nil {
			return buildErr
		}
		if err := s.trackReceipt(receipt); err != nil {
			return err
		}
		f = built
		return nil
	})
	return f, err
}

// Transaction returns transaction if non-empty, else a freshly generated id.
func (s *Session) Transaction(transaction string) string {
	if transaction != "" {
		return transaction
	}
	return newTransactionID()
}

// Begin builds a BEGIN frame and activates the transaction.
func (s *Session) Begin(transaction, receipt string) (f *frame.Frame, err error) {
	err = s.call("begin", []Phase{Connected}, func() error {
		built := command.Begin(transaction, receipt, s.version)
		if s.transactions[transaction] {
			return stomperr.NewProtocolError("transaction already active: %s", transaction)
		}
		if err := s.trackReceipt(receipt); err != nil {
			return err
		}
		s.transactions[transaction] = true
		f = built
		return nil
	})
	return f, err
}

// Abort builds an ABORT frame and deactivates the transaction.
func (s *Session) Abort(transaction, receipt string) (f *frame.Frame, err error) {
	return s.endTransaction("abort", command.Abort, transaction, receipt)
}

// Commit builds a COMMIT frame and deactivates the transaction.
func (s *Session) Commit(transaction, receipt string) (f *frame.Frame, err error) {
	return s.endTransaction("commit", command.Commit, transaction, receipt)
}

func (s *Session) endTransaction(op string, build func(string, string, stompspec.Version) *frame.Frame, transaction, receipt string) (f *frame.Frame, err error) {
	err = s.call(op, []Phase{Connected}, func() error {
		built := build(transaction, receipt, s.version)
		if !s.transactions[transaction] {
			return stomperr.NewProtocolError("transaction unknown: %s", transaction)
		}
		if err := s.trackReceipt(receipt); err != nil {
			return err
		}
		delete(s.transactions, transaction)
		f = built
		return nil
	})
	return f, err
}

// Message handles an incoming MESSAGE frame, returning the token of the
// subscription it belongs to.
func (s *Session) Message(f *frame.Frame) (token command.Token, err error) {
	err = s.call("message", []Phase{Connected}, func() error {
		t, buildErr := command.Message(f)
		if buildErr != nil {
			return buildErr
		}
		if _, ok := s.subscriptions[t]; !ok {
			return stomperr.NewProtocolError("no such subscription [%s]", t)
		}
		token = t
		return nil
	})
	return token, err
}

// Receipt handles an incoming RECEIPT frame, returning the receipt id it
// acknowledges.
func (s *Session) Receipt(f *frame.Frame) (receipt string, err error) {
	err = s.call("receipt", []Phase{Connected, Disconnecting}, func() error {
		id, buildErr := command.Receipt(f)
		if buildErr != nil {
			return buildErr
		}
		if !s.receipts[id] {
			return stomperr.NewProtocolError("unexpected receipt: %s", id)
		}
		delete(s.receipts, id)
		receipt = id
		return nil
	})
	return receipt, err
}

// Beat builds a heart-beat.
func (s *Session) Beat() (*frame.HeartBeat, error) {
	return command.Beat(s.version)
}

// Sent notifies the session that data was sent; counts as a client
// heart-beat for LastSent bookkeeping.
func (s *Session) Sent() { s.lastSent = now() }

// Received notifies the session that data was received; counts as a server
// heart-beat for LastReceived bookkeeping.
func (s *Session) Received() { s.lastReceived = now() }

// LastSent is the last time Sent was called.
func (s *Session) LastSent() time.Time { return s.lastSent }

// LastReceived is the last time Received was called.
func (s *Session) LastReceived() time.Time { return s.lastReceived }

// ClientHeartBeat is the negotiated interval, in milliseconds, at which this
// client should send heart-beats.
func (s *Session) ClientHeartBeat() int {
	return command.NegotiateHeartBeat(s.clientSendHB, s.serverRecvHB)
}

// ServerHeartBeat is the negotiated interval, in milliseconds, at which this
// client should expect to receive heart-beats from the server.
func (s *Session) ServerHeartBeat() int {
	return command.NegotiateHeartBeat(s.clientRecvHB, s.serverSendHB)
}

// Replay flushes all active subscriptions and returns them in their
// original insertion order, for re-subscribing after a reconnect.
func (s *Session) Replay() []Subscription {
	subs := s.subscriptions
	s.flush()
	ordered := make([]Subscription, 0, len(subs))
	for _, sub := range subs {
		ordered = append(ordered, *sub)
	}
	sortBySeq(ordered)
	return ordered
}

// Subscription returns the bookkeeping record for token, if any.
func (s *Session) Subscription(token command.Token) (Subscription, bool) {
	sub, ok := s.subscriptions[token]
	if !ok {
		return Subscription{}, false
	}
	return *sub, true
}

func sortBySeq(subs []Subscription) {
	for i := 1; i < len(subs); i++ {
		for j := i; j > 0 && subs[j].Seq < subs[j-1].Seq; j-- {
			subs[j], subs[j-1] = subs[j-1], subs[j]
		}
	}
}

func (s *Session) flush() {
	s.receipts = make(map[string]bool)
	s.subscriptions = make(map[command.Token]*Subscription)
	s.transactions = make(map[string]bool)
}

func (s *Session) trackReceipt(receipt string) error {
	if receipt == "" {
		return nil
	}
	if s.receipts[receipt] {
		return stomperr.NewProtocolError("duplicate receipt: %s", receipt)
	}
	s.receipts[receipt] = true
	return nil
}

func (s *Session) reset() {
	s.id = ""
	s.server = ""
	s.phase = Disconnected
	s.lastSent, s.lastReceived = time.Time{}, time.Time{}
	s.clientSendHB, s.clientRecvHB, s.serverSendHB, s.serverRecvHB = 0, 0, 0, 0
	s.version = s.ceilingVersion
	s.proposedVersions = nil
}

// call enforces the phase check (when strict), then runs op through the
// installed interceptor chain. A failing op never partially mutates session
// state: every op above builds its return value and bookkeeping together,
// so a returned error means none of it happened.
func (s *Session) call(name string, allowed []Phase, op func() error) error {
	if s.strict && !phaseAllowed(s.phase, allowed) {
		return stomperr.NewProtocolError("cannot handle command %q in phase %q (only in %v)", name, s.phase, allowed)
	}
	handler := Chain(s.interceptors...)(func(o Op) error { return o.Run() })
	return handler(Op{Name: name, Session: s, PhaseBefore: s.phase, Run: op})
}

func phaseAllowed(phase Phase, allowed []Phase) bool {
	for _, p := range allowed {
		if p == phase {
			return true
		}
	}
	return false
}

func copyHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

func newTransactionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand.Read on a properly configured system does not fail;
		// a zero id would violate transaction uniqueness, so panic is the
		// honest response to an unreadable entropy source.
		panic("session: failed to read random transaction id: " + err.Error())
	}
	return hex.EncodeToString(b)
}

var now = time.Now
