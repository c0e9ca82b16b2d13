// Package command implements the STOMP command builders and interpreters:
// pure functions that turn typed Go arguments into outgoing frames, and
// incoming frames into typed Go results. Nothing here is stateful; the
// session package (gostomp/session) is what remembers subscriptions,
// transactions, and receipts across calls.
package command

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gostomp/frame"
	"gostomp/stomperr"
	"gostomp/stompspec"
)

// HeartBeats is a proposed or negotiated pair of heart-beat intervals, in
// milliseconds: (how often I will send, how often I expect to receive).
type HeartBeats struct {
	Send    int
	Receive int
}

// Token identifies a subscription, either by its id header or, in 1.0 where
// no id is mandatory, by its destination.
type Token struct {
	HeaderName string // stompspec.IDHeader or stompspec.DestinationHeader
	Value      string
}

func (t Token) String() string {
	return fmt.Sprintf("%s=%s", t.HeaderName, t.Value)
}

// ConnectArgs bundles CONNECT/STOMP frame parameters. Login and Passcode are
// optional: a nil pointer omits the header entirely, matching commands.py's
// connect(), which only sets login/passcode "if login is not None"/"if
// passcode is not None". A no-auth connect (both nil) emits neither header.
type ConnectArgs struct {
	Login      *string
	Passcode   *string
	Headers    map[string]string
	Versions   []stompspec.Version // proposed, highest first or last; order does not matter
	Host       string
	HeartBeats *HeartBeats
}

// Connect builds a CONNECT frame. If Versions is empty or contains only 1.0,
// the frame omits accept-version negotiation entirely (pure 1.0 style) and
// carries a host header only when Host is non-empty; heart-beats in that
// case are rejected, since 1.0 has no heart-beat header.
func Connect(args ConnectArgs) (*frame.Frame, error) {
	return buildStompOrConnect(stompspec.CmdConnect, args)
}

// Stomp builds a STOMP frame (the 1.1+ alternative spelling of CONNECT). It
// requires at least one version beyond 1.0 to be proposed.
func Stomp(args ConnectArgs) (*frame.Frame, error) {
	if onlyV10(args.Versions) {
		return nil, stomperr.NewProtocolError("STOMP command requires a protocol version beyond 1.0")
	}
	return buildStompOrConnect(stompspec.CmdStomp, args)
}

func onlyV10(versions []stompspec.Version) bool {
	if len(versions) == 0 {
		return true
	}
	for _, v := range versions {
		if v != stompspec.V10 {
			return false
		}
	}
	return true
}

func buildStompOrConnect(command string, args ConnectArgs) (*frame.Frame, error) {
	if args.HeartBeats != nil && onlyV10(args.Versions) {
		return nil, stomperr.NewProtocolError("heart-beating requires a protocol version beyond 1.0")
	}
	headers := cloneHeaders(args.Headers)
	if args.Login != nil {
		headers[stompspec.LoginHeader] = *args.Login
	}
	if args.Passcode != nil {
		headers[stompspec.PasscodeHeader] = *args.Passcode
	}
	if !onlyV10(args.Versions) {
		headers[stompspec.AcceptVersionHeader] = joinVersions(args.Versions)
		headers[stompspec.HostHeader] = args.Host
	} else if args.Host != "" {
		headers[stompspec.HostHeader] = args.Host
	}
	if args.HeartBeats != nil {
		headers[stompspec.HeartBeatHeader] = fmt.Sprintf("%d,%d", args.HeartBeats.Send, args.HeartBeats.Receive)
	}
	return frame.NewFromMap(command, headers, nil, stompspec.DefaultVersion), nil
}

func joinVersions(versions []stompspec.Version) string {
	strs := make([]string, len(versions))
	for i, v := range versions {
		strs[i] = string(v)
	}
	sort.Strings(strs)
	return strings.Join(strs, ",")
}

func cloneHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Connected interprets a CONNECTED frame against the versions this client
// proposed, returning the negotiated version, the server id, the session
// id, and the heart-beat intervals the server advertised (zero if it sent
// no heart-beat header).
func Connected(f *frame.Frame, proposed []stompspec.Version) (stompspec.Version, string, string, HeartBeats, error) {
	if f.Command != stompspec.CmdConnected {
		return "", "", "", HeartBeats{}, stomperr.NewProtocolError("expected CONNECTED frame, got %s", f.Command)
	}
	negotiated := stompspec.V10
	if !onlyV10(proposed) {
		raw := f.GetDefault(stompspec.VersionHeader, string(stompspec.V10))
		v, err := stompspec.ParseVersion(raw)
		if err != nil {
			return "", "", "", HeartBeats{}, stomperr.NewProtocolError("invalid version header %q: %v", raw, err)
		}
		if !containsVersion(proposed, v) {
			return "", "", "", HeartBeats{}, stomperr.NewProtocolError("server version %s not among proposed versions %v", v, proposed)
		}
		negotiated = v
	}
	server, _ := f.Get(stompspec.ServerHeader)
	sessionID, _ := f.Get(stompspec.SessionHeader)
	hb, err := parseHeartBeatHeader(f)
	if err != nil {
		return "", "", "", HeartBeats{}, err
	}
	return negotiated, server, sessionID, hb, nil
}

func containsVersion(versions []stompspec.Version, v stompspec.Version) bool {
	for _, candidate := range versions {
		if candidate == v {
			return true
		}
	}
	return false
}

func parseHeartBeatHeader(f *frame.Frame) (HeartBeats, error) {
	raw, ok := f.Get(stompspec.HeartBeatHeader)
	if !ok {
		return HeartBeats{}, nil
	}
	parts := strings.SplitN(raw, ",", 2)
	if len(parts) != 2 {
		return HeartBeats{}, stomperr.NewFrameError("malformed heart-beat header: %q", raw)
	}
	send, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	recv, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || send < 0 || recv < 0 {
		return HeartBeats{}, stomperr.NewFrameError("malformed heart-beat header: %q", raw)
	}
	return HeartBeats{Send: send, Receive: recv}, nil
}

// NegotiateHeartBeat combines a proposed and an advertised interval (both in
// milliseconds) into the effective interval: zero if either side is zero
// (meaning "I will not/cannot"), else the larger of the two.
func NegotiateHeartBeat(proposed, advertised int) int {
	if proposed == 0 || advertised == 0 {
		return 0
	}
	if proposed > advertised {
		return proposed
	}
	return advertised
}

// Disconnect builds a DISCONNECT frame.
func Disconnect(receipt string, version stompspec.Version) *frame.Frame {
	headers := map[string]string{}
	addReceiptHeader(headers, receipt)
	return frame.NewFromMap(stompspec.CmdDisconnect, headers, nil, version)
}

// Send builds a SEND frame.
func Send(destination string, body []byte, headers map[string]string, receipt string, version stompspec.Version) *frame.Frame {
	h := cloneHeaders(headers)
	h[stompspec.DestinationHeader] = destination
	addReceiptHeader(h, receipt)
	return frame.NewFromMap(stompspec.CmdSend, h, body, version)
}

// Subscribe builds a SUBSCRIBE frame and returns the token future MESSAGE
// and UNSUBSCRIBE calls must use to refer to this subscription. In 1.1/1.2
// the caller must supply an id header; 1.0 falls back to identifying the
// subscription by destination.
func Subscribe(destination string, headers map[string]string, receipt string, version stompspec.Version) (*frame.Frame, Token, error) {
	h := cloneHeaders(headers)
	h[stompspec.DestinationHeader] = destination
	addReceiptHeader(h, receipt)

	var token Token
	if id, ok := h[stompspec.IDHeader]; ok {
		token = Token{HeaderName: stompspec.IDHeader, Value: id}
	} else {
		if version != stompspec.V10 {
			return nil, Token{}, stomperr.NewProtocolError("SUBSCRIBE requires an id header in version %s", version)
		}
		token = Token{HeaderName: stompspec.DestinationHeader, Value: destination}
	}
	return frame.NewFromMap(stompspec.CmdSubscribe, h, nil, version), token, nil
}

// Unsubscribe builds an UNSUBSCRIBE frame for the given token.
func Unsubscribe(token Token, receipt string, version stompspec.Version) (*frame.Frame, error) {
	if version != stompspec.V10 && token.HeaderName != stompspec.IDHeader {
		return nil, stomperr.NewProtocolError("UNSUBSCRIBE requires an id token in version %s", version)
	}
	h := map[string]string{token.HeaderName: token.Value}
	addReceiptHeader(h, receipt)
	return frame.NewFromMap(stompspec.CmdUnsubscribe, h, nil, version), nil
}

// Ack builds an ACK frame for a previously received MESSAGE frame.
// activeTransactions is consulted to decide whether to propagate the
// MESSAGE's transaction header onto the ACK.
func Ack(message *frame.Frame, activeTransactions map[string]bool, receipt string) (*frame.Frame, error) {
	return ackOrNack(stompspec.CmdAck, message, activeTransactions, receipt)
}

// Nack builds a NACK frame for a previously received MESSAGE frame. NACK
// does not exist in 1.0.
func Nack(message *frame.Frame, activeTransactions map[string]bool, receipt string) (*frame.Frame, error) {
	if message.Version == stompspec.V10 {
		return nil, stomperr.NewProtocolError("NACK is not supported in version 1.0")
	}
	return ackOrNack(stompspec.CmdNack, message, activeTransactions, receipt)
}

func ackOrNack(command string, message *frame.Frame, activeTransactions map[string]bool, receipt string) (*frame.Frame, error) {
	h, err := ackHeaders(message)
	if err != nil {
		return nil, err
	}
	if tx, ok := message.Get(stompspec.TransactionHeader); ok && activeTransactions[tx] {
		h[stompspec.TransactionHeader] = tx
	}
	addReceiptHeader(h, receipt)
	return frame.NewFromMap(command, h, nil, message.Version), nil
}

// ackHeaders extracts the version-appropriate identifying headers for an
// ACK/NACK from the MESSAGE frame being acknowledged: 1.0/1.1 identify by
// message-id (plus subscription in 1.1); 1.2 identifies solely by the id
// header copied from the MESSAGE's ack header.
func ackHeaders(message *frame.Frame) (map[string]string, error) {
	switch message.Version {
	case stompspec.V12:
		ack, ok := message.Get(stompspec.AckHeader)
		if !ok {
			return nil, stomperr.NewProtocolError("MESSAGE frame has no ack header to acknowledge")
		}
		return map[string]string{stompspec.IDHeader: ack}, nil
	default:
		messageID, ok := message.Get(stompspec.MessageIDHeader)
		if !ok {
			return nil, stomperr.NewProtocolError("MESSAGE frame has no message-id header")
		}
		h := map[string]string{stompspec.MessageIDHeader: messageID}
		if message.Version == stompspec.V11 {
			sub, ok := message.Get(stompspec.SubscriptionHeader)
			if !ok {
				return nil, stomperr.NewProtocolError("MESSAGE frame has no subscription header")
			}
			h[stompspec.SubscriptionHeader] = sub
		}
		return h, nil
	}
}

// Begin builds a BEGIN frame for the given transaction id.
func Begin(transaction, receipt string, version stompspec.Version) *frame.Frame {
	return transactionFrame(stompspec.CmdBegin, transaction, receipt, version)
}

// Abort builds an ABORT frame for the given transaction id.
func Abort(transaction, receipt string, version stompspec.Version) *frame.Frame {
	return transactionFrame(stompspec.CmdAbort, transaction, receipt, version)
}

// Commit builds a COMMIT frame for the given transaction id.
func Commit(transaction, receipt string, version stompspec.Version) *frame.Frame {
	return transactionFrame(stompspec.CmdCommit, transaction, receipt, version)
}

func transactionFrame(command, transaction, receipt string, version stompspec.Version) *frame.Frame {
	h := map[string]string{stompspec.TransactionHeader: transaction}
	addReceiptHeader(h, receipt)
	return frame.NewFromMap(command, h, nil, version)
}

// Beat builds a heart-beat. It fails for version 1.0, which has no
// heart-beat concept.
func Beat(version stompspec.Version) (*frame.HeartBeat, error) {
	if version == stompspec.V10 {
		return nil, stomperr.NewProtocolError("heart-beating requires a protocol version beyond 1.0")
	}
	return &frame.HeartBeat{Version: version}, nil
}

// Message interprets a MESSAGE frame, returning the token of the
// subscription it belongs to. The message-id and destination headers are
// mandatory in every version. In 1.1/1.2 the subscription header is
// mandatory too and determines the token; in 1.0 (where subscriptions are
// tracked by destination) the destination header determines it.
func Message(f *frame.Frame) (Token, error) {
	if f.Command != stompspec.CmdMessage {
		return Token{}, stomperr.NewProtocolError("expected MESSAGE frame, got %s", f.Command)
	}
	if _, ok := f.Get(stompspec.MessageIDHeader); !ok {
		return Token{}, stomperr.NewProtocolError("MESSAGE frame has no message-id header")
	}
	dest, ok := f.Get(stompspec.DestinationHeader)
	if !ok {
		return Token{}, stomperr.NewProtocolError("MESSAGE frame has no destination header")
	}
	if f.Version != stompspec.V10 {
		sub, ok := f.Get(stompspec.SubscriptionHeader)
		if !ok {
			return Token{}, stomperr.NewProtocolError("MESSAGE frame has no subscription header")
		}
		return Token{HeaderName: stompspec.IDHeader, Value: sub}, nil
	}
	return Token{HeaderName: stompspec.DestinationHeader, Value: dest}, nil
}

// Receipt interprets a RECEIPT frame, returning the receipt id it
// acknowledges.
func Receipt(f *frame.Frame) (string, error) {
	if f.Command != stompspec.CmdReceipt {
		return "", stomperr.NewProtocolError("expected RECEIPT frame, got %s", f.Command)
	}
	id, ok := f.Get(stompspec.ReceiptIDHeader)
	if !ok {
		return "", stomperr.NewProtocolError("RECEIPT frame has no receipt-id header")
	}
	return id, nil
}

func addReceiptHeader(headers map[string]string, receipt string) {
	if receipt != "" {
		headers[stompspec.ReceiptHeader] = receipt
	}
}
