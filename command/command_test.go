package command

import (
	"testing"

	"gostomp/frame"
	"gostomp/stompspec"
)

func messageFrame(version stompspec.Version, headers map[string]string) *frame.Frame {
	return frame.NewFromMap(stompspec.CmdMessage, headers, nil, version)
}

func TestAckHeadersByVersion(t *testing.T) {
	base := map[string]string{
		stompspec.MessageIDHeader:    "m",
		stompspec.SubscriptionHeader: "s",
		stompspec.AckHeader:          "a",
	}

	f11 := messageFrame(stompspec.V11, base)
	ack11, err := Ack(f11, nil, "")
	if err != nil {
		t.Fatalf("Ack 1.1: %v", err)
	}
	if got, _ := ack11.Get(stompspec.MessageIDHeader); got != "m" {
		t.Fatalf("1.1 ack message-id = %q, want m", got)
	}
	if got, _ := ack11.Get(stompspec.SubscriptionHeader); got != "s" {
		t.Fatalf("1.1 ack subscription = %q, want s", got)
	}

	f12 := messageFrame(stompspec.V12, base)
	ack12, err := Ack(f12, nil, "")
	if err != nil {
		t.Fatalf("Ack 1.2: %v", err)
	}
	if got, ok := ack12.Get(stompspec.IDHeader); !ok || got != "a" {
		t.Fatalf("1.2 ack id = %q, ok=%v, want a", got, ok)
	}
	if len(ack12.RawHeaders) != 1 {
		t.Fatalf("1.2 ack should carry only the id header, got %+v", ack12.RawHeaders)
	}
}

func TestNackRejectedIn10(t *testing.T) {
	f := messageFrame(stompspec.V10, map[string]string{stompspec.MessageIDHeader: "m"})
	if _, err := Nack(f, nil, ""); err == nil {
		t.Fatalf("expected NACK to be rejected in version 1.0")
	}
}

func TestAckPropagatesActiveTransaction(t *testing.T) {
	f := messageFrame(stompspec.V11, map[string]string{
		stompspec.MessageIDHeader:    "m",
		stompspec.SubscriptionHeader: "s",
		stompspec.TransactionHeader:  "tx1",
	})
	ack, err := Ack(f, map[string]bool{"tx1": true}, "")
	if err != nil {
		t.Fatalf("Ack: %v", err)
	}
	if got, ok := ack.Get(stompspec.TransactionHeader); !ok || got != "tx1" {
		t.Fatalf("expected transaction header propagated, got %q ok=%v", got, ok)
	}

	ackNoTx, err := Ack(f, map[string]bool{}, "")
	if err != nil {
		t.Fatalf("Ack: %v", err)
	}
	if _, ok := ackNoTx.Get(stompspec.TransactionHeader); ok {
		t.Fatalf("transaction header should be dropped when not active")
	}
}

func TestConnectedVersionMonotonicity(t *testing.T) {
	proposed := []stompspec.Version{stompspec.V10, stompspec.V11, stompspec.V12}
	f := frame.NewFromMap(stompspec.CmdConnected, map[string]string{
		stompspec.VersionHeader: "1.2",
	}, nil, stompspec.V10)

	v, _, _, _, err := Connected(f, proposed)
	if err != nil {
		t.Fatalf("Connected: %v", err)
	}
	if v != stompspec.V12 {
		t.Fatalf("negotiated version = %s, want 1.2", v)
	}
}

func TestConnectedForcedTo10WhenOnlyProposed(t *testing.T) {
	f := frame.NewFromMap(stompspec.CmdConnected, map[string]string{
		stompspec.SessionHeader: "tete-a-tete",
	}, nil, stompspec.V10)

	v, _, session, _, err := Connected(f, []stompspec.Version{stompspec.V10})
	if err != nil {
		t.Fatalf("Connected: %v", err)
	}
	if v != stompspec.V10 {
		t.Fatalf("negotiated version = %s, want 1.0", v)
	}
	if session != "tete-a-tete" {
		t.Fatalf("session = %q, want tete-a-tete", session)
	}
}

func TestNegotiateHeartBeat(t *testing.T) {
	cases := []struct{ a, b, want int }{
		{0, 5000, 0},
		{5000, 0, 0},
		{1000, 2000, 2000},
		{2000, 1000, 2000},
	}
	for _, c := range cases {
		if got := NegotiateHeartBeat(c.a, c.b); got != c.want {
			t.Fatalf("NegotiateHeartBeat(%d,%d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestSubscribeTokenFallback(t *testing.T) {
	_, token, err := Subscribe("/queue/a", map[string]string{stompspec.IDHeader: "sub-1"}, "", stompspec.V11)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if token.HeaderName != stompspec.IDHeader || token.Value != "sub-1" {
		t.Fatalf("token = %+v, want id=sub-1", token)
	}

	_, token10, err := Subscribe("/queue/a", nil, "", stompspec.V10)
	if err != nil {
		t.Fatalf("Subscribe 1.0: %v", err)
	}
	if token10.HeaderName != stompspec.DestinationHeader || token10.Value != "/queue/a" {
		t.Fatalf("token = %+v, want destination=/queue/a", token10)
	}

	if _, _, err := Subscribe("/queue/a", nil, "", stompspec.V11); err == nil {
		t.Fatalf("expected error: 1.1 SUBSCRIBE without id header")
	}
}

func TestHeartBeatRejectedIn10(t *testing.T) {
	if _, err := Beat(stompspec.V10); err == nil {
		t.Fatalf("expected error beating in version 1.0")
	}
}

func TestConnectRejectsHeartBeatsWithOnly10(t *testing.T) {
	_, err := Connect(ConnectArgs{
		Versions:   []stompspec.Version{stompspec.V10},
		HeartBeats: &HeartBeats{Send: 1000, Receive: 1000},
	})
	if err == nil {
		t.Fatalf("expected error: heart-beats with only 1.0 proposed")
	}
}

func TestConnectOmitsLoginPasscodeWhenAbsent(t *testing.T) {
	f, err := Connect(ConnectArgs{Versions: []stompspec.Version{stompspec.V10}})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, ok := f.Get(stompspec.LoginHeader); ok {
		t.Fatalf("expected no login header when Login is nil")
	}
	if _, ok := f.Get(stompspec.PasscodeHeader); ok {
		t.Fatalf("expected no passcode header when Passcode is nil")
	}
}

func TestConnectSetsLoginPasscodeWhenPresent(t *testing.T) {
	login, passcode := "alice", "secret"
	f, err := Connect(ConnectArgs{
		Versions: []stompspec.Version{stompspec.V10},
		Login:    &login,
		Passcode: &passcode,
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got, ok := f.Get(stompspec.LoginHeader); !ok || got != "alice" {
		t.Fatalf("login header = %q, ok=%v, want alice", got, ok)
	}
	if got, ok := f.Get(stompspec.PasscodeHeader); !ok || got != "secret" {
		t.Fatalf("passcode header = %q, ok=%v, want secret", got, ok)
	}
}

func TestConnectPreservesLoginHeaderPassedViaHeaders(t *testing.T) {
	f, err := Connect(ConnectArgs{
		Versions: []stompspec.Version{stompspec.V10},
		Headers:  map[string]string{stompspec.LoginHeader: "carried-through"},
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got, ok := f.Get(stompspec.LoginHeader); !ok || got != "carried-through" {
		t.Fatalf("login header = %q, ok=%v, want carried-through (not clobbered)", got, ok)
	}
}
