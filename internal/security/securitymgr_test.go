package security

import (
	"errors"
	"testing"
	"time"

	"github.com/rinad/rinad/internal/errdefs"
	"github.com/rinad/rinad/internal/eventbus"
)

func TestNonePolicySetSucceedsImmediately(t *testing.T) {
	ps := NewNonePolicySet("1.0")
	policy, ctx, err := ps.GetAuthPolicy(1)
	if err != nil {
		t.Fatal(err)
	}
	if status := ps.Initiate(policy, ctx); status != StatusSuccessful {
		t.Fatalf("got status %v, want Successful", status)
	}
	if ctx.State() != Established {
		t.Fatalf("got state %v, want Established", ctx.State())
	}
}

func TestPasswordPolicySetChallengeRoundTrip(t *testing.T) {
	var delivered []AuthMessage
	send := func(sessionID int, msg AuthMessage) error {
		delivered = append(delivered, msg)
		return nil
	}

	initiator := NewPasswordPolicySet("s3cr3t", nil, send)
	peer := NewPasswordPolicySet("s3cr3t", nil, send)

	policy, ctx, err := initiator.GetAuthPolicy(1)
	if err != nil {
		t.Fatal(err)
	}
	if status := initiator.Initiate(policy, ctx); status != StatusInProgress {
		t.Fatalf("got status %v, want InProgress", status)
	}
	if len(delivered) != 1 {
		t.Fatalf("expected one challenge request sent, got %d", len(delivered))
	}

	_, peerCtx, err := peer.GetAuthPolicy(1)
	if err != nil {
		t.Fatal(err)
	}
	if status := peer.ProcessIncoming(delivered[0], peerCtx); status != StatusInProgress {
		t.Fatalf("peer got status %v, want InProgress", status)
	}
	if len(delivered) != 2 {
		t.Fatalf("expected a challenge reply sent, got %d messages", len(delivered))
	}

	status := initiator.ProcessIncoming(delivered[1], ctx)
	if status != StatusSuccessful {
		t.Fatalf("got status %v, want Successful", status)
	}
	if ctx.State() != Established {
		t.Fatalf("got state %v, want Established", ctx.State())
	}
}

func TestPasswordPolicySetWrongReplyFails(t *testing.T) {
	initiator := NewPasswordPolicySet("s3cr3t", nil, func(int, AuthMessage) error { return nil })
	policy, ctx, err := initiator.GetAuthPolicy(1)
	if err != nil {
		t.Fatal(err)
	}
	initiator.Initiate(policy, ctx)

	bogus := AuthMessage{ObjectClass: challengeReply, Payload: []byte("not the challenge")}
	if status := initiator.ProcessIncoming(bogus, ctx); status != StatusFailed {
		t.Fatalf("got status %v, want Failed", status)
	}
}

func TestPasswordPolicySetTimeout(t *testing.T) {
	initiator := NewPasswordPolicySet("s3cr3t", nil, func(int, AuthMessage) error { return nil })
	if err := initiator.SetPolicySetParam("challenge-length", "8"); err != nil {
		t.Fatal(err)
	}
	initiator.timeout = 10 * time.Millisecond

	policy, sci, err := initiator.GetAuthPolicy(1)
	if err != nil {
		t.Fatal(err)
	}
	ctx := sci.(*passwordContext)
	expired := make(chan struct{})
	ctx.onExpire = func() { close(expired) }

	initiator.Initiate(policy, ctx)

	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	if ctx.State() != Failed {
		t.Fatalf("got state %v, want Failed", ctx.State())
	}
}

func TestSSH2PolicySetNegotiation(t *testing.T) {
	var aToB, bToA []AuthMessage
	serverSend := func(sessionID int, msg AuthMessage) error { aToB = append(aToB, msg); return nil }
	clientSend := func(sessionID int, msg AuthMessage) error { bToA = append(bToA, msg); return nil }

	server, err := NewSSH2PolicySet(algEDH, algAES128, algSHA1, "", nil, serverSend)
	if err != nil {
		t.Fatal(err)
	}
	client, err := NewSSH2PolicySet(algEDH, algAES128, algSHA1, "", nil, clientSend)
	if err != nil {
		t.Fatal(err)
	}

	policy, serverSCI, err := server.GetAuthPolicy(1)
	if err != nil {
		t.Fatal(err)
	}
	serverCtx := serverSCI.(*ssh2Context)
	if serverCtx.State() != WaitEdhExchange {
		t.Fatalf("got state %v, want WaitEdhExchange", serverCtx.State())
	}

	_, clientSCI, err := client.GetAuthPolicy(1)
	if err != nil {
		t.Fatal(err)
	}
	clientCtx := clientSCI.(*ssh2Context)

	status := client.Initiate(policy, clientCtx)
	if status != StatusInProgress {
		t.Fatalf("client Initiate got %v, want InProgress", status)
	}
	if clientCtx.State() != EncryptionSetup {
		t.Fatalf("got client state %v, want EncryptionSetup", clientCtx.State())
	}
	if len(bToA) != 1 {
		t.Fatalf("expected client to send one EDH_EXCHANGE, got %d", len(bToA))
	}

	status = server.ProcessIncoming(bToA[0], serverCtx)
	if status != StatusInProgress {
		t.Fatalf("server ProcessIncoming got %v, want InProgress", status)
	}
	if serverCtx.State() != EncryptionSetup {
		t.Fatalf("got server state %v, want EncryptionSetup", serverCtx.State())
	}

	if len(clientCtx.sharedSecret) == 0 || len(serverCtx.sharedSecret) == 0 {
		t.Fatal("shared secret was not derived on one side")
	}
	if string(clientCtx.sharedSecret) != string(serverCtx.sharedSecret) {
		t.Fatal("client and server derived different shared secrets")
	}
}

func TestSSH2PolicySetRejectsUnknownAlgorithm(t *testing.T) {
	server, err := NewSSH2PolicySet("rsa-key-exchange", algAES128, algSHA1, "", nil, func(int, AuthMessage) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	client, err := NewSSH2PolicySet(algEDH, algAES128, algSHA1, "", nil, func(int, AuthMessage) error { return nil })
	if err != nil {
		t.Fatal(err)
	}

	policy, _, err := server.GetAuthPolicy(1)
	if err != nil {
		t.Fatal(err)
	}
	_, clientSCI, err := client.GetAuthPolicy(1)
	if err != nil {
		t.Fatal(err)
	}

	if status := client.Initiate(policy, clientSCI); status != StatusFailed {
		t.Fatalf("got status %v, want Failed for an unlisted key-exchange algorithm", status)
	}
}

func TestManagerRemovesContextOnFlowDeallocated(t *testing.T) {
	bus := eventbus.New()
	mgr := New(nil, bus)

	ctx := &noneContext{baseContext{sessionID: 5, portID: 77, authType: AuthNone, state: Established}}
	mgr.AddSecurityContext(ctx)

	if _, err := mgr.GetSecurityContext(5); err != nil {
		t.Fatal(err)
	}

	bus.Publish(eventbus.Event{Kind: eventbus.NMinus1FlowDeallocated, PortID: 77})

	_, err := mgr.GetSecurityContext(5)
	if !errors.Is(err, errdefs.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound after N-1 flow deallocation", err)
	}
}

func TestManagerAddPolicySetIsIdempotent(t *testing.T) {
	mgr := New(nil, nil)
	ps := NewNonePolicySet("1.0")
	if err := mgr.AddPolicySet(AuthNone, ps); err != nil {
		t.Fatal(err)
	}
	if err := mgr.AddPolicySet(AuthNone, ps); err != nil {
		t.Fatalf("re-adding an existing policy set should be a no-op, got %v", err)
	}
}

func TestNegotiateVersionPicksHighestCommon(t *testing.T) {
	got, err := NegotiateVersion([]string{"1.0.0", "1.1.0", "2.0.0"}, []string{"1.1.0", "1.0.0"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "1.1.0" {
		t.Fatalf("got %q, want 1.1.0", got)
	}
}

func TestNegotiateVersionFailsWithNoOverlap(t *testing.T) {
	_, err := NegotiateVersion([]string{"1.0.0"}, []string{"2.0.0"})
	if !errdefs.IsNotSupported(err) {
		t.Fatalf("got %v, want ErrNotSupported", err)
	}
}

func TestManagerSetPolicySetParamRoutes(t *testing.T) {
	mgr := New(nil, nil)
	ps := NewPasswordPolicySet("initial", nil, nil)
	if err := mgr.AddPolicySet(AuthPassword, ps); err != nil {
		t.Fatal(err)
	}
	if err := mgr.SetPolicySetParam(AuthPassword, "password", "updated"); err != nil {
		t.Fatal(err)
	}
	if ps.password != "updated" {
		t.Fatalf("got password %q, want %q", ps.password, "updated")
	}
}

func TestManagerProcessIncomingRoutesByPortID(t *testing.T) {
	var delivered []AuthMessage
	send := func(sessionID int, msg AuthMessage) error {
		delivered = append(delivered, msg)
		return nil
	}

	initiator := NewPasswordPolicySet("s3cr3t", nil, send)
	_, initiatorCtx, err := initiator.GetAuthPolicy(1)
	if err != nil {
		t.Fatal(err)
	}
	if status := initiator.Initiate(AuthPolicy{}, initiatorCtx); status != StatusInProgress {
		t.Fatalf("got status %v, want InProgress", status)
	}
	if len(delivered) != 1 {
		t.Fatalf("expected one challenge request sent, got %d", len(delivered))
	}

	mgr := New(nil, nil)
	peer := NewPasswordPolicySet("s3cr3t", nil, send)
	if err := mgr.AddPolicySet(AuthPassword, peer); err != nil {
		t.Fatal(err)
	}
	_, peerCtx, err := peer.GetAuthPolicy(2)
	if err != nil {
		t.Fatal(err)
	}
	peerCtx.(*passwordContext).portID = 42
	mgr.AddSecurityContext(peerCtx)

	status, err := mgr.ProcessIncoming(42, delivered[0])
	if err != nil {
		t.Fatal(err)
	}
	if status != StatusInProgress {
		t.Fatalf("got status %v, want InProgress", status)
	}
	if len(delivered) != 2 {
		t.Fatalf("expected a challenge reply sent, got %d messages", len(delivered))
	}
}

func TestManagerProcessIncomingUnknownPortID(t *testing.T) {
	mgr := New(nil, nil)
	if _, err := mgr.ProcessIncoming(999, AuthMessage{}); !errdefs.IsNotFound(err) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
