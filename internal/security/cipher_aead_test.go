package security

import "testing"

func TestAEADCipherRoundTrip(t *testing.T) {
	c := AEADCipher{Info: []byte("test-session")}
	plain := []byte("0123456789abcdef")
	sealed := c.Encrypt(plain, "s3cr3t")
	if sealed == nil {
		t.Fatal("Encrypt returned nil")
	}
	opened := c.Decrypt(sealed, "s3cr3t")
	if string(opened) != string(plain) {
		t.Fatalf("got %q, want %q", opened, plain)
	}
}

func TestAEADCipherRejectsWrongKey(t *testing.T) {
	c := AEADCipher{}
	sealed := c.Encrypt([]byte("payload"), "right-password")
	if out := c.Decrypt(sealed, "wrong-password"); out != nil {
		t.Fatalf("got %q, want nil for wrong key", out)
	}
}

func TestAEADCipherRoundTripThroughPasswordPolicySet(t *testing.T) {
	var delivered []AuthMessage
	send := func(sessionID int, msg AuthMessage) error {
		delivered = append(delivered, msg)
		return nil
	}

	cipher := AEADCipher{Info: []byte("policy-set-test")}
	initiator := NewPasswordPolicySet("s3cr3t", cipher, send)
	peer := NewPasswordPolicySet("s3cr3t", cipher, send)

	_, ctx, err := initiator.GetAuthPolicy(1)
	if err != nil {
		t.Fatal(err)
	}
	if status := initiator.Initiate(AuthPolicy{Name: AuthPassword}, ctx); status != StatusInProgress {
		t.Fatalf("got status %v, want InProgress", status)
	}

	_, peerCtx, err := peer.GetAuthPolicy(1)
	if err != nil {
		t.Fatal(err)
	}
	if status := peer.ProcessIncoming(delivered[0], peerCtx); status != StatusInProgress {
		t.Fatalf("got status %v, want InProgress", status)
	}
	if status := initiator.ProcessIncoming(delivered[1], ctx); status != StatusSuccessful {
		t.Fatalf("got status %v, want Successful", status)
	}
}
