package security

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/rinad/rinad/internal/errdefs"
)

// Challenge object classes, matching AuthPasswordPolicySet's CHALLENGE_*
// constants.
const (
	challengeRequest = "challenge request"
	challengeReply   = "challenge reply"
)

const defaultChallengeTimeout = 10 * time.Second

// Cipher is the pluggable challenge-encryption strategy. The default is
// legacy repeating-key XOR, kept for interop with existing deployments; a
// real deployment should supply a stronger Cipher instead.
type Cipher interface {
	Encrypt(plaintext []byte, key string) []byte
	Decrypt(ciphertext []byte, key string) []byte
	Name() string
}

// XORCipher is the legacy repeating-key XOR cipher used when no stronger
// cipher is configured. It is symmetric: Encrypt and Decrypt are the same
// operation.
type XORCipher struct{}

func (XORCipher) Name() string { return "default_cipher" }

func (XORCipher) Encrypt(plaintext []byte, key string) []byte {
	return xor(plaintext, key)
}

func (XORCipher) Decrypt(ciphertext []byte, key string) []byte {
	return xor(ciphertext, key)
}

func xor(data []byte, key string) []byte {
	if len(key) == 0 {
		return append([]byte(nil), data...)
	}
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}

// PasswordPolicySet implements challenge-response authentication: the
// initiator sends a random challenge, the peer must reply with it encrypted
// under the shared password, and the initiator decrypts and compares the
// reply within a timeout.
type PasswordPolicySet struct {
	mu              sync.Mutex
	password        string
	cipher          Cipher
	challengeLength int
	timeout         time.Duration

	// send transmits an authentication-phase message to the peer of a
	// session; wired to the transport/bridge layer by the caller that
	// constructs this set.
	send func(sessionID int, msg AuthMessage) error
}

// NewPasswordPolicySet returns a policy set using cipher (or XORCipher{} if
// nil) and a default 32-character challenge, 10s timeout.
func NewPasswordPolicySet(password string, cipher Cipher, send func(int, AuthMessage) error) *PasswordPolicySet {
	if cipher == nil {
		cipher = XORCipher{}
	}
	return &PasswordPolicySet{
		password:        password,
		cipher:          cipher,
		challengeLength: 32,
		timeout:         defaultChallengeTimeout,
		send:            send,
	}
}

type passwordContext struct {
	baseContext
	challenge string
	timer     *time.Timer
	onExpire  func()
}

func (c *passwordContext) release() {
	if c.timer != nil {
		c.timer.Stop()
	}
}

func (p *PasswordPolicySet) GetAuthPolicy(sessionID int) (AuthPolicy, SecurityContext, error) {
	p.mu.Lock()
	cipherName := p.cipher.Name()
	p.mu.Unlock()
	ctx := &passwordContext{baseContext: baseContext{sessionID: sessionID, authType: AuthPassword, state: Fresh}}
	return AuthPolicy{Name: AuthPassword, Options: []byte(cipherName)}, ctx, nil
}

// Initiate generates the challenge, sends it, and arms the timeout timer.
// ctx.onExpire (set by the caller before Initiate if it wants notice) is
// invoked if no valid reply arrives before the timer fires; it is expected
// to call Manager.DestroySecurityContext.
func (p *PasswordPolicySet) Initiate(policy AuthPolicy, sci SecurityContext) AuthStatus {
	ctx, ok := sci.(*passwordContext)
	if !ok {
		sci.setState(Failed)
		return StatusFailed
	}

	challenge, err := generateChallenge(p.challengeLength)
	if err != nil {
		ctx.setState(Failed)
		return StatusFailed
	}
	ctx.challenge = challenge

	p.mu.Lock()
	cipherName := p.cipher.Name()
	p.mu.Unlock()

	if p.send != nil {
		req := AuthMessage{ObjectClass: challengeRequest, ObjectName: cipherName, Payload: []byte(challenge)}
		if err := p.send(ctx.SessionID(), req); err != nil {
			ctx.setState(Failed)
			return StatusFailed
		}
	}

	ctx.timer = time.AfterFunc(p.timeout, func() {
		if ctx.State() != Established {
			ctx.setState(Failed)
			if ctx.onExpire != nil {
				ctx.onExpire()
			}
		}
	})
	return StatusInProgress
}

// ProcessIncoming dispatches by object class: "challenge request" encrypts
// and replies; "challenge reply" verifies and settles the context. A context
// that has already failed (for instance after its challenge timed out) fails
// every further message.
func (p *PasswordPolicySet) ProcessIncoming(msg AuthMessage, sci SecurityContext) AuthStatus {
	ctx, ok := sci.(*passwordContext)
	if !ok {
		return StatusFailed
	}
	if ctx.State() == Failed {
		return StatusFailed
	}
	switch msg.ObjectClass {
	case challengeRequest:
		p.mu.Lock()
		reply := p.cipher.Encrypt(msg.Payload, p.password)
		p.mu.Unlock()
		if p.send != nil {
			out := AuthMessage{ObjectClass: challengeReply, Payload: reply}
			if err := p.send(ctx.SessionID(), out); err != nil {
				ctx.setState(Failed)
				return StatusFailed
			}
		}
		return StatusInProgress
	case challengeReply:
		p.mu.Lock()
		plain := p.cipher.Decrypt(msg.Payload, p.password)
		p.mu.Unlock()
		if string(plain) != ctx.challenge {
			ctx.setState(Failed)
			return StatusFailed
		}
		if ctx.timer != nil {
			ctx.timer.Stop()
		}
		ctx.setState(Established)
		return StatusSuccessful
	default:
		ctx.setState(Failed)
		return StatusFailed
	}
}

func (p *PasswordPolicySet) SetPolicySetParam(name, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch name {
	case "password":
		p.password = value
		return nil
	case "challenge-length":
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err != nil || n <= 0 {
			return fmt.Errorf("%w: invalid challenge-length %q", errdefs.ErrMalformedMessage, value)
		}
		p.challengeLength = n
		return nil
	default:
		return fmt.Errorf("%w: parameter %q on the password policy set", errdefs.ErrNotFound, name)
	}
}

const challengeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func generateChallenge(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = challengeAlphabet[int(b)%len(challengeAlphabet)]
	}
	return string(out), nil
}
