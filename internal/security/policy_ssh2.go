package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"github.com/rinad/rinad/internal/errdefs"
)

// EDH_EXCHANGE is the object class/name shared by every SSH2 key-exchange
// message, matching AuthSSH2PolicySet::EDH_EXCHANGE.
const edhExchange = "Ephemeral Diffie-Hellman exchange"

// Allow-listed algorithm names, matching the SSL_TXT_* constants
// initiate_authentication validates against.
const (
	algEDH    = "EDH"
	algAES128 = "AES-128"
	algAES256 = "AES-256"
	algMD5    = "MD5"
	algSHA1   = "SHA1"
)

// Datapath is the call-out SSH2 uses to arm SDU protection once a shared
// secret exists. A real implementation wires this to the kernel/datapath
// component; EnableEncryption/EnableDecryption may complete synchronously
// (return true, nil) or asynchronously (return false, nil, then later call
// the onComplete callback passed to them) per the component design's note
// that this call may signal an async callback.
// When a call completes synchronously it returns (true, nil) and never
// invokes onComplete; when it completes asynchronously it returns (false,
// nil) and invokes onComplete exactly once, later, with the outcome.
type Datapath interface {
	EnableDecryption(sessionID int, sharedSecret []byte, onComplete func(ok bool)) (done bool, err error)
	EnableEncryption(sessionID int, sharedSecret []byte, onComplete func(ok bool)) (done bool, err error)
}

// noopDatapath completes every request synchronously and successfully; it
// exists so the policy set is usable in tests without a real datapath.
type noopDatapath struct{}

func (noopDatapath) EnableDecryption(int, []byte, func(bool)) (bool, error) { return true, nil }
func (noopDatapath) EnableEncryption(int, []byte, func(bool)) (bool, error) { return true, nil }

// SSH2PolicySet implements ephemeral-Diffie-Hellman key exchange with
// algorithm negotiation, grounded byte-for-byte on AuthSSH2PolicySet.
type SSH2PolicySet struct {
	mu sync.Mutex
	p  *big.Int
	g  *big.Int

	keyExchangeAlg string
	encryptAlg     string
	macAlg         string
	compressAlg    string

	datapath Datapath
	send     func(sessionID int, msg AuthMessage) error
}

// NewSSH2PolicySet validates the fixed DH group and returns a policy set
// offering keyExchangeAlg/encryptAlg/macAlg/compressAlg. A nil datapath
// defaults to noopDatapath.
func NewSSH2PolicySet(keyExchangeAlg, encryptAlg, macAlg, compressAlg string, datapath Datapath, send func(int, AuthMessage) error) (*SSH2PolicySet, error) {
	p, g := edhGroup()
	if p == nil || g == nil {
		return nil, fmt.Errorf("%w: SSH2 DH parameters failed to initialize", errdefs.ErrInternal)
	}
	if datapath == nil {
		datapath = noopDatapath{}
	}
	return &SSH2PolicySet{
		p: p, g: g,
		keyExchangeAlg: keyExchangeAlg,
		encryptAlg:     encryptAlg,
		macAlg:         macAlg,
		compressAlg:    compressAlg,
		datapath:       datapath,
		send:           send,
	}, nil
}

type ssh2Context struct {
	baseContext
	keyExchangeAlg, encryptAlg, macAlg, compressAlg string

	priv, pub    *big.Int
	peerPub      *big.Int
	sharedSecret []byte
}

func (c *ssh2Context) release() {}

// edhOptions is the wire payload carried in EDH_EXCHANGE messages: the
// offered/chosen algorithm names plus the sender's DH public key.
type edhOptions struct {
	KeyExchangeAlg string
	EncryptAlg     string
	MACAlg         string
	CompressAlg    string
	PublicKey      []byte
}

func (p *SSH2PolicySet) genKeyPair() (priv, pub *big.Int, err error) {
	priv, err = rand.Int(rand.Reader, p.p)
	if err != nil {
		return nil, nil, err
	}
	if priv.Sign() == 0 {
		priv.SetInt64(1)
	}
	pub = new(big.Int).Exp(p.g, priv, p.p)
	return priv, pub, nil
}

// GetAuthPolicy is the initiator ("server") path: generate a key pair and
// offer it, entering WaitEdhExchange.
func (p *SSH2PolicySet) GetAuthPolicy(sessionID int) (AuthPolicy, SecurityContext, error) {
	p.mu.Lock()
	kex, enc, mac, cmp := p.keyExchangeAlg, p.encryptAlg, p.macAlg, p.compressAlg
	p.mu.Unlock()

	priv, pub, err := p.genKeyPair()
	if err != nil {
		return AuthPolicy{}, nil, fmt.Errorf("%w: generating DH key pair: %v", errdefs.ErrInternal, err)
	}

	ctx := &ssh2Context{
		baseContext:    baseContext{sessionID: sessionID, authType: AuthSSH2, state: WaitEdhExchange},
		keyExchangeAlg: kex, encryptAlg: enc, macAlg: mac, compressAlg: cmp,
		priv: priv, pub: pub,
	}

	opts := encodeEDHOptions(edhOptions{KeyExchangeAlg: kex, EncryptAlg: enc, MACAlg: mac, CompressAlg: cmp, PublicKey: pub.Bytes()})
	return AuthPolicy{Name: AuthSSH2, Options: opts}, ctx, nil
}

// Initiate is the responder ("client") path: validate the offered
// algorithms, generate an own key pair, derive the shared secret, request
// decryption, reply with the chosen algorithms and public key, request
// encryption, and settle in EncryptionSetup.
func (p *SSH2PolicySet) Initiate(policy AuthPolicy, sci SecurityContext) AuthStatus {
	ctx, ok := sci.(*ssh2Context)
	if !ok {
		sci.setState(Failed)
		return StatusFailed
	}

	opts, err := decodeEDHOptions(policy.Options)
	if err != nil {
		ctx.setState(Failed)
		return StatusFailed
	}
	if opts.KeyExchangeAlg != algEDH {
		ctx.setState(Failed)
		return StatusFailed
	}
	if opts.EncryptAlg != algAES128 && opts.EncryptAlg != algAES256 {
		ctx.setState(Failed)
		return StatusFailed
	}
	if opts.MACAlg != algMD5 && opts.MACAlg != algSHA1 {
		ctx.setState(Failed)
		return StatusFailed
	}
	ctx.keyExchangeAlg, ctx.encryptAlg, ctx.macAlg, ctx.compressAlg = opts.KeyExchangeAlg, opts.EncryptAlg, opts.MACAlg, opts.CompressAlg

	priv, pub, err := p.genKeyPair()
	if err != nil {
		ctx.setState(Failed)
		return StatusFailed
	}
	ctx.priv, ctx.pub = priv, pub
	ctx.peerPub = new(big.Int).SetBytes(opts.PublicKey)
	ctx.sharedSecret = p.computeSharedSecret(ctx.peerPub, priv)

	ctx.setState(ReqEnableDecrypt)
	done, err := p.datapath.EnableDecryption(ctx.SessionID(), ctx.sharedSecret, func(ok bool) {
		p.decryptionEnabled(ctx, ok)
	})
	if err != nil {
		ctx.setState(Failed)
		return StatusFailed
	}
	if !done {
		return StatusInProgress
	}
	return p.decryptionEnabled(ctx, true)
}

// decryptionEnabled continues the responder path once decryption is live:
// send the chosen algorithms/public key, then request encryption.
func (p *SSH2PolicySet) decryptionEnabled(ctx *ssh2Context, ok bool) AuthStatus {
	if ctx.State() != ReqEnableDecrypt {
		ctx.setState(Failed)
		return StatusFailed
	}
	if !ok {
		ctx.setState(Failed)
		return StatusFailed
	}

	if p.send != nil {
		opts := encodeEDHOptions(edhOptions{
			KeyExchangeAlg: ctx.keyExchangeAlg, EncryptAlg: ctx.encryptAlg,
			MACAlg: ctx.macAlg, CompressAlg: ctx.compressAlg, PublicKey: ctx.pub.Bytes(),
		})
		msg := AuthMessage{ObjectClass: edhExchange, ObjectName: edhExchange, Payload: opts}
		if err := p.send(ctx.SessionID(), msg); err != nil {
			ctx.setState(Failed)
			return StatusFailed
		}
	}

	ctx.setState(ReqEnableEncrypt)
	done, err := p.datapath.EnableEncryption(ctx.SessionID(), ctx.sharedSecret, func(ok bool) {
		p.encryptionEnabled(ctx, ok)
	})
	if err != nil {
		ctx.setState(Failed)
		return StatusFailed
	}
	if !done {
		return StatusInProgress
	}
	return p.encryptionEnabled(ctx, true)
}

func (p *SSH2PolicySet) encryptionEnabled(ctx *ssh2Context, ok bool) AuthStatus {
	if ctx.State() != ReqEnableEncrypt {
		ctx.setState(Failed)
		return StatusFailed
	}
	if !ok {
		ctx.setState(Failed)
		return StatusFailed
	}
	ctx.setState(EncryptionSetup)
	return StatusInProgress
}

// ProcessIncoming accepts only EDH_EXCHANGE/M_WRITE while WaitEdhExchange:
// import the peer's public key, derive the shared secret, and request both
// directions of protection atomically.
func (p *SSH2PolicySet) ProcessIncoming(msg AuthMessage, sci SecurityContext) AuthStatus {
	ctx, ok := sci.(*ssh2Context)
	if !ok {
		return StatusFailed
	}
	if msg.ObjectClass != edhExchange {
		ctx.setState(Failed)
		return StatusFailed
	}
	if ctx.State() != WaitEdhExchange {
		ctx.setState(Failed)
		return StatusFailed
	}

	opts, err := decodeEDHOptions(msg.Payload)
	if err != nil {
		ctx.setState(Failed)
		return StatusFailed
	}
	ctx.peerPub = new(big.Int).SetBytes(opts.PublicKey)
	ctx.sharedSecret = p.computeSharedSecret(ctx.peerPub, ctx.priv)

	ctx.setState(ReqEnableEncrypt)
	doneEnc, err := p.datapath.EnableEncryption(ctx.SessionID(), ctx.sharedSecret, nil)
	if err != nil {
		ctx.setState(Failed)
		return StatusFailed
	}
	doneDec, err := p.datapath.EnableDecryption(ctx.SessionID(), ctx.sharedSecret, nil)
	if err != nil {
		ctx.setState(Failed)
		return StatusFailed
	}
	if doneEnc && doneDec {
		ctx.setState(EncryptionSetup)
	}
	return StatusInProgress
}

// computeSharedSecret derives (peerPub ^ priv) mod p, the DH shared secret.
func (p *SSH2PolicySet) computeSharedSecret(peerPub, priv *big.Int) []byte {
	return new(big.Int).Exp(peerPub, priv, p.p).Bytes()
}

func (p *SSH2PolicySet) SetPolicySetParam(name, value string) error {
	return fmt.Errorf("%w: no policy-set-specific parameters on the SSH2 policy set (%s)", errdefs.ErrNotFound, name)
}

// encodeEDHOptions/decodeEDHOptions use a fixed, length-prefixed layout
// rather than a general-purpose codec: this wire shape is fully internal to
// the SSH2 policy set and never crosses the catalog boundary.
func encodeEDHOptions(o edhOptions) []byte {
	var out []byte
	for _, s := range []string{o.KeyExchangeAlg, o.EncryptAlg, o.MACAlg, o.CompressAlg} {
		out = append(out, byte(len(s)))
		out = append(out, s...)
	}
	out = append(out, byte(len(o.PublicKey)>>8), byte(len(o.PublicKey)))
	out = append(out, o.PublicKey...)
	return out
}

func decodeEDHOptions(b []byte) (edhOptions, error) {
	var o edhOptions
	fields := []*string{&o.KeyExchangeAlg, &o.EncryptAlg, &o.MACAlg, &o.CompressAlg}
	for _, f := range fields {
		if len(b) < 1 {
			return edhOptions{}, fmt.Errorf("%w: truncated EDH options", errdefs.ErrMalformedMessage)
		}
		n := int(b[0])
		b = b[1:]
		if len(b) < n {
			return edhOptions{}, fmt.Errorf("%w: truncated EDH options", errdefs.ErrMalformedMessage)
		}
		*f = string(b[:n])
		b = b[n:]
	}
	if len(b) < 2 {
		return edhOptions{}, fmt.Errorf("%w: truncated EDH options", errdefs.ErrMalformedMessage)
	}
	n := int(b[0])<<8 | int(b[1])
	b = b[2:]
	if len(b) < n {
		return edhOptions{}, fmt.Errorf("%w: truncated EDH options", errdefs.ErrMalformedMessage)
	}
	o.PublicKey = append([]byte(nil), b[:n]...)
	return o, nil
}
