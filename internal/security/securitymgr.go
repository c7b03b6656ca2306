// Package security implements the authentication policy-set architecture:
// a pluggable AuthPolicySet per auth-type name, a per-session
// SecurityContext tracking negotiation state, and a Manager tying both to
// the control-message catalog and the event bus.
package security

import (
	"fmt"
	"sort"
	"sync"

	"github.com/blang/semver/v4"
	"github.com/sirupsen/logrus"

	"github.com/rinad/rinad/internal/errdefs"
	"github.com/rinad/rinad/internal/eventbus"
)

// AuthStatus is the three-way outcome of Initiate/ProcessIncoming.
type AuthStatus int

const (
	StatusFailed AuthStatus = iota
	StatusInProgress
	StatusSuccessful
)

// Auth-type names, matching IAuthPolicySet's AUTH_* constants.
const (
	AuthNone     = "PSOC_authentication-none"
	AuthPassword = "PSOC_authentication-password"
	AuthSSH2     = "PSOC_authentication-ssh2"
)

// AuthPolicy is what GetAuthPolicy hands back to the caller: the chosen
// auth-type name, the protocol versions it supports, and any opening
// options it wants carried in the initial offer (the SSH2 set's public key,
// for instance).
type AuthPolicy struct {
	Name     string
	Versions []string
	Options  []byte
}

// AuthMessage is one authentication-phase CDAP operation: object class and
// name drive dispatch inside a policy set's ProcessIncoming, the same way a
// CDAPMessage's obj_class/obj_name would. On the wire each one travels as a
// catalog.AuthExchange (op-code OpAuthExchange), which cmd/rinad unwraps
// before calling Manager.ProcessIncoming.
type AuthMessage struct {
	ObjectClass string
	ObjectName  string
	Payload     []byte
}

// AuthPolicySet is the pluggable authentication strategy. One instance is
// constructed per registered auth-type name and shared across sessions;
// per-session state lives in the SecurityContext each call receives.
type AuthPolicySet interface {
	// GetAuthPolicy builds the opening offer for a new session.
	GetAuthPolicy(sessionID int) (AuthPolicy, SecurityContext, error)
	// Initiate begins authentication against a peer-supplied policy
	// (the responder path).
	Initiate(policy AuthPolicy, ctx SecurityContext) AuthStatus
	// ProcessIncoming handles one authentication-phase message.
	ProcessIncoming(msg AuthMessage, ctx SecurityContext) AuthStatus
	// SetPolicySetParam configures a named parameter (e.g. "challenge-length").
	SetPolicySetParam(name, value string) error
}

// State names a SecurityContext's position in its policy set's negotiation.
// Not every policy set uses every state; None uses only Fresh, Established
// and Failed.
type State int

const (
	Fresh State = iota
	WaitEdhExchange
	ReqEnableDecrypt
	ReqEnableEncrypt
	EncryptionSetup
	Established
	Failed
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "Fresh"
	case WaitEdhExchange:
		return "WaitEdhExchange"
	case ReqEnableDecrypt:
		return "ReqEnableDecrypt"
	case ReqEnableEncrypt:
		return "ReqEnableEncrypt"
	case EncryptionSetup:
		return "EncryptionSetup"
	case Established:
		return "Established"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// NegotiateVersion picks the highest version present in both local and
// remote, parsing each as semver. A policy set that outgrows its initial
// wire format bumps its entry in Versions rather than breaking old peers;
// this is what lets two differently-versioned daemons still agree on one.
func NegotiateVersion(local, remote []string) (string, error) {
	remoteSet := make(map[string]bool, len(remote))
	for _, v := range remote {
		remoteSet[v] = true
	}

	var common []semver.Version
	for _, v := range local {
		if !remoteSet[v] {
			continue
		}
		parsed, err := semver.Parse(v)
		if err != nil {
			continue
		}
		common = append(common, parsed)
	}
	if len(common) == 0 {
		return "", fmt.Errorf("%w: no common auth-policy version between %v and %v", errdefs.ErrNotSupported, local, remote)
	}
	sort.Sort(semver.Versions(common))
	return common[len(common)-1].String(), nil
}

// SecurityContext is the per-session negotiation state. Concrete policy sets
// embed baseContext and add their own fields (challenge, DH key pair, ...).
type SecurityContext interface {
	SessionID() int
	PortID() uint32
	AuthType() string
	State() State
	setState(State)
}

type baseContext struct {
	sessionID int
	portID    uint32
	authType  string
	state     State
}

func (c *baseContext) SessionID() int   { return c.sessionID }
func (c *baseContext) PortID() uint32   { return c.portID }
func (c *baseContext) AuthType() string { return c.authType }
func (c *baseContext) State() State     { return c.state }
func (c *baseContext) setState(s State) { c.state = s }

// Manager is the Security Manager: a registry of policy sets by auth-type
// name and a registry of live sessions by session id, plus the event-bus
// subscription that tears a session down when its underlying N-1 flow is
// deallocated.
type Manager struct {
	log *logrus.Entry

	psMu     sync.Mutex
	policies map[string]AuthPolicySet

	ctxMu    sync.Mutex
	contexts map[int]SecurityContext
	byPortID map[uint32]int
}

// New wires mgr's event-bus subscription and returns an empty registry. The
// caller still must AddPolicySet for each auth-type it wants to offer.
func New(log *logrus.Entry, bus *eventbus.Bus) *Manager {
	m := &Manager{
		log:      log,
		policies: make(map[string]AuthPolicySet),
		contexts: make(map[int]SecurityContext),
		byPortID: make(map[uint32]int),
	}
	if bus != nil {
		bus.Subscribe(eventbus.NMinus1FlowDeallocated, m.onFlowDeallocated)
	}
	return m
}

// AddPolicySet registers ps under name. Re-adding an existing name is a
// no-op that returns success, matching add_auth_policy_set's idempotence.
func (m *Manager) AddPolicySet(name string, ps AuthPolicySet) error {
	m.psMu.Lock()
	defer m.psMu.Unlock()
	if _, ok := m.policies[name]; ok {
		if m.log != nil {
			m.log.WithField("auth-type", name).Debug("security: policy set already registered")
		}
		return nil
	}
	m.policies[name] = ps
	return nil
}

// PolicySet returns the registered set for name.
func (m *Manager) PolicySet(name string) (AuthPolicySet, error) {
	m.psMu.Lock()
	defer m.psMu.Unlock()
	ps, ok := m.policies[name]
	if !ok {
		return nil, fmt.Errorf("%w: auth type %q", errdefs.ErrNotFound, name)
	}
	return ps, nil
}

// SetPolicySetParam routes to the named policy set's parameter setter. The
// Manager has no parameters of its own: an empty path returns ErrNotFound.
func (m *Manager) SetPolicySetParam(path, name, value string) error {
	if path == "" {
		return fmt.Errorf("%w: component-level parameter %q", errdefs.ErrNotFound, name)
	}
	ps, err := m.PolicySet(path)
	if err != nil {
		return err
	}
	return ps.SetPolicySetParam(name, value)
}

// AddSecurityContext registers ctx, indexed by both session id and port-id.
func (m *Manager) AddSecurityContext(ctx SecurityContext) {
	m.ctxMu.Lock()
	defer m.ctxMu.Unlock()
	m.contexts[ctx.SessionID()] = ctx
	m.byPortID[ctx.PortID()] = ctx.SessionID()
}

// GetSecurityContext returns the context registered under id.
func (m *Manager) GetSecurityContext(id int) (SecurityContext, error) {
	m.ctxMu.Lock()
	defer m.ctxMu.Unlock()
	ctx, ok := m.contexts[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %d", errdefs.ErrNotFound, id)
	}
	return ctx, nil
}

// ProcessIncoming routes msg to the policy set negotiating the session
// registered under portID, matching the portID a CDAP message's header
// carries back to the security context GetAuthPolicy/AddSecurityContext
// opened for it.
func (m *Manager) ProcessIncoming(portID uint32, msg AuthMessage) (AuthStatus, error) {
	m.ctxMu.Lock()
	id, ok := m.byPortID[portID]
	var ctx SecurityContext
	if ok {
		ctx = m.contexts[id]
	}
	m.ctxMu.Unlock()
	if !ok {
		return StatusFailed, fmt.Errorf("%w: security session for port-id %d", errdefs.ErrNotFound, portID)
	}

	ps, err := m.PolicySet(ctx.AuthType())
	if err != nil {
		return StatusFailed, err
	}
	return ps.ProcessIncoming(msg, ctx), nil
}

// RemoveSecurityContext unlinks id from the registry without notifying
// anything further; the caller retains the context value if it still needs
// it (e.g. to cancel a pending timer).
func (m *Manager) RemoveSecurityContext(id int) (SecurityContext, error) {
	m.ctxMu.Lock()
	defer m.ctxMu.Unlock()
	ctx, ok := m.contexts[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %d", errdefs.ErrNotFound, id)
	}
	delete(m.contexts, id)
	delete(m.byPortID, ctx.PortID())
	return ctx, nil
}

// DestroySecurityContext removes id and releases any resources it holds
// (timers, key material). Destroying an unknown id is a no-op.
func (m *Manager) DestroySecurityContext(id int) {
	ctx, err := m.RemoveSecurityContext(id)
	if err != nil {
		return
	}
	if d, ok := ctx.(interface{ release() }); ok {
		d.release()
	}
	if m.log != nil {
		m.log.WithField("session-id", id).Debug("security: context destroyed")
	}
}

// onFlowDeallocated is the event-bus handler: when the N-1 flow carrying a
// session's traffic goes away, the session can no longer make progress.
func (m *Manager) onFlowDeallocated(ev eventbus.Event) {
	m.ctxMu.Lock()
	id, ok := m.byPortID[ev.PortID]
	m.ctxMu.Unlock()
	if !ok {
		return
	}
	m.DestroySecurityContext(id)
}
