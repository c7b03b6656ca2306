package security

import (
	"fmt"

	"github.com/rinad/rinad/internal/errdefs"
)

// NonePolicySet is the trivial policy set: no challenge, no key exchange.
// It installs a bare context and declares success immediately, matching
// AuthNonePolicySet.
type NonePolicySet struct {
	version string
}

// NewNonePolicySet returns a policy set that always negotiates version.
func NewNonePolicySet(version string) *NonePolicySet {
	return &NonePolicySet{version: version}
}

type noneContext struct {
	baseContext
}

func (c *noneContext) release() {}

func (p *NonePolicySet) GetAuthPolicy(sessionID int) (AuthPolicy, SecurityContext, error) {
	ctx := &noneContext{baseContext{sessionID: sessionID, authType: AuthNone, state: Fresh}}
	return AuthPolicy{Name: AuthNone, Versions: []string{p.version}}, ctx, nil
}

func (p *NonePolicySet) Initiate(policy AuthPolicy, ctx SecurityContext) AuthStatus {
	if policy.Name != AuthNone {
		ctx.setState(Failed)
		return StatusFailed
	}
	found := false
	for _, v := range policy.Versions {
		if v == p.version {
			found = true
			break
		}
	}
	if !found {
		ctx.setState(Failed)
		return StatusFailed
	}
	ctx.setState(Established)
	return StatusSuccessful
}

// ProcessIncoming must never be called for the none policy set: there is no
// message phase to process.
func (p *NonePolicySet) ProcessIncoming(msg AuthMessage, ctx SecurityContext) AuthStatus {
	ctx.setState(Failed)
	return StatusFailed
}

func (p *NonePolicySet) SetPolicySetParam(name, value string) error {
	return fmt.Errorf("%w: parameter %q on the none policy set", errdefs.ErrNotFound, name)
}
