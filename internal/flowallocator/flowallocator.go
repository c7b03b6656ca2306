// Package flowallocator drives a Flow Allocator Instance (FAI) per flow
// through its FSM, choosing QoS cubes, and exchanging CDAP-shaped create/
// update/delete messages with the peer over internal/transport. Grounded on
// FlowAllocatorInstance/FlowAllocator (flow-allocator.h).
package flowallocator

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/rinad/rinad/internal/catalog"
	"github.com/rinad/rinad/internal/errdefs"
	"github.com/rinad/rinad/internal/ipcprocess"
	"github.com/rinad/rinad/internal/naming"
	"github.com/rinad/rinad/internal/rib"
	"github.com/rinad/rinad/internal/ribpaths"
)

// DefaultMPL is the Maximum Packet Lifetime this Allocator assumes when no
// override is configured; Waiting2MPLBeforeTearingDown holds for 2x this.
const DefaultMPL = 60 * time.Second

// Sender is the subset of internal/transport.Transport the allocator needs.
type Sender interface {
	Send(ctx context.Context, portID uint32, msg catalog.Message) error
}

// RetryPolicy decides whether a failed local allocate attempt should be
// retried, and after what delay. The zero value (NoRetry) never retries;
// BoundedRetry wraps cenkalti/backoff/v4 for the opt-in bounded-retry
// variant.
type RetryPolicy interface {
	NextBackOff() time.Duration
}

// NoRetry never retries a failed allocate attempt.
type NoRetry struct{}

func (NoRetry) NextBackOff() time.Duration { return backoff.Stop }

// BoundedRetry retries up to maxRetries times with exponential backoff.
func BoundedRetry(maxRetries int) RetryPolicy {
	b := backoff.NewExponentialBackOff()
	return &boundedRetry{inner: b, max: maxRetries}
}

type boundedRetry struct {
	inner *backoff.ExponentialBackOff
	max   int
	tries int
}

func (r *boundedRetry) NextBackOff() time.Duration {
	if r.tries >= r.max {
		return backoff.Stop
	}
	r.tries++
	return r.inner.NextBackOff()
}

// Instance is one Flow Allocator Instance: the FSM plus the flow data it is
// negotiating.
type Instance struct {
	mu    sync.Mutex
	state FAIState

	portID       uint32
	remotePortID uint32
	flowID       naming.FlowID
	spec         naming.FlowSpec
	cube         naming.QoSCube

	mplTimer *time.Timer

	fa *Allocator
}

func (fai *Instance) State() FAIState {
	fai.mu.Lock()
	defer fai.mu.Unlock()
	return fai.state
}

// PortID returns the local port-id this instance was assigned.
func (fai *Instance) PortID() uint32 {
	return fai.portID
}

func (fai *Instance) setState(s FAIState) {
	fai.mu.Lock()
	fai.state = s
	fai.mu.Unlock()
}

// FlowRIBObject is the RIB-exposed representation of one live flow,
// published at ribpaths.FlowInstances+"<port-id>" for as long as the flow
// stays in FlowAllocated. A remote M_DELETE on this object is what
// DeleteFlowRequestMessageReceived answers.
type FlowRIBObject struct {
	PortID       uint32
	RemotePortID uint32
	FlowID       naming.FlowID
	Cube         naming.QoSCube
	State        FAIState
}

// Allocator owns every live Instance, keyed by local port-id via a
// ipcprocess.FlowIndex, plus the configured QoS cube set and policies.
type Allocator struct {
	log *logrus.Entry

	sender Sender
	cubes  []naming.QoSCube
	policy NewFlowRequestPolicy
	retry  RetryPolicy
	mpl    time.Duration

	flows *ipcprocess.FlowIndex
	rib   rib.Store

	portIDMu  sync.Mutex
	nextPort  uint32
}

// SetRIB attaches the RIB store the allocator publishes FlowRIBObjects
// into. Optional: an allocator with no RIB attached simply never publishes,
// which is what most of this package's tests exercise.
func (a *Allocator) SetRIB(store rib.Store) {
	a.rib = store
}

func (a *Allocator) publishFlow(fai *Instance) {
	if a.rib == nil {
		return
	}
	obj := FlowRIBObject{
		PortID: fai.portID, RemotePortID: fai.remotePortID,
		FlowID: fai.flowID, Cube: fai.cube, State: fai.State(),
	}
	path := ribpaths.FlowInstances + strconv.FormatUint(uint64(fai.portID), 10)
	if err := a.rib.Put(path, obj); err != nil && a.log != nil {
		a.log.WithError(err).WithField("port-id", fai.portID).Warn("flowallocator: publishing flow RIB object failed")
	}
}

func (a *Allocator) retractFlow(portID uint32) {
	if a.rib == nil {
		return
	}
	path := ribpaths.FlowInstances + strconv.FormatUint(uint64(portID), 10)
	_ = a.rib.Delete(path)
}

// New returns an Allocator. policy/retry default to
// SimpleNewFlowRequestPolicy{}/NoRetry{} when nil; mpl defaults to
// DefaultMPL when zero.
func New(sender Sender, cubes []naming.QoSCube, policy NewFlowRequestPolicy, retry RetryPolicy, mpl time.Duration, log *logrus.Entry) *Allocator {
	if policy == nil {
		policy = SimpleNewFlowRequestPolicy{}
	}
	if retry == nil {
		retry = NoRetry{}
	}
	if mpl <= 0 {
		mpl = DefaultMPL
	}
	return &Allocator{
		log: log, sender: sender, cubes: cubes, policy: policy, retry: retry, mpl: mpl,
		flows: ipcprocess.NewFlowIndex(),
	}
}

func (a *Allocator) allocatePortID() uint32 {
	a.portIDMu.Lock()
	defer a.portIDMu.Unlock()
	a.nextPort++
	return a.nextPort
}

// SubmitAllocateRequest begins the local-initiator path: select a cube,
// assign a port-id, send M_CREATE(flow) to the peer, and enter
// ConnectionCreateRequested.
func (a *Allocator) SubmitAllocateRequest(ctx context.Context, flowID naming.FlowID, spec naming.FlowSpec) (*Instance, error) {
	cube, err := a.policy.SelectCube(a.cubes, spec)
	if err != nil {
		return nil, err
	}

	portID := a.allocatePortID()
	fai := &Instance{state: NoState, portID: portID, flowID: flowID, spec: spec, cube: cube, fa: a}

	if err := a.flows.Insert(portID, fai); err != nil {
		return nil, err
	}

	req := &catalog.IpcmAllocateFlowRequest{}
	req.Header.SourcePortID = portID
	if err := a.sender.Send(ctx, portID, req); err != nil {
		a.flows.Remove(portID)
		return nil, fmt.Errorf("%w: sending M_CREATE(flow): %v", errdefs.ErrTransportUnavailable, err)
	}
	fai.setState(ConnectionCreateRequested)

	if a.log != nil {
		a.log.WithField("port-id", portID).Debug("flowallocator: submitted allocate request")
	}
	return fai, nil
}

// ProcessCreateConnectionResponse is the datapath's answer to the connection
// create it was asked to perform. A negative result transitions directly to
// Finished, consults the retry policy, and reports failure; a positive
// result sends CreateConnectionResult(ok) to the peer and moves to
// MessageToPeerFAISent.
func (a *Allocator) ProcessCreateConnectionResponse(ctx context.Context, fai *Instance, ok bool) error {
	if fai.State() != ConnectionCreateRequested {
		return fmt.Errorf("%w: ProcessCreateConnectionResponse in state %s", errdefs.ErrWrongState, fai.State())
	}
	if !ok {
		fai.setState(Finished)
		a.flows.Remove(fai.portID)
		if delay := a.retry.NextBackOff(); delay != backoff.Stop {
			time.AfterFunc(delay, func() {
				_, _ = a.SubmitAllocateRequest(ctx, fai.flowID, fai.spec)
			})
		}
		return fmt.Errorf("%w: peer declined connection create", errdefs.ErrPeerRefused)
	}

	result := &catalog.AppAllocateFlowRequestResult{}
	result.Header.SourcePortID = fai.portID
	if err := a.sender.Send(ctx, fai.remotePortID, result); err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrTransportUnavailable, err)
	}
	fai.setState(MessageToPeerFAISent)
	return nil
}

// ProcessCreateConnectionResult finalizes the initiator path once the peer
// has confirmed the flow is usable.
func (a *Allocator) ProcessCreateConnectionResult(fai *Instance, ok bool) error {
	if fai.State() != MessageToPeerFAISent {
		return fmt.Errorf("%w: ProcessCreateConnectionResult in state %s", errdefs.ErrWrongState, fai.State())
	}
	if !ok {
		fai.setState(Finished)
		a.flows.Remove(fai.portID)
		return fmt.Errorf("%w: peer rejected the flow", errdefs.ErrPeerRefused)
	}
	fai.setState(FlowAllocated)
	a.publishFlow(fai)
	return nil
}

// CreateFlowRequestArrived handles the remote-initiator path: an M_CREATE
// arrived for a new flow. It selects a cube, notifies the application, and
// enters AppNotifiedOfIncomingFlow.
func (a *Allocator) CreateFlowRequestArrived(ctx context.Context, remotePortID uint32, flowID naming.FlowID, spec naming.FlowSpec) (*Instance, error) {
	cube, err := a.policy.SelectCube(a.cubes, spec)
	if err != nil {
		return nil, err
	}
	portID := a.allocatePortID()
	fai := &Instance{state: NoState, portID: portID, remotePortID: remotePortID, flowID: flowID, spec: spec, cube: cube, fa: a}
	if err := a.flows.Insert(portID, fai); err != nil {
		return nil, err
	}
	fai.setState(AppNotifiedOfIncomingFlow)
	return fai, nil
}

// SubmitAllocateResponse is the application's accept/deny of an incoming
// flow. Accepting requests the connection update from the datapath and
// enters ConnectionUpdateRequested.
func (a *Allocator) SubmitAllocateResponse(ctx context.Context, fai *Instance, accept bool) error {
	if fai.State() != AppNotifiedOfIncomingFlow {
		return fmt.Errorf("%w: SubmitAllocateResponse in state %s", errdefs.ErrWrongState, fai.State())
	}
	if !accept {
		fai.setState(Finished)
		a.flows.Remove(fai.portID)
		return nil
	}
	fai.setState(ConnectionUpdateRequested)
	return nil
}

// ProcessUpdateConnectionResponse completes the remote-initiator path.
func (a *Allocator) ProcessUpdateConnectionResponse(fai *Instance, ok bool) error {
	if fai.State() != ConnectionUpdateRequested {
		return fmt.Errorf("%w: ProcessUpdateConnectionResponse in state %s", errdefs.ErrWrongState, fai.State())
	}
	if !ok {
		fai.setState(Finished)
		a.flows.Remove(fai.portID)
		return fmt.Errorf("%w: connection update declined", errdefs.ErrPeerRefused)
	}
	fai.setState(FlowAllocated)
	a.publishFlow(fai)
	return nil
}

// SubmitDeallocate begins local teardown. Whichever party reaches
// ConnectionDestroyRequested first owns the 2*MPL wait; the later party
// (observing ConnectionDestroyRequested or a later state) is a no-op,
// matching the simultaneous-teardown tie-break.
func (a *Allocator) SubmitDeallocate(ctx context.Context, fai *Instance) error {
	fai.mu.Lock()
	if fai.state == ConnectionDestroyRequested || fai.state == Finished || fai.state == Waiting2MPLBeforeTearingDown {
		fai.mu.Unlock()
		return nil
	}
	fai.state = ConnectionDestroyRequested
	fai.mu.Unlock()

	del := &catalog.AppDeallocateFlowRequest{}
	del.Header.SourcePortID = fai.portID
	if err := a.sender.Send(ctx, fai.remotePortID, del); err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrTransportUnavailable, err)
	}
	return a.confirmTeardown(fai)
}

// DeleteFlowRequestMessageReceived handles a remote M_DELETE arriving for a
// live flow: the same tie-break applies.
func (a *Allocator) DeleteFlowRequestMessageReceived(fai *Instance) error {
	fai.mu.Lock()
	if fai.state == ConnectionDestroyRequested || fai.state == Finished || fai.state == Waiting2MPLBeforeTearingDown {
		fai.mu.Unlock()
		return nil
	}
	fai.state = ConnectionDestroyRequested
	fai.mu.Unlock()
	return a.confirmTeardown(fai)
}

// confirmTeardown is invoked once the datapath confirms the connection has
// actually been torn down: it arms the 2*MPL timer and, on expiry, frees
// the port-id for reuse.
func (a *Allocator) confirmTeardown(fai *Instance) error {
	if fai.State() != ConnectionDestroyRequested {
		return fmt.Errorf("%w: confirmTeardown in state %s", errdefs.ErrWrongState, fai.State())
	}
	fai.setState(Waiting2MPLBeforeTearingDown)
	a.retractFlow(fai.portID)
	fai.mplTimer = time.AfterFunc(2*a.mpl, func() {
		fai.setState(Finished)
		a.flows.Remove(fai.portID)
		if a.log != nil {
			a.log.WithField("port-id", fai.portID).Debug("flowallocator: port-id released after 2*MPL")
		}
	})
	return nil
}

// Lookup returns the live Instance for portID, if any.
func (a *Allocator) Lookup(portID uint32) (*Instance, bool) {
	v, ok := a.flows.Lookup(portID)
	if !ok {
		return nil, false
	}
	return v.(*Instance), true
}
