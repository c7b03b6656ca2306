package flowallocator

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rinad/rinad/internal/catalog"
	"github.com/rinad/rinad/internal/errdefs"
	"github.com/rinad/rinad/internal/naming"
	"github.com/rinad/rinad/internal/rib"
	"github.com/rinad/rinad/internal/ribpaths"
)

type recordingSender struct {
	mu  sync.Mutex
	msgs []catalog.Message
}

func (s *recordingSender) Send(ctx context.Context, portID uint32, msg catalog.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func reliableCube() naming.QoSCube {
	return naming.QoSCube{ID: 1, Name: "reliable", Bounds: naming.FlowSpec{
		AverageBandwidth: 1_000_000, AverageBandwidthSet: true,
		OrderedDelivery: true,
	}}
}

func TestSubmitAllocateRequestHappyPath(t *testing.T) {
	sender := &recordingSender{}
	a := New(sender, []naming.QoSCube{reliableCube()}, nil, nil, time.Millisecond, nil)

	fai, err := a.SubmitAllocateRequest(context.Background(), naming.FlowID{}, naming.FlowSpec{OrderedDelivery: true})
	if err != nil {
		t.Fatal(err)
	}
	if fai.State() != ConnectionCreateRequested {
		t.Fatalf("got state %v, want ConnectionCreateRequested", fai.State())
	}
	if sender.count() != 1 {
		t.Fatalf("expected one M_CREATE sent, got %d", sender.count())
	}

	if err := a.ProcessCreateConnectionResponse(context.Background(), fai, true); err != nil {
		t.Fatal(err)
	}
	if fai.State() != MessageToPeerFAISent {
		t.Fatalf("got state %v, want MessageToPeerFAISent", fai.State())
	}

	if err := a.ProcessCreateConnectionResult(fai, true); err != nil {
		t.Fatal(err)
	}
	if fai.State() != FlowAllocated {
		t.Fatalf("got state %v, want FlowAllocated", fai.State())
	}
}

func TestSubmitAllocateRequestQoSNotAchievable(t *testing.T) {
	sender := &recordingSender{}
	a := New(sender, []naming.QoSCube{reliableCube()}, nil, nil, time.Millisecond, nil)

	want := naming.FlowSpec{AverageBandwidth: 10_000_000, AverageBandwidthSet: true}
	_, err := a.SubmitAllocateRequest(context.Background(), naming.FlowID{}, want)
	if !errors.Is(err, errdefs.ErrQoSNotAchievable) {
		t.Fatalf("got %v, want ErrQoSNotAchievable", err)
	}
}

func TestNegativeCreateConnectionResponseReachesFinished(t *testing.T) {
	sender := &recordingSender{}
	a := New(sender, []naming.QoSCube{reliableCube()}, nil, nil, time.Millisecond, nil)

	fai, err := a.SubmitAllocateRequest(context.Background(), naming.FlowID{}, naming.FlowSpec{})
	if err != nil {
		t.Fatal(err)
	}

	err = a.ProcessCreateConnectionResponse(context.Background(), fai, false)
	if !errors.Is(err, errdefs.ErrPeerRefused) {
		t.Fatalf("got %v, want ErrPeerRefused", err)
	}
	if fai.State() != Finished {
		t.Fatalf("got state %v, want Finished", fai.State())
	}
	if _, ok := a.Lookup(fai.portID); ok {
		t.Fatal("port-id still registered after a negative response")
	}
}

func TestDuplicatePortIDRejected(t *testing.T) {
	sender := &recordingSender{}
	a := New(sender, []naming.QoSCube{reliableCube()}, nil, nil, time.Millisecond, nil)

	fai, err := a.SubmitAllocateRequest(context.Background(), naming.FlowID{}, naming.FlowSpec{})
	if err != nil {
		t.Fatal(err)
	}

	if err := a.flows.Insert(fai.portID, fai); !errors.Is(err, errdefs.ErrAlreadyExists) {
		t.Fatalf("got %v, want ErrAlreadyExists", err)
	}
}

func TestRemoteInitiatorPath(t *testing.T) {
	sender := &recordingSender{}
	a := New(sender, []naming.QoSCube{reliableCube()}, nil, nil, time.Millisecond, nil)

	fai, err := a.CreateFlowRequestArrived(context.Background(), 42, naming.FlowID{}, naming.FlowSpec{})
	if err != nil {
		t.Fatal(err)
	}
	if fai.State() != AppNotifiedOfIncomingFlow {
		t.Fatalf("got state %v, want AppNotifiedOfIncomingFlow", fai.State())
	}

	if err := a.SubmitAllocateResponse(context.Background(), fai, true); err != nil {
		t.Fatal(err)
	}
	if fai.State() != ConnectionUpdateRequested {
		t.Fatalf("got state %v, want ConnectionUpdateRequested", fai.State())
	}

	if err := a.ProcessUpdateConnectionResponse(fai, true); err != nil {
		t.Fatal(err)
	}
	if fai.State() != FlowAllocated {
		t.Fatalf("got state %v, want FlowAllocated", fai.State())
	}
}

func TestExactlyOne2MPLIntervalPerTrace(t *testing.T) {
	sender := &recordingSender{}
	mpl := 5 * time.Millisecond
	a := New(sender, []naming.QoSCube{reliableCube()}, nil, nil, mpl, nil)

	fai, err := a.SubmitAllocateRequest(context.Background(), naming.FlowID{}, naming.FlowSpec{})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.ProcessCreateConnectionResponse(context.Background(), fai, true); err != nil {
		t.Fatal(err)
	}
	if err := a.ProcessCreateConnectionResult(fai, true); err != nil {
		t.Fatal(err)
	}

	if err := a.SubmitDeallocate(context.Background(), fai); err != nil {
		t.Fatal(err)
	}
	if fai.State() != Waiting2MPLBeforeTearingDown {
		t.Fatalf("got state %v, want Waiting2MPLBeforeTearingDown", fai.State())
	}
	if _, ok := a.Lookup(fai.portID); !ok {
		t.Fatal("port-id must stay registered during the 2*MPL wait")
	}

	// A second SubmitDeallocate (simultaneous remote teardown) must be a
	// no-op: it must not reset the timer or move the state backward.
	if err := a.SubmitDeallocate(context.Background(), fai); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(time.Second)
	for {
		if fai.State() == Finished {
			break
		}
		select {
		case <-deadline:
			t.Fatal("2*MPL timer never fired")
		case <-time.After(time.Millisecond):
		}
	}
	if _, ok := a.Lookup(fai.portID); ok {
		t.Fatal("port-id was not released after 2*MPL")
	}
}

func TestFlowRIBObjectPublishedAndRetracted(t *testing.T) {
	sender := &recordingSender{}
	store := rib.NewMemStore()
	mpl := 5 * time.Millisecond
	a := New(sender, []naming.QoSCube{reliableCube()}, nil, nil, mpl, nil)
	a.SetRIB(store)

	fai, err := a.SubmitAllocateRequest(context.Background(), naming.FlowID{}, naming.FlowSpec{})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.ProcessCreateConnectionResponse(context.Background(), fai, true); err != nil {
		t.Fatal(err)
	}

	path := ribpaths.FlowInstances + strconv.FormatUint(uint64(fai.portID), 10)
	if _, err := store.Get(path); !errors.Is(err, errdefs.ErrNotFound) {
		t.Fatalf("flow RIB object must not exist before FlowAllocated, got err=%v", err)
	}

	if err := a.ProcessCreateConnectionResult(fai, true); err != nil {
		t.Fatal(err)
	}
	obj, err := store.Get(path)
	if err != nil {
		t.Fatalf("flow RIB object missing after FlowAllocated: %v", err)
	}
	if got := obj.(FlowRIBObject).PortID; got != fai.portID {
		t.Fatalf("got port-id %d, want %d", got, fai.portID)
	}

	if err := a.SubmitDeallocate(context.Background(), fai); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(path); !errors.Is(err, errdefs.ErrNotFound) {
		t.Fatal("flow RIB object must be retracted once teardown begins")
	}
}
