package main

import (
	"context"
	"net"
	"testing"

	"github.com/rinad/rinad/internal/catalog"
	"github.com/rinad/rinad/internal/config"
	"github.com/rinad/rinad/internal/naming"
	"github.com/rinad/rinad/internal/ribpaths"
)

func testDaemon(t *testing.T) *daemon {
	t.Helper()
	cfg := config.Config{
		FamilyName: "test",
		Cubes: []config.CubeConfig{
			{ID: 1, Name: "best-effort"},
		},
	}
	conn, _ := net.Pipe()
	return newDaemon(cfg, conn)
}

func TestDispatchRemoteAllocateRequestReachesFlowAllocated(t *testing.T) {
	d := testDaemon(t)

	req := &catalog.IpcmAllocateFlowRequest{
		SourceAppName: naming.ApplicationName{ProcessName: "peer-app"},
		DestAppName:   naming.ApplicationName{ProcessName: "local-app"},
	}
	req.Header.SourcePortID = 99

	d.dispatch(context.Background(), req)

	fai, ok := d.allocator.Lookup(1)
	if !ok {
		t.Fatal("expected the remote-initiator path to assign local port-id 1")
	}
	if fai.State().String() != "FlowAllocated" {
		t.Fatalf("got state %v, want FlowAllocated", fai.State())
	}
	if _, err := d.rib.Get(ribpaths.FlowInstances + "1"); err != nil {
		t.Fatalf("expected a published FlowRIBObject: %v", err)
	}
}

func TestDispatchRemoteDeallocateTearsDownFlow(t *testing.T) {
	d := testDaemon(t)

	allocate := &catalog.IpcmAllocateFlowRequest{}
	allocate.Header.SourcePortID = 99
	d.dispatch(context.Background(), allocate)

	fai, ok := d.allocator.Lookup(1)
	if !ok {
		t.Fatal("expected a live flow at port-id 1")
	}

	del := &catalog.AppDeallocateFlowRequest{}
	del.Header.DestPortID = fai.PortID()
	d.dispatch(context.Background(), del)

	if fai.State().String() != "Waiting2MPLBeforeTearingDown" {
		t.Fatalf("got state %v, want Waiting2MPLBeforeTearingDown", fai.State())
	}
	if _, err := d.rib.Get(ribpaths.FlowInstances + "1"); err == nil {
		t.Fatal("expected the FlowRIBObject to be retracted once teardown begins")
	}
}

func TestDispatchUnknownPortIDIsLoggedNotPanicked(t *testing.T) {
	d := testDaemon(t)

	result := &catalog.AppAllocateFlowRequestResult{}
	result.Header.DestPortID = 404
	d.dispatch(context.Background(), result)
}
