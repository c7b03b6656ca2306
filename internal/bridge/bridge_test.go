package bridge

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rinad/rinad/internal/catalog"
)

type pipeConn struct {
	net.Conn
}

func newPipe() (io1, io2 *pipeConn) {
	a, b := net.Pipe()
	return &pipeConn{a}, &pipeConn{b}
}

func testLogger() *logrus.Entry {
	return logrus.NewEntry(logrus.New())
}

func TestSendFireAndForget(t *testing.T) {
	clientConn, serverConn := newPipe()

	client := New(clientConn, nil, testLogger())
	client.Start()
	defer client.Close()

	server := New(serverConn, nil, testLogger())
	server.Start()
	defer server.Close()

	go func() {
		// The server bridge sends no responses; its receive loop only reads
		// the client's write off the pipe.
	}()

	req := &catalog.AppAllocateFlowRequest{}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// Fire-and-forget Send should not block or error even with nobody
	// consuming responses.
	if err := client.Send(ctx, req); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestCallTimeoutKillsBridge(t *testing.T) {
	clientConn, serverConn := newPipe()
	defer serverConn.Close()

	client := New(clientConn, nil, testLogger())
	client.Timeout = 20 * time.Millisecond
	client.Start()

	req := &catalog.AppAllocateFlowRequest{}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := client.Call(ctx, req, false)
	if err == nil {
		t.Fatal("expected a timeout error")
	}

	select {
	case <-client.waitCh:
	case <-time.After(time.Second):
		t.Fatal("bridge was not killed after call timeout")
	}
}
