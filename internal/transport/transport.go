// Package transport is the only component that touches raw bytes. It
// resolves a named message family to its dynamically allocated numeric id
// and moves encoded catalog.Message values across a connection, leaving
// call bookkeeping (matching a response to its request) to internal/bridge.
package transport

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/rinad/rinad/internal/bridge"
	"github.com/rinad/rinad/internal/catalog"
	"github.com/rinad/rinad/internal/errdefs"
	"github.com/rinad/rinad/internal/queue"
)

// Conn is the minimal connection shape Transport needs; *net.UnixConn and
// net.Pipe's halves both satisfy it, as does any io.ReadWriteCloser.
type Conn = io.ReadWriteCloser

// inbound is one message delivered by the bridge's notify callback, paired
// with the source port-id carried in its header.
type inbound struct {
	portID uint32
	msg    catalog.Message
}

// Transport binds a logical family name to a connection and exposes the
// blocking Send/Recv contract the rest of the control plane programs
// against, independent of the wire's framing details.
type Transport struct {
	log *logrus.Entry

	mu       sync.Mutex
	families map[string]int32
	nextID   int32

	br *bridge.Bridge

	queue *queue.MessageQueue
}

// New wraps conn. Send and Recv do not depend on Bind having been called.
func New(conn Conn, log *logrus.Entry) *Transport {
	t := &Transport{
		log:      log,
		families: make(map[string]int32),
		queue:    queue.NewMessageQueue(),
	}
	t.br = bridge.New(conn, t.onNotify, log)
	return t
}

// Start begins the adapter's send/receive goroutines. Must be called once,
// after New and before any Send/Recv.
func (t *Transport) Start() {
	t.br.Start()
}

// Close tears down the underlying connection and wakes any blocked Recv.
func (t *Transport) Close() error {
	t.queue.Close()
	return t.br.Close()
}

// Bind discovers (or assigns, for this process's purposes) the numeric id
// for familyName. Binding the same name twice returns the same id.
func (t *Transport) Bind(ctx context.Context, familyName string) (int32, error) {
	if familyName == "" {
		return 0, fmt.Errorf("%w: empty family name", errdefs.ErrMalformedMessage)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.families[familyName]; ok {
		return id, nil
	}
	t.nextID++
	id := t.nextID
	t.families[familyName] = id
	if t.log != nil {
		t.log.WithField("family", familyName).WithField("family-id", id).Debug("transport: bound family")
	}
	return id, nil
}

// Send transmits msg to portID and does not wait for any response. The
// caller is expected to correlate replies itself via Recv, matching the
// component design's fire-and-forget contract (request/response
// correlation for RPC-shaped exchanges belongs to internal/bridge.Call,
// used by higher layers that need it).
func (t *Transport) Send(ctx context.Context, portID uint32, msg catalog.Message) error {
	msg.Base().DestPortID = portID
	if err := t.br.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrTransportUnavailable, err)
	}
	return nil
}

// Recv blocks until a message arrives, the context is canceled, or the
// transport is closed. A canceled Recv leaves its Dequeue goroutine running
// until the next delivery or Close, same as any other cancelable blocking
// read layered over an API with no native context support.
func (t *Transport) Recv(ctx context.Context) (uint32, catalog.Message, error) {
	type result struct {
		in  inbound
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := t.queue.Dequeue()
		if err != nil {
			ch <- result{err: fmt.Errorf("%w: transport closed", errdefs.ErrTransportUnavailable)}
			return
		}
		ch <- result{in: v.(inbound)}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return 0, nil, r.err
		}
		return r.in.portID, r.in.msg, nil
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

// onNotify is the bridge's notification callback: every message that is not
// a pending RPC's response arrives here and is handed to the blocking FIFO
// that Recv drains.
func (t *Transport) onNotify(msg catalog.Message) error {
	in := inbound{portID: msg.Base().SourcePortID, msg: msg}
	return t.queue.Enqueue(in)
}
