// Package bridge implements the call-bookkeeping half of the transport
// adapter: a connection-owning loop pair plus a mutex-guarded table of
// in-flight calls keyed by sequence number, generalized from the control
// message catalog's request/response pairing.
package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rinad/rinad/internal/catalog"
	"github.com/rinad/rinad/internal/errdefs"
	"github.com/rinad/rinad/internal/otelutil"
)

const (
	hdrSize    = 16
	hdrOffType = 0
	hdrOffSize = 4
	hdrOffID   = 8

	// maxMsgSize bounds a single incoming message; no peer is trusted to be
	// well-behaved enough to allocate on its say-so alone.
	maxMsgSize = 0x10000
)

type msgType uint32

const (
	msgTypeRequest  msgType = 0x10100000
	msgTypeResponse msgType = 0x20100000
	msgTypeNotify   msgType = 0x30100000
	msgTypeMask     msgType = 0xfff00000
)

// call represents an outstanding request awaiting its response.
type call struct {
	id   int64
	req  catalog.Message
	resp catalog.Message
	err  error
	ch   chan struct{}
}

func (c *call) complete(resp catalog.Message, err error) {
	c.resp = resp
	c.err = err
	close(c.ch)
}

// Done reports whether the call has completed.
func (c *call) Done() bool {
	select {
	case <-c.ch:
		return true
	default:
		return false
	}
}

// NotifyFunc is invoked for every request- or notification-role message that
// arrives on the bridge, outside the request/response correlation above.
type NotifyFunc func(catalog.Message) error

var errBridgeClosed = fmt.Errorf("bridge closed: %w", net.ErrClosed)

const defaultTimeout = 30 * time.Second

// Bridge owns a connection and drives its send/receive loops. It is the
// component the Flow Allocator's CDAP exchanges and the Security Manager's
// challenge/EDH exchanges route their outbound Send/inbound Recv through.
type Bridge struct {
	// Timeout bounds how long a synchronous Call waits for a response
	// before the whole bridge is killed.
	Timeout time.Duration

	mu      sync.Mutex
	nextID  int64
	calls   map[int64]*call
	conn    io.ReadWriteCloser
	callCh  chan *call
	notify  NotifyFunc
	closed  bool
	log     *logrus.Entry
	brdgErr error
	waitCh  chan struct{}
}

// New returns a Bridge on conn. notify is invoked for every inbound request
// or notification message; log receives transport-level diagnostics.
func New(conn io.ReadWriteCloser, notify NotifyFunc, log *logrus.Entry) *Bridge {
	return &Bridge{
		conn:    conn,
		calls:   make(map[int64]*call),
		callCh:  make(chan *call),
		waitCh:  make(chan struct{}),
		notify:  notify,
		log:     log,
		Timeout: defaultTimeout,
	}
}

// Start begins the bridge's send and receive goroutines, launched together
// through an errgroup. Start returns at once; the group is not waited on.
func (b *Bridge) Start() {
	var g errgroup.Group
	g.Go(func() error {
		b.recvLoopRoutine()
		return nil
	})
	g.Go(func() error {
		b.sendLoop()
		return nil
	})
}

// kill terminates the bridge, closing the connection and failing every
// pending call. It is idempotent: a second kill after the first is a no-op
// except for logging.
func (b *Bridge) kill(err error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		if err != nil {
			b.log.WithError(err).Warn("bridge error, already terminated")
		}
		return
	}
	b.closed = true
	b.mu.Unlock()
	b.brdgErr = err
	if err != nil {
		b.log.WithError(err).Error("bridge forcibly terminating")
	} else {
		b.log.Debug("bridge terminating")
	}
	b.conn.Close()
	close(b.waitCh)
}

// Close terminates the bridge cleanly. Calling Call or AsyncCall after Close
// returns an error (errBridgeClosed when the bridge was closed cleanly).
func (b *Bridge) Close() error {
	b.kill(nil)
	return b.brdgErr
}

// Wait blocks until the bridge connection terminates and returns the error,
// if any, that caused it.
func (b *Bridge) Wait() error {
	<-b.waitCh
	return b.brdgErr
}

// AsyncCall sends req and returns immediately without waiting for resp to be
// populated; the caller observes completion via the returned call's Done/Wait.
func (b *Bridge) AsyncCall(ctx context.Context, req catalog.Message) (*call, error) {
	c := &call{ch: make(chan struct{}), req: req}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case b.callCh <- c:
		return c, nil
	case <-b.waitCh:
		err := b.brdgErr
		if err == nil {
			err = errBridgeClosed
		}
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Call issues a synchronous request/response exchange. If allowCancel is set
// and ctx is done before a response arrives, Call returns immediately
// without waiting further; this is only safe for idempotent requests.
func (b *Bridge) Call(ctx context.Context, req catalog.Message, allowCancel bool) (catalog.Message, error) {
	c, err := b.AsyncCall(ctx, req)
	if err != nil {
		return nil, err
	}
	var ctxDone <-chan struct{}
	if allowCancel {
		ctxDone = ctx.Done()
	}
	t := time.NewTimer(b.Timeout)
	defer t.Stop()
	select {
	case <-c.ch:
		return c.resp, c.err
	case <-ctxDone:
		b.log.WithField("reason", ctx.Err()).Warn("ignoring response to bridge message")
		return nil, ctx.Err()
	case <-t.C:
		b.kill(fmt.Errorf("%w: message timeout", errdefs.ErrTransportUnavailable))
		<-c.ch
		return c.resp, c.err
	}
}

// Send is the fire-and-forget half of the transport adapter contract: it
// hands req to the send loop without tracking a response.
func (b *Bridge) Send(ctx context.Context, req catalog.Message) error {
	_, err := b.AsyncCall(ctx, req)
	return err
}

func (b *Bridge) recvLoopRoutine() {
	b.kill(b.recvLoop())
	b.mu.Lock()
	calls := b.calls
	b.calls = nil
	b.mu.Unlock()
	for _, c := range calls {
		c.complete(nil, errBridgeClosed)
	}
}

func readMessage(r io.Reader) (int64, msgType, []byte, error) {
	var h [hdrSize]byte
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return 0, 0, nil, err
	}
	typ := msgType(binary.LittleEndian.Uint32(h[hdrOffType:]))
	n := binary.LittleEndian.Uint32(h[hdrOffSize:])
	id := int64(binary.LittleEndian.Uint64(h[hdrOffID:]))

	if n < hdrSize || n > maxMsgSize {
		return 0, 0, nil, fmt.Errorf("%w: invalid message size %d", errdefs.ErrMalformedMessage, n)
	}
	n -= hdrSize
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return 0, 0, nil, err
	}
	return id, typ, payload, nil
}

func (b *Bridge) recvLoop() error {
	br := bufio.NewReader(b.conn)
	for {
		id, typ, payload, err := readMessage(br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("bridge read failed: %w", err)
		}

		msg, decErr := catalog.Decode(payload)

		switch typ & msgTypeMask {
		case msgTypeResponse:
			b.mu.Lock()
			c := b.calls[id]
			delete(b.calls, id)
			b.mu.Unlock()
			if c == nil {
				return fmt.Errorf("%w: response for unknown call id %d", errdefs.ErrInternal, id)
			}
			c.complete(msg, decErr)
			if decErr != nil {
				b.log.WithError(decErr).WithField("message-id", id).Error("bridge response decode failed")
			}

		case msgTypeRequest, msgTypeNotify:
			if decErr != nil {
				return fmt.Errorf("bridge notification decode failed: %w", decErr)
			}
			if b.notify != nil {
				if err := b.notify(msg); err != nil {
					return fmt.Errorf("bridge notification handler failed: %w", err)
				}
			}

		default:
			return fmt.Errorf("%w: unknown message type %#x", errdefs.ErrMalformedMessage, uint32(typ))
		}
	}
}

func (b *Bridge) sendLoop() {
	var buf bytes.Buffer
	for {
		select {
		case <-b.waitCh:
			return
		case c := <-b.callCh:
			if err := b.sendCall(&buf, c); err != nil {
				b.kill(err)
				return
			}
		}
	}
}

func (b *Bridge) writeMessage(ctx context.Context, buf *bytes.Buffer, typ msgType, id int64, msg catalog.Message) (err error) {
	ctx, span := otelutil.StartSpan(ctx, "bridge send", otelutil.WithClientSpanKind)
	defer span.End()
	defer func() { otelutil.SetSpanStatus(span, err) }()

	payload, err := catalog.Encode(msg)
	if err != nil {
		return err
	}

	var h [hdrSize]byte
	binary.LittleEndian.PutUint32(h[hdrOffType:], uint32(typ))
	binary.LittleEndian.PutUint32(h[hdrOffSize:], uint32(hdrSize+len(payload)))
	binary.LittleEndian.PutUint64(h[hdrOffID:], uint64(id))

	buf.Reset()
	buf.Write(h[:])
	buf.Write(payload)

	b.log.WithFields(logrus.Fields{"message-id": id, "payload": string(payload)}).Trace("bridge send")

	_, err = buf.WriteTo(b.conn)
	if err != nil {
		return fmt.Errorf("bridge write: %w", err)
	}
	return nil
}

func (b *Bridge) sendCall(buf *bytes.Buffer, c *call) error {
	b.mu.Lock()
	if b.calls == nil {
		b.mu.Unlock()
		c.complete(nil, errBridgeClosed)
		return nil
	}
	id := b.nextID
	c.id = id
	b.calls[id] = c
	b.nextID++
	b.mu.Unlock()

	err := b.writeMessage(context.Background(), buf, msgTypeRequest, id, c.req)
	if err != nil {
		b.mu.Lock()
		if b.calls[id] == nil {
			c = nil
		}
		delete(b.calls, id)
		b.mu.Unlock()
		if c != nil {
			c.complete(nil, err)
		} else {
			b.log.WithError(err).Error("bridge write failed but call already complete")
		}
		return err
	}
	return nil
}
