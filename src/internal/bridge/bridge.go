// FILE: src/internal/bridge/bridge.go
// Package bridge is the dual-role IPC supervisor that pumps events
// across the fabric: an inbound listener that accepts the peer and
// feeds decoded records to a callback, and an outbound sender that
// connects to the peer's listener and drains a local queue.
package bridge

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/event"
	"github.com/C4rr13rX/WSL2UbuntuSuddenShutDownPrevention/src/internal/ipc"
	"github.com/lixenwraith/log"
	"golang.org/x/sync/errgroup"
)

// Backoff is the fixed reconnect delay after a handshake or transport
// failure, or when the shared secret cannot be loaded.
const Backoff = 2 * time.Second

// PeerOriginAttribute names the attribute the inbound role stamps on
// every record it decodes, identifying which side it arrived from.
const PeerOriginAttribute = "peer_origin"

// Dialer connects to the peer's listener, producing one byte stream
// per attempt. Transport is injected so tests can use an in-memory
// pair and the daemons wire a plain TCP dialer.
type Dialer func() (net.Conn, error)

// Acceptor accepts one peer connection at a time and can be closed to
// unblock an in-progress Accept.
type Acceptor interface {
	Accept() (net.Conn, error)
	Close() error
}

// SecretLoader returns the current pre-shared IPC secret. It is
// called lazily and must not be called while holding any bridge lock.
type SecretLoader func() ([]byte, error)

// Callback receives a decoded inbound record, already tagged with
// PeerOriginAttribute.
type Callback func(event.Record)

// Bridge runs the inbound and outbound roles concurrently.
type Bridge struct {
	logger     *log.Logger
	acceptor   Acceptor
	dial       Dialer
	loadSecret SecretLoader
	callback   Callback
	peerOrigin string

	queueMu sync.Mutex
	queueCv *sync.Cond
	queue   []event.Record
	running bool
	stopped bool

	guard *connGuard
	group *errgroup.Group
}

// inboundAcceptsPerSecond and inboundAcceptBurst bound how often the
// inbound role will accept and attempt to handshake a new connection,
// independent of the fixed post-failure backoff.
const (
	inboundAcceptsPerSecond = 1.0
	inboundAcceptBurst      = 5.0
)

// New constructs a Bridge. acceptor may be nil if this side has no
// inbound role; dial may be nil if this side has no outbound role.
func New(logger *log.Logger, acceptor Acceptor, dial Dialer, loadSecret SecretLoader, peerOrigin string, callback Callback) *Bridge {
	b := &Bridge{
		logger:     logger,
		acceptor:   acceptor,
		dial:       dial,
		loadSecret: loadSecret,
		callback:   callback,
		peerOrigin: peerOrigin,
	}
	b.queueCv = sync.NewCond(&b.queueMu)
	b.guard = newConnGuard(inboundAcceptBurst, inboundAcceptsPerSecond)
	return b
}

// Start launches the inbound and outbound workers under an errgroup.
// Safe to call once.
func (b *Bridge) Start(ctx context.Context) {
	b.queueMu.Lock()
	b.running = true
	b.queueMu.Unlock()

	group, gctx := errgroup.WithContext(ctx)
	b.group = group

	if b.acceptor != nil {
		group.Go(func() error {
			b.inboundWorker(gctx)
			return nil
		})
	}
	if b.dial != nil {
		group.Go(func() error {
			b.outboundWorker(gctx)
			return nil
		})
	}
}

// Stop unblocks both workers and waits for them to exit.
func (b *Bridge) Stop() {
	b.queueMu.Lock()
	b.running = false
	b.stopped = true
	b.queueMu.Unlock()
	b.queueCv.Broadcast()

	if b.acceptor != nil {
		b.acceptor.Close()
	}
	if b.group != nil {
		b.group.Wait()
	}
}

func (b *Bridge) isRunning() bool {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()
	return b.running
}

// EnqueueOutbound appends record to the unbounded outbound FIFO and
// wakes the outbound worker. A no-op once Stop has been called.
func (b *Bridge) EnqueueOutbound(record event.Record) {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()
	if b.stopped {
		return
	}
	b.queue = append(b.queue, record)
	b.queueCv.Signal()
}

func (b *Bridge) requeueFront(record event.Record) {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()
	b.queue = append([]event.Record{record}, b.queue...)
}

// QueueLen reports the number of records currently queued for send,
// chiefly useful from tests.
func (b *Bridge) QueueLen() int {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()
	return len(b.queue)
}

// outboundWorker connects upward, handshakes, then pumps the queue.
// When a send fails it reconnects after the fixed backoff; once Stop
// is called it returns.
func (b *Bridge) outboundWorker(ctx context.Context) {
	for b.isRunning() {
		secret, err := b.loadSecret()
		if err != nil || len(secret) == 0 {
			if !sleepOrStop(ctx, Backoff, b.isRunning) {
				return
			}
			continue
		}

		conn, err := b.dial()
		if err != nil {
			b.logger.Warn("msg", "bridge outbound connect failed", "error", err)
			if !sleepOrStop(ctx, Backoff, b.isRunning) {
				return
			}
			continue
		}

		session, err := ipc.ClientHandshake(conn, secret)
		if err != nil {
			b.logger.Warn("msg", "bridge outbound handshake failed", "error", err)
			conn.Close()
			if !sleepOrStop(ctx, Backoff, b.isRunning) {
				return
			}
			continue
		}

		b.pumpQueue(conn, session)
		conn.Close()

		if !b.isRunning() {
			return
		}
		if !sleepOrStop(ctx, Backoff, b.isRunning) {
			return
		}
	}
}

func (b *Bridge) pumpQueue(conn net.Conn, session ipc.SessionKey) {
	for {
		b.queueMu.Lock()
		for b.running && len(b.queue) == 0 {
			b.queueCv.Wait()
		}
		if !b.running {
			b.queueMu.Unlock()
			return
		}
		record := b.queue[0]
		b.queue = b.queue[1:]
		b.queueMu.Unlock()

		if err := ipc.SendEvent(conn, session, record); err != nil {
			b.logger.Warn("msg", "bridge outbound send failed, reconnecting", "error", err)
			b.requeueFront(record)
			return
		}
	}
}

// inboundWorker accepts one peer at a time, handshakes as server, and
// reads frames in a loop until the connection closes or a frame is
// rejected, then loops back to accept again.
func (b *Bridge) inboundWorker(ctx context.Context) {
	for b.isRunning() {
		conn, err := b.acceptor.Accept()
		if err != nil {
			if !b.isRunning() {
				return
			}
			b.logger.Warn("msg", "bridge inbound accept failed", "error", err)
			if !sleepOrStop(ctx, time.Second, b.isRunning) {
				return
			}
			continue
		}

		if !b.guard.allow() {
			b.logger.Warn("msg", "bridge inbound connection rate-limited")
			conn.Close()
			continue
		}

		secret, err := b.loadSecret()
		if err != nil || len(secret) == 0 {
			conn.Close()
			if !sleepOrStop(ctx, Backoff, b.isRunning) {
				return
			}
			continue
		}

		session, err := ipc.ServerHandshake(conn, secret)
		if err != nil {
			b.logger.Warn("msg", "bridge inbound handshake failed", "error", err)
			conn.Close()
			continue
		}

		b.readLoop(conn, session)
		conn.Close()
	}
}

func (b *Bridge) readLoop(conn net.Conn, session ipc.SessionKey) {
	for b.isRunning() {
		rec, err := ipc.ReceiveEvent(conn, session)
		if err != nil {
			return
		}
		rec.SetAttribute(PeerOriginAttribute, b.peerOrigin)
		b.callback(rec)
	}
}

func sleepOrStop(ctx context.Context, d time.Duration, isRunning func() bool) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return isRunning()
	}
}
