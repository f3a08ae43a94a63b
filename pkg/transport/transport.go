// Package transport implements the full-mesh Unix-domain-socket transport:
// length-prefixed framed IPC between worker processes on one host.
//
// Wire format: a 4-byte big-endian payload length L followed by exactly L
// bytes of opaque payload. No magic, no version, no checksum — this is a
// local-only trusted channel (spec'd deliberately bespoke, not grpc/protobuf,
// so the wire stays schema-less).
package transport

import (
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/actorcluster/actorcluster/pkg/clustererr"
	"github.com/actorcluster/actorcluster/pkg/events"
	"github.com/actorcluster/actorcluster/pkg/log"
	"github.com/actorcluster/actorcluster/pkg/metrics"
	"github.com/actorcluster/actorcluster/pkg/types"
)

const (
	// MaxFrameSize bounds the length field on receive; larger values close
	// the connection rather than attempt to resync (spec §9: pinned at
	// >= 16 MiB with explicit rejection to avoid memory exhaustion).
	MaxFrameSize = 16 * 1024 * 1024

	readChunkSize  = 64 * 1024
	acceptTimeout  = time.Second
	recvTimeout    = time.Second
	listenBacklog  = 128
	lengthPrefixSz = 4
)

// Listener is invoked once per received frame, possibly concurrently from
// many connections' read loops. It must be safe for concurrent use.
type Listener func(payload []byte)

// Transport owns one worker's listening socket and its full mesh of
// outbound connections to every peer.
type Transport struct {
	self      types.WorkerID
	socketDir string

	mu       sync.RWMutex
	listener *net.UnixListener
	peers    map[types.WorkerID]net.Conn
	onRecv   Listener
	closed   bool
	broker   *events.Broker
}

// New constructs a transport for worker self using socketDir for all
// worker-{i}.sock paths.
func New(self types.WorkerID, socketDir string) *Transport {
	return &Transport{
		self:      self,
		socketDir: socketDir,
		peers:     make(map[types.WorkerID]net.Conn),
	}
}

func socketPath(socketDir string, id types.WorkerID) string {
	return filepath.Join(socketDir, "worker-"+strconv.Itoa(int(id))+".sock")
}

// SetListener installs the single receive callback. Must be called before
// Bind for frames received during startup to be delivered.
func (t *Transport) SetListener(fn Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRecv = fn
}

// SetBroker installs an optional event broker. A nil broker (the default)
// disables publishing entirely; transport operation never depends on it.
func (t *Transport) SetBroker(b *events.Broker) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.broker = b
}

func (t *Transport) publish(typ events.EventType, msg string) {
	t.mu.RLock()
	b := t.broker
	t.mu.RUnlock()
	if b == nil {
		return
	}
	b.Publish(&events.Event{Type: typ, Message: msg})
}

// Bind creates and listens the server socket for this worker, unlinking
// any stale path first, then spawns a detached accept loop.
func (t *Transport) Bind() error {
	path := socketPath(t.socketDir, t.self)
	_ = os.Remove(path)

	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return fmt.Errorf("transport: resolve socket addr: %w", err)
	}

	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return fmt.Errorf("transport: bind %s: %w", path, err)
	}
	if err := os.Chmod(path, 0700); err != nil {
		ln.Close()
		return fmt.Errorf("transport: chmod socket: %w", err)
	}

	t.mu.Lock()
	t.listener = ln
	t.mu.Unlock()

	go t.acceptLoop(ln)
	t.publish(events.EventWorkerBound, fmt.Sprintf("worker %d bound %s", t.self, path))
	return nil
}

func (t *Transport) acceptLoop(ln *net.UnixListener) {
	componentLog := log.WithComponent("transport").With().Int32("worker_id", int32(t.self)).Logger()

	for {
		if t.isClosed() {
			return
		}

		ln.SetDeadline(time.Now().Add(acceptTimeout))
		conn, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if t.isClosed() {
				return
			}
			componentLog.Warn().Err(err).Msg("accept failed")
			continue
		}

		metrics.ConnectionsActive.Inc()
		go t.handleConnection(conn)
	}
}

// ConnectToPeers dials every peer id in [0, workerCount) except self and
// stores the outbound connection under its worker id. Connection failures
// here are fatal to the caller (spec §7: fatal to the affected worker).
func (t *Transport) ConnectToPeers(workerCount int) error {
	for j := 0; j < workerCount; j++ {
		peer := types.WorkerID(j)
		if peer == t.self {
			continue
		}

		path := socketPath(t.socketDir, peer)
		addr, err := net.ResolveUnixAddr("unix", path)
		if err != nil {
			return fmt.Errorf("transport: resolve peer %d addr: %w", peer, err)
		}

		conn, err := net.DialUnix("unix", nil, addr)
		if err != nil {
			return fmt.Errorf("transport: connect to peer %d: %w", peer, err)
		}

		t.mu.Lock()
		t.peers[peer] = conn
		t.mu.Unlock()
	}
	t.publish(events.EventWorkerConnected, fmt.Sprintf("worker %d connected to %d peers", t.self, workerCount-1))
	return nil
}

// handleConnection runs the per-connection read loop: a buffered frame
// parser that keeps syscall count independent of message rate. Frames are
// delivered to the listener in arrival order on this connection; ordering
// across connections is not guaranteed (spec §5).
func (t *Transport) handleConnection(conn net.Conn) {
	defer func() {
		conn.Close()
		metrics.ConnectionsActive.Dec()
	}()

	componentLog := log.WithComponent("transport").With().Int32("worker_id", int32(t.self)).Logger()

	var buf []byte
	chunk := make([]byte, readChunkSize)

	for {
		if t.isClosed() {
			return
		}

		conn.SetReadDeadline(time.Now().Add(recvTimeout))
		n, err := conn.Read(chunk)

		if n == 0 {
			if err == nil {
				continue
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				// timeout/short read; buffered partial frame, if any, is kept.
				continue
			}
			// peer closed cleanly (io.EOF) or a real error: exit loop.
			return
		}

		buf = append(buf, chunk[:n]...)

		for {
			frame, rest, ok, malformed := extractFrame(buf)
			if malformed {
				componentLog.Warn().Msg("malformed frame, closing connection")
				t.publish(events.EventFrameMalformed, fmt.Sprintf("worker %d received an oversized/malformed frame", t.self))
				return
			}
			if !ok {
				break
			}
			buf = rest

			metrics.FramesReceived.WithLabelValues("inbound").Inc()
			metrics.BytesReceived.WithLabelValues("inbound").Add(float64(len(frame)))

			t.mu.RLock()
			onRecv := t.onRecv
			t.mu.RUnlock()
			if onRecv != nil {
				onRecv(frame)
			}
		}

		if err != nil {
			return
		}
	}
}

// extractFrame pulls one complete frame off the front of buf, if present.
func extractFrame(buf []byte) (frame []byte, rest []byte, ok bool, malformed bool) {
	if len(buf) < lengthPrefixSz {
		return nil, buf, false, false
	}
	l := binary.BigEndian.Uint32(buf[:lengthPrefixSz])
	if l > MaxFrameSize {
		return nil, buf, false, true
	}
	total := lengthPrefixSz + int(l)
	if len(buf) < total {
		return nil, buf, false, false
	}
	return buf[lengthPrefixSz:total], buf[total:], true, false
}

// Send writes data as a framed message to target, blocking until every
// byte is written or the socket fails (sendAll semantics; partial writes
// never leave a half-frame behind). Sends to an unknown peer are dropped
// (spec §7): the drop is logged at warn, counted, published as
// send.dropped, and reported to the caller as clustererr.ErrUnknownPeer.
// In a well-formed cluster such sends are only reachable during startup
// or shutdown.
func (t *Transport) Send(target types.WorkerID, data []byte) error {
	t.mu.RLock()
	conn, ok := t.peers[target]
	t.mu.RUnlock()

	if !ok {
		metrics.SendDropsUnknownPeer.Inc()
		log.WithComponent("transport").Warn().Int32("target", int32(target)).Msg("send to unknown peer, dropping")
		t.publish(events.EventSendDropped, fmt.Sprintf("send to unknown peer %d dropped", target))
		return clustererr.ErrUnknownPeer
	}

	frame := make([]byte, lengthPrefixSz+len(data))
	binary.BigEndian.PutUint32(frame[:lengthPrefixSz], uint32(len(data)))
	copy(frame[lengthPrefixSz:], data)

	if err := sendAll(conn, frame); err != nil {
		return fmt.Errorf("transport: send to worker %d: %w", target, err)
	}

	metrics.FramesSent.WithLabelValues(strconv.Itoa(int(target))).Inc()
	metrics.BytesSent.WithLabelValues(strconv.Itoa(int(target))).Add(float64(len(data)))
	return nil
}

func sendAll(conn net.Conn, frame []byte) error {
	for len(frame) > 0 {
		n, err := conn.Write(frame)
		if err != nil {
			return err
		}
		frame = frame[n:]
	}
	return nil
}

func (t *Transport) isClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

// Close tears the transport down: stops the accept loop, closes every
// outbound connection, clears the peer table, closes the server socket and
// unlinks this worker's socket file.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true

	for _, conn := range t.peers {
		conn.Close()
	}
	t.peers = make(map[types.WorkerID]net.Conn)

	ln := t.listener
	t.listener = nil
	t.mu.Unlock()

	if ln != nil {
		ln.Close()
		os.Remove(socketPath(t.socketDir, t.self))
	}

	t.publish(events.EventWorkerStopped, fmt.Sprintf("worker %d stopped", t.self))
	return nil
}
