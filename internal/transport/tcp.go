package transport

import (
	"net"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/quorumlog/proposer/internal/wire"
)

// TCP is a Transport backed by plain net.Conn sockets, one per acceptor
// peer plus however many client connections a listener has accepted.
// Its dial-then-read-loop shape is adapted from
// Rain168-server/network/connection.go's connectionDial/connectionReader
// pair, stripped of TLS, capnproto, and the reconnect state machine: a
// proposer redialing a dead acceptor is the driver's concern (it simply
// stops getting acks until the connection is replaced), not the
// transport's.
type TCP struct {
	mu     sync.Mutex
	conns  map[string]net.Conn
	recv   chan Frame
	done   chan struct{}
	closed bool
	logger log.Logger
}

// NewTCP constructs an empty TCP transport. Use Dial to add outbound
// connections to acceptors and Accept to register inbound client
// connections from a net.Listener loop the caller runs. logger is used
// to report write failures that disable a peer; nil is replaced with a
// no-op logger.
func NewTCP(logger log.Logger) *TCP {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &TCP{
		conns:  make(map[string]net.Conn),
		recv:   make(chan Frame, 256),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Dial opens an outbound connection to addr, registers it under peerID,
// and starts reading frames from it.
func (t *TCP) Dial(peerID, addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "transport: dial %s (%s)", peerID, addr)
	}
	t.register(peerID, conn)
	return nil
}

// Accept registers an already-accepted inbound connection (typically
// from a net.Listener.Accept loop the caller owns) under peerID and
// starts reading frames from it.
func (t *TCP) Accept(peerID string, conn net.Conn) {
	t.register(peerID, conn)
}

func (t *TCP) register(peerID string, conn net.Conn) {
	t.mu.Lock()
	t.conns[peerID] = conn
	t.mu.Unlock()
	go readLoop(peerID, conn, t.recv, t.done)
}

func (t *TCP) Recv() <-chan Frame { return t.recv }

// Broadcast writes payload to every registered peer. A peer whose write
// fails is logged and disabled (removed from conns and closed) rather
// than silently retried forever on every future broadcast — a dead
// acceptor otherwise fails writes indefinitely with no visibility.
func (t *TCP) Broadcast(msgType wire.Type, payload []byte) {
	t.mu.Lock()
	peers := make(map[string]net.Conn, len(t.conns))
	for id, c := range t.conns {
		peers[id] = c
	}
	t.mu.Unlock()
	for peerID, c := range peers {
		if err := wire.WriteFrame(c, msgType, payload); err != nil {
			level.Error(t.logger).Log("msg", "broadcast write failed, disabling peer", "peer_id", peerID, "err", err)
			t.disable(peerID, c)
		}
	}
}

func (t *TCP) Send(peerID string, msgType wire.Type, payload []byte) error {
	t.mu.Lock()
	conn, ok := t.conns[peerID]
	t.mu.Unlock()
	if !ok {
		return errors.Errorf("transport: unknown peer %q", peerID)
	}
	if err := wire.WriteFrame(conn, msgType, payload); err != nil {
		level.Error(t.logger).Log("msg", "send write failed, disabling peer", "peer_id", peerID, "err", err)
		t.disable(peerID, conn)
		return errors.Wrapf(err, "transport: send to %s", peerID)
	}
	return nil
}

// disable removes peerID from conns and closes its connection, provided
// it hasn't already been replaced by a fresh Dial/Accept in the
// meantime.
func (t *TCP) disable(peerID string, failed net.Conn) {
	t.mu.Lock()
	if current, ok := t.conns[peerID]; ok && current == failed {
		delete(t.conns, peerID)
	}
	t.mu.Unlock()
	_ = failed.Close()
}

func (t *TCP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.done)
	var firstErr error
	for _, c := range t.conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
