package transport

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/quorumlog/proposer/internal/wire"
)

// Memory is an in-process Transport connecting peers by name through Go
// channels instead of sockets. It fills the role the teacher's
// internal/transport/memory.go left as a TODO stub, and is what the
// demo command runs against so a full run never needs a real network.
type Memory struct {
	mu      sync.Mutex
	recv    chan Frame
	peers   map[string]*Bus
	closed  bool
}

// Bus is the memory transport's other end: whatever sits behind peerID
// (an acceptor stand-in, a test harness) reads from Inbox and writes
// replies with Deliver.
type Bus struct {
	peerID string
	inbox  chan Frame
	owner  *Memory
}

func (b *Bus) PeerID() string { return b.peerID }

// Inbox yields frames the driver has sent to this peer.
func (b *Bus) Inbox() <-chan Frame { return b.inbox }

// Deliver injects a frame from this peer back to the driver's Recv
// channel, as if it had arrived over a socket.
func (b *Bus) Deliver(t wire.Type, payload []byte) error {
	return b.owner.deliver(b.peerID, t, payload)
}

// NewMemory constructs an empty in-process transport.
func NewMemory() *Memory {
	return &Memory{
		recv:  make(chan Frame, 256),
		peers: make(map[string]*Bus),
	}
}

// Connect registers a new peer and returns its Bus.
func (m *Memory) Connect(peerID string) *Bus {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := &Bus{peerID: peerID, inbox: make(chan Frame, 256), owner: m}
	m.peers[peerID] = b
	return b
}

func (m *Memory) deliver(peerID string, t wire.Type, payload []byte) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return errors.New("transport: memory transport closed")
	}
	m.recv <- Frame{PeerID: peerID, Type: t, Payload: payload}
	return nil
}

func (m *Memory) Recv() <-chan Frame { return m.recv }

func (m *Memory) Broadcast(t wire.Type, payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.peers {
		select {
		case b.inbox <- Frame{PeerID: b.peerID, Type: t, Payload: payload}:
		default:
			// slow consumer; memory transport has no backpressure story
			// beyond dropping, matching a real socket's send buffer
			// overflow under extreme load.
		}
	}
}

func (m *Memory) Send(peerID string, t wire.Type, payload []byte) error {
	m.mu.Lock()
	b, ok := m.peers[peerID]
	m.mu.Unlock()
	if !ok {
		return errors.Errorf("transport: unknown peer %q", peerID)
	}
	select {
	case b.inbox <- Frame{PeerID: peerID, Type: t, Payload: payload}:
		return nil
	default:
		return errors.Errorf("transport: peer %q inbox full", peerID)
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.recv)
	for _, b := range m.peers {
		close(b.inbox)
	}
	return nil
}
