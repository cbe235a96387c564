package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumlog/proposer/internal/wire"
)

func TestMemoryBroadcastReachesAllPeers(t *testing.T) {
	m := NewMemory()
	a := m.Connect("acceptor-0")
	b := m.Connect("acceptor-1")

	m.Broadcast(wire.TypePrepareReq, []byte("hi"))

	select {
	case f := <-a.Inbox():
		assert.Equal(t, wire.TypePrepareReq, f.Type)
		assert.Equal(t, []byte("hi"), f.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast on acceptor-0")
	}
	select {
	case f := <-b.Inbox():
		assert.Equal(t, wire.TypePrepareReq, f.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast on acceptor-1")
	}
}

func TestMemoryDeliverReachesRecv(t *testing.T) {
	m := NewMemory()
	a := m.Connect("acceptor-0")

	require.NoError(t, a.Deliver(wire.TypePrepareAck, []byte("ack")))

	select {
	case f := <-m.Recv():
		assert.Equal(t, "acceptor-0", f.PeerID)
		assert.Equal(t, wire.TypePrepareAck, f.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivered frame")
	}
}

func TestMemorySendUnknownPeerErrors(t *testing.T) {
	m := NewMemory()
	err := m.Send("nobody", wire.TypePrepareReq, nil)
	assert.Error(t, err)
}
