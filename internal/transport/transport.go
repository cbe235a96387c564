// Package transport is the proposer's networking boundary: it moves
// framed wire.Type/payload pairs between the local driver and remote
// acceptors, in either direction, without knowing anything about the
// paxos package's types (spec §4.5 puts the network layer entirely
// outside the core). It is grounded on the teacher-adjacent
// Rain168-server/network package's actor-per-connection shape: one
// background goroutine reads frames off a socket and pushes them onto a
// channel, one send path writes frames out, and everything that needs
// the result of a read is driven from the channel rather than shared
// memory.
package transport

import (
	"io"

	"github.com/quorumlog/proposer/internal/wire"
)

// Frame is one inbound message tagged with which peer produced it.
type Frame struct {
	PeerID  string
	Type    wire.Type
	Payload []byte
}

// Conn is one logical connection to a peer (an acceptor, or a client
// submitting values). Inbound frames from it arrive on the owning
// Transport's Recv channel; Send queues an
// outbound frame. A Conn owns exactly one reader goroutine; Send may be
// called from any goroutine, matching the teacher's Connection.Send.
type Conn interface {
	PeerID() string
	Send(t wire.Type, payload []byte) error
	Close() error
}

// Transport is a set of connections the driver multiplexes over. Recv
// yields frames from every connection the transport manages, tagged by
// peer id so the driver can route an ack back to the right bookkeeping.
type Transport interface {
	// Recv returns the shared inbound channel for every connection this
	// transport owns. Memory closes it when the transport is closed;
	// TCP's Close does not close it.
	Recv() <-chan Frame

	// Broadcast sends the same message to every currently connected
	// acceptor peer. Errors on individual peers do not fail the call
	// (TCP logs them and disables the peer; Memory drops the frame for a
	// peer whose inbox is full), matching prepare/accept's
	// fire-and-forget nature (an acceptor that is down simply never acks).
	Broadcast(t wire.Type, payload []byte)

	// Send delivers a message to exactly one peer (e.g. a reply to a
	// client Submit).
	Send(peerID string, t wire.Type, payload []byte) error

	Close() error
}

// readLoop is shared by every Conn implementation backed by an
// io.Reader/io.Writer pair: it decodes frames until the reader returns
// an error (including a clean io.EOF), forwarding each to out.
func readLoop(peerID string, r io.Reader, out chan<- Frame, done <-chan struct{}) {
	for {
		t, payload, err := wire.ReadFrame(r)
		if err != nil {
			return
		}
		select {
		case out <- Frame{PeerID: peerID, Type: t, Payload: payload}:
		case <-done:
			return
		}
	}
}
