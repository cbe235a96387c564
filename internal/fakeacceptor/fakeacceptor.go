// Package fakeacceptor is a minimal, non-durable stand-in for the
// acceptor role, used only by the demo command to exercise a proposer
// end-to-end without a real acceptor cluster. It follows the two rules
// the teacher's internal/paxos/acceptor.go documents (promise rule,
// acceptance rule) against an in-memory highestPromised/acceptedValue
// pair per instance; it is explicitly not the acceptor implementation
// the durable-storage role requires, which is out of this module's
// scope.
package fakeacceptor

import (
	"sync"

	"github.com/quorumlog/proposer/internal/transport"
	"github.com/quorumlog/proposer/internal/wire"
)

type slot struct {
	highestPromised uint64
	acceptedBallot  uint64
	acceptedValue   []byte
}

// Acceptor answers prepare_req/accept_req frames delivered over a
// transport.Bus, one in-memory slot per instance id.
type Acceptor struct {
	id uint32

	mu    sync.Mutex
	slots map[uint64]*slot
}

// New constructs a fake acceptor identified by id (the AcceptorID it
// stamps into every ack).
func New(id uint32) *Acceptor {
	return &Acceptor{id: id, slots: make(map[uint64]*slot)}
}

// Run services bus.Inbox() until it closes, replying on bus.Deliver.
// Intended to run in its own goroutine, one per fake acceptor in a demo
// cluster.
func (a *Acceptor) Run(bus *transport.Bus) {
	for frame := range bus.Inbox() {
		msg, err := wire.Decode(frame.Type, frame.Payload)
		if err != nil {
			continue
		}
		switch m := msg.(type) {
		case wire.PrepareReq:
			ack := a.handlePrepare(m)
			_, payload, _ := wire.Encode(ack)
			_ = bus.Deliver(wire.TypePrepareAck, payload)
		case wire.AcceptReq:
			if ack, ok := a.handleAccept(m); ok {
				_, payload, _ := wire.Encode(ack)
				_ = bus.Deliver(wire.TypeAcceptAck, payload)
			}
		}
	}
}

// handlePrepare implements the promise rule: promise any ballot higher
// than anything already promised, returning whatever value (if any) was
// previously accepted for this slot.
func (a *Acceptor) handlePrepare(req wire.PrepareReq) wire.PrepareAck {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.slots[req.IID]
	if !ok {
		s = &slot{}
		a.slots[req.IID] = s
	}
	if req.Ballot > s.highestPromised {
		s.highestPromised = req.Ballot
	}
	return wire.PrepareAck{
		AcceptorID:  a.id,
		IID:         req.IID,
		Ballot:      req.Ballot,
		ValueBallot: s.acceptedBallot,
		Value:       s.acceptedValue,
	}
}

// handleAccept implements the acceptance rule: accept only if no higher
// ballot has been promised for this slot since.
func (a *Acceptor) handleAccept(req wire.AcceptReq) (wire.AcceptAck, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.slots[req.IID]
	if !ok {
		s = &slot{}
		a.slots[req.IID] = s
	}
	if req.Ballot < s.highestPromised {
		return wire.AcceptAck{}, false
	}
	s.highestPromised = req.Ballot
	s.acceptedBallot = req.Ballot
	s.acceptedValue = append([]byte(nil), req.Value...)

	return wire.AcceptAck{
		AcceptorID: a.id,
		IID:        req.IID,
		Ballot:     req.Ballot,
		Value:      s.acceptedValue,
	}, true
}
