package paxos

// AcceptAck is the observation a learner needs: one acceptor's accepted
// (ballot, value) pair for one instance (wire.AcceptAck carries the same
// shape — see internal/wire).
type AcceptAck struct {
	AcceptorID uint32
	IID        InstanceID
	Ballot     Ballot
	Value      Value
}

type chosenRecord struct {
	ballot Ballot
	value  Value
}

// LearnerAdapter is the "minimal learner limited to producing in-order
// chosen outcomes" of spec §4.4. It is grounded on the teacher's
// Learner (internal/paxos/learner.go in senutpal-quorum): group Accepted
// messages by (proposal, value) and declare a value chosen once a
// quorum of distinct acceptors report the same pair. This adapter
// generalizes that single-instance tally to one tally set per iid, and
// adds the gap-filling DeliverNext the spec requires so the proposer can
// retire instances strictly in ascending order (spec §4.4, §5).
type LearnerAdapter struct {
	quorum uint32

	// tallies[iid][ballot][string(value)] = set of acceptor ids that
	// reported that exact (ballot, value) pair for that iid.
	tallies map[InstanceID]map[Ballot]map[string]map[uint32]struct{}

	// chosen holds instances known to be chosen but not yet delivered.
	chosen map[InstanceID]chosenRecord

	nextDeliverIID InstanceID
}

// NewLearnerAdapter constructs an adapter requiring quorum distinct
// acceptor reports per (iid, ballot, value) before declaring it chosen.
func NewLearnerAdapter(quorum uint32) *LearnerAdapter {
	return &LearnerAdapter{
		quorum:         quorum,
		tallies:        make(map[InstanceID]map[Ballot]map[string]map[uint32]struct{}),
		chosen:         make(map[InstanceID]chosenRecord),
		nextDeliverIID: 1,
	}
}

// ReceiveAccept tallies one acceptor's accepted-ack. Duplicate reports
// from the same acceptor for the same (iid, ballot, value) are no-ops,
// the same dedup discipline the proposer core uses for promises.
func (l *LearnerAdapter) ReceiveAccept(ack AcceptAck) {
	if _, already := l.chosen[ack.IID]; already {
		return
	}
	byBallot, ok := l.tallies[ack.IID]
	if !ok {
		byBallot = make(map[Ballot]map[string]map[uint32]struct{})
		l.tallies[ack.IID] = byBallot
	}
	byValue, ok := byBallot[ack.Ballot]
	if !ok {
		byValue = make(map[string]map[uint32]struct{})
		byBallot[ack.Ballot] = byValue
	}
	key := string(ack.Value)
	acceptors, ok := byValue[key]
	if !ok {
		acceptors = make(map[uint32]struct{})
		byValue[key] = acceptors
	}
	acceptors[ack.AcceptorID] = struct{}{}

	if uint32(len(acceptors)) >= l.quorum {
		l.chosen[ack.IID] = chosenRecord{ballot: ack.Ballot, value: ack.Value.Clone()}
		delete(l.tallies, ack.IID)
	}
}

// DeliverNext returns the next strictly-ascending chosen outcome once it
// is known, or ok=false if the next expected iid hasn't been chosen yet.
// This is the property that lets the proposer retire slots in order
// (spec §4.4): a later iid being chosen first is buffered silently until
// every earlier gap fills in.
func (l *LearnerAdapter) DeliverNext() (iid InstanceID, value Value, ok bool) {
	rec, found := l.chosen[l.nextDeliverIID]
	if !found {
		return 0, nil, false
	}
	delete(l.chosen, l.nextDeliverIID)
	iid = l.nextDeliverIID
	l.nextDeliverIID++
	return iid, rec.value, true
}
