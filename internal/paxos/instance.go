package paxos

// Status is the per-slot phase. The spec's REDESIGN FLAGS (§9) suggest a
// tagged variant per status so illegal field combinations are
// unrepresentable. A true sum type would also mean reallocating (or
// type-switching) on every status transition of a ring slot that gets
// reused thousands of times; instead this keeps one flat struct per slot
// and leans on invariant-enforcing methods (below, and in proposer.go) to
// get the same guarantee at the API boundary: a Core keeps its Table in
// an unexported field, so nothing outside this package can reach a
// Core's instances and set, say, a p2_value while status is still
// p1_pending.
type Status uint8

const (
	StatusEmpty Status = iota
	StatusP1Pending
	StatusP1Ready
	StatusP2Pending
	StatusP2Completed
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusP1Pending:
		return "p1_pending"
	case StatusP1Ready:
		return "p1_ready"
	case StatusP2Pending:
		return "p2_pending"
	case StatusP2Completed:
		return "p2_completed"
	default:
		return "unknown"
	}
}

// Instance is the per-slot record described in spec §3.
type Instance struct {
	IID           InstanceID
	Status        Status
	MyBallot      Ballot
	PromisesCount uint32
	promisesSet   map[uint32]struct{}
	P1Value       Value
	P1ValueBallot Ballot
	P2Value       Value
}

func newInstance(iid InstanceID, ballot Ballot) *Instance {
	return &Instance{
		IID:         iid,
		Status:      StatusP1Pending,
		MyBallot:    ballot,
		promisesSet: make(map[uint32]struct{}),
	}
}

// hasPromised reports whether acceptorID already promised at MyBallot
// (spec §4.3.3's duplicate-promise check).
func (i *Instance) hasPromised(acceptorID uint32) bool {
	_, ok := i.promisesSet[acceptorID]
	return ok
}

// addPromise records a distinct acceptor's promise. It is the fix for the
// promise-set bug flagged in spec §9: this is a set union (`|=`), never
// the legacy `&=` that zeroed unrelated bits.
func (i *Instance) addPromise(acceptorID uint32) {
	i.promisesSet[acceptorID] = struct{}{}
	i.PromisesCount = uint32(len(i.promisesSet))
}

// resetPhase1 clears Phase 1 progress for a retry (spec §4.3.2 step 4).
func (i *Instance) resetPhase1() {
	i.promisesSet = make(map[uint32]struct{})
	i.PromisesCount = 0
	i.P1Value = nil
	i.P1ValueBallot = 0
}

// retire resets the slot to empty, releasing all values (spec §3
// lifecycle, §4.3.5 retire rule).
func (i *Instance) retire() {
	i.IID = 0
	i.Status = StatusEmpty
	i.MyBallot = 0
	i.promisesSet = nil
	i.PromisesCount = 0
	i.P1Value = nil
	i.P1ValueBallot = 0
	i.P2Value = nil
}
