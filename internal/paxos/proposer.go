package paxos

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// PrepareReq is what prepare() hands the network driver to broadcast to
// every acceptor (spec §6).
type PrepareReq struct {
	IID    InstanceID
	Ballot Ballot
}

// AcceptReq is what accept() hands the network driver to broadcast
// (spec §6).
type AcceptReq struct {
	IID    InstanceID
	Ballot Ballot
	Value  Value
}

// PrepareAck is one acceptor's response to a PrepareReq (spec §6). Value
// and ValueBallot are zero/nil when the acceptor had nothing accepted.
type PrepareAck struct {
	AcceptorID  uint32
	IID         InstanceID
	Ballot      Ballot
	ValueBallot Ballot
	Value       Value
}

// OnChosenFunc is the optional client-notification hook described in
// spec §9 ("the source contains a commented-out notify-client call").
// Wiring it is never required for safety or liveness.
type OnChosenFunc func(iid InstanceID, value Value, oursWasChosen bool)

// Core is the proposer state machine: the instance table, the value
// queue, and the learner adapter, driven exclusively through the five
// entry points below. Per spec §5, the core has no internal locking and
// no suspension points — every entry point runs to completion without
// yielding. The enclosing network driver (internal/driver) is
// responsible for calling these serially from a single goroutine; Core
// is NOT safe for concurrent use by design, the same single-threaded
// cooperative model spec §5 mandates.
type Core struct {
	limits  Limits
	table   *Table
	queue   *ValueQueue
	learner *LearnerAdapter
	metrics *Metrics
	logger  log.Logger

	nextPrepareIID InstanceID
	nextAcceptIID  InstanceID

	onChosen OnChosenFunc
}

// NewCore constructs a proposer core. metrics and onChosen may be nil.
func NewCore(limits Limits, logger log.Logger, metrics *Metrics, onChosen OnChosenFunc) (*Core, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Core{
		limits:   limits,
		table:    NewTable(limits.ProposerArraySize),
		queue:    NewValueQueue(),
		learner:  NewLearnerAdapter(limits.Quorum),
		metrics:  metrics,
		logger:   log.With(logger, "component", "paxos.proposer", "proposer_id", limits.ProposerID),
		onChosen: onChosen,
	}, nil
}

// Propose wraps value into a submit record and appends it to the value
// queue (spec §4.3.1). It never fails except on the admission-time
// oversized-value check (spec §7).
func (c *Core) Propose(value Value) error {
	if uint32(len(value)) > c.limits.MaxValueSize {
		return ErrOversizedValue
	}
	c.queue.PushBack(value.Clone())
	return nil
}

// Prepare advances the pre-execution window by one slot (spec §4.3.2).
func (c *Core) Prepare() (PrepareReq, error) {
	iid := c.nextPrepareIID + 1
	inst := c.table.Lookup(iid)

	switch {
	case inst == nil:
		created, err := c.table.Create(iid, c.limits.NextBallot(0))
		if err != nil {
			return PrepareReq{}, err
		}
		inst = created
	case inst.Status == StatusP1Pending:
		inst.resetPhase1()
		inst.MyBallot = c.limits.NextBallot(inst.MyBallot)
	default:
		// prepare() only ever targets next_prepare_iid+1, which can only
		// be fresh or mid-retry. Any other status here is a bug, not a
		// recoverable condition (spec §7).
		return PrepareReq{}, errors.Errorf("paxos: prepare() found iid %d in unexpected status %s", iid, inst.Status)
	}

	c.nextPrepareIID++
	if c.metrics != nil {
		c.metrics.OpenP1Instances.Inc()
		c.metrics.PipelineDepth.Set(float64(c.nextPrepareIID - c.nextAcceptIID))
	}
	return PrepareReq{IID: iid, Ballot: inst.MyBallot}, nil
}

// ReceivePrepareAck applies the promise-merge rule of spec §4.3.3.
func (c *Core) ReceivePrepareAck(ack PrepareAck) {
	inst := c.table.Lookup(ack.IID)
	if inst == nil || inst.Status != StatusP1Pending {
		c.dropStale("prepare_ack", ack.IID)
		return
	}
	if inst.hasPromised(ack.AcceptorID) {
		level.Debug(c.logger).Log("msg", "duplicate promise dropped", "iid", ack.IID, "acceptor_id", ack.AcceptorID)
		return
	}
	inst.addPromise(ack.AcceptorID)

	if ack.Value != nil {
		switch {
		case inst.P1ValueBallot >= ack.ValueBallot:
			// our cached value already dominates; keep it.
		case inst.P1Value != nil && inst.P1Value.Equal(ack.Value):
			inst.P1ValueBallot = ack.ValueBallot
		default:
			inst.P1Value = ack.Value.Clone()
			inst.P1ValueBallot = ack.ValueBallot
		}
	}

	if inst.PromisesCount >= c.limits.Quorum && inst.Status == StatusP1Pending {
		inst.Status = StatusP1Ready
		if c.metrics != nil {
			c.metrics.OpenP1Instances.Dec()
		}
	}
}

// Accept tries to open Phase 2 for the next pending slot (spec §4.3.4).
// When it succeeds it also immediately opens one fresh Phase 1 to keep
// the pre-execution window full (spec §4.3.6): on success, prepared is
// true and prepare carries that new PrepareReq for the driver to
// broadcast alongside the AcceptReq. A non-nil error here is the same
// fatal window-exceeded condition Prepare can return, surfaced from the
// refill step — it does not undo the accept that already happened, so
// accepted can be true at the same time err is non-nil. Callers must
// check accepted first and broadcast accept regardless of err before
// treating err as the configuration error it is (spec §7): the refill
// failing doesn't make the accept any less real.
func (c *Core) Accept() (accept AcceptReq, prepare PrepareReq, accepted bool, prepared bool, err error) {
	iid := c.nextAcceptIID + 1
	inst := c.table.Lookup(iid)
	if inst == nil || inst.Status != StatusP1Ready || c.queue.Empty() {
		return AcceptReq{}, PrepareReq{}, false, false, nil
	}

	switch {
	case inst.P1Value == nil && inst.P2Value == nil:
		v, _ := c.queue.PopFront()
		inst.P2Value = v
	case inst.P1Value != nil && inst.P2Value == nil:
		inst.P2Value = inst.P1Value
		inst.P1Value = nil
		inst.P1ValueBallot = 0
	case inst.P1Value == nil && inst.P2Value != nil:
		// retry after leadership change: keep what we already had.
	default: // both present
		if inst.P1Value.Equal(inst.P2Value) {
			inst.P1Value = nil
			inst.P1ValueBallot = 0
		} else {
			c.queue.PushBack(inst.P2Value)
			inst.P2Value = inst.P1Value
			inst.P1Value = nil
			inst.P1ValueBallot = 0
		}
	}

	inst.Status = StatusP2Pending
	c.nextAcceptIID++
	accept = AcceptReq{IID: iid, Ballot: inst.MyBallot, Value: inst.P2Value}
	accepted = true

	if c.metrics != nil {
		c.metrics.PipelineDepth.Set(float64(c.nextPrepareIID - c.nextAcceptIID))
	}

	prepare, err = c.Prepare()
	prepared = err == nil
	return accept, prepare, accepted, prepared, err
}

// ReceiveAcceptAck forwards the ack to the learner adapter, then drains
// every chosen outcome it now makes deliverable, retiring each
// corresponding slot (spec §4.3.5).
func (c *Core) ReceiveAcceptAck(ack AcceptAck) {
	inst := c.table.Lookup(ack.IID)
	if inst == nil || inst.Status != StatusP2Pending {
		c.dropStale("accept_ack", ack.IID)
		return
	}

	c.learner.ReceiveAccept(ack)
	for {
		iid, value, ok := c.learner.DeliverNext()
		if !ok {
			break
		}
		c.retire(iid, value)
	}
}

func (c *Core) retire(iid InstanceID, chosenValue Value) {
	inst := c.table.Lookup(iid)
	if inst == nil {
		return
	}

	oursWasChosen := false
	if inst.P2Value != nil {
		if inst.P2Value.Equal(chosenValue) {
			oursWasChosen = true
		} else {
			c.queue.PushBack(inst.P2Value)
			if c.metrics != nil {
				c.metrics.ValueConflicts.Inc()
			}
		}
	}

	c.table.Retire(iid)
	if c.metrics != nil {
		c.metrics.InstancesRetired.Inc()
	}
	if c.onChosen != nil {
		c.onChosen(iid, chosenValue, oursWasChosen)
	}
}

func (c *Core) dropStale(kind string, iid InstanceID) {
	if c.metrics != nil {
		c.metrics.StaleAcksDropped.Inc()
	}
	level.Debug(c.logger).Log("msg", "dropped stale ack", "kind", kind, "iid", iid)
}

// PreexecFill issues n Prepare calls, used once at startup to open the
// initial pre-execution window (spec §4.3.6).
func (c *Core) PreexecFill(n uint32) ([]PrepareReq, error) {
	reqs := make([]PrepareReq, 0, n)
	for i := uint32(0); i < n; i++ {
		req, err := c.Prepare()
		if err != nil {
			return reqs, err
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// PendingValues reports how many client values are still queued, for
// metrics and tests.
func (c *Core) PendingValues() int {
	return c.queue.Len()
}

// PreexecWindowSize reports the configured pipeline depth, so callers
// that only hold a *Core (e.g. internal/driver) can prime the pipeline
// without keeping their own copy of Limits.
func (c *Core) PreexecWindowSize() uint32 {
	return c.limits.PreexecWinSize
}

// Depth reports the current pipeline depth (next_prepare_iid -
// next_accept_iid), the quantity invariant 5 of spec §8 bounds below by
// PreexecWinSize while acks are flowing.
func (c *Core) Depth() uint64 {
	return uint64(c.nextPrepareIID) - uint64(c.nextAcceptIID)
}
