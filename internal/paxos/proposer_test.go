package paxos

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testLimits() Limits {
	return Limits{
		ProposerID:        0,
		MaxProposers:      1,
		NOfAcceptors:      3,
		Quorum:            2,
		ProposerArraySize: 8,
		PreexecWinSize:    2,
		MaxValueSize:      64,
	}
}

func newTestCore(t *testing.T, onChosen OnChosenFunc) *Core {
	t.Helper()
	c, err := NewCore(testLimits(), nil, nil, onChosen)
	require.NoError(t, err)
	return c
}

func TestCoreHappyPath(t *testing.T) {
	type outcome struct {
		iid   InstanceID
		value Value
		ours  bool
	}
	var chosen []outcome
	c := newTestCore(t, func(iid InstanceID, value Value, ours bool) {
		chosen = append(chosen, outcome{iid, value, ours})
	})

	require.NoError(t, c.Propose(Value("hello")))

	prep, err := c.Prepare()
	require.NoError(t, err)
	require.Equal(t, InstanceID(1), prep.IID)

	c.ReceivePrepareAck(PrepareAck{AcceptorID: 0, IID: prep.IID, Ballot: prep.Ballot})
	c.ReceivePrepareAck(PrepareAck{AcceptorID: 1, IID: prep.IID, Ballot: prep.Ballot})

	accept, nextPrep, accepted, prepared, err := c.Accept()
	require.NoError(t, err)
	require.True(t, accepted)
	require.True(t, prepared)
	require.Equal(t, InstanceID(1), accept.IID)
	require.Equal(t, Value("hello"), accept.Value)
	require.Equal(t, InstanceID(2), nextPrep.IID)

	c.ReceiveAcceptAck(AcceptAck{AcceptorID: 0, IID: accept.IID, Ballot: accept.Ballot, Value: accept.Value})
	c.ReceiveAcceptAck(AcceptAck{AcceptorID: 1, IID: accept.IID, Ballot: accept.Ballot, Value: accept.Value})

	require.Len(t, chosen, 1)
	require.Equal(t, InstanceID(1), chosen[0].iid)
	require.Equal(t, Value("hello"), chosen[0].value)
	require.True(t, chosen[0].ours)
}

func TestCoreLearnsPriorValueDuringPhase1(t *testing.T) {
	c := newTestCore(t, nil)
	require.NoError(t, c.Propose(Value("ours")))

	prep, err := c.Prepare()
	require.NoError(t, err)

	// Two acceptors report an earlier ballot already accepted "prior" for
	// this slot; our promise-merge rule must adopt it.
	c.ReceivePrepareAck(PrepareAck{AcceptorID: 0, IID: prep.IID, Ballot: prep.Ballot, ValueBallot: 1, Value: Value("prior")})
	c.ReceivePrepareAck(PrepareAck{AcceptorID: 1, IID: prep.IID, Ballot: prep.Ballot, ValueBallot: 1, Value: Value("prior")})

	accept, _, accepted, _, err := c.Accept()
	require.NoError(t, err)
	require.True(t, accepted)
	require.Equal(t, Value("prior"), accept.Value, "must propose the learned value, not our queued one")
	require.Equal(t, 1, c.PendingValues(), "our value must remain queued for a future slot")
}

func TestCoreReenqueuesOnLostValueConflict(t *testing.T) {
	type outcome struct {
		value Value
		ours  bool
	}
	var chosen []outcome
	c := newTestCore(t, func(iid InstanceID, value Value, ours bool) {
		chosen = append(chosen, outcome{value, ours})
	})
	require.NoError(t, c.Propose(Value("ours")))

	prep, err := c.Prepare()
	require.NoError(t, err)
	c.ReceivePrepareAck(PrepareAck{AcceptorID: 0, IID: prep.IID, Ballot: prep.Ballot})
	c.ReceivePrepareAck(PrepareAck{AcceptorID: 1, IID: prep.IID, Ballot: prep.Ballot})

	accept, _, accepted, _, err := c.Accept()
	require.NoError(t, err)
	require.True(t, accepted)
	require.Equal(t, Value("ours"), accept.Value)
	require.Equal(t, 0, c.PendingValues())

	// A competing proposer's value reaches quorum instead of ours.
	c.ReceiveAcceptAck(AcceptAck{AcceptorID: 0, IID: accept.IID, Ballot: accept.Ballot + 1, Value: Value("theirs")})
	c.ReceiveAcceptAck(AcceptAck{AcceptorID: 1, IID: accept.IID, Ballot: accept.Ballot + 1, Value: Value("theirs")})

	require.Len(t, chosen, 1)
	require.Equal(t, Value("theirs"), chosen[0].value)
	require.False(t, chosen[0].ours)
	require.Equal(t, 1, c.PendingValues(), "our lost value must be re-enqueued for retry")
}

func TestCoreDuplicatePromiseIsNotDoubleCounted(t *testing.T) {
	c := newTestCore(t, nil)
	require.NoError(t, c.Propose(Value("v")))
	prep, err := c.Prepare()
	require.NoError(t, err)

	c.ReceivePrepareAck(PrepareAck{AcceptorID: 0, IID: prep.IID, Ballot: prep.Ballot})
	c.ReceivePrepareAck(PrepareAck{AcceptorID: 0, IID: prep.IID, Ballot: prep.Ballot})

	inst := c.table.Lookup(prep.IID)
	require.Equal(t, uint32(1), inst.PromisesCount, "a repeated promise from the same acceptor must not advance the count")
	require.Equal(t, StatusP1Pending, inst.Status, "quorum of 2 distinct acceptors must still be unmet")
}

func TestCoreDropsStaleAcceptAckForUnknownInstance(t *testing.T) {
	c := newTestCore(t, nil)
	// No Prepare() has ever been called for iid 99; this must be a no-op,
	// not a panic.
	c.ReceiveAcceptAck(AcceptAck{AcceptorID: 0, IID: 99, Ballot: 1, Value: Value("x")})
}

func TestCorePrepareReturnsWindowExceededWhenRingIsFull(t *testing.T) {
	limits := testLimits()
	limits.ProposerArraySize = 1
	c, err := NewCore(limits, nil, nil, nil)
	require.NoError(t, err)

	_, err = c.Prepare()
	require.NoError(t, err)

	_, err = c.Prepare()
	require.ErrorIs(t, err, ErrWindowExceeded)
}

func TestCorePropseRejectsOversizedValue(t *testing.T) {
	c := newTestCore(t, nil)
	big := make([]byte, testLimits().MaxValueSize+1)
	err := c.Propose(big)
	require.ErrorIs(t, err, ErrOversizedValue)
}
