package paxos

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLearnerAdapterDeliversOnQuorum(t *testing.T) {
	l := NewLearnerAdapter(2)

	l.ReceiveAccept(AcceptAck{AcceptorID: 0, IID: 1, Ballot: 3, Value: Value("x")})
	_, _, ok := l.DeliverNext()
	assert.False(t, ok, "one ack below quorum must not deliver")

	l.ReceiveAccept(AcceptAck{AcceptorID: 1, IID: 1, Ballot: 3, Value: Value("x")})
	iid, value, ok := l.DeliverNext()
	assert.True(t, ok)
	assert.Equal(t, InstanceID(1), iid)
	assert.Equal(t, Value("x"), value)
}

func TestLearnerAdapterGapFillsInOrder(t *testing.T) {
	l := NewLearnerAdapter(2)

	// iid 2 reaches quorum before iid 1.
	l.ReceiveAccept(AcceptAck{AcceptorID: 0, IID: 2, Ballot: 1, Value: Value("b")})
	l.ReceiveAccept(AcceptAck{AcceptorID: 1, IID: 2, Ballot: 1, Value: Value("b")})

	_, _, ok := l.DeliverNext()
	assert.False(t, ok, "iid 2 must not deliver before iid 1 is chosen")

	l.ReceiveAccept(AcceptAck{AcceptorID: 0, IID: 1, Ballot: 1, Value: Value("a")})
	l.ReceiveAccept(AcceptAck{AcceptorID: 1, IID: 1, Ballot: 1, Value: Value("a")})

	iid, value, ok := l.DeliverNext()
	assert.True(t, ok)
	assert.Equal(t, InstanceID(1), iid)
	assert.Equal(t, Value("a"), value)

	iid, value, ok = l.DeliverNext()
	assert.True(t, ok)
	assert.Equal(t, InstanceID(2), iid)
	assert.Equal(t, Value("b"), value)
}

func TestLearnerAdapterDuplicateAcceptorReportIsNoop(t *testing.T) {
	l := NewLearnerAdapter(2)

	l.ReceiveAccept(AcceptAck{AcceptorID: 0, IID: 1, Ballot: 1, Value: Value("a")})
	l.ReceiveAccept(AcceptAck{AcceptorID: 0, IID: 1, Ballot: 1, Value: Value("a")})

	_, _, ok := l.DeliverNext()
	assert.False(t, ok, "the same acceptor reporting twice must not count twice toward quorum")
}
