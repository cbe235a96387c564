// Package paxos implements the proposer role of a pipelined multi-decree
// Paxos replication engine: the instance table, the value queue, the
// learner adapter, and the proposer core state machine that drives them.
package paxos

import "github.com/pkg/errors"

// InstanceID identifies a log slot. 0 means "empty / retired".
type InstanceID uint64

// Ballot is a per-proposer-unique round number. Ballot 0 means "none".
// Construction follows ballot = k*MaxProposers + proposerID for k >= 1,
// which is what keeps two proposers from ever picking the same ballot.
type Ballot uint64

// Value is an opaque, length-bounded byte string submitted by a client.
type Value []byte

// Equal does byte-wise comparison, the only equality Paxos values have.
func (v Value) Equal(other Value) bool {
	if len(v) != len(other) {
		return false
	}
	for i := range v {
		if v[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a defensive copy so callers can't mutate stored values
// through an aliased slice.
func (v Value) Clone() Value {
	if v == nil {
		return nil
	}
	out := make(Value, len(v))
	copy(out, v)
	return out
}

// Limits bundles the construction-time constants the proposer core needs.
// None of these are process-wide mutable state (per DESIGN NOTE §9 of the
// spec) — they're threaded in at construction.
type Limits struct {
	ProposerID        uint32 // this proposer's id, in [0, MaxProposers)
	MaxProposers      uint32
	NOfAcceptors      uint32
	Quorum            uint32 // floor(NOfAcceptors/2) + 1
	ProposerArraySize uint32 // instance table ring capacity
	PreexecWinSize    uint32 // pre-execution pipeline depth
	MaxValueSize      uint32 // PAXOS_MAX_VALUE_SIZE
}

// Validate enforces the invalid-proposer-id and degenerate-quorum error
// policies from spec §7: refuse to start rather than run with a broken
// configuration.
func (l Limits) Validate() error {
	if l.MaxProposers == 0 || l.ProposerID >= l.MaxProposers {
		return errors.Errorf("paxos: invalid proposer id %d (must be in [0, %d))", l.ProposerID, l.MaxProposers)
	}
	if l.NOfAcceptors == 0 {
		return errors.New("paxos: n_of_acceptors must be positive")
	}
	want := l.NOfAcceptors/2 + 1
	if l.Quorum != want {
		return errors.Errorf("paxos: quorum %d does not match floor(n/2)+1 = %d", l.Quorum, want)
	}
	if l.ProposerArraySize == 0 {
		return errors.New("paxos: proposer_array_size must be positive")
	}
	if l.PreexecWinSize == 0 {
		return errors.New("paxos: preexec_win_size must be positive")
	}
	return nil
}

// NextBallot implements spec §4.3.2's next_ballot(b): the first ballot a
// proposer ever uses for a slot is MaxProposers+ProposerID; every retry
// after that adds MaxProposers again. This is what guarantees ballot
// uniqueness across proposers and strict monotonicity across retries for
// the same slot (invariants 1 and 5 of §3).
func (l Limits) NextBallot(b Ballot) Ballot {
	if b == 0 {
		return Ballot(l.MaxProposers + l.ProposerID)
	}
	return b + Ballot(l.MaxProposers)
}

// ErrWindowExceeded is fatal per spec §7: prepare() tried to reuse a ring
// slot whose previous instance has not yet retired.
var ErrWindowExceeded = errors.New("paxos: instance table window exceeded")

// ErrOversizedValue is the admission-time rejection for values above
// PAXOS_MAX_VALUE_SIZE (spec §7).
var ErrOversizedValue = errors.New("paxos: value exceeds PAXOS_MAX_VALUE_SIZE")
