package paxos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableCreateAndLookup(t *testing.T) {
	tbl := NewTable(4)

	inst, err := tbl.Create(1, 7)
	require.NoError(t, err)
	assert.Equal(t, InstanceID(1), inst.IID)
	assert.Equal(t, Ballot(7), inst.MyBallot)

	assert.Same(t, inst, tbl.Lookup(1))
	assert.Nil(t, tbl.Lookup(2), "empty slot must report nil")
}

func TestTableRetireFreesSlotForReuse(t *testing.T) {
	tbl := NewTable(2)

	_, err := tbl.Create(1, 1)
	require.NoError(t, err)

	_, err = tbl.Create(3, 1)
	assert.ErrorIs(t, err, ErrWindowExceeded, "iid 3 collides with unretired iid 1 at slot 1")

	tbl.Retire(1)

	inst, err := tbl.Create(3, 1)
	require.NoError(t, err)
	assert.Equal(t, InstanceID(3), inst.IID)
}

func TestTableLookupAfterRetireIsNil(t *testing.T) {
	tbl := NewTable(4)
	_, err := tbl.Create(1, 1)
	require.NoError(t, err)

	tbl.Retire(1)

	assert.Nil(t, tbl.Lookup(1))
}
