package paxos

// Table is the fixed-capacity ring buffer of Instance slots addressed by
// iid mod capacity (spec §3 "Instance table sizing", §9 "Fixed-size ring
// instance table"). Multi-Paxos instances retire roughly in log order, so
// a ring sized to the pipeline depth is sufficient; a slot whose previous
// occupant hasn't retired yet is a fatal configuration error rather than
// silently overwritten data.
type Table struct {
	slots []*Instance
}

// NewTable allocates a ring of the given capacity. Capacity must be >= 1;
// callers pass Limits.ProposerArraySize.
func NewTable(capacity uint32) *Table {
	return &Table{slots: make([]*Instance, capacity)}
}

func (t *Table) index(iid InstanceID) uint64 {
	return uint64(iid) % uint64(len(t.slots))
}

// Lookup returns the slot currently holding iid, or nil if the slot at
// iid's ring position holds a different (or no) instance — the "stale /
// unknown" case every ack handler must treat as a silent drop (spec §4.2,
// §4.3.3, §4.3.5).
func (t *Table) Lookup(iid InstanceID) *Instance {
	slot := t.slots[t.index(iid)]
	if slot == nil || slot.IID != iid {
		return nil
	}
	return slot
}

// Create installs a brand-new instance at iid's ring position. The caller
// (proposer.prepare, per spec §4.3.2) calls it after Lookup found no
// instance for iid; Create checks the slot itself and returns
// ErrWindowExceeded rather than silently clobbering an
// unretired instance, which is the explicit fix for the legacy code's
// "assert inst->iid == 0 on create" behavior (spec §9).
func (t *Table) Create(iid InstanceID, ballot Ballot) (*Instance, error) {
	idx := t.index(iid)
	if existing := t.slots[idx]; existing != nil && existing.IID != 0 && existing.IID != iid {
		return nil, ErrWindowExceeded
	}
	inst := newInstance(iid, ballot)
	t.slots[idx] = inst
	return inst, nil
}

// Retire resets the slot holding iid back to empty, freeing it for reuse
// by the pre-execution window (spec §4.3.5).
func (t *Table) Retire(iid InstanceID) {
	inst := t.Lookup(iid)
	if inst == nil {
		return
	}
	inst.retire()
}
