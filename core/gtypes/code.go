package gtypes

// CodeStatus models the lifecycle of an uploaded WASM blob (§3 Invariants).
type CodeStatus struct {
	// Exactly one of the two is meaningful, selected by InUse.
	InUse   bool
	Usage   uint32    // valid when InUse
	Orphan  bool      // valid when !InUse
	Since   Timestamp // valid when Orphan
}

func InUseStatus(usage uint32) CodeStatus {
	return CodeStatus{InUse: true, Usage: usage}
}

func OrphanedStatus(since Timestamp) CodeStatus {
	return CodeStatus{InUse: false, Orphan: true, Since: since}
}

// Code is a compiled WASM bytecode blob plus its lifecycle status, keyed by
// hash(bytecode) (§3).
type Code struct {
	Hash     Hash
	Bytecode []byte
	Status   CodeStatus
}

// IncrementUsage moves Orphaned->InUse{1} or bumps an existing InUse count.
func (c *Code) IncrementUsage() {
	if c.Status.InUse {
		c.Status.Usage++
		return
	}
	c.Status = InUseStatus(1)
}

// DecrementUsage bumps usage down by one; at zero it becomes Orphaned.
func (c *Code) DecrementUsage(now Timestamp) {
	if !c.Status.InUse {
		return
	}
	if c.Status.Usage <= 1 {
		c.Status = OrphanedStatus(now)
		return
	}
	c.Status.Usage--
}

// IsOrphanExpired reports whether this code's orphan age exceeds maxAge as of
// now (§4.4 step 6).
func (c *Code) IsOrphanExpired(now Timestamp, maxAge Duration) bool {
	if c.Status.InUse || !c.Status.Orphan {
		return false
	}
	return uint64(now) > uint64(c.Status.Since)+uint64(maxAge)
}
