// Package gas implements the gas metering model of §4.3: a shared tracker
// consumed by every host function, cryptographic primitive, and storage
// operation, plus the fixed cost schedule.
package gas

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrOutOfGas is raised when a Consume call would exceed the tracker's
// limit, or when the running total overflows uint64 (§4.3).
var ErrOutOfGas = errors.New("out of gas")

// Tracker holds { limit: Option<u64>, used: u64 } behind interior
// mutability. The block pipeline is single-threaded (§5, §9 Design Notes),
// so a mutex is unnecessary — a bare pointer receiver is sufficient, unlike
// the teacher's GasMeter which guards with an explicit lock for a
// multi-goroutine VM pool.
type Tracker struct {
	limit    uint64
	unlimited bool
	used     uint64
}

// NewTracker creates a tracker bounded by limit.
func NewTracker(limit uint64) *Tracker {
	return &Tracker{limit: limit}
}

// NewUnlimitedTracker creates a tracker with no limit, used for genesis
// messages (§4.4 step 2) and ABCI queries. Cronjobs run under a bounded
// tracker instead (core/app's defaultCronGasLimit).
func NewUnlimitedTracker() *Tracker {
	return &Tracker{unlimited: true}
}

// Consume deducts cost from the budget, returning ErrOutOfGas if doing so
// would exceed the limit or overflow.
func (t *Tracker) Consume(cost uint64, reason string) error {
	newUsed := t.used + cost
	if newUsed < t.used { // overflow
		return fmt.Errorf("%w: %s (overflow)", ErrOutOfGas, reason)
	}
	if !t.unlimited && newUsed > t.limit {
		t.used = t.limit
		return fmt.Errorf("%w: %s (used %d, limit %d)", ErrOutOfGas, reason, newUsed, t.limit)
	}
	t.used = newUsed
	return nil
}

// Used returns the cumulative gas consumed so far.
func (t *Tracker) Used() uint64 { return t.used }

// Limit returns the tracker's limit and whether it is unlimited.
func (t *Tracker) Limit() (limit uint64, unlimited bool) { return t.limit, t.unlimited }

// Remaining returns the gas left before the tracker traps, or a large
// sentinel if unlimited.
func (t *Tracker) Remaining() uint64 {
	if t.unlimited {
		return ^uint64(0)
	}
	if t.used >= t.limit {
		return 0
	}
	return t.limit - t.used
}

// Child returns a fresh Tracker that shares this tracker's remaining budget:
// used := 0 against a limit equal to Remaining(). It is used to hand a
// gas-scoped QueryProvider to a nested instance (§4.3 "A QueryProvider
// holding a clone of the gas tracker is injected into every instance"). Gas
// consumed by the child must be folded back with Absorb after the nested
// call returns.
func (t *Tracker) Child() *Tracker {
	if t.unlimited {
		return NewUnlimitedTracker()
	}
	return NewTracker(t.Remaining())
}

// Absorb folds a child tracker's usage back into the parent so nested
// queries cannot escape the parent's budget.
func (t *Tracker) Absorb(child *Tracker) error {
	if child.unlimited {
		return nil
	}
	return t.Consume(child.used, "nested call")
}

// WarnOnUnknownCost logs (rather than panics) when a cost-table lookup
// misses, mirroring the teacher's core/gas_table.go GasCost fallback
// behavior, generalized from per-opcode to per-primitive lookups.
func WarnOnUnknownCost(log *logrus.Logger, key string, fallback uint64) uint64 {
	if log != nil {
		log.WithField("key", key).Warnf("gas: no cost registered, using default %d", fallback)
	}
	return fallback
}
