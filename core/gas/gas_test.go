package gas

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackerConsumeWithinLimit(t *testing.T) {
	tr := NewTracker(1000)
	require.NoError(t, tr.Consume(400, "db_write"))
	require.NoError(t, tr.Consume(400, "db_write"))
	require.Equal(t, uint64(800), tr.Used())
	require.Equal(t, uint64(200), tr.Remaining())
}

func TestTrackerOutOfGas(t *testing.T) {
	tr := NewTracker(100)
	err := tr.Consume(150, "secp256k1_verify")
	require.ErrorIs(t, err, ErrOutOfGas)
	require.Equal(t, uint64(100), tr.Used())
}

func TestTrackerChildAbsorb(t *testing.T) {
	parent := NewTracker(1000)
	require.NoError(t, parent.Consume(200, "setup"))

	child := parent.Child()
	require.Equal(t, uint64(800), child.Remaining())
	require.NoError(t, child.Consume(300, "nested query"))

	require.NoError(t, parent.Absorb(child))
	require.Equal(t, uint64(500), parent.Used())
}

func TestUnlimitedTracker(t *testing.T) {
	tr := NewUnlimitedTracker()
	require.NoError(t, tr.Consume(1<<62, "cron"))
	limit, unlimited := tr.Limit()
	require.True(t, unlimited)
	require.Zero(t, limit)
}

func TestDBCostSchedule(t *testing.T) {
	s := DefaultSchedule
	cost := s.DBWriteCost(10, 100)
	require.Equal(t, s.DBWriteBase+10+100, cost)
}
