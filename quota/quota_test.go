package quota_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundcheck-live/soundcheck/quota"
)

func open(t *testing.T, limit int) *quota.Ledger {
	t.Helper()
	ledger, err := quota.Open(t.TempDir(), limit, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })
	return ledger
}

func TestSpendUntilExhausted(t *testing.T) {
	ctx := context.Background()
	ledger := open(t, 3)

	for i := 0; i < 3; i++ {
		ok, err := ledger.Spend(ctx, "show-1", "session-a")
		require.NoError(t, err)
		assert.True(t, ok, "vote %d should be allowed", i+1)
	}

	ok, err := ledger.Spend(ctx, "show-1", "session-a")
	require.NoError(t, err)
	assert.False(t, ok, "fourth vote should be rejected")

	remaining, err := ledger.Remaining(ctx, "show-1", "session-a")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestQuotaIsPerShowAndPerSession(t *testing.T) {
	ctx := context.Background()
	ledger := open(t, 1)

	ok, err := ledger.Spend(ctx, "show-1", "session-a")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ledger.Spend(ctx, "show-1", "session-a")
	require.NoError(t, err)
	assert.False(t, ok, "same show, same session: exhausted")

	ok, err = ledger.Spend(ctx, "show-2", "session-a")
	require.NoError(t, err)
	assert.True(t, ok, "different show: fresh allowance")

	ok, err = ledger.Spend(ctx, "show-1", "session-b")
	require.NoError(t, err)
	assert.True(t, ok, "different session: fresh allowance")
}

func TestRejectedSpendConsumesNothing(t *testing.T) {
	ctx := context.Background()
	ledger := open(t, 1)

	_, err := ledger.Spend(ctx, "show-1", "session-a")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ok, err := ledger.Spend(ctx, "show-1", "session-a")
		require.NoError(t, err)
		require.False(t, ok)
	}

	remaining, err := ledger.Remaining(ctx, "show-1", "session-a")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining, "rejections must not drive the counter past the limit")
}

func TestEmptyIDsRejected(t *testing.T) {
	ctx := context.Background()
	ledger := open(t, 1)

	_, err := ledger.Spend(ctx, "", "session-a")
	assert.Error(t, err)
	_, err = ledger.Spend(ctx, "show-1", "")
	assert.Error(t, err)
}

func TestReopenKeepsCounters(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	ledger, err := quota.Open(dir, 1, time.Hour)
	require.NoError(t, err)
	ok, err := ledger.Spend(ctx, "show-1", "session-a")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, ledger.Close())

	ledger, err = quota.Open(dir, 1, time.Hour)
	require.NoError(t, err)
	defer ledger.Close()

	ok, err = ledger.Spend(ctx, "show-1", "session-a")
	require.NoError(t, err)
	assert.False(t, ok, "counter should survive a restart")
}
