package keys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateStaysInBounds(t *testing.T) {
	for i := 0; i < 200; i++ {
		key, err := Candidate()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(key), 4)
		assert.LessOrEqual(t, len(key), 8)

		n, err := Decode(key)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(MinKeyValue))
		assert.LessOrEqual(t, n, int64(MaxKeyValue))
	}
}

func TestUniqueSkipsTakenAndReserved(t *testing.T) {
	ctx := context.Background()

	// Reject the first three candidates so the retry loop has to work.
	rejected := 0
	taken := func(_ context.Context, key string) (bool, error) {
		if rejected < 3 {
			rejected++
			return true, nil
		}
		return false, nil
	}

	seenReserved := make(map[string]bool)
	reserved := func(key string) bool {
		// Treat the first candidate as reserved exactly once.
		if len(seenReserved) == 0 {
			seenReserved[key] = true
			return true
		}
		return seenReserved[key]
	}

	key, err := Unique(ctx, taken, reserved)
	require.NoError(t, err)
	assert.Equal(t, 3, rejected)
	assert.False(t, seenReserved[key])
	assert.GreaterOrEqual(t, len(key), 4)
	assert.LessOrEqual(t, len(key), 8)
}

func TestUniqueHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	everythingTaken := func(context.Context, string) (bool, error) { return true, nil }
	_, err := Unique(ctx, everythingTaken, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
