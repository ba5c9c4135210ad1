package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultPolicyDelaySchedule(t *testing.T) {
	require := require.New(t)

	expected := map[int]time.Duration{
		1: 30 * time.Second,
		2: 30 * time.Second,
		3: 30 * time.Second,
		4: 30 * time.Second,
		5: 120 * time.Second,
		6: 120 * time.Second,
		7: 600 * time.Second,
		8: 600 * time.Second,
	}

	for attempt, want := range expected {
		require.Equal(want, DefaultPolicy.Delay(attempt), "attempt %d", attempt)
	}
}

func TestDelayHasNoUpperBoundOnAttempts(t *testing.T) {
	require := require.New(t)

	require.Equal(600*time.Second, DefaultPolicy.Delay(1000))
}

func TestIsTransientError(t *testing.T) {
	require := require.New(t)

	require.False(IsTransientError(nil))
	require.True(IsTransientError(errors.New("connection refused")))
	require.True(IsTransientError(errors.New("read tcp: i/o timeout")))
	require.False(IsTransientError(errors.New("invalid local secret")))
}
