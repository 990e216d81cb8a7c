package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordFireAccumulatesCounters(t *testing.T) {
	c := NewCollector(1)

	err := c.RecordFire(context.Background(), "r1", 10*time.Millisecond, true, nil)
	require.NoError(t, err)
	err = c.RecordFire(context.Background(), "r1", 20*time.Millisecond, false, func(context.Context) error {
		return errors.New("boom")
	})
	require.Error(t, err)

	m, ok := c.Snapshot("r1")
	require.True(t, ok)
	require.EqualValues(t, 2, m.Fires)
	require.EqualValues(t, 1, m.Successes)
	require.EqualValues(t, 1, m.Failures)
	require.Equal(t, 10*time.Millisecond, m.MinDuration)
	require.Equal(t, 20*time.Millisecond, m.MaxDuration)
}

func TestTrendUnknownBeforeEnoughSamples(t *testing.T) {
	c := NewCollector(1)
	require.Equal(t, TrendUnknown, c.TrendFor("nope"))

	c.RecordFire(context.Background(), "r1", time.Millisecond, true, nil)
	c.RecordFire(context.Background(), "r1", time.Millisecond, true, nil)
	require.Equal(t, TrendUnknown, c.TrendFor("r1"))
}

func TestTrendDetectsDegradingSequence(t *testing.T) {
	c := NewCollector(1)
	for i := 1; i <= 8; i++ {
		c.RecordFire(context.Background(), "slowing", time.Duration(i*10)*time.Millisecond, true, nil)
	}
	require.Equal(t, TrendDegrading, c.TrendFor("slowing"))
}

func TestSamplingRateOutOfRangeDefaultsToAlwaysSample(t *testing.T) {
	c := NewCollector(1)
	c.SamplingRate = 0 // spec §4.N: rate in (0,1]; 0 means "unset" here
	for i := 0; i < 5; i++ {
		require.NoError(t, c.RecordFire(context.Background(), "always", time.Millisecond, true, nil))
	}
	m, ok := c.Snapshot("always")
	require.True(t, ok)
	require.EqualValues(t, 5, m.Fires)
}
