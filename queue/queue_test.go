package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPriorityWeightOrdersVipFirst(t *testing.T) {
	require.Less(t, priorityWeight(PriorityVip), priorityWeight(PriorityHigh))
	require.Less(t, priorityWeight(PriorityHigh), priorityWeight(PriorityNormal))
}

func TestEstimateDefaultsWithNoHistory(t *testing.T) {
	m := &Manager{}
	require.Equal(t, defaultWaitEst, m.Estimate(100, 1))
}

func TestEstimateScalesWithPosition(t *testing.T) {
	m := &Manager{}
	// position 1-2 -> scale clamps to 1, position 10 -> scale 5
	require.Equal(t, defaultWaitEst, m.Estimate(100, 2))
	require.Equal(t, defaultWaitEst*5, m.Estimate(100, 10))
}

func TestRollingAverageEmptyWithoutCache(t *testing.T) {
	m := &Manager{}
	require.Equal(t, time.Duration(0), m.rollingAverage(100))
}
