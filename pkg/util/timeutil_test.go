package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSameDayIgnoresTimeOfDay(t *testing.T) {
	a := time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC)
	b := time.Date(2024, 5, 8, 23, 59, 0, 0, time.UTC)
	c := time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC)

	require.True(t, SameDay(a, b))
	require.False(t, SameDay(b, c))
}

func TestDayKey(t *testing.T) {
	require.Equal(t, "2024-05-08", DayKey(MidnightUTC(2024, time.May, 8)))
}
