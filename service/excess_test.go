package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIncrementalExcess(t *testing.T) {
	tests := []struct {
		name          string
		prevTotal     int
		recordMinutes int
		threshold     int
		expected      int
	}{
		{
			name:          "first record crosses threshold",
			prevTotal:     0,
			recordMinutes: 600,
			threshold:     480,
			expected:      120,
		},
		{
			name:          "day already over threshold, full record is excess",
			prevTotal:     600,
			recordMinutes: 100,
			threshold:     480,
			expected:      100,
		},
		{
			name:          "under threshold yields nothing",
			prevTotal:     0,
			recordMinutes: 400,
			threshold:     480,
			expected:      0,
		},
		{
			name:          "record straddles the threshold",
			prevTotal:     400,
			recordMinutes: 100,
			threshold:     480,
			expected:      20,
		},
		{
			name:          "exactly at threshold before, full record is excess",
			prevTotal:     480,
			recordMinutes: 50,
			threshold:     480,
			expected:      50,
		},
		{
			name:          "record lands exactly on threshold",
			prevTotal:     400,
			recordMinutes: 80,
			threshold:     480,
			expected:      0,
		},
		{
			name:          "zero threshold makes every minute excess",
			prevTotal:     100,
			recordMinutes: 30,
			threshold:     0,
			expected:      30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IncrementalExcess(tt.prevTotal, tt.recordMinutes, tt.threshold))
		})
	}
}

// Splitting a day's work across two approvals must deduct the same total as
// one combined approval.
func TestIncrementalExcess_SplitEqualsCombined(t *testing.T) {
	threshold := 480

	combined := IncrementalExcess(0, 700, threshold)

	first := IncrementalExcess(0, 600, threshold)
	second := IncrementalExcess(600, 100, threshold)

	assert.Equal(t, combined, first+second)
	assert.Equal(t, 220, combined)
}
