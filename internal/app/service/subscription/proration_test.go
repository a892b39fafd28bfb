package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestComputeProration(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		oldAmount int64
		newAmount int64
		renewal   time.Time
		want      int64
	}{
		{
			name:      "upgrade mid cycle",
			oldAmount: 2499,
			newAmount: 29999,
			renewal:   now.Add(15 * 24 * time.Hour),
			want:      13750,
		},
		{
			name:      "downgrade credits the user",
			oldAmount: 29999,
			newAmount: 2499,
			renewal:   now.Add(15 * 24 * time.Hour),
			want:      -13750,
		},
		{
			name:      "no amount change",
			oldAmount: 2499,
			newAmount: 2499,
			renewal:   now.Add(10 * 24 * time.Hour),
			want:      0,
		},
		{
			name:      "renewal due now",
			oldAmount: 2499,
			newAmount: 29999,
			renewal:   now,
			want:      0,
		},
		{
			name:      "overdue renewal inverts the sign",
			oldAmount: 2499,
			newAmount: 29999,
			renewal:   now.Add(-3 * 24 * time.Hour),
			want:      -2750,
		},
		{
			name:      "full window ahead charges the whole delta",
			oldAmount: 1000,
			newAmount: 2000,
			renewal:   now.Add(30 * 24 * time.Hour),
			want:      1000,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeProration(tc.oldAmount, tc.newAmount, tc.renewal, now)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestComputeProration_RoundsHalfDays(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	renewal := now.Add(15*24*time.Hour + 12*time.Hour)

	// 1000 * (15.5 / 30) = 516.66..., rounded to 517.
	got := ComputeProration(0, 1000, renewal, now)
	require.Equal(t, int64(517), got)
}
