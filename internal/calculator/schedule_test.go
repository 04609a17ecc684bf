package calculator

import (
	"testing"
	"time"

	"github.com/mmynk/ajo/internal/models"
)

func TestNextDebitDate(t *testing.T) {
	from := time.Date(2026, time.January, 31, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		cycleType models.CycleType
		want      time.Time
	}{
		{models.CycleDaily, time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC)},
		{models.CycleWeekly, time.Date(2026, time.February, 7, 9, 0, 0, 0, time.UTC)},
		// AddDate normalizes Feb 31 to Mar 3.
		{models.CycleMonthly, time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)},
		{"fortnightly", time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(string(tt.cycleType), func(t *testing.T) {
			got := NextDebitDate(from, tt.cycleType)
			if !got.Equal(tt.want) {
				t.Errorf("NextDebitDate(%s) = %v, want %v", tt.cycleType, got, tt.want)
			}
		})
	}
}
