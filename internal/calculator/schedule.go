package calculator

import (
	"time"

	"github.com/mmynk/ajo/internal/models"
)

// NextDebitDate returns the due date one schedule period after from.
// Unknown schedules fall back to monthly.
func NextDebitDate(from time.Time, cycleType models.CycleType) time.Time {
	switch cycleType {
	case models.CycleDaily:
		return from.AddDate(0, 0, 1)
	case models.CycleWeekly:
		return from.AddDate(0, 0, 7)
	default:
		return from.AddDate(0, 1, 0)
	}
}
