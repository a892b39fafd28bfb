package subscription

import (
	"math"
	"time"
)

// prorationWindowDays is the reference window a plan price is spread over.
const prorationWindowDays = 30.0

// ComputeProration returns the monetary delta, in minor currency units, owed
// (positive) or credited (negative) when the recurring amount changes
// mid-cycle. The result is informational: it is returned to the caller for a
// follow-up billing action, never auto-charged or auto-refunded.
//
// daysRemaining is intentionally not floored at zero: an already-overdue
// subscription yields a negative remaining window and inverts the sign.
func ComputeProration(oldAmount, newAmount int64, renewalDate, now time.Time) int64 {
	daysRemaining := renewalDate.Sub(now).Hours() / 24
	proration := float64(newAmount-oldAmount) * (daysRemaining / prorationWindowDays)
	return int64(math.Round(proration))
}
