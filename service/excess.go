package service

import (
	"context"
	"fmt"
	"time"
)

// IncrementalExcess computes the marginal over-threshold minutes introduced
// by the latest change to a day's approved total. Deducting only the margin
// keeps repeated approvals for the same day from double-counting minutes
// already paid toward the threshold.
func IncrementalExcess(prevTotal, recordMinutes, thresholdMinutes int) int {
	newTotal := prevTotal + recordMinutes

	prevExcess := prevTotal - thresholdMinutes
	if prevExcess < 0 {
		prevExcess = 0
	}
	newExcess := newTotal - thresholdMinutes
	if newExcess < 0 {
		newExcess = 0
	}

	return newExcess - prevExcess
}

// computeIncrementalExcess sums the day's other approved minutes through the
// unit of work and applies the marginal-excess calculation. excludeRecordID
// removes a record from the previous total, used when its minutes changed.
func computeIncrementalExcess(ctx context.Context, uow UnitOfWork, userID int64, day time.Time, recordMinutes int, excludeRecordID *int64, thresholdMinutes int) (int, error) {
	prevTotal, err := uow.WorkRecordRepository().ApprovedMinutesForDay(ctx, userID, day, excludeRecordID)
	if err != nil {
		return 0, fmt.Errorf("failed to compute previous day total: %w", err)
	}

	return IncrementalExcess(prevTotal, recordMinutes, thresholdMinutes), nil
}
