package models

// AllocationResult summarizes one pass of excess minutes applied against a
// user's active debts.
type AllocationResult struct {
	IncrementalExcess int
	MinutesApplied    int
	DebtsTouched      int
	DebtsSettled      int
	// LeftoverMinutes is excess that found no eligible debt. Not an error;
	// it is simply not owed to anyone.
	LeftoverMinutes int
}

// RollbackResult summarizes the effect of reversing one work record.
type RollbackResult struct {
	DeductionsReversed int
	MinutesRestored    int
	DebtsTouched       int
}
