// Package underwriting implements the deterministic approval rule matrix.
// It is pure: no I/O, no clock, no randomness. Callers fetch the figures
// (offer limit, credit score, salary, EMI) and the engine maps them to a
// decision outcome. Rules are evaluated in a fixed order and the first
// match wins.
package underwriting

import "errors"

// Rejection reason codes. These are stable identifiers persisted on loan
// applications and asserted by tests; change them only with a migration.
const (
	ReasonCreditScoreBelowThreshold    = "credit_score_below_threshold"
	ReasonEMIAffordabilityExceeded     = "emi_affordability_exceeded"
	ReasonAmountExceedsMaximumMultiple = "amount_exceeds_maximum_multiple"
)

const (
	// MinCreditScore is the floor below which every application is rejected.
	MinCreditScore = 700

	// MaxLimitMultiple caps the requested amount at a multiple of the
	// pre-approved limit. Requests above it are rejected outright.
	MaxLimitMultiple = 2
)

// ConditionSalaryVerified marks an approval that relied on salary evidence.
const ConditionSalaryVerified = "salary_document_verified"

// ErrIncompleteInput is returned when the requested amount falls in the
// conditional band but no salary/EMI figures were supplied. Callers are
// expected to collect a salary document before re-evaluating.
var ErrIncompleteInput = errors.New("underwriting: conditional band requires salary and emi figures")

// Input carries every figure the rule matrix can consume. Amounts are in
// integer currency units; MonthlySalary and EMI are per month.
type Input struct {
	RequestedAmount  int64
	PreApprovedLimit int64
	CreditScore      int
	MonthlySalary    int64
	EMI              int64
}

// Outcome is the engine's verdict. Reason is set only on rejections and
// holds one of the Reason* codes. Conditions lists evidence the approval
// depended on.
type Outcome struct {
	Approved   bool
	Reason     string
	Conditions []string
}

// WithinLimit reports whether the amount is covered by the pre-approved
// limit. The boundary is inclusive: requesting exactly the limit qualifies
// for instant approval.
func WithinLimit(amount, limit int64) bool {
	return amount <= limit
}

// ExceedsMaximumMultiple reports whether the amount is beyond any approvable
// range. The boundary is inclusive on the approvable side: exactly twice the
// limit is still eligible (with income proof).
func ExceedsMaximumMultiple(amount, limit int64) bool {
	return amount > MaxLimitMultiple*limit
}

// RequiresIncomeProof reports whether the amount falls in the conditional
// band (above the limit, at or below twice the limit), where approval
// depends on an affordability check against documented salary.
func RequiresIncomeProof(amount, limit int64) bool {
	return amount > limit && !ExceedsMaximumMultiple(amount, limit)
}

// Affordable applies the EMI burden rule: the installment may consume at
// most half the monthly salary, inclusive at exactly 50%. Integer arithmetic
// keeps the boundary exact.
func Affordable(emi, monthlySalary int64) bool {
	return 2*emi <= monthlySalary
}

// Evaluate runs the rule matrix in order:
//
//	1. credit score below the floor        -> reject
//	2. amount within the pre-approved limit -> approve
//	3. amount within twice the limit        -> approve iff EMI affordable
//	4. amount beyond twice the limit        -> reject
//
// Rule 3 needs MonthlySalary and EMI; when they are missing Evaluate
// returns ErrIncompleteInput so the caller can go collect evidence.
func Evaluate(in Input) (Outcome, error) {
	if in.CreditScore < MinCreditScore {
		return Outcome{Approved: false, Reason: ReasonCreditScoreBelowThreshold}, nil
	}

	if WithinLimit(in.RequestedAmount, in.PreApprovedLimit) {
		return Outcome{Approved: true}, nil
	}

	if RequiresIncomeProof(in.RequestedAmount, in.PreApprovedLimit) {
		if in.MonthlySalary <= 0 || in.EMI <= 0 {
			return Outcome{}, ErrIncompleteInput
		}
		if Affordable(in.EMI, in.MonthlySalary) {
			return Outcome{Approved: true, Conditions: []string{ConditionSalaryVerified}}, nil
		}
		return Outcome{Approved: false, Reason: ReasonEMIAffordabilityExceeded}, nil
	}

	return Outcome{Approved: false, Reason: ReasonAmountExceedsMaximumMultiple}, nil
}
