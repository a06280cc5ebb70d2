package loan

import (
	"time"
)

// Status is the lifecycle state of a loan application.
type Status string

const (
	StatusPending           Status = "pending"
	StatusApproved          Status = "approved"
	StatusRejected          Status = "rejected"
	StatusRequiresDocuments Status = "requires_documents"
)

// Product bounds. Amounts are integer currency units.
const (
	MinAmount int64 = 50_000
	MaxAmount int64 = 5_000_000
)

// DefaultTenures is the offered tenure set when the customer's offer record
// does not override it.
var DefaultTenures = []int{36, 48, 60}

// Application is created when underwriting reaches a terminal decision and
// is immutable afterwards.
type Application struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"sessionId"`
	CustomerID      string    `json:"customerId"`
	RequestedAmount int64     `json:"requestedAmount"`
	TenureMonths    int       `json:"tenureMonths"`
	InterestRate    float64   `json:"interestRate"`
	EMI             int64     `json:"emi"`
	Status          Status    `json:"status"`
	RejectionReason string    `json:"rejectionReason,omitempty"`
	Conditions      []string  `json:"conditions,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	DecidedAt       time.Time `json:"decidedAt"`
}

// ValidateAmount enforces the product's amount range.
func ValidateAmount(amount int64) error {
	if amount < MinAmount || amount > MaxAmount {
		return ErrAmountOutOfBounds
	}
	return nil
}

// ValidateTenure checks the tenure against an offered set. An empty set
// means the default tenures apply.
func ValidateTenure(months int, offered []int) error {
	if len(offered) == 0 {
		offered = DefaultTenures
	}
	for _, t := range offered {
		if months == t {
			return nil
		}
	}
	return ErrTenureNotOffered
}
