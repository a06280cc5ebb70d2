// Package upstream wraps the three external data services the loan flow
// depends on: customer profile lookup (CRM), credit score lookup (bureau),
// and pre-approved offer lookup (offer mart). Each client carries its own
// timeout and the shared retry policy; handlers consume the narrow Source
// interfaces so fakes can be injected in place of live services.
package upstream

import "context"

// Profile is a customer record as served by the CRM. Read-only for us.
type Profile struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Email          string `json:"email,omitempty"`
	Address        string `json:"address,omitempty"`
	City           string `json:"city,omitempty"`
	MonthlySalary  int64  `json:"monthlySalary"`
	EmploymentType string `json:"employmentType,omitempty"`
}

// CreditReport is the bureau's answer for one customer.
type CreditReport struct {
	CustomerID string `json:"customerId"`
	Score      int    `json:"score"`
	Bureau     string `json:"bureau,omitempty"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
}

// Offer is a customer's pre-approved lending envelope.
type Offer struct {
	CustomerID       string  `json:"customerId"`
	PreApprovedLimit int64   `json:"preApprovedLimit"`
	InterestRate     float64 `json:"interestRate"`
	TenureOptions    []int   `json:"tenureOptions,omitempty"`
}

// CustomerSource looks up customer profiles.
type CustomerSource interface {
	CustomerByID(ctx context.Context, id string) (*Profile, error)
}

// CreditSource looks up credit scores.
type CreditSource interface {
	CreditScoreByID(ctx context.Context, id string) (*CreditReport, error)
}

// OfferSource looks up pre-approved offers. Implementations return the
// conservative default offer, not an error, when no record exists.
type OfferSource interface {
	OfferByID(ctx context.Context, id string) (*Offer, error)
}

// Conservative terms applied when a customer has no offer on file.
const (
	DefaultOfferLimit int64   = 100_000
	DefaultOfferRate  float64 = 18.0
)

// DefaultOffer returns the standard-terms offer used when the offer mart
// has no record for the customer.
func DefaultOffer(customerID string) *Offer {
	return &Offer{
		CustomerID:       customerID,
		PreApprovedLimit: DefaultOfferLimit,
		InterestRate:     DefaultOfferRate,
		TenureOptions:    []int{36, 48, 60},
	}
}

// IsDefaultOffer reports whether the offer carries the standard fallback
// terms rather than a personalized record.
func IsDefaultOffer(o *Offer) bool {
	return o != nil && o.PreApprovedLimit == DefaultOfferLimit && o.InterestRate == DefaultOfferRate
}
