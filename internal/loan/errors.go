package loan

import "errors"

var (
	// ErrInvalidPrincipal is returned for a non-positive loan amount.
	ErrInvalidPrincipal = errors.New("loan: principal must be positive")

	// ErrInvalidTenure is returned for a non-positive tenure.
	ErrInvalidTenure = errors.New("loan: tenure must be positive months")

	// ErrInvalidRate is returned for a negative interest rate.
	ErrInvalidRate = errors.New("loan: interest rate cannot be negative")

	// ErrAmountOutOfBounds is returned when a requested amount falls outside
	// the product's allowed range.
	ErrAmountOutOfBounds = errors.New("loan: requested amount out of bounds")

	// ErrTenureNotOffered is returned when a requested tenure is not in the
	// offered set.
	ErrTenureNotOffered = errors.New("loan: tenure not offered")

	// ErrApplicationNotFound is returned when an application is not found
	ErrApplicationNotFound = errors.New("loan: application not found")

	// ErrAlreadyDecided is returned when a terminal-status write targets an
	// application that already carries a terminal status.
	ErrAlreadyDecided = errors.New("loan: application already decided")
)
