package loan

import "math"

// EMI computes the fixed monthly installment for a reducing-balance loan:
//
//	emi = P * r * (1+r)^n / ((1+r)^n - 1)
//
// where r is the monthly rate (annualRate/12/100) and n the tenure in
// months. A zero rate degenerates to straight division. The result is
// rounded half-up to the nearest integer currency unit.
func EMI(principal int64, annualRate float64, tenureMonths int) (int64, error) {
	if principal <= 0 {
		return 0, ErrInvalidPrincipal
	}
	if tenureMonths <= 0 {
		return 0, ErrInvalidTenure
	}
	if annualRate < 0 {
		return 0, ErrInvalidRate
	}

	if annualRate == 0 {
		return roundHalfUp(float64(principal) / float64(tenureMonths)), nil
	}

	r := annualRate / 12 / 100
	pow := math.Pow(1+r, float64(tenureMonths))
	emi := float64(principal) * r * pow / (pow - 1)
	return roundHalfUp(emi), nil
}

// TotalPayable is the sum of all installments over the tenure.
func TotalPayable(principal int64, annualRate float64, tenureMonths int) (int64, error) {
	emi, err := EMI(principal, annualRate, tenureMonths)
	if err != nil {
		return 0, err
	}
	return emi * int64(tenureMonths), nil
}

// TotalInterest is the interest component of the total payable amount.
func TotalInterest(principal int64, annualRate float64, tenureMonths int) (int64, error) {
	total, err := TotalPayable(principal, annualRate, tenureMonths)
	if err != nil {
		return 0, err
	}
	return total - principal, nil
}

// roundHalfUp rounds to the nearest integer with halves going up. All loan
// figures are positive, so floor(x+0.5) is exact for the boundary case.
func roundHalfUp(x float64) int64 {
	return int64(math.Floor(x + 0.5))
}
