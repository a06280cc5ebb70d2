package loan

import (
	"math"
	"sort"
)

// rateBand is an annual-rate range applied to a credit score band.
type rateBand struct {
	minScore int
	low      float64
	high     float64
}

// Bands are checked top-down; the first band whose floor the score clears
// applies. Sub-700 scores never reach pricing in the happy path (the rule
// matrix rejects first) but the band keeps pricing total.
var rateBands = []rateBand{
	{minScore: 800, low: 10.5, high: 12.0},
	{minScore: 750, low: 12.0, high: 14.5},
	{minScore: 700, low: 14.5, high: 17.0},
	{minScore: 0, low: 17.0, high: 20.0},
}

// RateFor prices an annual interest rate from the credit score band, skewed
// within the band by how far the requested amount stretches the pre-approved
// limit. Larger multiples price toward the top of the band.
func RateFor(creditScore int, amount, preApprovedLimit int64) float64 {
	band := rateBands[len(rateBands)-1]
	for _, b := range rateBands {
		if creditScore >= b.minScore {
			band = b
			break
		}
	}

	if preApprovedLimit <= 0 {
		return round2(band.high)
	}

	span := band.high - band.low
	ratio := float64(amount) / float64(preApprovedLimit)
	switch {
	case ratio <= 0.5:
		return round2(band.low)
	case ratio <= 1.0:
		return round2(band.low + 0.3*span)
	case ratio <= 2.0:
		return round2(band.low + 0.7*span)
	default:
		return round2(band.high)
	}
}

// Processing fee schedule: promotional 1% on small tickets, premium 1.5%
// for high-score large tickets, 2% otherwise. Fees cap at 50,000.
const (
	feeCap            int64 = 50_000
	promotionalCutoff int64 = 100_000
	premiumAmountMin  int64 = 500_000
	premiumScoreMin         = 800
)

// ProcessingFee computes the one-time fee for an application, rounded
// half-up and capped.
func ProcessingFee(amount int64, creditScore int) int64 {
	rate := 0.02
	switch {
	case amount <= promotionalCutoff:
		rate = 0.01
	case creditScore >= premiumScoreMin && amount >= premiumAmountMin:
		rate = 0.015
	}

	fee := roundHalfUp(float64(amount) * rate)
	if fee > feeCap {
		fee = feeCap
	}
	return fee
}

// Option is one concrete loan offer presented during sales negotiation.
type Option struct {
	Amount        int64   `json:"amount"`
	TenureMonths  int     `json:"tenureMonths"`
	AnnualRate    float64 `json:"annualRate"`
	EMI           int64   `json:"emi"`
	TotalPayable  int64   `json:"totalPayable"`
	ProcessingFee int64   `json:"processingFee"`
	Recommended   bool    `json:"recommended"`
}

// BuildOptions prices up to three options for the requested amount across
// the offered tenures at the quoted annual rate, sorted by ascending tenure.
// The first option is marked recommended: it has the lowest tenure and
// therefore the lowest total interest among equals. The quoted rate comes
// from the caller because the bureau score is not known at negotiation
// time; final pricing is re-derived through RateFor once it is.
func BuildOptions(amount int64, annualRate float64, tenures []int) ([]Option, error) {
	if amount <= 0 {
		return nil, ErrInvalidPrincipal
	}

	if len(tenures) == 0 {
		tenures = DefaultTenures
	}
	months := make([]int, 0, len(tenures))
	seen := make(map[int]struct{}, len(tenures))
	for _, t := range tenures {
		if t <= 0 {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		months = append(months, t)
	}
	if len(months) == 0 {
		return nil, ErrInvalidTenure
	}
	sort.Ints(months)
	if len(months) > 3 {
		months = months[:3]
	}

	fee := ProcessingFee(amount, 0)

	options := make([]Option, 0, len(months))
	for _, n := range months {
		emi, err := EMI(amount, annualRate, n)
		if err != nil {
			return nil, err
		}
		options = append(options, Option{
			Amount:        amount,
			TenureMonths:  n,
			AnnualRate:    annualRate,
			EMI:           emi,
			TotalPayable:  emi * int64(n),
			ProcessingFee: fee,
		})
	}
	options[0].Recommended = true
	return options, nil
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
