// Package verify implements identity matching between customer-claimed
// details and the CRM system of record. Matching is tolerant of formatting:
// phone numbers are normalized before exact comparison, names and addresses
// are compared by token overlap so word order does not matter.
package verify

import "strings"

// Similarity thresholds, as fractions of token overlap.
const (
	NameThreshold    = 0.7
	AddressThreshold = 0.8
)

// Field names reported on mismatch.
const (
	FieldName    = "name"
	FieldPhone   = "phone"
	FieldAddress = "address"
)

// Claim holds the details the customer stated during collection.
type Claim struct {
	Name    string
	Phone   string
	Address string
}

// Record holds the corresponding fields from the system of record.
type Record struct {
	Name    string
	Phone   string
	Address string
}

// Check compares claimed details against the record and returns the fields
// that failed, in a fixed order. Name and phone are always checked; the
// address is checked only when the customer actually claimed one.
func Check(claim Claim, record Record) []string {
	var mismatched []string
	if !NamesMatch(claim.Name, record.Name) {
		mismatched = append(mismatched, FieldName)
	}
	if !PhonesMatch(claim.Phone, record.Phone) {
		mismatched = append(mismatched, FieldPhone)
	}
	if claim.Address != "" && !AddressesMatch(claim.Address, record.Address) {
		mismatched = append(mismatched, FieldAddress)
	}
	return mismatched
}

// NormalizePhone strips everything but digits and removes the Indian country
// code or trunk prefix, leaving the 10-digit subscriber number when the
// input is well formed.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		return digits[2:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		return digits[1:]
	}
	return digits
}

// PhonesMatch reports whether two raw phone strings normalize to the same
// number. Empty inputs never match.
func PhonesMatch(a, b string) bool {
	na, nb := NormalizePhone(a), NormalizePhone(b)
	return na != "" && na == nb
}

// NamesMatch compares names by word overlap.
func NamesMatch(a, b string) bool {
	return jaccard(a, b) >= NameThreshold
}

// AddressesMatch compares addresses by token overlap, which tolerates minor
// reordering but not a different locality.
func AddressesMatch(a, b string) bool {
	return jaccard(a, b) >= AddressThreshold
}

// jaccard is token-set intersection over union, case-insensitive.
func jaccard(a, b string) float64 {
	ta := tokens(a)
	tb := tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

func tokens(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, f := range strings.Fields(strings.ToLower(s)) {
		out[f] = struct{}{}
	}
	return out
}
