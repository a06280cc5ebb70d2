package conversation

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Adithyanmurthy/Loan-Chatbot/internal/verify"
)

// Free-text extraction for the collection stage. Customers type details in
// prose at least as often as they use the form, so every field the form
// carries also has a text pattern. Parsers return zero values when nothing
// matches; they never guess.

var loanIntentKeywords = []string{
	"loan", "borrow", "credit", "finance", "emi", "apply",
}

// wantsLoan reports whether the message signals loan interest.
func wantsLoan(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range loanIntentKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)my name is\s+([a-zA-Z][a-zA-Z .']*?)(?:[,\n\d]|$)`),
	regexp.MustCompile(`(?i)\bname\s*[:\-]\s*([a-zA-Z][a-zA-Z .']*?)(?:[,\n\d]|$)`),
	regexp.MustCompile(`(?i)\bi am\s+([a-zA-Z][a-zA-Z .']*?)(?:[,\n\d]|$)`),
}

// parseName pulls a customer name out of prose. Stops at punctuation or a
// digit so "my name is Rajesh Kumar, I need 5 lakh" captures just the name.
func parseName(text string) string {
	for _, p := range namePatterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		return titleCase(name)
	}
	return ""
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

var phonePattern = regexp.MustCompile(`(\+?\d[\d\s\-]{8,}\d)`)

// parsePhone finds the first plausible Indian mobile number. The candidate
// must normalize to exactly ten digits or it is discarded.
func parsePhone(text string) string {
	for _, m := range phonePattern.FindAllString(text, -1) {
		n := verify.NormalizePhone(m)
		if len(n) == 10 {
			return n
		}
	}
	return ""
}

var customerIDPattern = regexp.MustCompile(`\b([A-Z]{2,6}\d{2,8})\b`)

// parseCustomerID matches identifiers like CUST001. IDs are uppercase
// letter-prefix plus digits; the input is not case-folded so ordinary prose
// does not false-positive.
func parseCustomerID(text string) string {
	return customerIDPattern.FindString(text)
}

var (
	currencyAmountPattern = regexp.MustCompile(`(?i)(?:₹|rs\.?)\s*([0-9][0-9,]*(?:\.[0-9]+)?)`)
	lakhAmountPattern     = regexp.MustCompile(`(?i)\b([0-9]+(?:\.[0-9]+)?)\s*(?:lakhs?|lacs?)\b`)
	thousandAmountPattern = regexp.MustCompile(`(?i)\b([0-9]+(?:\.[0-9]+)?)\s*k\b`)
	bareAmountPattern     = regexp.MustCompile(`(?i)(?:loan|amount|need|want)[^0-9₹]{0,20}([0-9][0-9,]*)`)
)

// parseAmount extracts a requested loan amount from prose. Currency-marked
// figures win over unit shorthand ("5 lakh", "750k"), which wins over a bare
// number near a loan keyword.
func parseAmount(text string) int64 {
	if m := currencyAmountPattern.FindStringSubmatch(text); m != nil {
		return parseAmountDigits(m[1], 1)
	}
	if m := lakhAmountPattern.FindStringSubmatch(text); m != nil {
		return parseAmountDigits(m[1], 100_000)
	}
	if m := thousandAmountPattern.FindStringSubmatch(text); m != nil {
		return parseAmountDigits(m[1], 1_000)
	}
	if m := bareAmountPattern.FindStringSubmatch(text); m != nil {
		return parseAmountDigits(m[1], 1)
	}
	return 0
}

func parseAmountDigits(s string, multiplier float64) int64 {
	cleaned := strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v <= 0 {
		return 0
	}
	return int64(math.Round(v * multiplier))
}

var (
	tenureMonthsPattern = regexp.MustCompile(`(?i)\b([0-9]{1,3})\s*months?\b`)
	tenureYearsPattern  = regexp.MustCompile(`(?i)\b([0-9]{1,2})\s*(?:years?|yrs?)\b`)
)

// parseTenure extracts a repayment tenure in months.
func parseTenure(text string) int {
	if m := tenureMonthsPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	if m := tenureYearsPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n * 12
	}
	return 0
}

var knownCities = []string{
	"bangalore", "bengaluru", "mumbai", "delhi", "chennai",
	"kolkata", "pune", "hyderabad", "kochi", "ahmedabad",
}

// parseCity spots a known metro in the message.
func parseCity(text string) string {
	lower := strings.ToLower(text)
	for _, city := range knownCities {
		if strings.Contains(lower, city) {
			return titleCase(city)
		}
	}
	return ""
}

var optionIndexPattern = regexp.MustCompile(`(?i)\boption\s*([1-9])\b`)

// parseOptionIndex reads an option choice out of prose ("I'll take option 2",
// "2"). Returns 0 when the message does not pick one.
func parseOptionIndex(text string, optionCount int) int {
	if m := optionIndexPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n >= 1 && n <= optionCount {
			return n
		}
	}
	trimmed := strings.TrimSpace(text)
	if n, err := strconv.Atoi(trimmed); err == nil && n >= 1 && n <= optionCount {
		return n
	}
	lower := strings.ToLower(text)
	words := map[string]int{"first": 1, "second": 2, "third": 3}
	for w, n := range words {
		if strings.Contains(lower, w) && n <= optionCount {
			return n
		}
	}
	return 0
}

// agreement words advance the flow when a bare confirmation arrives.
var agreementWords = []string{"yes", "okay", "ok", "sure", "agree", "proceed", "continue", "confirm"}

func isAgreement(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, w := range agreementWords {
		if lower == w || strings.HasPrefix(lower, w+" ") || strings.HasPrefix(lower, w+",") {
			return true
		}
	}
	return false
}
