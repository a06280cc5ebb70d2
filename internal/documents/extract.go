package documents

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Plausibility bounds for extracted monthly income, tuned for the product's
// market. Figures outside are treated as extraction failures rather than fed
// into underwriting.
const (
	minPlausibleIncome = 5_000
	maxPlausibleIncome = 2_000_000
)

var (
	// ErrNoSalaryFound means no recognizable salary figure was present.
	ErrNoSalaryFound = errors.New("documents: no salary figure found")

	// ErrImplausibleSalary means a figure was found but fails sanity checks.
	ErrImplausibleSalary = errors.New("documents: salary figure out of plausible range")
)

// Extraction holds the salary figures recognized in a document.
type Extraction struct {
	BasicSalary int64
	GrossSalary int64
	NetSalary   int64

	// MonthlyIncome is the underwriting figure: the net salary when stated,
	// otherwise 80% of gross to approximate deductions.
	MonthlyIncome int64
}

// Patterns are tried in order per field; the first match wins. Salary slips
// vary wildly in labels, so each field carries its common synonyms.
var (
	netPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)net\s*salary\s*[:\-]?\s*(?:rs\.?|₹)?\s*([0-9,]+(?:\.[0-9]{2})?)`),
		regexp.MustCompile(`(?i)net\s*pay\s*[:\-]?\s*(?:rs\.?|₹)?\s*([0-9,]+(?:\.[0-9]{2})?)`),
		regexp.MustCompile(`(?i)take\s*home\s*[:\-]?\s*(?:rs\.?|₹)?\s*([0-9,]+(?:\.[0-9]{2})?)`),
	}
	grossPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)gross\s*salary\s*[:\-]?\s*(?:rs\.?|₹)?\s*([0-9,]+(?:\.[0-9]{2})?)`),
		regexp.MustCompile(`(?i)gross\s*pay\s*[:\-]?\s*(?:rs\.?|₹)?\s*([0-9,]+(?:\.[0-9]{2})?)`),
		regexp.MustCompile(`(?i)total\s*gross\s*[:\-]?\s*(?:rs\.?|₹)?\s*([0-9,]+(?:\.[0-9]{2})?)`),
	}
	basicPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)basic\s*salary\s*[:\-]?\s*(?:rs\.?|₹)?\s*([0-9,]+(?:\.[0-9]{2})?)`),
		regexp.MustCompile(`(?i)basic\s*pay\s*[:\-]?\s*(?:rs\.?|₹)?\s*([0-9,]+(?:\.[0-9]{2})?)`),
	}
)

// ExtractSalary scans document text for salary figures and derives the
// monthly income underwriting needs.
func ExtractSalary(text string) (Extraction, error) {
	var out Extraction
	out.NetSalary = firstAmount(text, netPatterns)
	out.GrossSalary = firstAmount(text, grossPatterns)
	out.BasicSalary = firstAmount(text, basicPatterns)

	switch {
	case out.NetSalary > 0:
		out.MonthlyIncome = out.NetSalary
	case out.GrossSalary > 0:
		out.MonthlyIncome = int64(math.Round(float64(out.GrossSalary) * 0.8))
	default:
		return Extraction{}, ErrNoSalaryFound
	}

	if out.GrossSalary > 0 && out.NetSalary > out.GrossSalary {
		return Extraction{}, ErrImplausibleSalary
	}
	if out.MonthlyIncome < minPlausibleIncome || out.MonthlyIncome > maxPlausibleIncome {
		return Extraction{}, ErrImplausibleSalary
	}
	return out, nil
}

// TextFromUpload pulls the printable text out of an uploaded document. Real
// OCR is out of scope; text-based PDFs and plain-text slips carry their
// figures directly, which is all the extraction patterns need. Binary
// uploads that yield no readable text fail extraction and prompt the
// customer for a clearer copy.
func TextFromUpload(data []byte) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || unicode.IsPrint(r) {
			return r
		}
		return ' '
	}, string(data))
}

func firstAmount(text string, patterns []*regexp.Regexp) int64 {
	for _, p := range patterns {
		m := p.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		if v := parseCurrency(m[1]); v > 0 {
			return v
		}
	}
	return 0
}

func parseCurrency(raw string) int64 {
	clean := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if clean == "" {
		return 0
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil || f <= 0 {
		return 0
	}
	return int64(math.Round(f))
}
