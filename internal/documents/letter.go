package documents

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// newLetterNumber mints a sanction letter reference like SL/2026/0825A1B2C3.
func newLetterNumber(now time.Time) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("SL/%d/%s%s", now.Year(), now.Format("0102"), strings.ToUpper(hex[:6]))
}

// letterFilename derives the stored filename from the letter number, with a
// short random suffix so regenerated letters never collide on disk.
func letterFilename(letterNumber string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("sanction_letter_%s_%s.pdf", strings.ReplaceAll(letterNumber, "/", "_"), hex[:8])
}

// letterLines lays out the letter body. Letters print "Rs." rather than the
// rupee sign because the PDF uses the standard Helvetica encoding.
func letterLines(req LetterRequest, letterNumber string, issuedAt time.Time) []string {
	lines := []string{
		"PERSONAL LOAN SANCTION LETTER",
		"",
		"Reference Information",
		fmt.Sprintf("  Sanction Letter No: %s", letterNumber),
		fmt.Sprintf("  Date: %s", issuedAt.Format("02 January, 2006")),
		fmt.Sprintf("  Application ID: %s", req.ApplicationID),
		"",
		"Customer Information",
		fmt.Sprintf("  Name: %s", req.CustomerName),
	}
	if req.CustomerID != "" {
		lines = append(lines, fmt.Sprintf("  Customer ID: %s", req.CustomerID))
	}
	if req.City != "" {
		lines = append(lines, fmt.Sprintf("  City: %s", req.City))
	}
	if req.Phone != "" {
		lines = append(lines, fmt.Sprintf("  Phone: %s", req.Phone))
	}

	lines = append(lines,
		"",
		"Loan Sanction Details",
		fmt.Sprintf("  SANCTIONED AMOUNT: %s", rupees(req.Amount)),
		fmt.Sprintf("  Interest Rate: %s per annum", ratePct(req.InterestRate)),
		fmt.Sprintf("  Loan Tenure: %d months", req.TenureMonths),
		fmt.Sprintf("  Monthly EMI: %s", rupees(req.EMI)),
	)
	if req.ProcessingFee > 0 {
		lines = append(lines, fmt.Sprintf("  Processing Fee: %s", rupees(req.ProcessingFee)))
	}
	if req.EMI > 0 && req.TenureMonths > 0 {
		lines = append(lines, fmt.Sprintf("  Total Amount Payable: %s", rupees(req.EMI*int64(req.TenureMonths))))
	}

	lines = append(lines,
		"",
		fmt.Sprintf("Dear %s,", req.CustomerName),
		"",
		"Congratulations! We are delighted to inform you that your Personal",
		"Loan application has been APPROVED.",
		"",
		"Your loan will be processed and disbursed upon completion of",
		"documentation and verification formalities. Our relationship manager",
		"will contact you within 2 business days to guide you through the",
		"next steps.",
		"",
		"NEXT STEPS:",
		"- Complete KYC documentation",
		"- Submit income and address proof",
		"- Sign loan agreement",
		"- Provide bank account details for disbursement",
		"",
		"Important Terms & Conditions",
		"1. This sanction is valid for 30 days from the date of this letter.",
		"2. Disbursement is subject to satisfactory documentation and verification.",
		"3. EMI will be auto-debited from your registered bank account monthly.",
		"4. Prepayment is allowed with applicable charges as per loan agreement.",
	)
	term := 5
	for _, c := range req.Conditions {
		if c == "salary_document_verified" {
			lines = append(lines, fmt.Sprintf("%d. This approval relied on the salary document submitted with the", term),
				"   application; the figures stated there form part of the agreement.")
			term++
		}
	}

	lines = append(lines,
		"",
		"Warm Regards,",
		"Loan Processing Team",
	)
	return lines
}

func rupees(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	s := strconv.FormatInt(amount, 10)
	if len(s) > 3 {
		var b strings.Builder
		pre := len(s) % 3
		if pre > 0 {
			b.WriteString(s[:pre])
		}
		for i := pre; i < len(s); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(s[i : i+3])
		}
		s = b.String()
	}
	return "Rs. " + sign + s
}

func ratePct(rate float64) string {
	if rate == math.Trunc(rate) {
		return strconv.FormatFloat(rate, 'f', 1, 64) + "%"
	}
	return strconv.FormatFloat(rate, 'f', -1, 64) + "%"
}

// Page layout constants for the single-page letter.
const (
	pageWidth  = 612
	pageHeight = 792
	marginX    = 72
	topY       = 720
	leading    = 12
	maxLines   = (topY - marginX) / leading
)

// renderPDF emits a minimal single-page PDF around the letter text. The
// writer produces exactly the objects a one-page Helvetica text document
// needs; sanction letters are short and never paginate, so lines past the
// page bottom are dropped rather than flowed.
func renderPDF(lines []string) []byte {
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}

	var content bytes.Buffer
	content.WriteString("BT\n/F1 10 Tf\n")
	fmt.Fprintf(&content, "%d TL\n%d %d Td\n", leading, marginX, topY)
	for i, line := range lines {
		if i > 0 {
			content.WriteString("T*\n")
		}
		fmt.Fprintf(&content, "(%s) Tj\n", escapePDFText(line))
	}
	content.WriteString("ET\n")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, 0, 5)
	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	writeObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	writeObj("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	writeObj(fmt.Sprintf("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>\nendobj\n",
		pageWidth, pageHeight))
	writeObj(fmt.Sprintf("4 0 obj\n<< /Length %d >>\nstream\n%sendstream\nendobj\n",
		content.Len(), content.String()))
	writeObj("5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	xrefAt := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xrefAt)
	return buf.Bytes()
}

// escapePDFText escapes the three characters PDF string literals reserve and
// squashes anything outside the Helvetica base encoding.
func escapePDFText(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\', '(', ')':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			if r > 126 || r < 32 {
				b.WriteByte('?')
				continue
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}
