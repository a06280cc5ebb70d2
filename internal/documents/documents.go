// Package documents produces and serves sanction letter artifacts for
// approved loan applications. Generation is idempotent per application:
// re-issuing for the same application returns the stored artifact instead
// of minting a new one. Content is kept in the artifact store and mirrored
// to S3 when an archive bucket is configured.
package documents

import (
	"errors"
	"time"
)

// Artifact describes one generated sanction letter.
type Artifact struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"applicationId"`
	LetterNumber  string    `json:"letterNumber"`
	Filename      string    `json:"filename"`
	ContentType   string    `json:"contentType"`
	Size          int64     `json:"size"`
	DownloadURL   string    `json:"downloadUrl"`
	GeneratedAt   time.Time `json:"generatedAt"`
	Downloads     int64     `json:"downloads"`
}

// LetterRequest carries everything the letter prints. Optional fields render
// only when present, the way a real letter omits unknown customer details.
type LetterRequest struct {
	ApplicationID string
	SessionID     string
	CustomerID    string
	CustomerName  string
	City          string
	Phone         string
	Amount        int64
	TenureMonths  int
	InterestRate  float64
	EMI           int64
	ProcessingFee int64
	Conditions    []string
}

var (
	// ErrArtifactNotFound is returned for unknown artifact IDs.
	ErrArtifactNotFound = errors.New("documents: artifact not found")

	// ErrGenerationFailed is returned after the letter could not be produced
	// within the retry budget. The customer-facing reply suggests retrying.
	ErrGenerationFailed = errors.New("documents: generation_failed")

	// ErrInvalidRequest is returned when the letter request is missing
	// required figures. Never retried.
	ErrInvalidRequest = errors.New("documents: invalid letter request")
)
