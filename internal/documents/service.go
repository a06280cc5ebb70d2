package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Adithyanmurthy/Loan-Chatbot/internal/observability/metrics"
	"github.com/Adithyanmurthy/Loan-Chatbot/pkg/logging"
)

// generateAttempts bounds letter generation retries before the failure is
// surfaced to the customer with a retry suggestion.
const generateAttempts = 3

const downloadPathPrefix = "/api/documents/"

// Service issues and serves sanction letters.
type Service struct {
	store   ArtifactStore
	archive *Archive
	baseURL string
	logger  *logging.Logger
	metrics *metrics.ConversationMetrics
	now     func() time.Time
}

// ServiceOption tweaks service construction.
type ServiceOption func(*Service)

// WithPublicBaseURL prefixes download links with the externally reachable
// base URL (PUBLIC_BASE_URL). Without it links stay relative.
func WithPublicBaseURL(u string) ServiceOption {
	return func(s *Service) {
		s.baseURL = strings.TrimRight(strings.TrimSpace(u), "/")
	}
}

// NewService builds the document service. The archive may be nil-equivalent
// (unconfigured); the artifact store may not.
func NewService(store ArtifactStore, archive *Archive, logger *logging.Logger, m *metrics.ConversationMetrics, opts ...ServiceOption) *Service {
	if store == nil {
		panic("documents: artifact store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		store:   store,
		archive: archive,
		logger:  logger.Component("documents"),
		metrics: m,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue renders and stores the sanction letter for an approved application.
// Issuing twice for the same application returns the artifact minted the
// first time.
func (s *Service) Issue(ctx context.Context, req LetterRequest) (*Artifact, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	existing, err := s.store.ByApplication(ctx, req.ApplicationID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrArtifactNotFound) {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= generateAttempts; attempt++ {
		artifact, err := s.generate(ctx, req)
		if err == nil {
			s.metrics.ObserveDocument("generated")
			s.logger.Info("sanction letter issued",
				"application_id", req.ApplicationID,
				"artifact_id", artifact.ID,
				"letter_number", artifact.LetterNumber,
				"attempt", attempt,
			)
			return artifact, nil
		}
		lastErr = err
		s.logger.Warn("sanction letter generation failed",
			"application_id", req.ApplicationID,
			"attempt", attempt,
			"error", err,
		)
	}
	s.metrics.ObserveDocument("failed")
	return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, lastErr)
}

func (s *Service) generate(ctx context.Context, req LetterRequest) (*Artifact, error) {
	now := s.now().UTC()
	number := newLetterNumber(now)
	content := renderPDF(letterLines(req, number, now))

	artifact := &Artifact{
		ID:            uuid.NewString(),
		ApplicationID: req.ApplicationID,
		LetterNumber:  number,
		Filename:      letterFilename(number),
		ContentType:   "application/pdf",
		Size:          int64(len(content)),
		GeneratedAt:   now,
	}
	artifact.DownloadURL = s.baseURL + downloadPathPrefix + artifact.ID + "/download"

	if err := s.store.Save(ctx, artifact, content); err != nil {
		return nil, fmt.Errorf("documents: failed to store artifact: %w", err)
	}
	if err := s.archive.Put(ctx, artifact, content); err != nil {
		// The store copy is authoritative; archive failures don't block
		// issuance.
		s.logger.Warn("letter archive failed", "artifact_id", artifact.ID, "error", err)
	}
	return artifact, nil
}

// Get returns artifact metadata by ID.
func (s *Service) Get(ctx context.Context, id string) (*Artifact, error) {
	return s.store.ByID(ctx, id)
}

// Content returns the letter bytes along with its metadata, falling back to
// the S3 archive when the store lost its content copy.
func (s *Service) Content(ctx context.Context, id string) (*Artifact, []byte, error) {
	artifact, err := s.store.ByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	body, err := s.store.Content(ctx, id)
	if errors.Is(err, ErrArtifactNotFound) && s.archive.Enabled() {
		body, err = s.archive.Fetch(ctx, artifact)
	}
	if err != nil {
		return nil, nil, err
	}
	return artifact, body, nil
}

// RecordDownload bumps the artifact's download counter.
func (s *Service) RecordDownload(ctx context.Context, id string) (int64, error) {
	n, err := s.store.IncrementDownloads(ctx, id)
	if err != nil {
		return 0, err
	}
	s.metrics.ObserveDownload()
	return n, nil
}

func validateRequest(req LetterRequest) error {
	switch {
	case req.ApplicationID == "":
		return fmt.Errorf("%w: application ID required", ErrInvalidRequest)
	case req.CustomerName == "":
		return fmt.Errorf("%w: customer name required", ErrInvalidRequest)
	case req.Amount <= 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	case req.TenureMonths <= 0:
		return fmt.Errorf("%w: tenure must be positive", ErrInvalidRequest)
	case req.EMI <= 0:
		return fmt.Errorf("%w: emi must be positive", ErrInvalidRequest)
	case req.InterestRate <= 0:
		return fmt.Errorf("%w: interest rate must be positive", ErrInvalidRequest)
	}
	return nil
}
