package documents

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLetterRequest() LetterRequest {
	return LetterRequest{
		ApplicationID: "app-123",
		SessionID:     "sess-1",
		CustomerID:    "CUST001",
		CustomerName:  "Rajesh Kumar",
		City:          "Bangalore",
		Phone:         "+91-9876543210",
		Amount:        450_000,
		TenureMonths:  36,
		InterestRate:  12.5,
		EMI:           15_054,
		ProcessingFee: 9_000,
	}
}

func TestService_IssueProducesArtifact(t *testing.T) {
	svc := NewService(NewMemoryArtifactStore(), nil, nil, nil)

	artifact, err := svc.Issue(context.Background(), testLetterRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, artifact.ID)
	assert.Equal(t, "app-123", artifact.ApplicationID)
	assert.Regexp(t, regexp.MustCompile(`^SL/\d{4}/\d{4}[0-9A-F]{6}$`), artifact.LetterNumber)
	assert.Regexp(t, regexp.MustCompile(`^sanction_letter_SL_\d{4}_\d{4}[0-9A-F]{6}_[0-9a-f]{8}\.pdf$`), artifact.Filename)
	assert.Equal(t, "application/pdf", artifact.ContentType)
	assert.Equal(t, "/api/documents/"+artifact.ID+"/download", artifact.DownloadURL)
	assert.Positive(t, artifact.Size)
	assert.False(t, artifact.GeneratedAt.IsZero())
}

func TestService_IssueAbsoluteDownloadURL(t *testing.T) {
	svc := NewService(NewMemoryArtifactStore(), nil, nil, nil,
		WithPublicBaseURL("https://loans.example.com/"))

	artifact, err := svc.Issue(context.Background(), testLetterRequest())
	require.NoError(t, err)

	assert.Equal(t, "https://loans.example.com/api/documents/"+artifact.ID+"/download", artifact.DownloadURL)
}

func TestService_IssueIsIdempotentPerApplication(t *testing.T) {
	svc := NewService(NewMemoryArtifactStore(), nil, nil, nil)
	req := testLetterRequest()

	first, err := svc.Issue(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Issue(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.LetterNumber, second.LetterNumber)
	assert.Equal(t, first.Filename, second.Filename)

	// A different application mints a fresh artifact.
	other := req
	other.ApplicationID = "app-456"
	third, err := svc.Issue(context.Background(), other)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

// flakyStore fails the first N saves, then delegates.
type flakyStore struct {
	*MemoryArtifactStore
	failures int
	calls    int
}

func (s *flakyStore) Save(ctx context.Context, artifact *Artifact, content []byte) error {
	s.calls++
	if s.calls <= s.failures {
		return fmt.Errorf("disk full")
	}
	return s.MemoryArtifactStore.Save(ctx, artifact, content)
}

func TestService_IssueRetriesTransientStoreFailure(t *testing.T) {
	store := &flakyStore{MemoryArtifactStore: NewMemoryArtifactStore(), failures: 2}
	svc := NewService(store, nil, nil, nil)

	artifact, err := svc.Issue(context.Background(), testLetterRequest())
	require.NoError(t, err)
	assert.Equal(t, 3, store.calls)

	stored, err := svc.Get(context.Background(), artifact.ID)
	require.NoError(t, err)
	assert.Equal(t, artifact.LetterNumber, stored.LetterNumber)
}

func TestService_IssueGivesUpAfterRetryBudget(t *testing.T) {
	store := &flakyStore{MemoryArtifactStore: NewMemoryArtifactStore(), failures: 100}
	svc := NewService(store, nil, nil, nil)

	_, err := svc.Issue(context.Background(), testLetterRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Equal(t, generateAttempts, store.calls)
}

func TestService_IssueValidatesRequest(t *testing.T) {
	svc := NewService(NewMemoryArtifactStore(), nil, nil, nil)

	bad := testLetterRequest()
	bad.CustomerName = ""
	_, err := svc.Issue(context.Background(), bad)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	bad = testLetterRequest()
	bad.Amount = 0
	_, err = svc.Issue(context.Background(), bad)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	bad = testLetterRequest()
	bad.EMI = -1
	_, err = svc.Issue(context.Background(), bad)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestService_ContentRoundTrip(t *testing.T) {
	svc := NewService(NewMemoryArtifactStore(), nil, nil, nil)

	artifact, err := svc.Issue(context.Background(), testLetterRequest())
	require.NoError(t, err)

	meta, body, err := svc.Content(context.Background(), artifact.ID)
	require.NoError(t, err)
	assert.Equal(t, artifact.ID, meta.ID)
	assert.Equal(t, int64(len(body)), artifact.Size)
	assert.True(t, len(body) > 0)

	_, _, err = svc.Content(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

// lostContentStore keeps metadata but reports the content copy missing.
type lostContentStore struct {
	*MemoryArtifactStore
}

func (s *lostContentStore) Content(context.Context, string) ([]byte, error) {
	return nil, ErrArtifactNotFound
}

func TestService_ContentFallsBackToArchive(t *testing.T) {
	s3 := newFakeS3()
	archive := NewArchive(s3, "letters-bucket", nil)
	store := &lostContentStore{MemoryArtifactStore: NewMemoryArtifactStore()}
	svc := NewService(store, archive, nil, nil)

	artifact, err := svc.Issue(context.Background(), testLetterRequest())
	require.NoError(t, err)
	require.Len(t, s3.objects, 1)

	_, body, err := svc.Content(context.Background(), artifact.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), artifact.Size)
}

func TestService_RecordDownloadCounts(t *testing.T) {
	svc := NewService(NewMemoryArtifactStore(), nil, nil, nil)

	artifact, err := svc.Issue(context.Background(), testLetterRequest())
	require.NoError(t, err)

	n, err := svc.RecordDownload(context.Background(), artifact.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = svc.RecordDownload(context.Background(), artifact.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	meta, err := svc.Get(context.Background(), artifact.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), meta.Downloads)

	_, err = svc.RecordDownload(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrArtifactNotFound))
}
