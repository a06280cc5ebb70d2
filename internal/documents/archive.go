package documents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Adithyanmurthy/Loan-Chatbot/pkg/logging"
)

// S3API is the subset of the S3 client used by the archive.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Archive mirrors generated letters to S3 so they survive process restarts.
// With no bucket configured every operation is a no-op and the artifact
// store remains the only copy.
type Archive struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
}

// NewArchive creates a letter archive. If bucket is empty, all operations
// are no-ops.
func NewArchive(s3Client S3API, bucket string, logger *logging.Logger) *Archive {
	if logger == nil {
		logger = logging.Default()
	}
	return &Archive{bucket: bucket, s3Client: s3Client, logger: logger.Component("documents.archive")}
}

// Enabled returns true if archival is configured (bucket is set).
func (a *Archive) Enabled() bool {
	return a != nil && a.bucket != "" && a.s3Client != nil
}

// Put uploads one generated letter.
func (a *Archive) Put(ctx context.Context, artifact *Artifact, content []byte) error {
	if !a.Enabled() {
		return nil
	}

	key := archiveKey(artifact)
	_, err := a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(artifact.ContentType),
	})
	if err != nil {
		return fmt.Errorf("documents: s3 put %s: %w", key, err)
	}

	a.logger.Info("archived sanction letter to S3",
		"artifact_id", artifact.ID,
		"application_id", artifact.ApplicationID,
		"s3_key", key,
		"size", artifact.Size,
	)
	return nil
}

// Fetch retrieves an archived letter, used when the artifact store has the
// metadata but the content copy was lost.
func (a *Archive) Fetch(ctx context.Context, artifact *Artifact) ([]byte, error) {
	if !a.Enabled() {
		return nil, ErrArtifactNotFound
	}

	key := archiveKey(artifact)
	out, err := a.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("documents: s3 get %s: %w", key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("documents: s3 read %s: %w", key, err)
	}
	return body, nil
}

func archiveKey(artifact *Artifact) string {
	at := artifact.GeneratedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return fmt.Sprintf("sanction-letters/%d/%02d/%s", at.Year(), at.Month(), artifact.Filename)
}
