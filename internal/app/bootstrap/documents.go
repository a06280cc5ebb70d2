package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/Adithyanmurthy/Loan-Chatbot/internal/config"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/documents"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/observability/metrics"
	"github.com/Adithyanmurthy/Loan-Chatbot/pkg/logging"
)

// BuildArchive returns the S3 letter archive. With no bucket configured the
// archive is a no-op and letters live only in the artifact store.
func BuildArchive(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) *documents.Archive {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || strings.TrimSpace(cfg.DocumentBucket) == "" {
		logger.Info("no document bucket configured, letters kept in-process only")
		return documents.NewArchive(nil, "", logger)
	}
	logger.Info("archiving sanction letters to s3", "bucket", cfg.DocumentBucket)
	return documents.NewArchive(s3.NewFromConfig(awsCfg), cfg.DocumentBucket, logger)
}

// BuildDocumentService assembles the sanction letter service on an
// in-memory artifact store fronted by the archive. PUBLIC_BASE_URL, when
// set, makes download links absolute.
func BuildDocumentService(cfg *appconfig.Config, archive *documents.Archive, logger *logging.Logger, m *metrics.ConversationMetrics) *documents.Service {
	var opts []documents.ServiceOption
	if cfg != nil && strings.TrimSpace(cfg.PublicBaseURL) != "" {
		opts = append(opts, documents.WithPublicBaseURL(cfg.PublicBaseURL))
	}
	return documents.NewService(documents.NewMemoryArtifactStore(), archive, logger, m, opts...)
}
