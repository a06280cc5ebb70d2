package bootstrap

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/Adithyanmurthy/Loan-Chatbot/internal/config"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/conversation"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/loan"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/observability/metrics"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/upstream"
	"github.com/Adithyanmurthy/Loan-Chatbot/pkg/logging"
)

// UpstreamSet bundles the three external data sources the conversation
// engine consults.
type UpstreamSet struct {
	CRM    upstream.CustomerSource
	Bureau upstream.CreditSource
	Offers upstream.OfferSource
}

// BuildUpstreamSources returns the CRM, credit bureau, and offer mart
// clients. UPSTREAM_MODE=fake (the default) yields the seeded in-process
// fakes so the service runs without any external dependency.
func BuildUpstreamSources(cfg *appconfig.Config, logger *logging.Logger, m *metrics.UpstreamMetrics) UpstreamSet {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || cfg.UpstreamMode != "live" {
		logger.Info("using seeded fake upstream services")
		return UpstreamSet{
			CRM:    upstream.NewFakeCRM(),
			Bureau: upstream.NewFakeBureau(),
			Offers: upstream.NewFakeOfferMart(),
		}
	}

	base := upstream.Config{
		Timeout:      cfg.UpstreamTimeout,
		MaxRetries:   cfg.UpstreamMaxRetries,
		Backoff:      cfg.UpstreamRetryBase,
		BackoffCap:   cfg.UpstreamRetryCap,
		MaxTotalWait: cfg.UpstreamMaxWait,
		Logger:       logger,
		Metrics:      m,
	}
	crmCfg := base
	crmCfg.BaseURL = cfg.CRMBaseURL
	bureauCfg := base
	bureauCfg.BaseURL = cfg.CreditBureauBaseURL
	offerCfg := base
	offerCfg.BaseURL = cfg.OfferMartBaseURL

	logger.Info("using live upstream services",
		"crm", cfg.CRMBaseURL,
		"credit_bureau", cfg.CreditBureauBaseURL,
		"offer_mart", cfg.OfferMartBaseURL,
	)
	return UpstreamSet{
		CRM:    upstream.NewCRMClient(crmCfg),
		Bureau: upstream.NewBureauClient(bureauCfg),
		Offers: upstream.NewOfferClient(offerCfg),
	}
}

// BuildJobStore returns the DynamoDB-backed job tracker, or nil when no
// table is configured. A nil job store simply disables the jobs endpoint.
func BuildJobStore(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) *conversation.JobStore {
	if cfg == nil || strings.TrimSpace(cfg.EventJobsTable) == "" {
		return nil
	}
	client := dynamodb.NewFromConfig(awsCfg)
	return conversation.NewJobStore(client, cfg.EventJobsTable, logger)
}

// ConversationDeps carries the collaborators assembled by the other
// builders into BuildConversationService.
type ConversationDeps struct {
	Store     conversation.SessionStore
	Upstreams UpstreamSet
	Apps      loan.Repository
	Letters   conversation.LetterService
	JobStore  *conversation.JobStore
	Metrics   *metrics.ConversationMetrics
	Logger    *logging.Logger
}

// BuildConversationService assembles the stage engine and wraps it in the
// queue-backed orchestrator. USE_MEMORY_QUEUE=true (the default) keeps
// dispatch in-process; otherwise events flow through SQS.
func BuildConversationService(cfg *appconfig.Config, awsCfg aws.Config, deps ConversationDeps) (*conversation.Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}

	engine := conversation.NewEngine(conversation.Deps{
		Store:   deps.Store,
		Offers:  deps.Upstreams.Offers,
		CRM:     deps.Upstreams.CRM,
		Bureau:  deps.Upstreams.Bureau,
		Apps:    deps.Apps,
		Letters: deps.Letters,
		Logger:  logger,
		Metrics: deps.Metrics,
	})

	opts := []conversation.OrchestratorOption{
		conversation.WithWorkerCount(cfg.WorkerCount),
	}
	if deps.JobStore != nil {
		opts = append(opts, conversation.WithJobTracker(deps.JobStore))
	}

	if cfg.UseMemoryQueue || strings.TrimSpace(cfg.EventQueueURL) == "" {
		logger.Info("using in-memory event queue", "workers", cfg.WorkerCount)
		return conversation.NewOrchestrator(engine, conversation.NewMemoryQueue(0), logger, opts...), nil
	}

	sqsClient := sqs.NewFromConfig(awsCfg)
	logger.Info("using SQS event queue", "queue_url", cfg.EventQueueURL, "workers", cfg.WorkerCount)
	return conversation.NewOrchestrator(engine, conversation.NewSQSQueue(sqsClient, cfg.EventQueueURL), logger, opts...), nil
}
