package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Adithyanmurthy/Loan-Chatbot/pkg/logging"
)

// ErrOrchestratorClosed indicates the dispatcher is no longer accepting work.
var ErrOrchestratorClosed = errors.New("conversation: orchestrator closed")

// JobTracker persists job lifecycle state so the status endpoint can answer
// for events that were accepted but not yet replied to.
type JobTracker interface {
	JobRecorder
	JobUpdater
}

// Orchestrator routes conversation events through a queue before invoking
// the engine. The queue decouples HTTP intake from processing: the system
// points at LocalStack SQS during development and AWS SQS in production
// without touching the handlers, and the in-memory queue serves tests.
// Per-session ordering still comes from the engine's session lock, not from
// the queue.
type Orchestrator struct {
	processor Service
	queue     queueClient
	jobs      JobTracker
	logger    *logging.Logger

	cfg orchestratorConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pending sync.Map // jobID -> chan dispatchResult
}

var _ Service = (*Orchestrator)(nil)
var _ Dispatcher = (*Orchestrator)(nil)

const (
	defaultWorkers          = 2
	defaultReceiveWait      = 2  // seconds
	defaultReceiveMax       = 5  // messages
	maxReceiveWaitSeconds   = 20 // SQS limit
	maxReceiveBatchMessages = 10
)

type orchestratorConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	jobs             JobTracker
}

// OrchestratorOption configures the dispatcher.
type OrchestratorOption func(*orchestratorConfig)

// WithWorkerCount overrides the number of queue polling goroutines.
func WithWorkerCount(workers int) OrchestratorOption {
	return func(cfg *orchestratorConfig) {
		if workers > 0 {
			cfg.workers = workers
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait time for ReceiveMessage calls.
func WithReceiveWaitSeconds(seconds int) OrchestratorOption {
	return func(cfg *orchestratorConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxReceiveWaitSeconds {
			seconds = maxReceiveWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize overrides how many messages each poll should return.
func WithReceiveBatchSize(size int) OrchestratorOption {
	return func(cfg *orchestratorConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchMessages {
			size = maxReceiveBatchMessages
		}
		cfg.receiveBatchSize = size
	}
}

// WithJobTracker records every dispatched job's lifecycle, enabling the
// status endpoint. Without it jobs are fire-and-forget.
func WithJobTracker(jobs JobTracker) OrchestratorOption {
	return func(cfg *orchestratorConfig) {
		cfg.jobs = jobs
	}
}

// NewOrchestrator wires a queue-backed dispatcher around the supplied service.
func NewOrchestrator(processor Service, queue queueClient, logger *logging.Logger, opts ...OrchestratorOption) *Orchestrator {
	if processor == nil {
		panic("conversation: processor cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := orchestratorConfig{
		workers:          defaultWorkers,
		receiveWaitSecs:  defaultReceiveWait,
		receiveBatchSize: defaultReceiveMax,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		processor: processor,
		queue:     queue,
		jobs:      cfg.jobs,
		logger:    logger,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
	}

	for i := 0; i < cfg.workers; i++ {
		o.wg.Add(1)
		go o.runWorker(i + 1)
	}

	return o
}

// HandleEvent enqueues the event and blocks until a worker has processed it
// or the caller's context expires. An expired caller does not cancel the
// job: the worker still processes and records it, and the status endpoint
// can pick up the reply later.
func (o *Orchestrator) HandleEvent(ctx context.Context, req EventRequest) (*Reply, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	payload, body, err := encodePayload(queuePayload{Kind: jobTypeEvent, Request: req})
	if err != nil {
		return nil, err
	}

	if o.jobs != nil {
		event := req.Event
		record := &JobRecord{
			JobID:       payload.ID,
			RequestType: jobTypeEvent,
			SessionID:   req.SessionID,
			Event:       &event,
		}
		if err := o.jobs.PutPending(ctx, record); err != nil {
			o.logger.Warn("failed to record pending job", "job_id", payload.ID, "error", err)
		}
	}

	resultCh := make(chan dispatchResult, 1)
	o.pending.Store(payload.ID, resultCh)
	defer o.pending.Delete(payload.ID)

	if err := o.queue.Send(ctx, body); err != nil {
		return nil, fmt.Errorf("conversation: failed to enqueue job: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		return res.reply, res.err
	}
}

// Shutdown stops worker goroutines and notifies any pending callers.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	o.pending.Range(func(key, value any) bool {
		if ch, ok := value.(chan dispatchResult); ok {
			select {
			case ch <- dispatchResult{err: ErrOrchestratorClosed}:
			default:
			}
		}
		o.pending.Delete(key)
		return true
	})

	return nil
}

func (o *Orchestrator) runWorker(workerID int) {
	defer o.wg.Done()
	o.logger.Debug("conversation orchestrator worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-o.ctx.Done():
			o.logger.Debug("conversation orchestrator worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := o.queue.Receive(o.ctx, o.cfg.receiveBatchSize, o.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			o.logger.Error("failed to receive conversation jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if len(messages) == 0 {
			continue
		}

		for _, msg := range messages {
			o.handleQueueMessage(msg)
		}
	}
}

func (o *Orchestrator) handleQueueMessage(msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		o.logger.Error("failed to decode conversation job", "error", err)
		deleteCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.queue.Delete(deleteCtx, msg.ReceiptHandle)
		return
	}

	var (
		reply *Reply
		err   error
	)

	switch payload.Kind {
	case jobTypeEvent:
		reply, err = o.processor.HandleEvent(o.ctx, payload.Request)
	default:
		err = fmt.Errorf("conversation: unknown job type %q", payload.Kind)
	}

	o.recordOutcome(payload, reply, err)

	deleteCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if delErr := o.queue.Delete(deleteCtx, msg.ReceiptHandle); delErr != nil {
		o.logger.Error("failed to delete conversation job", "error", delErr)
	}

	o.deliverResult(payload.ID, reply, err)
}

func (o *Orchestrator) recordOutcome(payload queuePayload, reply *Reply, err error) {
	if o.jobs == nil {
		return
	}

	recordCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err != nil {
		if markErr := o.jobs.MarkFailed(recordCtx, payload.ID, err.Error()); markErr != nil {
			o.logger.Warn("failed to mark job failed", "job_id", payload.ID, "error", markErr)
		}
		return
	}
	if markErr := o.jobs.MarkCompleted(recordCtx, payload.ID, reply, payload.Request.SessionID); markErr != nil {
		o.logger.Warn("failed to mark job completed", "job_id", payload.ID, "error", markErr)
	}
}

func (o *Orchestrator) deliverResult(jobID string, reply *Reply, err error) {
	value, ok := o.pending.Load(jobID)
	if !ok {
		o.logger.Debug("no waiting caller for conversation job", "job_id", jobID)
		return
	}

	ch, ok := value.(chan dispatchResult)
	if !ok {
		o.logger.Error("conversation orchestrator pending map corrupted", "job_id", jobID)
		o.pending.Delete(jobID)
		return
	}

	select {
	case ch <- dispatchResult{reply: reply, err: err}:
	default:
	}
}

type dispatchResult struct {
	reply *Reply
	err   error
}
