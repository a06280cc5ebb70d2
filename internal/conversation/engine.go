package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Adithyanmurthy/Loan-Chatbot/internal/loan"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/lock"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/observability/metrics"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/upstream"
	"github.com/Adithyanmurthy/Loan-Chatbot/pkg/logging"
)

const (
	resetMessage = "Your session has been reset. Tell me when you're ready to " +
		"start a new loan application."

	apologyMessage = "I'm sorry, something went wrong on our side while processing " +
		"your request. Our team has been notified. You can reset the session to " +
		"start over."

	completedMessage = "This application is complete. If you'd like to apply for " +
		"another loan, reset the session to start fresh."

	failedMessage = "This session ran into a problem and can't continue. Please " +
		"reset the session to start over."

	staleDiscardMessage = "Your session was reset while I was working on that, so " +
		"I've discarded the result. Tell me when you're ready to start again."
)

// Deps bundles everything the engine and its stage handlers need. Store,
// the three upstream sources, Apps, and Letters are required; the rest
// default to no-ops or globals.
type Deps struct {
	Store   SessionStore
	Offers  upstream.OfferSource
	CRM     upstream.CustomerSource
	Bureau  upstream.CreditSource
	Apps    loan.Repository
	Letters LetterService

	Logger  *logging.Logger
	Metrics *metrics.ConversationMetrics
	Tracer  trace.Tracer
}

// Engine is the orchestrator: it looks up the handler registered for the
// session's stage, invokes it with a detached snapshot, and commits the
// returned patch atomically. Per-session locking plus generation-checked
// commits give each session a single-writer discipline while sessions
// proceed in parallel.
type Engine struct {
	store    SessionStore
	handlers map[Stage]stageHandler
	locks    *lock.MutexMap
	logger   *logging.Logger
	events   *EventLogger
	metrics  *metrics.ConversationMetrics
	tracer   trace.Tracer
}

var _ Service = (*Engine)(nil)

// NewEngine wires the stage handler table.
func NewEngine(deps Deps) *Engine {
	if deps.Store == nil {
		panic("conversation: session store cannot be nil")
	}
	if deps.Offers == nil || deps.CRM == nil || deps.Bureau == nil {
		panic("conversation: upstream sources cannot be nil")
	}
	if deps.Apps == nil {
		panic("conversation: loan repository cannot be nil")
	}
	if deps.Letters == nil {
		panic("conversation: letter service cannot be nil")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.Component("conversation.engine")
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer("loan.internal.conversation.engine")
	}

	events := NewEventLogger(logger)
	collect := &collectionHandler{offers: deps.Offers, events: events}

	return &Engine{
		store: deps.Store,
		handlers: map[Stage]stageHandler{
			StageInitiation:            &initiationHandler{collect: collect},
			StageInformationCollection: collect,
			StageSalesNegotiation:      &salesHandler{offers: deps.Offers, events: events},
			StageVerification:          &verificationHandler{crm: deps.CRM, events: events},
			StageUnderwriting:          &underwritingHandler{bureau: deps.Bureau, apps: deps.Apps, events: events},
			StageDocumentGeneration:    &documentHandler{letters: deps.Letters, events: events},
		},
		locks:   lock.NewMutexMap(),
		logger:  logger,
		events:  events,
		metrics: deps.Metrics,
		tracer:  tracer,
	}
}

// HandleEvent processes one inbound event and returns the reply. Events for
// the same session are serialized; a reset bypasses the session lock so it
// can interrupt a slow in-flight handler, whose commit then fails the
// generation check and is discarded.
func (e *Engine) HandleEvent(ctx context.Context, req EventRequest) (*Reply, error) {
	ctx, span := e.tracer.Start(ctx, "conversation.handle_event")
	defer span.End()

	if req.SessionID == "" {
		return nil, fmt.Errorf("%w: session id required", ErrMalformedEvent)
	}
	if err := req.Event.Validate(); err != nil {
		return nil, err
	}

	if req.Event.Kind == EventReset {
		return e.reset(ctx, req.SessionID)
	}

	e.locks.Lock(req.SessionID)
	defer e.locks.Unlock(req.SessionID)

	sctx, err := e.store.LoadOrCreate(ctx, req.SessionID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	e.metrics.ObserveEvent(string(req.Event.Kind), string(sctx.Stage))
	e.events.EventReceived(ctx, req.SessionID, sctx.Stage, req.Event.Kind, req.Event.Text)
	if sctx.Generation == 0 && sctx.Stage == StageInitiation {
		e.events.SessionStarted(ctx, req.SessionID)
	}

	if sctx.Stage.Terminal() {
		msg := completedMessage
		if sctx.Stage == StageFailed {
			msg = failedMessage
		}
		return &Reply{
			SessionID:   req.SessionID,
			Message:     msg,
			MessageType: ReplyText,
			Stage:       sctx.Stage,
		}, nil
	}

	handler, ok := e.handlers[sctx.Stage]
	if !ok {
		return nil, fmt.Errorf("conversation: no handler registered for stage %q", sctx.Stage)
	}

	started := time.Now()
	res, err := handler.handle(ctx, sctx.Clone(), req.Event)
	if err != nil {
		return e.fail(ctx, sctx, req, err)
	}

	committed, err := e.store.Commit(ctx, req.SessionID, sctx.Generation, res.patch)
	if err != nil {
		return e.handleCommitFailure(ctx, span, req, err)
	}

	if committed.Stage != sctx.Stage {
		e.metrics.ObserveTransition(string(sctx.Stage), string(committed.Stage))
		e.events.StageAdvanced(ctx, req.SessionID, sctx.Stage, committed.Stage)
	}
	if res.replyType == ReplyDecision {
		e.metrics.ObserveDecision(res.metadata["status"], res.metadata["reason"], time.Since(started).Seconds())
	}

	return &Reply{
		SessionID:   req.SessionID,
		Message:     res.message,
		MessageType: res.replyType,
		Stage:       committed.Stage,
		Metadata:    res.metadata,
	}, nil
}

// reset wipes the session without taking the session lock. Bumping the
// generation here is what invalidates any commit still in flight under the
// lock.
func (e *Engine) reset(ctx context.Context, sessionID string) (*Reply, error) {
	sctx, err := e.store.Reset(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	e.events.SessionReset(ctx, sessionID)
	return &Reply{
		SessionID:   sessionID,
		Message:     resetMessage,
		MessageType: ReplyText,
		Stage:       sctx.Stage,
	}, nil
}

// fail degrades the session to the terminal failed stage. The customer gets
// an apology, the log gets the full failure, and the error entry survives
// future resets for audit.
func (e *Engine) fail(ctx context.Context, sctx *Context, req EventRequest, cause error) (*Reply, error) {
	e.logger.Error("handler failed, moving session to failed stage",
		"session_id", req.SessionID,
		"stage", string(sctx.Stage),
		"event_kind", string(req.Event.Kind),
		"error", cause)
	e.events.ErrorOccurred(ctx, req.SessionID, sctx.Stage, "handler", cause)

	patch := Patch{
		Stage:  StageFailed,
		Errors: []ErrorEntry{newErrorEntry("handler_failure", cause)},
	}
	committed, err := e.store.Commit(ctx, req.SessionID, sctx.Generation, patch)
	if err != nil {
		if errors.Is(err, ErrStaleCommit) {
			// A reset won the race; the failure belongs to discarded state.
			e.events.StaleCommitDiscarded(ctx, req.SessionID, req.Event.Kind)
			return &Reply{
				SessionID:   req.SessionID,
				Message:     staleDiscardMessage,
				MessageType: ReplyText,
				Stage:       StageInitiation,
			}, nil
		}
		return nil, err
	}

	e.metrics.ObserveTransition(string(sctx.Stage), string(committed.Stage))
	return &Reply{
		SessionID:   req.SessionID,
		Message:     apologyMessage,
		MessageType: ReplyError,
		Stage:       committed.Stage,
	}, nil
}

func (e *Engine) handleCommitFailure(ctx context.Context, span trace.Span, req EventRequest, err error) (*Reply, error) {
	if errors.Is(err, ErrStaleCommit) {
		e.events.StaleCommitDiscarded(ctx, req.SessionID, req.Event.Kind)
		return &Reply{
			SessionID:   req.SessionID,
			Message:     staleDiscardMessage,
			MessageType: ReplyText,
			Stage:       StageInitiation,
		}, nil
	}
	span.RecordError(err)
	return nil, err
}
