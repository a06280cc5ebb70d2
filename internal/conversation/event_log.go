package conversation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Adithyanmurthy/Loan-Chatbot/pkg/logging"
)

// SessionEvent is the structured envelope for every lifecycle event. All
// events share the same base fields for easy filtering/grep.
type SessionEvent struct {
	Time      string         `json:"time"`
	Event     string         `json:"event"`
	SessionID string         `json:"session_id"`
	Stage     string         `json:"stage,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventLogger emits structured JSON events at each decision point in the
// loan conversation. Designed for fast grep/filter debugging:
//
//	grep '"event":"decision_made"' /var/log/app.log
//	grep '"session_id":"sess_abc"' /var/log/app.log
type EventLogger struct {
	logger *logging.Logger
}

// NewEventLogger creates a new session event logger.
func NewEventLogger(logger *logging.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Log emits a structured session event.
func (e *EventLogger) Log(_ context.Context, event, sessionID string, stage Stage, data map[string]any) {
	if e == nil || e.logger == nil {
		return
	}
	evt := SessionEvent{
		Time:      time.Now().UTC().Format(time.RFC3339Nano),
		Event:     event,
		SessionID: sessionID,
		Stage:     string(stage),
		Data:      data,
	}
	b, _ := json.Marshal(evt)
	e.logger.Info(string(b))
}

// Convenience methods for common events:

func (e *EventLogger) SessionStarted(ctx context.Context, sessionID string) {
	e.Log(ctx, "session_started", sessionID, StageInitiation, nil)
}

func (e *EventLogger) SessionReset(ctx context.Context, sessionID string) {
	e.Log(ctx, "session_reset", sessionID, StageInitiation, nil)
}

func (e *EventLogger) EventReceived(ctx context.Context, sessionID string, stage Stage, kind EventKind, preview string) {
	// Truncate free text for logging
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	e.Log(ctx, "event_received", sessionID, stage, map[string]any{
		"kind":    string(kind),
		"preview": preview,
	})
}

func (e *EventLogger) StageAdvanced(ctx context.Context, sessionID string, from, to Stage) {
	e.Log(ctx, "stage_advanced", sessionID, to, map[string]any{
		"from": string(from),
	})
}

func (e *EventLogger) OptionsPresented(ctx context.Context, sessionID string, count int, annualRate float64) {
	e.Log(ctx, "options_presented", sessionID, StageSalesNegotiation, map[string]any{
		"count":       count,
		"annual_rate": annualRate,
	})
}

func (e *EventLogger) OptionSelected(ctx context.Context, sessionID string, index, tenureMonths int, emi int64) {
	e.Log(ctx, "option_selected", sessionID, StageSalesNegotiation, map[string]any{
		"index":         index,
		"tenure_months": tenureMonths,
		"emi":           emi,
	})
}

func (e *EventLogger) VerificationCompleted(ctx context.Context, sessionID string, matched bool, mismatched []string) {
	e.Log(ctx, "verification_completed", sessionID, StageVerification, map[string]any{
		"matched":    matched,
		"mismatched": mismatched,
	})
}

func (e *EventLogger) DecisionMade(ctx context.Context, sessionID, applicationID, status, reason string) {
	e.Log(ctx, "decision_made", sessionID, StageUnderwriting, map[string]any{
		"application_id": applicationID,
		"status":         status,
		"reason":         reason,
	})
}

func (e *EventLogger) DocumentRequested(ctx context.Context, sessionID, applicationID string) {
	e.Log(ctx, "document_requested", sessionID, StageUnderwriting, map[string]any{
		"application_id": applicationID,
	})
}

func (e *EventLogger) SalaryExtracted(ctx context.Context, sessionID string, salary int64, source string) {
	e.Log(ctx, "salary_extracted", sessionID, StageUnderwriting, map[string]any{
		"salary": salary,
		"source": source,
	})
}

func (e *EventLogger) LetterIssued(ctx context.Context, sessionID, applicationID, letterNumber string) {
	e.Log(ctx, "letter_issued", sessionID, StageDocumentGeneration, map[string]any{
		"application_id": applicationID,
		"letter_number":  letterNumber,
	})
}

func (e *EventLogger) StaleCommitDiscarded(ctx context.Context, sessionID string, kind EventKind) {
	e.Log(ctx, "stale_commit_discarded", sessionID, "", map[string]any{
		"kind": string(kind),
	})
}

func (e *EventLogger) UpstreamDegraded(ctx context.Context, sessionID string, stage Stage, system string, err error) {
	e.Log(ctx, "upstream_degraded", sessionID, stage, map[string]any{
		"system": system,
		"error":  err.Error(),
	})
}

func (e *EventLogger) ErrorOccurred(ctx context.Context, sessionID string, stage Stage, step string, err error) {
	e.Log(ctx, "error", sessionID, stage, map[string]any{
		"step":  step,
		"error": err.Error(),
	})
}
