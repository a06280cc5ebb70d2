package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithyanmurthy/Loan-Chatbot/internal/conversation"
	"github.com/Adithyanmurthy/Loan-Chatbot/internal/observability/metrics"
	"github.com/Adithyanmurthy/Loan-Chatbot/pkg/logging"
)

type stubSessions struct {
	summaries []conversation.SessionSummary
	err       error
}

func (s *stubSessions) Sessions(context.Context) ([]conversation.SessionSummary, error) {
	return s.summaries, s.err
}

func TestFunnelRepository_GetFunnel(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT status, COUNT\(\*\), COALESCE\(SUM\(requested_amount\), 0\)`).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count", "sum"}).
			AddRow("approved", int64(5), int64(2250000)).
			AddRow("rejected", int64(2), int64(1800000)))

	mock.ExpectQuery(`TO_CHAR\(decided_at, 'YYYY-MM-DD'\)`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"day", "status", "count"}).
			AddRow("2026-08-24", "approved", int64(3)).
			AddRow("2026-08-24", "rejected", int64(1)))

	mock.ExpectQuery(`SELECT rejection_reason, COUNT\(\*\)`).
		WillReturnRows(pgxmock.NewRows([]string{"reason", "count"}).
			AddRow("credit_score_below_threshold", int64(2)))

	repo := NewFunnelRepositoryWithDB(mock)
	funnel, err := repo.GetFunnel(context.Background(), 7*24*time.Hour)
	if err != nil {
		t.Fatalf("GetFunnel failed: %v", err)
	}

	if len(funnel.Totals) != 2 {
		t.Fatalf("Totals len = %d, want 2", len(funnel.Totals))
	}
	if funnel.Totals[0].Status != "approved" || funnel.Totals[0].Count != 5 {
		t.Errorf("Totals[0] = %+v, want approved/5", funnel.Totals[0])
	}
	if funnel.Totals[0].TotalAmount != 2250000 {
		t.Errorf("Totals[0].TotalAmount = %d, want 2250000", funnel.Totals[0].TotalAmount)
	}
	if len(funnel.Daily) != 2 {
		t.Fatalf("Daily len = %d, want 2", len(funnel.Daily))
	}
	if funnel.Daily[0].Day != "2026-08-24" {
		t.Errorf("Daily[0].Day = %q, want 2026-08-24", funnel.Daily[0].Day)
	}
	if len(funnel.Reasons) != 1 || funnel.Reasons[0].Reason != "credit_score_below_threshold" {
		t.Errorf("Reasons = %+v, want one credit_score_below_threshold row", funnel.Reasons)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestFunnelRepository_SkipsDailyWithoutWindow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT status, COUNT\(\*\), COALESCE\(SUM\(requested_amount\), 0\)`).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count", "sum"}).
			AddRow("approved", int64(1), int64(450000)))

	mock.ExpectQuery(`SELECT rejection_reason, COUNT\(\*\)`).
		WillReturnRows(pgxmock.NewRows([]string{"reason", "count"}))

	repo := NewFunnelRepositoryWithDB(mock)
	funnel, err := repo.GetFunnel(context.Background(), 0)
	if err != nil {
		t.Fatalf("GetFunnel failed: %v", err)
	}
	if funnel.Daily != nil {
		t.Errorf("Daily = %+v, want nil without a window", funnel.Daily)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDecisionLatencyPercentiles(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewConversationMetrics(reg)
	m.ObserveDecision("approved", "none", 0.05)
	m.ObserveDecision("approved", "none", 0.3)
	m.ObserveDecision("rejected", "credit_score_below_threshold", 2.0)

	stats, err := DecisionLatency(reg)
	if err != nil {
		t.Fatalf("DecisionLatency failed: %v", err)
	}
	if stats == nil {
		t.Fatalf("expected latency stats after observations")
	}
	if stats.Count != 3 {
		t.Errorf("Count = %d, want 3", stats.Count)
	}
	if stats.P50 <= 0.25 || stats.P50 > 0.5 {
		t.Errorf("P50 = %f, want within (0.25, 0.5]", stats.P50)
	}
	if stats.P99 <= 1.0 || stats.P99 > 2.5 {
		t.Errorf("P99 = %f, want within (1.0, 2.5]", stats.P99)
	}
}

func TestDecisionLatencyEmptyRegistry(t *testing.T) {
	stats, err := DecisionLatency(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("DecisionLatency failed: %v", err)
	}
	if stats != nil {
		t.Errorf("expected nil stats before any decision, got %+v", stats)
	}
}

func TestDashboardHandler_GetDashboard(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT status, COUNT\(\*\), COALESCE\(SUM\(requested_amount\), 0\)`).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count", "sum"}).
			AddRow("approved", int64(4), int64(2000000)))
	mock.ExpectQuery(`TO_CHAR\(decided_at, 'YYYY-MM-DD'\)`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"day", "status", "count"}))
	mock.ExpectQuery(`SELECT rejection_reason, COUNT\(\*\)`).
		WillReturnRows(pgxmock.NewRows([]string{"reason", "count"}))

	reg := prometheus.NewRegistry()
	m := metrics.NewConversationMetrics(reg)
	m.ObserveDecision("approved", "none", 0.4)

	sessions := &stubSessions{summaries: []conversation.SessionSummary{
		{SessionID: "s1", Stage: conversation.StageSalesNegotiation},
		{SessionID: "s2", Stage: conversation.StageUnderwriting},
		{SessionID: "s3", Stage: conversation.StageCompleted},
	}}

	handler := NewHandler(NewFunnelRepositoryWithDB(mock), sessions, reg, logging.New("error"))

	srv := httptest.NewServer(handler.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/dashboard")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var dashboard Dashboard
	if err := json.NewDecoder(resp.Body).Decode(&dashboard); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if dashboard.Sessions.Active != 2 {
		t.Errorf("Sessions.Active = %d, want 2", dashboard.Sessions.Active)
	}
	if dashboard.Sessions.ByStage["completed"] != 1 {
		t.Errorf("ByStage[completed] = %d, want 1", dashboard.Sessions.ByStage["completed"])
	}
	if dashboard.Funnel == nil || len(dashboard.Funnel.Totals) != 1 {
		t.Fatalf("Funnel = %+v, want one totals row", dashboard.Funnel)
	}
	if dashboard.DecisionLatency == nil || dashboard.DecisionLatency.Count != 1 {
		t.Errorf("DecisionLatency = %+v, want count 1", dashboard.DecisionLatency)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDashboardHandler_InvalidDays(t *testing.T) {
	handler := NewHandler(nil, &stubSessions{}, nil, logging.New("error"))

	srv := httptest.NewServer(handler.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/dashboard?days=yesterday")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.StatusCode)
	}
}

func TestDashboardHandler_SessionListFailure(t *testing.T) {
	handler := NewHandler(nil, &stubSessions{err: errors.New("redis down")}, nil, logging.New("error"))

	srv := httptest.NewServer(handler.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/dashboard")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", resp.StatusCode)
	}
}
