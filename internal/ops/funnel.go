// Package ops serves the operations dashboard: the decision funnel out of
// Postgres, live session counts out of the session store, and decision
// latency percentiles out of the Prometheus registry.
package ops

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StatusCount is one row of the all-time decision funnel.
type StatusCount struct {
	Status      string `json:"status"`
	Count       int64  `json:"count"`
	TotalAmount int64  `json:"total_amount"`
}

// DailyCount is one status bucket for one calendar day.
type DailyCount struct {
	Day    string `json:"day"`
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// ReasonCount tallies rejections by reason.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int64  `json:"count"`
}

// Funnel is the application funnel as stored in loan_applications.
type Funnel struct {
	Totals  []StatusCount `json:"totals"`
	Daily   []DailyCount  `json:"daily,omitempty"`
	Reasons []ReasonCount `json:"rejection_reasons,omitempty"`
}

// funnelDB defines the database interface needed by FunnelRepository.
type funnelDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// FunnelRepository aggregates decided applications for the dashboard.
type FunnelRepository struct {
	db funnelDB
}

// NewFunnelRepository creates a funnel repository over a pgx pool.
func NewFunnelRepository(pool *pgxpool.Pool) *FunnelRepository {
	if pool == nil {
		panic("ops: pgx pool required for funnel")
	}
	return &FunnelRepository{db: pool}
}

// NewFunnelRepositoryWithDB allows injecting a mock database for testing.
func NewFunnelRepositoryWithDB(db funnelDB) *FunnelRepository {
	return &FunnelRepository{db: db}
}

// GetFunnel aggregates the decision funnel. Daily counts cover the window
// ending now; a non-positive window skips the daily breakdown.
func (r *FunnelRepository) GetFunnel(ctx context.Context, window time.Duration) (*Funnel, error) {
	funnel := &Funnel{}

	rows, err := r.db.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(requested_amount), 0)
		FROM loan_applications
		GROUP BY status
		ORDER BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("ops: funnel totals: %w", err)
	}
	for rows.Next() {
		var row StatusCount
		if err := rows.Scan(&row.Status, &row.Count, &row.TotalAmount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("ops: scan funnel totals: %w", err)
		}
		funnel.Totals = append(funnel.Totals, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ops: funnel totals: %w", err)
	}

	if window > 0 {
		since := time.Now().UTC().Add(-window)
		rows, err = r.db.Query(ctx, `
			SELECT TO_CHAR(decided_at, 'YYYY-MM-DD'), status, COUNT(*)
			FROM loan_applications
			WHERE decided_at >= $1
			GROUP BY 1, 2
			ORDER BY 1, 2
		`, since)
		if err != nil {
			return nil, fmt.Errorf("ops: daily funnel: %w", err)
		}
		for rows.Next() {
			var row DailyCount
			if err := rows.Scan(&row.Day, &row.Status, &row.Count); err != nil {
				rows.Close()
				return nil, fmt.Errorf("ops: scan daily funnel: %w", err)
			}
			funnel.Daily = append(funnel.Daily, row)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("ops: daily funnel: %w", err)
		}
	}

	rows, err = r.db.Query(ctx, `
		SELECT rejection_reason, COUNT(*)
		FROM loan_applications
		WHERE status = 'rejected' AND rejection_reason <> ''
		GROUP BY rejection_reason
		ORDER BY COUNT(*) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("ops: rejection reasons: %w", err)
	}
	for rows.Next() {
		var row ReasonCount
		if err := rows.Scan(&row.Reason, &row.Count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("ops: scan rejection reasons: %w", err)
		}
		funnel.Reasons = append(funnel.Reasons, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ops: rejection reasons: %w", err)
	}

	return funnel, nil
}
