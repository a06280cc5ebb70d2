package loan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresRepository persists loan applications for audit and funnel
// reporting. Applications are written once, at decision time.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repository over an open database handle.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	if db == nil {
		return nil
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, app *Application) error {
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	if app.DecidedAt.IsZero() {
		app.DecidedAt = now
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO loan_applications (
			id, session_id, customer_id, requested_amount, tenure_months,
			interest_rate, emi, status, rejection_reason, conditions,
			created_at, decided_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`, app.ID, app.SessionID, app.CustomerID, app.RequestedAmount, app.TenureMonths,
		app.InterestRate, app.EMI, string(app.Status), app.RejectionReason,
		pq.Array(app.Conditions), app.CreatedAt, app.DecidedAt)
	if err != nil {
		return fmt.Errorf("loan: failed to insert application: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Application, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, customer_id, requested_amount, tenure_months,
		       interest_rate, emi, status, rejection_reason, conditions,
		       created_at, decided_at
		FROM loan_applications
		WHERE id = $1
	`, id)
	return scanApplication(row)
}

// Finalize moves an application to approved or rejected exactly once. The
// status guard in the WHERE clause makes concurrent terminal writes lose
// cleanly instead of overwriting each other.
func (r *PostgresRepository) Finalize(ctx context.Context, id string, status Status, reason string, conditions []string, decidedAt time.Time) error {
	if status != StatusApproved && status != StatusRejected {
		return fmt.Errorf("loan: %q is not a terminal status", status)
	}
	if decidedAt.IsZero() {
		decidedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE loan_applications
		SET status = $2, rejection_reason = $3, conditions = $4, decided_at = $5
		WHERE id = $1 AND status IN ('pending', 'requires_documents')
	`, id, string(status), reason, pq.Array(conditions), decidedAt)
	if err != nil {
		return fmt.Errorf("loan: failed to finalize application: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("loan: failed to finalize application: %w", err)
	}
	if rows == 0 {
		if _, getErr := r.GetByID(ctx, id); errors.Is(getErr, ErrApplicationNotFound) {
			return ErrApplicationNotFound
		}
		return ErrAlreadyDecided
	}
	return nil
}

func (r *PostgresRepository) LatestBySession(ctx context.Context, sessionID string) (*Application, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, customer_id, requested_amount, tenure_months,
		       interest_rate, emi, status, rejection_reason, conditions,
		       created_at, decided_at
		FROM loan_applications
		WHERE session_id = $1
		ORDER BY decided_at DESC
		LIMIT 1
	`, sessionID)
	return scanApplication(row)
}

func scanApplication(row *sql.Row) (*Application, error) {
	var app Application
	var status string
	err := row.Scan(
		&app.ID, &app.SessionID, &app.CustomerID, &app.RequestedAmount,
		&app.TenureMonths, &app.InterestRate, &app.EMI, &status,
		&app.RejectionReason, pq.Array(&app.Conditions),
		&app.CreatedAt, &app.DecidedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loan: failed to scan application: %w", err)
	}
	app.Status = Status(status)
	return &app, nil
}
