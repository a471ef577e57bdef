package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/scor-analyzer/internal/models"
)

// uniqueViolation is the Postgres error code for a unique constraint violation
const uniqueViolation = "23505"

// DBTX is the subset of pgxpool.Pool used by repositories
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SignupRepository handles contact signup persistence
type SignupRepository struct {
	db DBTX
}

// NewSignupRepository creates a new signup repository
func NewSignupRepository(db DBTX) *SignupRepository {
	return &SignupRepository{db: db}
}

// Create stores a signup. A repeated email is reported as duplicate, not as an error.
func (r *SignupRepository) Create(ctx context.Context, signup *models.Signup) (duplicate bool, err error) {
	if signup.ID == "" {
		signup.ID = uuid.New().String()
	}
	if signup.CreatedAt.IsZero() {
		signup.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO email_signups (id, email, source, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = r.db.Exec(ctx, query,
		signup.ID,
		signup.Email,
		signup.Source,
		signup.UserAgent,
		signup.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return true, nil
		}
		return false, fmt.Errorf("failed to create signup: %w", err)
	}

	return false, nil
}

// Stats counts signups overall, since the start of today (UTC), over the last
// seven days and per source.
func (r *SignupRepository) Stats(ctx context.Context, now time.Time) (*models.SignupStats, error) {
	now = now.UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekAgo := now.Add(-7 * 24 * time.Hour)

	stats := &models.SignupStats{BySource: map[string]int64{}}

	countQuery := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE created_at >= $1),
			COUNT(*) FILTER (WHERE created_at >= $2)
		FROM email_signups
	`
	if err := r.db.QueryRow(ctx, countQuery, startOfDay, weekAgo).Scan(&stats.Total, &stats.Today, &stats.LastWeek); err != nil {
		return nil, fmt.Errorf("failed to count signups: %w", err)
	}

	sourceQuery := `
		SELECT source, COUNT(*)
		FROM email_signups
		GROUP BY source
		ORDER BY source
	`
	rows, err := r.db.Query(ctx, sourceQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to count signups by source: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var source string
		var count int64
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("failed to scan source count: %w", err)
		}
		stats.BySource[source] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read source counts: %w", err)
	}

	return stats, nil
}
