package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scor-analyzer/internal/models"
)

func newMockRepo(t *testing.T) (*SignupRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewSignupRepository(mock), mock
}

func TestSignupRepository_Create(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO email_signups").
		WithArgs(pgxmock.AnyArg(), "dao@example.org", "landing_page", "curl/8", created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	signup := &models.Signup{Email: "dao@example.org", Source: "landing_page", UserAgent: "curl/8", CreatedAt: created}
	duplicate, err := repo.Create(testContext(t), signup)
	require.NoError(t, err)
	assert.False(t, duplicate)
	assert.NotEmpty(t, signup.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSignupRepository_CreateDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO email_signups").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})

	duplicate, err := repo.Create(testContext(t), &models.Signup{Email: "dao@example.org", Source: "landing_page"})
	require.NoError(t, err)
	assert.True(t, duplicate)
}

func TestSignupRepository_CreateFailure(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO email_signups").WillReturnError(errors.New("connection reset"))

	_, err := repo.Create(testContext(t), &models.Signup{Email: "dao@example.org"})
	assert.ErrorContains(t, err, "connection reset")
}

func TestSignupRepository_Stats(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Date(2024, 6, 10, 15, 30, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT\\s+COUNT\\(\\*\\)").
		WithArgs(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), now.Add(-7*24*time.Hour)).
		WillReturnRows(pgxmock.NewRows([]string{"total", "today", "week"}).AddRow(int64(12), int64(2), int64(5)))
	mock.ExpectQuery("SELECT source, COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"source", "count"}).
			AddRow("landing_page", int64(9)).
			AddRow("report_footer", int64(3)))

	stats, err := repo.Stats(testContext(t), now)
	require.NoError(t, err)
	assert.Equal(t, int64(12), stats.Total)
	assert.Equal(t, int64(2), stats.Today)
	assert.Equal(t, int64(5), stats.LastWeek)
	assert.Equal(t, map[string]int64{"landing_page": 9, "report_footer": 3}, stats.BySource)
	assert.NoError(t, mock.ExpectationsWereMet())
}
