package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/scor-analyzer/internal/errors"
	"github.com/scor-analyzer/internal/logging"
	"github.com/scor-analyzer/internal/models"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const maxSourceLength = 64

// SignupRepository persists contact signups
type SignupRepository interface {
	Create(ctx context.Context, signup *models.Signup) (duplicate bool, err error)
	Stats(ctx context.Context, now time.Time) (*models.SignupStats, error)
}

// SignupInput is a signup request
type SignupInput struct {
	Email     string `json:"email"`
	Source    string `json:"source"`
	UserAgent string `json:"-"`
}

// SignupResult reports whether the email was new
type SignupResult struct {
	Success   bool   `json:"success"`
	Duplicate bool   `json:"duplicate"`
	Message   string `json:"message"`
}

// SignupService validates and stores contact signups
type SignupService struct {
	repo   SignupRepository
	now    func() time.Time
	logger *logging.Logger
}

// NewSignupService creates a new signup service
func NewSignupService(repo SignupRepository, logger *logging.Logger) *SignupService {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &SignupService{repo: repo, now: time.Now, logger: logger.WithComponent("signups")}
}

// Signup stores the email. A repeated email succeeds with Duplicate set.
func (s *SignupService) Signup(ctx context.Context, input SignupInput) (*SignupResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if !emailPattern.MatchString(email) {
		return nil, errors.NewInvalidParameterError("email", "invalid email format")
	}
	source := strings.TrimSpace(input.Source)
	if source == "" {
		source = models.DefaultSignupSource
	}
	if len(source) > maxSourceLength {
		return nil, errors.NewInvalidParameterError("source", "too long")
	}

	duplicate, err := s.repo.Create(ctx, &models.Signup{
		Email:     email,
		Source:    source,
		UserAgent: input.UserAgent,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to store signup")
		return nil, errors.NewDatabaseError("signup", err)
	}

	if duplicate {
		s.logger.WithField("source", source).Info("Signup for known email")
		return &SignupResult{Success: true, Duplicate: true, Message: "Email already registered"}, nil
	}
	s.logger.WithField("source", source).Info("Signup stored")
	return &SignupResult{Success: true, Message: "Email stored successfully"}, nil
}

// Stats returns signup counts
func (s *SignupService) Stats(ctx context.Context) (*models.SignupStats, error) {
	stats, err := s.repo.Stats(ctx, s.now())
	if err != nil {
		return nil, errors.NewDatabaseError("signup stats", err)
	}
	return stats, nil
}
