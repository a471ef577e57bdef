package api

import (
	"net/http"

	"github.com/scor-analyzer/internal/service"
)

// handleSignup handles POST /api/signups
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if s.signups == nil {
		respondError(w, r, errSignupsDisabled)
		return
	}

	var input service.SignupInput
	if err := parseJSONBody(r, &input); err != nil {
		respondError(w, r, err)
		return
	}
	input.UserAgent = r.UserAgent()

	result, err := s.signups.Signup(r.Context(), input)
	if err != nil {
		respondError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	respondJSON(w, status, result)
}

// handleSignupStats handles GET /api/signups/stats
func (s *Server) handleSignupStats(w http.ResponseWriter, r *http.Request) {
	if s.signups == nil {
		respondError(w, r, errSignupsDisabled)
		return
	}

	stats, err := s.signups.Stats(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
