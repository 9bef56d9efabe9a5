package services

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruralpay/payauth/internal/middleware"
	"github.com/ruralpay/payauth/internal/models"
	"github.com/ruralpay/payauth/internal/stepup"
)

type ChallengeIssuer interface {
	Issue(ctx context.Context, userID string, purpose models.Purpose) (*stepup.Challenge, string, error)
	Verify(ctx context.Context, userID, challengeID, code string) (*stepup.Challenge, error)
}

// OperationLogger records customer actions that happen outside a payment run.
type OperationLogger interface {
	LogOperation(ctx context.Context, userID, operation, status string, details models.Metadata)
}

type StepUpService struct {
	gate       ChallengeIssuer
	audit      OperationLogger
	validator  *ValidationHelper
	exposeCode bool
}

// NewStepUpService returns the one-time code in the issue response only when
// exposeCode is set; otherwise the code leaves through an out-of-band channel.
func NewStepUpService(gate ChallengeIssuer, audit OperationLogger, exposeCode bool) *StepUpService {
	return &StepUpService{
		gate:       gate,
		audit:      audit,
		validator:  NewValidationHelper(),
		exposeCode: exposeCode,
	}
}

type IssueChallengeRequest struct {
	Purpose models.Purpose `json:"purpose" validate:"required,oneof=transfer payment standing_order"`
}

type VerifyChallengeRequest struct {
	Code string `json:"code" validate:"required,numeric"`
}

type ChallengeResponse struct {
	ChallengeID string         `json:"challengeId"`
	Purpose     models.Purpose `json:"purpose"`
	Verified    bool           `json:"verified"`
	ExpiresAt   time.Time      `json:"expiresAt"`
	Code        string         `json:"code,omitempty"`
}

func challengeResponse(c *stepup.Challenge) ChallengeResponse {
	return ChallengeResponse{
		ChallengeID: c.ID,
		Purpose:     c.Purpose,
		Verified:    c.Verified,
		ExpiresAt:   c.ExpiresAt,
	}
}

// IssueChallenge starts a step-up verification
// @Summary Issue step-up challenge
// @Tags stepup
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body IssueChallengeRequest true "Challenge purpose"
// @Success 201 {object} ChallengeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /stepup/challenges [post]
func (s *StepUpService) IssueChallenge(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req IssueChallengeRequest
	if !s.validator.DecodeJSON(w, r, &req) {
		return
	}

	challenge, code, err := s.gate.Issue(r.Context(), userID, req.Purpose)
	if err != nil {
		log.Printf("[STEPUP] issue failed for user %s: %v", userID, err)
		SendErrorResponse(w, "could not complete, try again", http.StatusInternalServerError, nil)
		return
	}

	s.audit.LogOperation(r.Context(), userID, "stepup_issued", "success", models.Metadata{
		"challenge_id": challenge.ID,
		"purpose":      string(challenge.Purpose),
	})

	resp := challengeResponse(challenge)
	if s.exposeCode {
		resp.Code = code
	}
	writeJSON(w, http.StatusCreated, resp)
}

// VerifyChallenge submits the one-time code
// @Summary Verify step-up challenge
// @Tags stepup
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param challengeId path string true "Challenge ID"
// @Param request body VerifyChallengeRequest true "One-time code"
// @Success 200 {object} ChallengeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /stepup/challenges/{challengeId}/verify [post]
func (s *StepUpService) VerifyChallenge(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req VerifyChallengeRequest
	if !s.validator.DecodeJSON(w, r, &req) {
		return
	}

	challengeID := chi.URLParam(r, "challengeId")
	challenge, err := s.gate.Verify(r.Context(), userID, challengeID, req.Code)
	switch {
	case errors.Is(err, stepup.ErrChallengeNotFound):
		SendErrorResponse(w, "Challenge not found", http.StatusNotFound, nil)
		return
	case errors.Is(err, stepup.ErrChallengeExpired):
		SendErrorResponse(w, "Challenge has expired", http.StatusGone, nil)
		return
	case errors.Is(err, stepup.ErrTooManyAttempts):
		s.audit.LogOperation(r.Context(), userID, "stepup_exhausted", "failed", models.Metadata{"challenge_id": challengeID})
		SendErrorResponse(w, "Too many incorrect codes", http.StatusTooManyRequests, nil)
		return
	case errors.Is(err, stepup.ErrInvalidCode):
		SendErrorResponse(w, "Incorrect code", http.StatusBadRequest, nil)
		return
	case err != nil:
		log.Printf("[STEPUP] verify failed for challenge %s: %v", challengeID, err)
		SendErrorResponse(w, "could not complete, try again", http.StatusInternalServerError, nil)
		return
	}

	s.audit.LogOperation(r.Context(), userID, "stepup_verified", "success", models.Metadata{"challenge_id": challenge.ID})
	writeJSON(w, http.StatusOK, challengeResponse(challenge))
}
