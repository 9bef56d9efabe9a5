package services

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ruralpay/payauth/internal/middleware"
	"github.com/ruralpay/payauth/internal/models"
	"github.com/ruralpay/payauth/internal/pipeline"
	"github.com/ruralpay/payauth/internal/rails"
)

// Authorizer is the payment pipeline as seen by the HTTP layer.
type Authorizer interface {
	AuthorizeTransfer(ctx context.Context, req pipeline.TransferRequest) (pipeline.Outcome, error)
	AuthorizePaymentToPayee(ctx context.Context, req pipeline.PaymentRequest) (pipeline.Outcome, error)
	AuthorizeScheduledPayment(ctx context.Context, req pipeline.ScheduledPaymentRequest) (pipeline.Outcome, error)
	PreviewRecipient(ctx context.Context, name, sortCode, accountNumber string) (pipeline.RecipientPreview, error)
	PreviewRail(amount int64) (rails.Selection, error)
}

const idempotencyHeader = "Idempotency-Key"

type PaymentService struct {
	pipeline  Authorizer
	validator *ValidationHelper
}

func NewPaymentService(authorizer Authorizer) *PaymentService {
	return &PaymentService{
		pipeline:  authorizer,
		validator: NewValidationHelper(),
	}
}

// TransferRequest moves money between two of the caller's accounts.
type TransferRequest struct {
	FromAccountID string `json:"fromAccountId" validate:"required"`
	ToAccountID   string `json:"toAccountId" validate:"required"`
	Amount        int64  `json:"amount"`
	Reference     string `json:"reference,omitempty" validate:"max=18"`
	PIN           string `json:"pin" validate:"required"`
	ChallengeID   string `json:"challengeId,omitempty"`
}

// PaymentRequest pays either a saved payee or new bank details. Bank details
// are checked by the pipeline so that format errors carry its reasons.
type PaymentRequest struct {
	FromAccountID string `json:"fromAccountId" validate:"required"`
	PayeeID       string `json:"payeeId,omitempty"`
	Name          string `json:"name,omitempty" validate:"max=140"`
	SortCode      string `json:"sortCode,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
	Amount        int64  `json:"amount"`
	Reference     string `json:"reference,omitempty" validate:"max=18"`
	PIN           string `json:"pin" validate:"required"`
	ChallengeID   string `json:"challengeId,omitempty"`
}

type ScheduledPaymentRequest struct {
	PaymentRequest
	Frequency models.Frequency `json:"frequency" validate:"required,oneof=weekly fortnightly monthly quarterly annually"`
	StartDate time.Time        `json:"startDate" validate:"required"`
}

type RecipientPreviewRequest struct {
	Name          string `json:"name" validate:"max=140"`
	SortCode      string `json:"sortCode" validate:"required"`
	AccountNumber string `json:"accountNumber" validate:"required"`
}

func intentID(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(idempotencyHeader)); key != "" {
		return key
	}
	return uuid.New().String()
}

func (p PaymentRequest) toPipeline(intent, userID string) pipeline.PaymentRequest {
	return pipeline.PaymentRequest{
		IntentID:      intent,
		UserID:        userID,
		FromAccountID: p.FromAccountID,
		Destination: models.Destination{
			PayeeID:       p.PayeeID,
			Name:          p.Name,
			SortCode:      p.SortCode,
			AccountNumber: p.AccountNumber,
		},
		Amount:      p.Amount,
		Reference:   p.Reference,
		Credentials: pipeline.Credentials{PIN: p.PIN, ChallengeID: p.ChallengeID},
	}
}

// AuthorizeTransfer moves money between the caller's own accounts
// @Summary Transfer between own accounts
// @Description Runs the authorization pipeline for an own-account transfer
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Client intent id"
// @Param request body TransferRequest true "Transfer"
// @Success 201 {object} object{status=string,outcome=pipeline.Allowed}
// @Failure 400 {object} object{status=string,outcome=pipeline.ValidationFailed}
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} object{status=string,outcome=pipeline.Blocked}
// @Failure 428 {object} object{status=string,outcome=pipeline.RequiresStepUp}
// @Failure 500 {object} ErrorResponse
// @Router /payments/transfer [post]
func (s *PaymentService) AuthorizeTransfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req TransferRequest
	if !s.validator.DecodeJSON(w, r, &req) {
		return
	}

	out, err := s.pipeline.AuthorizeTransfer(r.Context(), pipeline.TransferRequest{
		IntentID:      intentID(r),
		UserID:        userID,
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
		Reference:     req.Reference,
		Credentials:   pipeline.Credentials{PIN: req.PIN, ChallengeID: req.ChallengeID},
	})
	writeOutcome(w, out, err)
}

// AuthorizePayment pays a saved payee or new bank details
// @Summary Pay a payee
// @Description Runs the authorization pipeline for a payment to a saved payee or to new bank details
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Client intent id"
// @Param request body PaymentRequest true "Payment"
// @Success 201 {object} object{status=string,outcome=pipeline.Allowed}
// @Failure 400 {object} object{status=string,outcome=pipeline.ValidationFailed}
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} object{status=string,outcome=pipeline.Blocked}
// @Failure 428 {object} object{status=string,outcome=pipeline.RequiresStepUp}
// @Failure 500 {object} ErrorResponse
// @Router /payments/payee [post]
func (s *PaymentService) AuthorizePayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req PaymentRequest
	if !s.validator.DecodeJSON(w, r, &req) {
		return
	}

	out, err := s.pipeline.AuthorizePaymentToPayee(r.Context(), req.toPipeline(intentID(r), userID))
	writeOutcome(w, out, err)
}

// AuthorizeScheduled sets up a standing order
// @Summary Schedule a payment
// @Description Runs the authorization pipeline and creates a standing order on the deferred rail
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Client intent id"
// @Param request body ScheduledPaymentRequest true "Standing order"
// @Success 201 {object} object{status=string,outcome=pipeline.Allowed}
// @Failure 400 {object} object{status=string,outcome=pipeline.ValidationFailed}
// @Failure 422 {object} object{status=string,outcome=pipeline.Blocked}
// @Failure 428 {object} object{status=string,outcome=pipeline.RequiresStepUp}
// @Failure 500 {object} ErrorResponse
// @Router /payments/scheduled [post]
func (s *PaymentService) AuthorizeScheduled(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req ScheduledPaymentRequest
	if !s.validator.DecodeJSON(w, r, &req) {
		return
	}

	out, err := s.pipeline.AuthorizeScheduledPayment(r.Context(), pipeline.ScheduledPaymentRequest{
		PaymentRequest: req.PaymentRequest.toPipeline(intentID(r), userID),
		Frequency:      req.Frequency,
		StartDate:      req.StartDate,
	})
	writeOutcome(w, out, err)
}

// PreviewRecipient checks bank details before the customer commits
// @Summary Preview recipient
// @Description Modulus check and Confirmation of Payee without side effects
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RecipientPreviewRequest true "Recipient"
// @Success 200 {object} pipeline.RecipientPreview
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /payments/preview/recipient [post]
func (s *PaymentService) PreviewRecipient(w http.ResponseWriter, r *http.Request) {
	var req RecipientPreviewRequest
	if !s.validator.DecodeJSON(w, r, &req) {
		return
	}

	preview, err := s.pipeline.PreviewRecipient(r.Context(), req.Name, req.SortCode, req.AccountNumber)
	if err != nil {
		log.Printf("[PAYMENT] recipient preview failed: %v", err)
		SendErrorResponse(w, pipeline.ErrInfrastructure.Error(), http.StatusInternalServerError, nil)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// PreviewRail quotes the rail and fee for an immediate payment
// @Summary Preview rail
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param amount query int true "Amount in pence"
// @Success 200 {object} rails.Selection
// @Failure 400 {object} ErrorResponse
// @Router /payments/preview/rail [get]
func (s *PaymentService) PreviewRail(w http.ResponseWriter, r *http.Request) {
	amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "amount must be a whole number of pence", http.StatusBadRequest, nil)
		return
	}

	selection, err := s.pipeline.PreviewRail(amount)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}
	writeJSON(w, http.StatusOK, selection)
}

func outcomeStatus(out pipeline.Outcome) int {
	switch out.(type) {
	case pipeline.Allowed:
		return http.StatusCreated
	case pipeline.Blocked:
		return http.StatusUnprocessableEntity
	case pipeline.RequiresStepUp:
		return http.StatusPreconditionRequired
	default:
		return http.StatusBadRequest
	}
}

func writeOutcome(w http.ResponseWriter, out pipeline.Outcome, err error) {
	switch {
	case errors.Is(err, models.ErrDuplicateTransaction):
		SendErrorResponse(w, "This payment has already been processed", http.StatusConflict, nil)
		return
	case err != nil:
		log.Printf("[PAYMENT] authorization failed: %v", err)
		SendErrorResponse(w, pipeline.ErrInfrastructure.Error(), http.StatusInternalServerError, nil)
		return
	}

	body, err := pipeline.MarshalOutcome(out)
	if err != nil {
		SendErrorResponse(w, pipeline.ErrInfrastructure.Error(), http.StatusInternalServerError, nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(outcomeStatus(out))
	w.Write(body)
}
