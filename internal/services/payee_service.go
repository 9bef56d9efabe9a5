package services

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruralpay/payauth/internal/middleware"
	"github.com/ruralpay/payauth/internal/models"
)

type PayeeEditor interface {
	Get(ctx context.Context, ownerID, payeeID string) (*models.Payee, error)
	Update(ctx context.Context, ownerID, payeeID string, update models.PayeeUpdate) (*models.Payee, error)
}

type PayeeService struct {
	payees    PayeeEditor
	audit     OperationLogger
	validator *ValidationHelper
}

func NewPayeeService(payees PayeeEditor, audit OperationLogger) *PayeeService {
	return &PayeeService{
		payees:    payees,
		audit:     audit,
		validator: NewValidationHelper(),
	}
}

// UpdatePayee changes the default reference or favourite flag of a saved payee
// @Summary Update payee
// @Tags payees
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payeeId path string true "Payee ID"
// @Param request body models.PayeeUpdate true "Fields to change"
// @Success 200 {object} models.Payee
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /payees/{payeeId} [patch]
func (s *PayeeService) UpdatePayee(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var update models.PayeeUpdate
	if !s.validator.DecodeJSON(w, r, &update) {
		return
	}
	if update.IsEmpty() {
		SendErrorResponse(w, "Nothing to update", http.StatusBadRequest, nil)
		return
	}

	payeeID := chi.URLParam(r, "payeeId")
	payee, err := s.payees.Update(r.Context(), userID, payeeID, update)
	if errors.Is(err, models.ErrNotFound) {
		SendErrorResponse(w, "Payee not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[PAYEE] update of %s failed: %v", payeeID, err)
		SendErrorResponse(w, "could not complete, try again", http.StatusInternalServerError, nil)
		return
	}

	s.audit.LogOperation(r.Context(), userID, "payee_updated", "success", models.Metadata{"payee_id": payee.ID})
	writeJSON(w, http.StatusOK, payee)
}
