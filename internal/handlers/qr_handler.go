package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ruralpay/payauth/internal/middleware"
	"github.com/ruralpay/payauth/internal/models"
	"github.com/ruralpay/payauth/internal/services"
	"github.com/skip2/go-qrcode"
)

const (
	defaultQRSize = 256
	maxQRSize     = 1024
)

// PayeeQR is the content encoded in a shared payee QR code.
type PayeeQR struct {
	Name          string `json:"name"`
	SortCode      string `json:"sortCode"`
	AccountNumber string `json:"accountNumber"`
	Reference     string `json:"reference,omitempty"`
}

type QRHandler struct {
	payees services.PayeeEditor
}

func NewQRHandler(payees services.PayeeEditor) *QRHandler {
	return &QRHandler{payees: payees}
}

// PayeeQR renders a saved payee's bank details as a QR code
// @Summary Payee QR code
// @Description PNG QR code with the payee's name, sort code and account number. format=json returns the image base64 encoded.
// @Tags payees
// @Produce png
// @Produce json
// @Security BearerAuth
// @Param payeeId path string true "Payee ID"
// @Param size query int false "Image size in pixels (max 1024)"
// @Param format query string false "png (default) or json"
// @Success 200 {object} object{qrData=string,qrImage=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /payees/{payeeId}/qr [get]
func (h *QRHandler) PayeeQR(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	size := defaultQRSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 64 || n > maxQRSize {
			services.SendErrorResponse(w, "size must be between 64 and 1024", http.StatusBadRequest, nil)
			return
		}
		size = n
	}

	payee, err := h.payees.Get(r.Context(), userID, chi.URLParam(r, "payeeId"))
	if errors.Is(err, models.ErrNotFound) {
		services.SendErrorResponse(w, "Payee not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[QR] payee lookup failed: %v", err)
		services.SendErrorResponse(w, "could not complete, try again", http.StatusInternalServerError, nil)
		return
	}

	content, err := json.Marshal(PayeeQR{
		Name:          payee.Name,
		SortCode:      payee.SortCode,
		AccountNumber: payee.AccountNumber,
		Reference:     payee.Reference,
	})
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	png, err := qrcode.Encode(string(content), qrcode.Medium, size)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"qrData":  string(content),
			"qrImage": base64.StdEncoding.EncodeToString(png),
		})
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}
