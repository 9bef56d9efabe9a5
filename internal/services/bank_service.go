package services

import (
	"net/http"

	"github.com/ruralpay/payauth/internal/cop"
	"github.com/ruralpay/payauth/internal/models"
)

type BankService struct{}

func NewBankService() *BankService {
	return &BankService{}
}

// GetAllBanks lists the known sort code ranges
// @Summary List banks
// @Description Sort code ranges with Confirmation of Payee participation. With ?sortCode= only the owning bank is returned.
// @Tags banks
// @Produce json
// @Param sortCode query string false "Sort code to look up"
// @Success 200 {array} cop.Bank
// @Failure 404 {object} ErrorResponse
// @Router /banks [get]
func (bs *BankService) GetAllBanks(w http.ResponseWriter, r *http.Request) {
	if sc := r.URL.Query().Get("sortCode"); sc != "" {
		bank, ok := cop.LookupBank(models.NormalizeSortCode(sc))
		if !ok {
			SendErrorResponse(w, "Unknown sort code", http.StatusNotFound, nil)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		writeJSON(w, http.StatusOK, []cop.Bank{bank})
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=86400")
	writeJSON(w, http.StatusOK, cop.Banks())
}
