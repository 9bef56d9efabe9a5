package services

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/ruralpay/payauth/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestPayeeService_UpdatePayee(t *testing.T) {
	newRouter := func(payees *MockPayeeEditor, ops *operationLog) http.Handler {
		r := chi.NewRouter()
		r.Patch("/payees/{payeeId}", NewPayeeService(payees, ops).UpdatePayee)
		return r
	}

	t.Run("updates the favourite flag", func(t *testing.T) {
		payees := new(MockPayeeEditor)
		ops := &operationLog{}

		payees.On("Update", mock.Anything, "user-1", "payee-1", mock.MatchedBy(func(u models.PayeeUpdate) bool {
			return u.Favourite != nil && *u.Favourite && u.Reference == nil && u.FirstUsedAt == nil
		})).Return(&models.Payee{ID: "payee-1", OwnerID: "user-1", Favourite: true}, nil)

		rec := httptest.NewRecorder()
		newRouter(payees, ops).ServeHTTP(rec, authedRequest(http.MethodPatch, "/payees/payee-1", "user-1", `{"favourite":true}`))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"favourite":true`)
		assert.Equal(t, []string{"payee_updated"}, ops.ops)
	})

	t.Run("first use cannot be set by the client", func(t *testing.T) {
		payees := new(MockPayeeEditor)

		rec := httptest.NewRecorder()
		newRouter(payees, &operationLog{}).ServeHTTP(rec, authedRequest(http.MethodPatch, "/payees/payee-1", "user-1", `{"FirstUsedAt":"2026-01-01T00:00:00Z"}`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		payees.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty change-set", func(t *testing.T) {
		payees := new(MockPayeeEditor)

		rec := httptest.NewRecorder()
		newRouter(payees, &operationLog{}).ServeHTTP(rec, authedRequest(http.MethodPatch, "/payees/payee-1", "user-1", `{}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("reference too long", func(t *testing.T) {
		payees := new(MockPayeeEditor)

		rec := httptest.NewRecorder()
		newRouter(payees, &operationLog{}).ServeHTTP(rec, authedRequest(http.MethodPatch, "/payees/payee-1", "user-1", `{"reference":"THIS REFERENCE IS FAR TOO LONG"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not the caller's payee", func(t *testing.T) {
		payees := new(MockPayeeEditor)
		payees.On("Update", mock.Anything, "user-2", "payee-1", mock.Anything).Return(nil, models.ErrNotFound)

		rec := httptest.NewRecorder()
		newRouter(payees, &operationLog{}).ServeHTTP(rec, authedRequest(http.MethodPatch, "/payees/payee-1", "user-2", `{"reference":"RENT"}`))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		payees := new(MockPayeeEditor)
		payees.On("Update", mock.Anything, "user-1", "payee-1", mock.Anything).Return(nil, errors.New("pq: timeout"))

		rec := httptest.NewRecorder()
		newRouter(payees, &operationLog{}).ServeHTTP(rec, authedRequest(http.MethodPatch, "/payees/payee-1", "user-1", `{"reference":"RENT"}`))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
