package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/reelproof/server/internal/handlers"
	"github.com/reelproof/server/internal/models"
	"github.com/reelproof/server/internal/services"
)

func setupShareRouter(h *handlers.ShareHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/shares", h.Issue)
	r.Get("/shares", h.ListOwn)
	r.Post("/shares/{token}/toggle", h.ToggleActive)
	return r
}

func TestShareHandler_Issue(t *testing.T) {
	t.Run("Успешный выпуск", func(t *testing.T) {
		shareService := new(MockShareService)
		h := handlers.NewShareHandler(shareService)
		r := setupShareRouter(h)
		shareService.On("Issue", int64(7), models.IssueShareRequest{
			ScopeType:     models.ScopeSingleVersion,
			ScopeRef:      42,
			AllowDownload: true,
			TTL:           "7d",
		}).Return(&models.Share{ID: 1, Token: "tok123", ScopeType: models.ScopeSingleVersion, ScopeRef: 42}, nil).Once()

		body := `{"scope_type": "single_version", "scope_ref": 42, "allow_download": true, "ttl": "7d"}`
		req := withUser(httptest.NewRequest(http.MethodPost, "/shares", strings.NewReader(body)), 7)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		var share models.Share
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &share))
		assert.Equal(t, "tok123", share.Token)
		shareService.AssertExpectations(t)
	})

	t.Run("Нарушение политики", func(t *testing.T) {
		shareService := new(MockShareService)
		h := handlers.NewShareHandler(shareService)
		r := setupShareRouter(h)
		shareService.On("Issue", int64(7), mock.Anything).
			Return(nil, services.ErrInvalidPolicy).Once()

		body := `{"scope_type": "single_version", "scope_ref": 41}`
		req := withUser(httptest.NewRequest(http.MethodPost, "/shares", strings.NewReader(body)), 7)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "Политика ссылки нарушена")
	})

	t.Run("Объект области действия не найден", func(t *testing.T) {
		shareService := new(MockShareService)
		h := handlers.NewShareHandler(shareService)
		r := setupShareRouter(h)
		shareService.On("Issue", int64(7), mock.Anything).
			Return(nil, services.ErrVersionNotFound).Once()

		body := `{"scope_type": "single_version", "scope_ref": 999}`
		req := withUser(httptest.NewRequest(http.MethodPost, "/shares", strings.NewReader(body)), 7)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("Чужая версия", func(t *testing.T) {
		shareService := new(MockShareService)
		h := handlers.NewShareHandler(shareService)
		r := setupShareRouter(h)
		shareService.On("Issue", int64(7), mock.Anything).
			Return(nil, services.ErrForbidden).Once()

		body := `{"scope_type": "single_version", "scope_ref": 42}`
		req := withUser(httptest.NewRequest(http.MethodPost, "/shares", strings.NewReader(body)), 7)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("Невалидный JSON", func(t *testing.T) {
		shareService := new(MockShareService)
		h := handlers.NewShareHandler(shareService)
		r := setupShareRouter(h)

		req := withUser(httptest.NewRequest(http.MethodPost, "/shares", strings.NewReader(`{`)), 7)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		shareService.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
	})

	t.Run("Нет userID в контексте", func(t *testing.T) {
		shareService := new(MockShareService)
		h := handlers.NewShareHandler(shareService)
		r := setupShareRouter(h)

		req := httptest.NewRequest(http.MethodPost, "/shares", strings.NewReader(`{}`))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestShareHandler_ToggleActive(t *testing.T) {
	t.Run("Успешное переключение", func(t *testing.T) {
		shareService := new(MockShareService)
		h := handlers.NewShareHandler(shareService)
		r := setupShareRouter(h)
		shareService.On("ToggleActive", int64(7), "tok123").
			Return(&models.Share{ID: 1, Token: "tok123", IsActive: false}, nil).Once()

		req := withUser(httptest.NewRequest(http.MethodPost, "/shares/tok123/toggle", nil), 7)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var share models.Share
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &share))
		assert.False(t, share.IsActive)
		shareService.AssertExpectations(t)
	})

	t.Run("Ссылка не найдена или чужая", func(t *testing.T) {
		shareService := new(MockShareService)
		h := handlers.NewShareHandler(shareService)
		r := setupShareRouter(h)
		shareService.On("ToggleActive", int64(7), "tok123").
			Return(nil, services.ErrShareNotFound).Once()

		req := withUser(httptest.NewRequest(http.MethodPost, "/shares/tok123/toggle", nil), 7)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestShareHandler_ListOwn(t *testing.T) {
	t.Run("Список собственных ссылок", func(t *testing.T) {
		shareService := new(MockShareService)
		h := handlers.NewShareHandler(shareService)
		r := setupShareRouter(h)
		shareService.On("ListOwn", int64(7)).Return([]models.Share{
			{ID: 2, Token: "b"},
			{ID: 1, Token: "a"},
		}, nil).Once()

		req := withUser(httptest.NewRequest(http.MethodGet, "/shares", nil), 7)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var shares []models.Share
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &shares))
		require.Len(t, shares, 2)
		shareService.AssertExpectations(t)
	})

	t.Run("Внутренняя ошибка сервера", func(t *testing.T) {
		shareService := new(MockShareService)
		h := handlers.NewShareHandler(shareService)
		r := setupShareRouter(h)
		shareService.On("ListOwn", int64(7)).Return(nil, errors.New("db down")).Once()

		req := withUser(httptest.NewRequest(http.MethodGet, "/shares", nil), 7)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}
