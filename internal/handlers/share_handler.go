package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/reelproof/server/internal/middleware"
	"github.com/reelproof/server/internal/models"
	"github.com/reelproof/server/internal/services"
)

// ShareHandler обрабатывает HTTP-запросы владельцев ссылок общего доступа.
// Публичная поверхность погашения живет в PublicHandler.
type ShareHandler struct {
	shareService services.ShareService
}

// NewShareHandler создает новый экземпляр ShareHandler.
func NewShareHandler(ss services.ShareService) *ShareHandler {
	return &ShareHandler{shareService: ss}
}

// Issue обрабатывает POST запрос на выпуск новой ссылки общего доступа.
func (h *ShareHandler) Issue(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[ShareHandler:Issue] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	var req models.IssueShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("[ShareHandler:Issue] Ошибка декодирования запроса: %v", err)
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	log.Printf("[ShareHandler:Issue] Выпуск ссылки (scope %s/%d) пользователем %d", req.ScopeType, req.ScopeRef, userID)

	share, err := h.shareService.Issue(userID, req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidPolicy):
			// В том числе ссылка на не-последнюю версию без обоснования
			http.Error(w, "Политика ссылки нарушена: проверьте область действия, срок и обоснование", http.StatusBadRequest)
		case errors.Is(err, services.ErrVersionNotFound), errors.Is(err, services.ErrCollectionNotFound):
			http.Error(w, "Объект области действия не найден", http.StatusNotFound)
		case errors.Is(err, services.ErrForbidden):
			http.Error(w, "Доступ запрещен", http.StatusForbidden)
		default:
			log.Printf("[ShareHandler:Issue] Внутренняя ошибка для пользователя %d: %v", userID, err)
			http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err = json.NewEncoder(w).Encode(share); err != nil {
		log.Printf("[ShareHandler:Issue] Ошибка кодирования ответа: %v", err)
	}
}

// ToggleActive обрабатывает POST запрос на переключение активности ссылки.
func (h *ShareHandler) ToggleActive(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[ShareHandler:ToggleActive] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	token := chi.URLParam(r, "token")

	share, err := h.shareService.ToggleActive(userID, token)
	if err != nil {
		if errors.Is(err, services.ErrShareNotFound) {
			http.Error(w, "Ссылка не найдена", http.StatusNotFound)
			return
		}
		log.Printf("[ShareHandler:ToggleActive] Внутренняя ошибка для пользователя %d: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(share); err != nil {
		log.Printf("[ShareHandler:ToggleActive] Ошибка кодирования ответа: %v", err)
	}
}

// ListOwn обрабатывает GET запрос на получение списка собственных ссылок.
func (h *ShareHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[ShareHandler:ListOwn] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	shares, err := h.shareService.ListOwn(userID)
	if err != nil {
		log.Printf("[ShareHandler:ListOwn] Внутренняя ошибка для пользователя %d: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(shares); err != nil {
		log.Printf("[ShareHandler:ListOwn] Ошибка кодирования ответа: %v", err)
	}
}
