package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/reelproof/server/internal/middleware"
	"github.com/reelproof/server/internal/models"
	"github.com/reelproof/server/internal/services"
)

// CollectionHandler обрабатывает HTTP-запросы к подборкам версий.
type CollectionHandler struct {
	collectionService services.CollectionService
}

// NewCollectionHandler создает новый экземпляр CollectionHandler.
func NewCollectionHandler(cs services.CollectionService) *CollectionHandler {
	return &CollectionHandler{collectionService: cs}
}

// Create обрабатывает POST запрос на создание подборки.
func (h *CollectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[CollectionHandler:Create] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	var req models.CreateCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	collection, err := h.collectionService.Create(userID, req.Name)
	if err != nil {
		if errors.Is(err, services.ErrEmptyCollectionName) {
			http.Error(w, "Название подборки не может быть пустым", http.StatusBadRequest)
			return
		}
		log.Printf("[CollectionHandler:Create] Внутренняя ошибка для пользователя %d: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err = json.NewEncoder(w).Encode(collection); err != nil {
		log.Printf("[CollectionHandler:Create] Ошибка кодирования ответа: %v", err)
	}
}

// AddItem обрабатывает POST запрос на добавление версии в подборку.
// Операция идемпотентна: повторное добавление той же версии безвредно.
func (h *CollectionHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[CollectionHandler:AddItem] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	collectionID, err := parseIDParam(r, "collectionID")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req models.AddCollectionItemRequest
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	if err = h.collectionService.AddItem(userID, collectionID, req.AssetVersionID); err != nil {
		switch {
		case errors.Is(err, services.ErrCollectionNotFound):
			http.Error(w, "Подборка не найдена", http.StatusNotFound)
		case errors.Is(err, services.ErrVersionNotFound):
			http.Error(w, "Версия не найдена", http.StatusNotFound)
		case errors.Is(err, services.ErrForbidden):
			http.Error(w, "Доступ запрещен", http.StatusForbidden)
		default:
			log.Printf("[CollectionHandler:AddItem] Внутренняя ошибка для пользователя %d: %v", userID, err)
			http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListOwn обрабатывает GET запрос на список подборок пользователя.
func (h *CollectionHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[CollectionHandler:ListOwn] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	collections, err := h.collectionService.ListOwn(userID)
	if err != nil {
		log.Printf("[CollectionHandler:ListOwn] Внутренняя ошибка для пользователя %d: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(collections); err != nil {
		log.Printf("[CollectionHandler:ListOwn] Ошибка кодирования ответа: %v", err)
	}
}
