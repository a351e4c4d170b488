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

// ScanHandler обрабатывает HTTP-запросы входа по QR-коду.
// Create и Status публичны (их зовет еще не вошедший веб-клиент),
// Scanned и Confirm требуют аутентификации мобильного приложения.
type ScanHandler struct {
	scanService services.ScanService
}

// NewScanHandler создает новый экземпляр ScanHandler.
func NewScanHandler(ss services.ScanService) *ScanHandler {
	return &ScanHandler{scanService: ss}
}

// Create обрабатывает POST запрос на создание сессии входа по QR-коду.
func (h *ScanHandler) Create(w http.ResponseWriter, r *http.Request) {
	session, err := h.scanService.Create()
	if err != nil {
		log.Printf("[ScanHandler:Create] Внутренняя ошибка: %v", err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err = json.NewEncoder(w).Encode(statusResponse(session)); err != nil {
		log.Printf("[ScanHandler:Create] Ошибка кодирования ответа: %v", err)
	}
}

// Status обрабатывает GET запрос опроса состояния сессии.
func (h *ScanHandler) Status(w http.ResponseWriter, r *http.Request) {
	scanID := chi.URLParam(r, "scanID")

	session, err := h.scanService.Status(scanID)
	if err != nil {
		if errors.Is(err, services.ErrScanUnknownOrTerminal) {
			http.Error(w, "Сессия не найдена", http.StatusNotFound)
			return
		}
		log.Printf("[ScanHandler:Status] Внутренняя ошибка для сессии '%s': %v", scanID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(statusResponse(session)); err != nil {
		log.Printf("[ScanHandler:Status] Ошибка кодирования ответа: %v", err)
	}
}

// Scanned обрабатывает POST запрос мобильного приложения об успешном
// сканировании QR-кода. Повторное сканирование той же сессии безвредно.
func (h *ScanHandler) Scanned(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetUserIDFromContext(r.Context()); !ok {
		log.Printf("[ScanHandler:Scanned] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	scanID := chi.URLParam(r, "scanID")

	if err := h.scanService.MarkScanned(scanID); err != nil {
		if errors.Is(err, services.ErrScanUnknownOrTerminal) {
			http.Error(w, "Сессия не найдена или завершена - начните вход заново", http.StatusGone)
			return
		}
		log.Printf("[ScanHandler:Scanned] Внутренняя ошибка для сессии '%s': %v", scanID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Confirm обрабатывает POST запрос мобильного приложения на подтверждение
// входа. Личность берется из JWT приложения, не из тела запроса.
func (h *ScanHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[ScanHandler:Confirm] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	scanID := chi.URLParam(r, "scanID")

	session, err := h.scanService.Confirm(scanID, userID)
	if err != nil {
		if errors.Is(err, services.ErrScanUnknownOrTerminal) {
			http.Error(w, "Сессия не найдена или завершена - начните вход заново", http.StatusGone)
			return
		}
		log.Printf("[ScanHandler:Confirm] Внутренняя ошибка для сессии '%s': %v", scanID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(statusResponse(session)); err != nil {
		log.Printf("[ScanHandler:Confirm] Ошибка кодирования ответа: %v", err)
	}
}

// statusResponse собирает публичное представление сессии: внутренние поля
// не раскрываются, токен присутствует только в confirmed.
func statusResponse(session *models.ScanSession) models.ScanStatusResponse {
	resp := models.ScanStatusResponse{
		ScanID:    session.ScanID,
		State:     session.State,
		ExpiresAt: session.ExpiresAt,
	}
	if session.State == models.ScanStateConfirmed {
		resp.Token = session.IssuedCredential
	}
	return resp
}
