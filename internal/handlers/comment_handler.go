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

// CommentHandler обрабатывает HTTP-запросы аутентифицированных пользователей
// к ленте комментариев. Гостевая поверхность живет в PublicHandler.
type CommentHandler struct {
	commentService services.CommentService
}

// NewCommentHandler создает новый экземпляр CommentHandler.
func NewCommentHandler(cs services.CommentService) *CommentHandler {
	return &CommentHandler{commentService: cs}
}

// ListForVersion обрабатывает GET запрос на ленту комментариев версии.
func (h *CommentHandler) ListForVersion(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[CommentHandler:ListForVersion] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	versionID, err := parseIDParam(r, "versionID")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	views, err := h.commentService.ListForVersion(userID, versionID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrVersionNotFound):
			http.Error(w, "Версия не найдена", http.StatusNotFound)
		case errors.Is(err, services.ErrForbidden):
			http.Error(w, "Доступ запрещен", http.StatusForbidden)
		default:
			log.Printf("[CommentHandler:ListForVersion] Внутренняя ошибка для пользователя %d: %v", userID, err)
			http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(views); err != nil {
		log.Printf("[CommentHandler:ListForVersion] Ошибка кодирования ответа: %v", err)
	}
}

// Append обрабатывает POST запрос на добавление комментария от имени аккаунта.
func (h *CommentHandler) Append(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[CommentHandler:Append] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	versionID, err := parseIDParam(r, "versionID")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req models.AppendCommentRequest
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}
	// Версия берется из маршрута, тело ее переопределить не может
	req.AssetVersionID = versionID

	comment, err := h.commentService.AppendAsUser(userID, req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyBody):
			http.Error(w, "Текст комментария не может быть пустым", http.StatusBadRequest)
		case errors.Is(err, services.ErrVersionNotFound):
			http.Error(w, "Версия не найдена", http.StatusNotFound)
		case errors.Is(err, services.ErrForbidden):
			http.Error(w, "Доступ к ленте этой версии запрещен", http.StatusForbidden)
		default:
			log.Printf("[CommentHandler:Append] Внутренняя ошибка для пользователя %d: %v", userID, err)
			http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err = json.NewEncoder(w).Encode(comment); err != nil {
		log.Printf("[CommentHandler:Append] Ошибка кодирования ответа: %v", err)
	}
}

// MarkResolved обрабатывает POST запрос на отметку комментария решенным.
// Право на отметку есть только у владельцев актива.
func (h *CommentHandler) MarkResolved(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[CommentHandler:MarkResolved] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	commentID, err := parseIDParam(r, "commentID")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	comment, err := h.commentService.MarkResolved(userID, commentID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCommentNotFound):
			http.Error(w, "Комментарий не найден", http.StatusNotFound)
		case errors.Is(err, services.ErrForbidden):
			log.Printf("[CommentHandler:MarkResolved] Отказ в доступе к комментарию %d для пользователя %d", commentID, userID)
			http.Error(w, "Доступ запрещен", http.StatusForbidden)
		default:
			log.Printf("[CommentHandler:MarkResolved] Внутренняя ошибка для пользователя %d: %v", userID, err)
			http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(comment); err != nil {
		log.Printf("[CommentHandler:MarkResolved] Ошибка кодирования ответа: %v", err)
	}
}
