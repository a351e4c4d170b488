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

// PublicHandler обслуживает анонимную поверхность погашения ссылок общего
// доступа: просмотр, комментарии и скачивание по непрозрачному токену.
// Аутентифицированные пользователи тоже проходят здесь (MaybeAuthenticator),
// тогда комментарии пишутся от имени их аккаунта.
type PublicHandler struct {
	shareService   services.ShareService
	commentService services.CommentService
	assetService   services.AssetService
}

// NewPublicHandler создает новый экземпляр PublicHandler.
func NewPublicHandler(
	ss services.ShareService,
	cs services.CommentService,
	as services.AssetService,
) *PublicHandler {
	return &PublicHandler{shareService: ss, commentService: cs, assetService: as}
}

// SharePasswordHeader - заголовок с паролем ссылки для GET-запросов,
// у которых нет тела. POST-запросы несут пароль в JSON.
const SharePasswordHeader = "X-Share-Password"

// respondShareDenial сворачивает все причины отказа в погашении в один
// общий ответ 404. Различать "нет такого токена", "ссылка истекла" и
// "неверный пароль" снаружи нельзя: это оракул для перебора токенов.
// Настоящая причина остается в логах сервиса.
func respondShareDenial(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, services.ErrShareNotFound),
		errors.Is(err, services.ErrShareExpired),
		errors.Is(err, services.ErrSharePasswordRequired),
		errors.Is(err, services.ErrSharePasswordMismatch):
		http.Error(w, "Ссылка недоступна", http.StatusNotFound)
		return true
	}
	return false
}

// Redeem обрабатывает POST запрос на погашение ссылки. Возвращает эфемерный
// грант; никакая сессия на сервере при этом не создается.
func (h *PublicHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req models.RedeemRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
			return
		}
	}

	grant, err := h.shareService.Redeem(token, req.Password)
	if err != nil {
		if respondShareDenial(w, err) {
			return
		}
		log.Printf("[PublicHandler:Redeem] Внутренняя ошибка: %v", err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(grant); err != nil {
		log.Printf("[PublicHandler:Redeem] Ошибка кодирования ответа: %v", err)
	}
}

// ListComments обрабатывает GET запрос на ленту комментариев по ссылке.
// Грант вычисляется заново при каждом обращении, отзыв ссылки действует сразу.
func (h *PublicHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	grant, ok := h.redeemFromRequest(w, r)
	if !ok {
		return
	}

	views, err := h.commentService.ListViaGrant(grant)
	if err != nil {
		log.Printf("[PublicHandler:ListComments] Внутренняя ошибка: %v", err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(views); err != nil {
		log.Printf("[PublicHandler:ListComments] Ошибка кодирования ответа: %v", err)
	}
}

// appendCommentBody - тело POST запроса на комментарий по ссылке: пароль
// ссылки плюс сам комментарий.
type appendCommentBody struct {
	Password string `json:"password,omitempty"`
	models.AppendCommentRequest
}

// AppendComment обрабатывает POST запрос на добавление комментария по ссылке.
// Гость обязан указать отображаемое имя; для аутентифицированного пользователя
// имя берется из его аккаунта независимо от тела запроса.
func (h *PublicHandler) AppendComment(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var body appendCommentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	grant, err := h.shareService.Redeem(token, body.Password)
	if err != nil {
		if respondShareDenial(w, err) {
			return
		}
		log.Printf("[PublicHandler:AppendComment] Внутренняя ошибка погашения: %v", err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	// При наличии валидного JWT автор - аккаунт, иначе гость
	var userID *int64
	if id, authed := middleware.GetUserIDFromContext(r.Context()); authed {
		userID = &id
	}

	comment, err := h.commentService.AppendViaGrant(grant, userID, body.AppendCommentRequest)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyBody):
			http.Error(w, "Текст комментария не может быть пустым", http.StatusBadRequest)
		case errors.Is(err, services.ErrGuestNameRequired):
			http.Error(w, "Укажите отображаемое имя", http.StatusBadRequest)
		case errors.Is(err, services.ErrForbidden):
			http.Error(w, "Версия вне области действия ссылки", http.StatusForbidden)
		case errors.Is(err, services.ErrVersionNotFound):
			http.Error(w, "Версия не найдена", http.StatusNotFound)
		default:
			log.Printf("[PublicHandler:AppendComment] Внутренняя ошибка: %v", err)
			http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err = json.NewEncoder(w).Encode(comment); err != nil {
		log.Printf("[PublicHandler:AppendComment] Ошибка кодирования ответа: %v", err)
	}
}

// Download обрабатывает GET запрос на скачивание файла по ссылке.
// Для подборки версия задается query-параметром version_id.
func (h *PublicHandler) Download(w http.ResponseWriter, r *http.Request) {
	grant, ok := h.redeemFromRequest(w, r)
	if !ok {
		return
	}

	var versionID int64
	if raw := r.URL.Query().Get("version_id"); raw != "" {
		parsed, err := parseQueryID(raw)
		if err != nil {
			http.Error(w, "Неверный параметр 'version_id'", http.StatusBadRequest)
			return
		}
		versionID = parsed
	}

	reader, version, err := h.assetService.DownloadViaGrant(grant, versionID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrForbidden):
			http.Error(w, "Скачивание по этой ссылке недоступно", http.StatusForbidden)
		case errors.Is(err, services.ErrVersionNotFound):
			http.Error(w, "Версия не найдена", http.StatusNotFound)
		default:
			log.Printf("[PublicHandler:Download] Внутренняя ошибка: %v", err)
			http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil {
			log.Printf("[PublicHandler:Download] Ошибка закрытия потока: %v", closeErr)
		}
	}()

	// Счетчик скачиваний обновляется в фоне и не задерживает отдачу байтов
	h.shareService.RegisterDownload(grant)

	writeVideoStream(w, reader, version)
}

// redeemFromRequest погашает токен из URL для GET-запросов: пароль передается
// заголовком, так как тела у запроса нет. При отказе ответ уже записан.
func (h *PublicHandler) redeemFromRequest(w http.ResponseWriter, r *http.Request) (*models.ScopedGrant, bool) {
	token := chi.URLParam(r, "token")
	password := r.Header.Get(SharePasswordHeader)

	grant, err := h.shareService.Redeem(token, password)
	if err != nil {
		if respondShareDenial(w, err) {
			return nil, false
		}
		log.Printf("[PublicHandler] Внутренняя ошибка погашения: %v", err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return nil, false
	}
	return grant, true
}
