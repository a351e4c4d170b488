package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/reelproof/server/internal/middleware"
	"github.com/reelproof/server/internal/models"
	"github.com/reelproof/server/internal/services"
)

// Заголовки с метаданными загружаемой версии: тело запроса - сырые байты видео.
const (
	headerFileName  = "X-File-Name"
	headerSeriesKey = "X-Series-Key"
	headerDuration  = "X-Duration-Seconds"
)

// AssetHandler обрабатывает HTTP-запросы, связанные с версиями видеоактивов.
type AssetHandler struct {
	assetService services.AssetService
}

// NewAssetHandler создает новый экземпляр AssetHandler.
func NewAssetHandler(as services.AssetService) *AssetHandler {
	return &AssetHandler{assetService: as}
}

// Upload обрабатывает POST запрос на загрузку новой версии видеоактива.
// Метаданные передаются заголовками, байты - телом запроса.
func (h *AssetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[AssetHandler:Upload] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	// Получаем размер файла из заголовка Content-Length
	sizeStr := r.Header.Get("Content-Length")
	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil || size <= 0 {
		log.Printf("[AssetHandler:Upload] Неверный или отсутствующий заголовок Content-Length: %s", sizeStr)
		http.Error(w, "Неверный или отсутствующий заголовок Content-Length", http.StatusBadRequest)
		return
	}

	fileName := r.Header.Get(headerFileName)
	if fileName == "" {
		http.Error(w, "Отсутствует заголовок "+headerFileName, http.StatusBadRequest)
		return
	}

	upload := services.UploadParams{
		FileName:    fileName,
		SizeBytes:   size,
		ContentType: r.Header.Get("Content-Type"),
	}
	if seriesKey := r.Header.Get(headerSeriesKey); seriesKey != "" {
		upload.SeriesKey = &seriesKey
	}
	if durStr := r.Header.Get(headerDuration); durStr != "" {
		// Длительность может быть еще неизвестна клиенту - заголовок необязателен
		dur, durErr := strconv.ParseFloat(durStr, 64)
		if durErr != nil || dur < 0 {
			http.Error(w, "Неверный заголовок "+headerDuration, http.StatusBadRequest)
			return
		}
		upload.DurationSeconds = &dur
	}

	log.Printf("[AssetHandler:Upload] Загрузка '%s' (%d байт) от пользователя %d", fileName, size, userID)

	version, err := h.assetService.UploadVersion(userID, upload, r.Body)
	if err != nil {
		if errors.Is(err, services.ErrEmptyFileName) {
			http.Error(w, "Имя файла не может быть пустым", http.StatusBadRequest)
			return
		}
		log.Printf("[AssetHandler:Upload] Ошибка сервиса при загрузке для пользователя %d: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера при загрузке файла", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err = json.NewEncoder(w).Encode(version); err != nil {
		log.Printf("[AssetHandler:Upload] Ошибка кодирования ответа: %v", err)
	}
}

// ListSeries обрабатывает GET запрос на получение активов, сгруппированных в серии.
func (h *AssetHandler) ListSeries(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[AssetHandler:ListSeries] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	series, err := h.assetService.ListSeries(userID)
	if err != nil {
		log.Printf("[AssetHandler:ListSeries] Ошибка сервиса для пользователя %d: %v", userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(series); err != nil {
		log.Printf("[AssetHandler:ListSeries] Ошибка кодирования ответа: %v", err)
	}
}

// Latest обрабатывает GET запрос на получение последней версии серии.
func (h *AssetHandler) Latest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[AssetHandler:Latest] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	seriesKey := chi.URLParam(r, "seriesKey")
	version, err := h.assetService.LatestInSeries(userID, seriesKey)
	if err != nil {
		if errors.Is(err, services.ErrSeriesNotFound) {
			http.Error(w, "Серия не найдена", http.StatusNotFound)
			return
		}
		log.Printf("[AssetHandler:Latest] Ошибка сервиса для серии '%s': %v", seriesKey, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(w).Encode(version); err != nil {
		log.Printf("[AssetHandler:Latest] Ошибка кодирования ответа: %v", err)
	}
}

// Download обрабатывает GET запрос на скачивание конкретной версии владельцем.
func (h *AssetHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		log.Printf("[AssetHandler:Download] Не удалось получить userID из контекста")
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	versionID, err := parseIDParam(r, "versionID")
	if err != nil {
		http.Error(w, "Неверный ID версии", http.StatusBadRequest)
		return
	}

	reader, version, err := h.assetService.DownloadVersion(userID, versionID)
	if err != nil {
		respondAssetError(w, err, userID, versionID, "Download")
		return
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil {
			log.Printf("[AssetHandler:Download] Ошибка закрытия потока файла: %v", closeErr)
		}
	}()

	writeVideoStream(w, reader, version)
	log.Printf("[AssetHandler:Download] Версия %d успешно отправлена пользователю %d", versionID, userID)
}

// DeleteVersion обрабатывает DELETE запрос на мягкое удаление одной версии.
func (h *AssetHandler) DeleteVersion(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	versionID, err := parseIDParam(r, "versionID")
	if err != nil {
		http.Error(w, "Неверный ID версии", http.StatusBadRequest)
		return
	}

	if err = h.assetService.DeleteVersion(userID, versionID); err != nil {
		respondAssetError(w, err, userID, versionID, "DeleteVersion")
		return
	}

	w.WriteHeader(http.StatusNoContent) // 204 No Content
	log.Printf("[AssetHandler:DeleteVersion] Версия %d удалена пользователем %d", versionID, userID)
}

// DeleteSeries обрабатывает DELETE запрос на мягкое удаление серии целиком.
func (h *AssetHandler) DeleteSeries(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	seriesKey := chi.URLParam(r, "seriesKey")
	if err := h.assetService.DeleteSeries(userID, seriesKey); err != nil {
		if errors.Is(err, services.ErrSeriesNotFound) {
			http.Error(w, "Серия не найдена", http.StatusNotFound)
			return
		}
		log.Printf("[AssetHandler:DeleteSeries] Ошибка сервиса для серии '%s': %v", seriesKey, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
	log.Printf("[AssetHandler:DeleteSeries] Серия '%s' удалена пользователем %d", seriesKey, userID)
}

// RenameSeries обрабатывает PUT запрос на смену отображаемого названия серии.
func (h *AssetHandler) RenameSeries(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	seriesKey := chi.URLParam(r, "seriesKey")

	var req models.RenameSeriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Неверный формат запроса", http.StatusBadRequest)
		return
	}

	if err := h.assetService.RenameSeries(userID, seriesKey, req.Title); err != nil {
		switch {
		case errors.Is(err, services.ErrSeriesNotFound):
			http.Error(w, "Серия не найдена", http.StatusNotFound)
		case errors.Is(err, services.ErrEmptyTitle):
			http.Error(w, "Название серии не может быть пустым", http.StatusBadRequest)
		default:
			log.Printf("[AssetHandler:RenameSeries] Ошибка сервиса для серии '%s': %v", seriesKey, err)
			http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
	log.Printf("[AssetHandler:RenameSeries] Серия '%s' переименована пользователем %d", seriesKey, userID)
}

// parseIDParam извлекает положительный числовой параметр маршрута.
func parseIDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("неверный параметр '%s'", name)
	}
	return id, nil
}

// parseQueryID разбирает положительный числовой query-параметр.
func parseQueryID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("неверное значение идентификатора '%s'", raw)
	}
	return id, nil
}

// respondAssetError переводит ошибки сервиса активов в HTTP-статусы.
func respondAssetError(w http.ResponseWriter, err error, userID, versionID int64, op string) {
	switch {
	case errors.Is(err, services.ErrVersionNotFound):
		http.Error(w, "Версия не найдена", http.StatusNotFound)
	case errors.Is(err, services.ErrForbidden):
		log.Printf("[AssetHandler:%s] Отказ в доступе к версии %d для пользователя %d", op, versionID, userID)
		http.Error(w, "Доступ запрещен", http.StatusForbidden)
	default:
		log.Printf("[AssetHandler:%s] Внутренняя ошибка (версия %d, пользователь %d): %v", op, versionID, userID, err)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
	}
}

// writeVideoStream отправляет байты версии с заголовками скачивания.
func writeVideoStream(w http.ResponseWriter, reader io.Reader, version *models.AssetVersion) {
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", version.FileName))
	w.Header().Set("Content-Type", "application/octet-stream")
	if version.SizeBytes != nil {
		w.Header().Set("Content-Length", strconv.FormatInt(*version.SizeBytes, 10))
	}

	if _, err := io.Copy(w, reader); err != nil {
		log.Printf("[AssetHandler] Ошибка копирования байтов версии %d в ответ: %v", version.ID, err)
	}
}
