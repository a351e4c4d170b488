package services

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/google/uuid"
	"github.com/reelproof/server/internal/models"
	"github.com/reelproof/server/internal/repository"
	"github.com/reelproof/server/internal/storage"
)

// AssetService определяет интерфейс для сервиса работы с версиями видеоактивов.
type AssetService interface {
	UploadVersion(uploaderID int64, upload UploadParams, reader io.Reader) (*models.AssetVersion, error)
	ListSeries(userID int64) ([]models.AssetSeries, error)
	LatestInSeries(userID int64, seriesKey string) (*models.AssetVersion, error)
	DownloadVersion(userID int64, versionID int64) (io.ReadCloser, *models.AssetVersion, error)
	// DownloadViaGrant отдает содержимое версии по эфемерному гранту ссылки.
	// Версия обязана входить в область действия гранта, а сам грант - разрешать скачивание.
	DownloadViaGrant(grant *models.ScopedGrant, versionID int64) (io.ReadCloser, *models.AssetVersion, error)
	DeleteVersion(userID int64, versionID int64) error
	DeleteSeries(userID int64, seriesKey string) error
	RenameSeries(userID int64, seriesKey string, title string) error
}

// UploadParams описывает метаданные загружаемой версии.
type UploadParams struct {
	FileName        string
	SeriesKey       *string // Явный ключ серии; NULL - ключ выводится из имени файла
	SizeBytes       int64
	DurationSeconds *float64 // Может быть неизвестна, пока метаданные обрабатываются
	ContentType     string
}

// assetService реализует логику работы с версиями активов.
var _ AssetService = (*assetService)(nil) // Проверка соответствия интерфейсу

type assetService struct {
	assetRepo      repository.AssetRepository
	userRepo       repository.UserRepository
	collectionRepo repository.CollectionRepository
	fileStorage    storage.FileStorage
}

// NewAssetService создает новый экземпляр сервиса активов.
func NewAssetService(
	assetRepo repository.AssetRepository,
	userRepo repository.UserRepository,
	collectionRepo repository.CollectionRepository,
	fileStorage storage.FileStorage,
) AssetService {
	return &assetService{
		assetRepo:      assetRepo,
		userRepo:       userRepo,
		collectionRepo: collectionRepo,
		fileStorage:    fileStorage,
	}
}

// canModifyAsset сообщает, имеет ли пользователь право записи на актив:
// он либо загрузил его сам, либо состоит в команде-владельце.
func canModifyAsset(user *models.User, asset *models.AssetVersion) bool {
	if user == nil || asset == nil {
		return false
	}
	if asset.UploaderID == user.ID {
		return true
	}
	return user.TeamID != nil && asset.TeamID != nil && *user.TeamID == *asset.TeamID
}

// UploadVersion загружает байты новой версии в объектное хранилище и создает
// запись о версии. Номер версии внутри серии присваивает БД (максимум плюс один).
func (s *assetService) UploadVersion(
	uploaderID int64,
	upload UploadParams,
	reader io.Reader,
) (*models.AssetVersion, error) {
	ctx := context.Background()

	uploader, err := s.userRepo.GetUserByID(ctx, uploaderID)
	if err != nil {
		log.Printf("[AssetService] Не удалось получить загружающего пользователя %d: %v", uploaderID, err)
		return nil, errors.New("внутренняя ошибка сервера при загрузке версии")
	}

	if upload.FileName == "" {
		return nil, ErrEmptyFileName
	}

	// Ключ объекта не зависит от имени файла: версии одной серии не должны
	// перезаписывать друг друга в хранилище
	objectKey := uuid.NewString()

	if err = s.fileStorage.UploadFile(ctx, objectKey, reader, upload.SizeBytes, upload.ContentType); err != nil {
		log.Printf("[AssetService] Ошибка загрузки файла '%s' в хранилище: %v", upload.FileName, err)
		return nil, errors.New("внутренняя ошибка сервера при сохранении файла")
	}

	version := &models.AssetVersion{
		SeriesKey:       upload.SeriesKey,
		FileName:        upload.FileName,
		ObjectKey:       objectKey,
		SizeBytes:       &upload.SizeBytes,
		DurationSeconds: upload.DurationSeconds,
		UploaderID:      uploader.ID,
		TeamID:          uploader.TeamID,
	}

	versionID, versionNumber, err := s.assetRepo.CreateVersion(ctx, version)
	if err != nil {
		log.Printf("[AssetService] Ошибка создания записи о версии '%s': %v", upload.FileName, err)
		return nil, errors.New("внутренняя ошибка сервера при создании версии")
	}
	version.ID = versionID
	version.VersionNumber = versionNumber

	log.Printf("[AssetService] Версия %d (номер %d) серии '%s' загружена пользователем %d",
		versionID, versionNumber, version.EffectiveSeriesKey(), uploaderID)
	return version, nil
}

// ListSeries возвращает все доступные пользователю активы, сгруппированные
// в серии с версиями по убыванию номера.
func (s *assetService) ListSeries(userID int64) ([]models.AssetSeries, error) {
	ctx := context.Background()

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, errors.New("внутренняя ошибка сервера при получении списка серий")
	}

	assets, err := s.assetRepo.ListByUploaderOrTeam(ctx, user.ID, user.TeamID)
	if err != nil {
		return nil, errors.New("внутренняя ошибка сервера при получении списка серий")
	}

	groups, _ := GroupBySeries(assets)
	series := make([]models.AssetSeries, 0, len(groups))
	for key, versions := range groups {
		entry := models.AssetSeries{SeriesKey: key, Versions: versions}
		if len(versions) > 0 {
			entry.Title = versions[0].SeriesTitle
		}
		series = append(series, entry)
	}
	return series, nil
}

// LatestInSeries возвращает последнюю версию указанной серии.
func (s *assetService) LatestInSeries(userID int64, seriesKey string) (*models.AssetVersion, error) {
	ctx := context.Background()

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, errors.New("внутренняя ошибка сервера при поиске серии")
	}

	assets, err := s.assetRepo.ListByUploaderOrTeam(ctx, user.ID, user.TeamID)
	if err != nil {
		return nil, errors.New("внутренняя ошибка сервера при поиске серии")
	}

	latest, err := LatestInSeries(assets, seriesKey)
	if err != nil {
		log.Printf("[AssetService] Серия '%s' не найдена для пользователя %d", seriesKey, userID)
		return nil, ErrSeriesNotFound
	}
	return latest, nil
}

// DownloadVersion открывает поток байтов конкретной версии для владельца.
func (s *assetService) DownloadVersion(
	userID int64,
	versionID int64,
) (io.ReadCloser, *models.AssetVersion, error) {
	ctx := context.Background()

	version, user, err := s.versionWithCaller(ctx, userID, versionID)
	if err != nil {
		return nil, nil, err
	}
	if !canModifyAsset(user, version) {
		log.Printf("[AssetService] Пользователь %d не имеет доступа к версии %d", userID, versionID)
		return nil, nil, ErrForbidden
	}

	reader, err := s.fileStorage.DownloadFile(ctx, version.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			log.Printf("[AssetService] Объект версии %d отсутствует в хранилище", versionID)
			return nil, nil, ErrVersionNotFound
		}
		log.Printf("[AssetService] Ошибка скачивания объекта версии %d: %v", versionID, err)
		return nil, nil, errors.New("внутренняя ошибка сервера при скачивании файла")
	}
	return reader, version, nil
}

// DownloadViaGrant открывает поток байтов версии по гранту ссылки общего доступа.
// Версия при versionID == 0 для single_version берется из самого гранта.
func (s *assetService) DownloadViaGrant(
	grant *models.ScopedGrant,
	versionID int64,
) (io.ReadCloser, *models.AssetVersion, error) {
	ctx := context.Background()

	if !grant.AllowDownload {
		log.Printf("[AssetService] Грант ссылки %s не разрешает скачивание", grant.ScopeType)
		return nil, nil, ErrForbidden
	}

	switch grant.ScopeType {
	case models.ScopeSingleVersion:
		if versionID == 0 {
			versionID = grant.ScopeRef
		}
		if versionID != grant.ScopeRef {
			log.Printf("[AssetService] Версия %d вне области действия гранта (scope %d)", versionID, grant.ScopeRef)
			return nil, nil, ErrForbidden
		}
	case models.ScopeCuratedCollection:
		ids, err := s.collectionRepo.ListItemVersionIDs(ctx, grant.ScopeRef)
		if err != nil {
			return nil, nil, errors.New("внутренняя ошибка сервера при проверке области действия")
		}
		found := false
		for _, id := range ids {
			if id == versionID {
				found = true
				break
			}
		}
		if !found {
			log.Printf("[AssetService] Версия %d не входит в подборку %d", versionID, grant.ScopeRef)
			return nil, nil, ErrForbidden
		}
	default:
		return nil, nil, errors.New("неизвестный тип области действия гранта")
	}

	version, err := s.assetRepo.GetVersionByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, repository.ErrVersionNotFound) {
			return nil, nil, ErrVersionNotFound
		}
		return nil, nil, errors.New("внутренняя ошибка сервера при получении версии")
	}

	reader, err := s.fileStorage.DownloadFile(ctx, version.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			log.Printf("[AssetService] Объект версии %d отсутствует в хранилище", versionID)
			return nil, nil, ErrVersionNotFound
		}
		log.Printf("[AssetService] Ошибка скачивания объекта версии %d: %v", versionID, err)
		return nil, nil, errors.New("внутренняя ошибка сервера при скачивании файла")
	}
	return reader, version, nil
}

// DeleteVersion мягко удаляет одну версию.
func (s *assetService) DeleteVersion(userID int64, versionID int64) error {
	ctx := context.Background()

	version, user, err := s.versionWithCaller(ctx, userID, versionID)
	if err != nil {
		return err
	}
	if !canModifyAsset(user, version) {
		log.Printf("[AssetService] Попытка удалить чужую версию %d пользователем %d", versionID, userID)
		return ErrForbidden
	}

	if err = s.assetRepo.SoftDeleteByIDs(ctx, []int64{versionID}); err != nil {
		return errors.New("внутренняя ошибка сервера при удалении версии")
	}
	log.Printf("[AssetService] Версия %d удалена пользователем %d", versionID, userID)
	return nil
}

// DeleteSeries мягко удаляет все версии серии целиком.
func (s *assetService) DeleteSeries(userID int64, seriesKey string) error {
	ctx := context.Background()

	ids, err := s.seriesVersionIDs(ctx, userID, seriesKey)
	if err != nil {
		return err
	}

	if err = s.assetRepo.SoftDeleteByIDs(ctx, ids); err != nil {
		return errors.New("внутренняя ошибка сервера при удалении серии")
	}
	log.Printf("[AssetService] Серия '%s' (%d версий) удалена пользователем %d", seriesKey, len(ids), userID)
	return nil
}

// RenameSeries обновляет отображаемое название серии у всех ее версий.
func (s *assetService) RenameSeries(userID int64, seriesKey string, title string) error {
	ctx := context.Background()

	if title == "" {
		return ErrEmptyTitle
	}

	ids, err := s.seriesVersionIDs(ctx, userID, seriesKey)
	if err != nil {
		return err
	}

	if err = s.assetRepo.SetSeriesTitleByIDs(ctx, ids, title); err != nil {
		return errors.New("внутренняя ошибка сервера при переименовании серии")
	}
	log.Printf("[AssetService] Серия '%s' переименована в '%s' пользователем %d", seriesKey, title, userID)
	return nil
}

// versionWithCaller загружает версию и вызывающего пользователя одной парой.
func (s *assetService) versionWithCaller(
	ctx context.Context,
	userID int64,
	versionID int64,
) (*models.AssetVersion, *models.User, error) {
	version, err := s.assetRepo.GetVersionByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, repository.ErrVersionNotFound) {
			return nil, nil, ErrVersionNotFound
		}
		return nil, nil, errors.New("внутренняя ошибка сервера при получении версии")
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, nil, errors.New("внутренняя ошибка сервера при получении пользователя")
	}
	return version, user, nil
}

// seriesVersionIDs возвращает ID всех доступных пользователю версий серии.
func (s *assetService) seriesVersionIDs(
	ctx context.Context,
	userID int64,
	seriesKey string,
) ([]int64, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, errors.New("внутренняя ошибка сервера при получении пользователя")
	}

	assets, err := s.assetRepo.ListByUploaderOrTeam(ctx, user.ID, user.TeamID)
	if err != nil {
		return nil, errors.New("внутренняя ошибка сервера при получении списка версий")
	}

	groups, _ := GroupBySeries(assets)
	versions, ok := groups[seriesKey]
	if !ok || len(versions) == 0 {
		return nil, ErrSeriesNotFound
	}

	ids := make([]int64, 0, len(versions))
	for _, v := range versions {
		ids = append(ids, v.ID)
	}
	return ids, nil
}

// Кастомные ошибки сервиса активов.
var (
	ErrVersionNotFound = errors.New("версия актива не найдена")
	ErrForbidden       = errors.New("доступ запрещен")
	ErrEmptyFileName   = errors.New("имя файла не может быть пустым")
	ErrEmptyTitle      = errors.New("название серии не может быть пустым")
)
