package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/reelproof/server/internal/models"
	"github.com/reelproof/server/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// Длина токена ссылки в байтах: 32 байта = 256 бит энтропии.
const shareTokenBytes = 32

// Срок действия ссылки по вариантам политики.
const (
	shareTTLWeek  = "7d"
	shareTTLNever = "never"
	weekDuration  = 7 * 24 * time.Hour
)

// ShareService определяет интерфейс для сервиса ссылок общего доступа.
type ShareService interface {
	Issue(ownerID int64, req models.IssueShareRequest) (*models.Share, error)
	// Redeem проверяет токен и опциональный пароль и возвращает эфемерный грант.
	// Грант вычисляется заново при каждом вызове, никакая сессия на сервере не держится.
	Redeem(token, password string) (*models.ScopedGrant, error)
	ToggleActive(ownerID int64, token string) (*models.Share, error)
	ListOwn(ownerID int64) ([]models.Share, error)
	// RegisterDownload фиксирует скачивание по гранту. Счетчик обновляется
	// в лучшем случае и не влияет на путь чтения.
	RegisterDownload(grant *models.ScopedGrant)
}

// shareService реализует логику ссылок общего доступа.
var _ ShareService = (*shareService)(nil) // Проверка соответствия интерфейсу

type shareService struct {
	shareRepo      repository.ShareRepository
	assetRepo      repository.AssetRepository
	collectionRepo repository.CollectionRepository
	userRepo       repository.UserRepository
}

// NewShareService создает новый экземпляр сервиса ссылок общего доступа.
func NewShareService(
	shareRepo repository.ShareRepository,
	assetRepo repository.AssetRepository,
	collectionRepo repository.CollectionRepository,
	userRepo repository.UserRepository,
) ShareService {
	return &shareService{
		shareRepo:      shareRepo,
		assetRepo:      assetRepo,
		collectionRepo: collectionRepo,
		userRepo:       userRepo,
	}
}

// generateShareToken возвращает непрозрачный токен ссылки.
// UUID здесь недостаточно (122 бита), поэтому 32 байта из crypto/rand.
func generateShareToken() (string, error) {
	buf := make([]byte, shareTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("ошибка генерации токена ссылки: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Issue выпускает новую ссылку общего доступа. Политика проверяется при выпуске:
// ссылка на не-последнюю версию серии обязана иметь непустое обоснование.
// Открытый пароль хешируется перед сохранением и нигде не логируется.
func (s *shareService) Issue(ownerID int64, req models.IssueShareRequest) (*models.Share, error) {
	ctx := context.Background()

	owner, err := s.userRepo.GetUserByID(ctx, ownerID)
	if err != nil {
		return nil, errors.New("внутренняя ошибка сервера при выпуске ссылки")
	}

	var justification *string
	switch req.ScopeType {
	case models.ScopeSingleVersion:
		justification, err = s.validateVersionScope(ctx, owner, req)
		if err != nil {
			return nil, err
		}
	case models.ScopeCuratedCollection:
		if err = s.validateCollectionScope(ctx, owner, req.ScopeRef); err != nil {
			return nil, err
		}
		if j := strings.TrimSpace(req.Justification); j != "" {
			justification = &j
		}
	default:
		log.Printf("[ShareService] Неизвестный тип области действия: '%s'", req.ScopeType)
		return nil, ErrInvalidPolicy
	}

	expiresAt, err := resolveShareTTL(req.TTL)
	if err != nil {
		return nil, err
	}

	var passwordHash *string
	if req.Password != "" {
		hashed, hashErr := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if hashErr != nil {
			log.Printf("[ShareService] Ошибка хеширования пароля ссылки: %v", hashErr)
			return nil, errors.New("внутренняя ошибка сервера при хешировании пароля")
		}
		hashedStr := string(hashed)
		passwordHash = &hashedStr
	}

	token, err := generateShareToken()
	if err != nil {
		log.Printf("[ShareService] Ошибка генерации токена: %v", err)
		return nil, errors.New("внутренняя ошибка сервера при генерации токена")
	}

	share := &models.Share{
		Token:         token,
		ScopeType:     req.ScopeType,
		ScopeRef:      req.ScopeRef,
		PasswordHash:  passwordHash,
		AllowDownload: req.AllowDownload,
		ExpiresAt:     expiresAt,
		IsActive:      true,
		Justification: justification,
		CreatedBy:     ownerID,
	}

	shareID, err := s.shareRepo.CreateShare(ctx, share)
	if err != nil {
		log.Printf("[ShareService] Ошибка создания ссылки для пользователя %d: %v", ownerID, err)
		return nil, errors.New("внутренняя ошибка сервера при создании ссылки")
	}
	share.ID = shareID
	share.CreatedAt = time.Now()

	log.Printf("[ShareService] Ссылка ID %d (scope %s/%d) выпущена пользователем %d",
		shareID, share.ScopeType, share.ScopeRef, ownerID)
	return share, nil
}

// validateVersionScope проверяет область single_version: владелец имеет право
// записи на актив, а ссылка на не-последнюю версию несет непустое обоснование.
// Возвращает нормализованное обоснование (NULL для последней версии без текста).
func (s *shareService) validateVersionScope(
	ctx context.Context,
	owner *models.User,
	req models.IssueShareRequest,
) (*string, error) {
	version, err := s.assetRepo.GetVersionByID(ctx, req.ScopeRef)
	if err != nil {
		if errors.Is(err, repository.ErrVersionNotFound) {
			return nil, ErrVersionNotFound
		}
		return nil, errors.New("внутренняя ошибка сервера при проверке области действия")
	}
	if !canModifyAsset(owner, version) {
		log.Printf("[ShareService] Пользователь %d не имеет права делиться версией %d", owner.ID, version.ID)
		return nil, ErrForbidden
	}

	assets, err := s.assetRepo.ListByUploaderOrTeam(ctx, owner.ID, owner.TeamID)
	if err != nil {
		return nil, errors.New("внутренняя ошибка сервера при проверке области действия")
	}
	latest, err := LatestInSeries(assets, version.EffectiveSeriesKey())
	if err != nil {
		return nil, errors.New("внутренняя ошибка сервера при проверке области действия")
	}

	trimmed := strings.TrimSpace(req.Justification)
	if latest.ID != version.ID && trimmed == "" {
		// Политика выпуска, не погашения: уже выпущенные ссылки не перепроверяются,
		// когда появляется более новая версия
		log.Printf("[ShareService] Отказ в выпуске: версия %d не последняя в серии '%s', обоснование отсутствует",
			version.ID, version.EffectiveSeriesKey())
		return nil, ErrInvalidPolicy
	}
	if trimmed == "" {
		return nil, nil
	}
	return &trimmed, nil
}

// validateCollectionScope проверяет, что подборка существует и принадлежит владельцу.
func (s *shareService) validateCollectionScope(ctx context.Context, owner *models.User, collectionID int64) error {
	collection, err := s.collectionRepo.GetByID(ctx, collectionID)
	if err != nil {
		if errors.Is(err, repository.ErrCollectionNotFound) {
			return ErrCollectionNotFound
		}
		return errors.New("внутренняя ошибка сервера при проверке подборки")
	}
	if collection.OwnerID != owner.ID {
		log.Printf("[ShareService] Пользователь %d не владеет подборкой %d", owner.ID, collectionID)
		return ErrForbidden
	}
	return nil
}

// resolveShareTTL превращает вариант политики в конкретный срок действия:
// пресет "7d", бессрочный "never" (или пустая строка) либо точная дата
// в формате RFC3339. Дата в прошлом отклоняется при выпуске: такая ссылка
// была бы мертва с рождения.
func resolveShareTTL(ttl string) (*time.Time, error) {
	switch ttl {
	case shareTTLWeek:
		expiresAt := time.Now().Add(weekDuration)
		return &expiresAt, nil
	case shareTTLNever, "":
		return nil, nil // Бессрочная ссылка
	default:
		deadline, err := time.Parse(time.RFC3339, ttl)
		if err != nil {
			log.Printf("[ShareService] Неизвестный вариант срока действия: '%s'", ttl)
			return nil, ErrInvalidPolicy
		}
		if !deadline.After(time.Now()) {
			log.Printf("[ShareService] Отказ в выпуске: срок действия '%s' уже в прошлом", ttl)
			return nil, ErrInvalidPolicy
		}
		return &deadline, nil
	}
}

// Redeem проверяет токен и пароль и возвращает эфемерный грант на чтение.
// Причины отказа различимы для вызывающего кода (и для логов), но публичный
// обработчик сворачивает их в одно сообщение, чтобы не давать оракула для
// перебора токенов. Неактивная ссылка неотличима от несуществующей.
func (s *shareService) Redeem(token, password string) (*models.ScopedGrant, error) {
	ctx := context.Background()

	share, err := s.shareRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrShareNotFound) {
			return nil, ErrShareNotFound
		}
		return nil, errors.New("внутренняя ошибка сервера при погашении ссылки")
	}

	if !share.IsActive {
		log.Printf("[ShareService] Отказ: ссылка ID %d деактивирована", share.ID)
		return nil, ErrShareNotFound
	}

	// Срок действия проверяется по настенным часам в момент погашения:
	// фоновая зачистка для корректности не нужна
	if share.ExpiresAt != nil && time.Now().After(*share.ExpiresAt) {
		log.Printf("[ShareService] Отказ: срок действия ссылки ID %d истек", share.ID)
		return nil, ErrShareExpired
	}

	if share.PasswordHash != nil {
		if password == "" {
			log.Printf("[ShareService] Отказ: ссылка ID %d требует пароль", share.ID)
			return nil, ErrSharePasswordRequired
		}
		if bcrypt.CompareHashAndPassword([]byte(*share.PasswordHash), []byte(password)) != nil {
			log.Printf("[ShareService] Отказ: неверный пароль для ссылки ID %d", share.ID)
			return nil, ErrSharePasswordMismatch
		}
	}

	// Аналитический инкремент не блокирует и не проваливает путь чтения
	go func(shareID int64) {
		if incErr := s.shareRepo.IncrementViewCount(context.Background(), shareID); incErr != nil {
			log.Printf("[ShareService] Не удалось увеличить счетчик просмотров ссылки ID %d: %v", shareID, incErr)
		}
	}(share.ID)

	log.Printf("[ShareService] Ссылка ID %d успешно погашена", share.ID)
	return &models.ScopedGrant{
		Token:         share.Token,
		ScopeType:     share.ScopeType,
		ScopeRef:      share.ScopeRef,
		AllowDownload: share.AllowDownload,
		Justification: share.Justification,
	}, nil
}

// ToggleActive идемпотентно переключает активность ссылки владельца.
func (s *shareService) ToggleActive(ownerID int64, token string) (*models.Share, error) {
	ctx := context.Background()

	share, err := s.shareRepo.ToggleActive(ctx, token, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrShareNotFound) {
			// Не различаем "нет такой ссылки" и "ссылка чужая":
			// владелец видит только свои
			return nil, ErrShareNotFound
		}
		return nil, errors.New("внутренняя ошибка сервера при переключении ссылки")
	}
	return share, nil
}

// ListOwn возвращает все ссылки, выпущенные пользователем.
func (s *shareService) ListOwn(ownerID int64) ([]models.Share, error) {
	ctx := context.Background()

	shares, err := s.shareRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, errors.New("внутренняя ошибка сервера при получении списка ссылок")
	}
	return shares, nil
}

// RegisterDownload фиксирует скачивание по гранту (fire-and-forget).
func (s *shareService) RegisterDownload(grant *models.ScopedGrant) {
	go func(token string) {
		ctx := context.Background()
		share, err := s.shareRepo.GetByToken(ctx, token)
		if err != nil {
			return
		}
		if incErr := s.shareRepo.IncrementDownloadCount(ctx, share.ID); incErr != nil {
			log.Printf("[ShareService] Не удалось увеличить счетчик скачиваний ссылки ID %d: %v", share.ID, incErr)
		}
	}(grant.Token)
}

// Кастомные ошибки сервиса ссылок. Причины отказа в погашении различимы
// внутри системы, но публично сворачиваются в общий отказ.
var (
	ErrInvalidPolicy         = errors.New("политика ссылки нарушена при выпуске")
	ErrShareNotFound         = errors.New("ссылка не найдена или деактивирована")
	ErrShareExpired          = errors.New("срок действия ссылки истек")
	ErrSharePasswordRequired = errors.New("для доступа по ссылке требуется пароль")
	ErrSharePasswordMismatch = errors.New("неверный пароль ссылки")
	ErrCollectionNotFound    = errors.New("подборка не найдена")
)
