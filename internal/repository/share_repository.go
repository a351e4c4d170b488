package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/reelproof/server/internal/models"
)

// Колонки таблицы shares, возвращаемые во всех запросах чтения.
const shareColumns = `id, token, scope_type, scope_ref, password_hash, allow_download,
	expires_at, is_active, justification, view_count, download_count, created_by, created_at`

// ShareRepository определяет методы для работы со ссылками общего доступа.
type ShareRepository interface {
	CreateShare(ctx context.Context, share *models.Share) (int64, error)
	GetByToken(ctx context.Context, token string) (*models.Share, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]models.Share, error)
	ToggleActive(ctx context.Context, token string, ownerID int64) (*models.Share, error)
	IncrementViewCount(ctx context.Context, shareID int64) error
	IncrementDownloadCount(ctx context.Context, shareID int64) error
}

// postgresShareRepository реализует ShareRepository для PostgreSQL.
type postgresShareRepository struct {
	db *sqlx.DB
}

// NewPostgresShareRepository создает новый экземпляр репозитория ссылок общего доступа.
func NewPostgresShareRepository(db *sqlx.DB) ShareRepository {
	return &postgresShareRepository{db: db}
}

// CreateShare создает новую запись о ссылке общего доступа.
// Возвращает ID созданной записи или ошибку.
func (r *postgresShareRepository) CreateShare(ctx context.Context, share *models.Share) (int64, error) {
	query := `INSERT INTO shares
	          (token, scope_type, scope_ref, password_hash, allow_download, expires_at, is_active, justification, created_by)
	          VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $8) RETURNING id`
	var shareID int64

	err := r.db.QueryRowxContext(ctx, query,
		share.Token, share.ScopeType, share.ScopeRef, share.PasswordHash,
		share.AllowDownload, share.ExpiresAt, share.Justification, share.CreatedBy,
	).Scan(&shareID)

	if err != nil {
		// Коллизия токена теоретически возможна, но при 256 битах энтропии означает
		// скорее ошибку генерации, чем случайность
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			log.Printf("[ShareRepo] Ошибка создания ссылки: токен уже существует")
			return 0, ErrTokenCollision
		}
		log.Printf("[ShareRepo] Непредвиденная ошибка при создании ссылки: %v", err)
		return 0, fmt.Errorf("ошибка выполнения запроса на создание ссылки: %w", err)
	}

	log.Printf("[ShareRepo] Ссылка (ID: %d, scope %s/%d) успешно создана пользователем %d",
		shareID, share.ScopeType, share.ScopeRef, share.CreatedBy)
	return shareID, nil
}

// GetByToken находит ссылку по ее токену, включая неактивные и истекшие:
// интерпретация флагов и срока действия - дело сервисного слоя.
func (r *postgresShareRepository) GetByToken(ctx context.Context, token string) (*models.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares WHERE token=$1`
	var share models.Share

	err := r.db.GetContext(ctx, &share, query, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Токен не логируем: в логах не должно быть значений, пригодных для угадывания
			log.Printf("[ShareRepo] Ссылка по предъявленному токену не найдена")
			return nil, ErrShareNotFound
		}
		log.Printf("[ShareRepo] Ошибка при поиске ссылки: %v", err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение ссылки: %w", err)
	}

	return &share, nil
}

// ListByOwner возвращает все ссылки, выпущенные пользователем, сначала новые.
func (r *postgresShareRepository) ListByOwner(ctx context.Context, ownerID int64) ([]models.Share, error) {
	query := `SELECT ` + shareColumns + ` FROM shares WHERE created_by=$1 ORDER BY created_at DESC`

	shares := make([]models.Share, 0)
	err := r.db.SelectContext(ctx, &shares, query, ownerID)
	if err != nil {
		log.Printf("[ShareRepo] Ошибка при получении списка ссылок пользователя %d: %v", ownerID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение списка ссылок: %w", err)
	}

	log.Printf("[ShareRepo] Получено %d ссылок пользователя %d", len(shares), ownerID)
	return shares, nil
}

// ToggleActive атомарно переключает флаг is_active ссылки, принадлежащей ownerID.
// Одним UPDATE-ом, чтобы параллельные переключения не оставили строку
// в промежуточном состоянии. Срок действия не меняется.
func (r *postgresShareRepository) ToggleActive(
	ctx context.Context,
	token string,
	ownerID int64,
) (*models.Share, error) {
	query := `UPDATE shares SET is_active = NOT is_active
	          WHERE token=$1 AND created_by=$2
	          RETURNING ` + shareColumns
	var share models.Share

	err := r.db.GetContext(ctx, &share, query, token, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Printf("[ShareRepo] Переключение невозможно: ссылка не найдена или принадлежит не пользователю %d", ownerID)
			return nil, ErrShareNotFound
		}
		log.Printf("[ShareRepo] Ошибка при переключении активности ссылки: %v", err)
		return nil, fmt.Errorf("ошибка выполнения запроса на переключение ссылки: %w", err)
	}

	log.Printf("[ShareRepo] Ссылка ID %d теперь is_active=%t", share.ID, share.IsActive)
	return &share, nil
}

// IncrementViewCount увеличивает счетчик просмотров ссылки.
// Счетчики аналитические и обновляются в лучшем случае: ошибка здесь
// никогда не влияет на результат погашения ссылки.
func (r *postgresShareRepository) IncrementViewCount(ctx context.Context, shareID int64) error {
	query := `UPDATE shares SET view_count = view_count + 1 WHERE id=$1`
	if _, err := r.db.ExecContext(ctx, query, shareID); err != nil {
		return fmt.Errorf("ошибка выполнения запроса на инкремент просмотров: %w", err)
	}
	return nil
}

// IncrementDownloadCount увеличивает счетчик скачиваний ссылки.
func (r *postgresShareRepository) IncrementDownloadCount(ctx context.Context, shareID int64) error {
	query := `UPDATE shares SET download_count = download_count + 1 WHERE id=$1`
	if _, err := r.db.ExecContext(ctx, query, shareID); err != nil {
		return fmt.Errorf("ошибка выполнения запроса на инкремент скачиваний: %w", err)
	}
	return nil
}

// Кастомные ошибки репозитория ссылок.
var (
	ErrShareNotFound  = errors.New("ссылка общего доступа не найдена")
	ErrTokenCollision = errors.New("токен ссылки уже существует")
)
