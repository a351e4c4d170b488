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

// AssetRepository определяет методы для работы с версиями видеоактивов.
type AssetRepository interface {
	CreateVersion(ctx context.Context, version *models.AssetVersion) (int64, int, error)
	GetVersionByID(ctx context.Context, versionID int64) (*models.AssetVersion, error)
	ListByUploaderOrTeam(ctx context.Context, userID int64, teamID *int64) ([]models.AssetVersion, error)
	SoftDeleteByIDs(ctx context.Context, versionIDs []int64) error
	SetSeriesTitleByIDs(ctx context.Context, versionIDs []int64, title string) error
}

// postgresAssetRepository реализует AssetRepository для PostgreSQL.
type postgresAssetRepository struct {
	db *sqlx.DB
}

// NewPostgresAssetRepository создает новый экземпляр репозитория версий активов.
func NewPostgresAssetRepository(db *sqlx.DB) AssetRepository {
	return &postgresAssetRepository{db: db}
}

// CreateVersion создает новую запись о версии актива. Номер версии вычисляется
// в самом запросе как максимум в серии плюс один, чтобы две параллельные загрузки
// не получили одинаковый номер. Серия определяется явным ключом или именем файла
// без префикса-маркера версии (в этом случае series_key в строке равен NULL, и
// подзапрос сравнивает производный ключ). Ключ серии сам по себе серию не
// идентифицирует: одинаковые имена файлов у разных владельцев дают одинаковый
// производный ключ, поэтому подзапрос дополнительно ограничен загрузившим
// пользователем и его командой.
// Возвращает ID созданной записи и присвоенный номер версии.
func (r *postgresAssetRepository) CreateVersion(
	ctx context.Context,
	version *models.AssetVersion,
) (int64, int, error) {
	query := `INSERT INTO asset_versions
	          (series_key, version_number, file_name, object_key, size_bytes, duration_seconds, uploader_id, team_id)
	          VALUES ($1,
	                  (SELECT COALESCE(MAX(version_number), 0) + 1
	                   FROM asset_versions
	                   WHERE COALESCE(series_key, regexp_replace(file_name, '^v[0-9]+_', '')) = $2
	                     AND (uploader_id = $7 OR (team_id IS NOT NULL AND team_id = $8))
	                     AND deleted_at IS NULL),
	                  $3, $4, $5, $6, $7, $8)
	          RETURNING id, version_number`
	var (
		versionID     int64
		versionNumber int
	)

	err := r.db.QueryRowxContext(ctx, query,
		version.SeriesKey, version.EffectiveSeriesKey(), version.FileName, version.ObjectKey,
		version.SizeBytes, version.DurationSeconds, version.UploaderID, version.TeamID,
	).Scan(&versionID, &versionNumber)

	if err != nil {
		// Проверяем на ошибку уникальности object_key
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			log.Printf("[AssetRepo] Ошибка создания версии: ключ объекта '%s' уже существует", version.ObjectKey)
			return 0, 0, fmt.Errorf("версия с ключом объекта '%s' уже существует: %w", version.ObjectKey, err)
		}
		log.Printf("[AssetRepo] Непредвиденная ошибка при создании версии '%s': %v", version.FileName, err)
		return 0, 0, fmt.Errorf("ошибка выполнения запроса на создание версии: %w", err)
	}

	log.Printf("[AssetRepo] Версия (ID: %d, номер %d) успешно создана для файла '%s'",
		versionID, versionNumber, version.FileName)
	return versionID, versionNumber, nil
}

// GetVersionByID находит конкретную версию по ее ID. Мягко удаленные версии не возвращаются.
func (r *postgresAssetRepository) GetVersionByID(
	ctx context.Context,
	versionID int64,
) (*models.AssetVersion, error) {
	query := `SELECT id, series_key, series_title, version_number, file_name, object_key,
	                 size_bytes, duration_seconds, uploader_id, team_id, created_at, deleted_at
	          FROM asset_versions
	          WHERE id=$1 AND deleted_at IS NULL`
	var version models.AssetVersion

	err := r.db.GetContext(ctx, &version, query, versionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Printf("[AssetRepo] Версия с ID %d не найдена", versionID)
			return nil, ErrVersionNotFound // Кастомная ошибка
		}
		log.Printf("[AssetRepo] Ошибка при поиске версии ID %d: %v", versionID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение версии: %w", err)
	}

	return &version, nil
}

// ListByUploaderOrTeam возвращает все живые версии, доступные пользователю:
// загруженные им лично либо принадлежащие его команде. Группировка по сериям
// выполняется в памяти (см. services.GroupBySeries), так как производный ключ
// серии вычисляется из имени файла.
func (r *postgresAssetRepository) ListByUploaderOrTeam(
	ctx context.Context,
	userID int64,
	teamID *int64,
) ([]models.AssetVersion, error) {
	query := `SELECT id, series_key, series_title, version_number, file_name, object_key,
	                 size_bytes, duration_seconds, uploader_id, team_id, created_at, deleted_at
	          FROM asset_versions
	          WHERE deleted_at IS NULL AND (uploader_id=$1 OR (team_id IS NOT NULL AND team_id=$2))
	          ORDER BY created_at`

	versions := make([]models.AssetVersion, 0)
	err := r.db.SelectContext(ctx, &versions, query, userID, teamID)
	if err != nil {
		log.Printf("[AssetRepo] Ошибка при получении списка версий для пользователя ID %d: %v", userID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение списка версий: %w", err)
	}

	log.Printf("[AssetRepo] Получено %d версий для пользователя ID %d", len(versions), userID)
	return versions, nil
}

// SoftDeleteByIDs помечает версии удаленными. Используется и для удаления одной
// версии, и для каскадного удаления целой серии.
func (r *postgresAssetRepository) SoftDeleteByIDs(ctx context.Context, versionIDs []int64) error {
	if len(versionIDs) == 0 {
		return nil
	}
	query := `UPDATE asset_versions SET deleted_at=NOW() WHERE id = ANY($1) AND deleted_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, pq.Array(versionIDs))
	if err != nil {
		log.Printf("[AssetRepo] Ошибка при мягком удалении версий %v: %v", versionIDs, err)
		return fmt.Errorf("ошибка выполнения запроса на удаление версий: %w", err)
	}

	affected, _ := res.RowsAffected()
	log.Printf("[AssetRepo] Помечено удаленными %d версий", affected)
	return nil
}

// SetSeriesTitleByIDs обновляет отображаемое название серии у перечисленных версий.
// Единственная разрешенная правка метаданных существующих версий.
func (r *postgresAssetRepository) SetSeriesTitleByIDs(
	ctx context.Context,
	versionIDs []int64,
	title string,
) error {
	if len(versionIDs) == 0 {
		return nil
	}
	query := `UPDATE asset_versions SET series_title=$1 WHERE id = ANY($2) AND deleted_at IS NULL`

	_, err := r.db.ExecContext(ctx, query, title, pq.Array(versionIDs))
	if err != nil {
		log.Printf("[AssetRepo] Ошибка при переименовании серии (версии %v): %v", versionIDs, err)
		return fmt.Errorf("ошибка выполнения запроса на переименование серии: %w", err)
	}

	log.Printf("[AssetRepo] Название серии обновлено для %d версий", len(versionIDs))
	return nil
}

// Кастомные ошибки репозитория версий.
var (
	ErrVersionNotFound = errors.New("версия актива не найдена")
)
