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

// Колонки таблицы comments, возвращаемые во всех запросах чтения.
const commentColumns = `id, series_key, asset_version_id, timecode_seconds, body,
	author_class, author_display_name, author_team_name, author_user_id, is_resolved, created_at`

// Те же колонки с префиксом таблицы - для запросов с JOIN.
const commentColumnsQualified = `c.id, c.series_key, c.asset_version_id, c.timecode_seconds, c.body,
	c.author_class, c.author_display_name, c.author_team_name, c.author_user_id, c.is_resolved, c.created_at`

// CommentRepository определяет методы для работы с лентой комментариев.
// Лента append-only: единственная мутация - флаг is_resolved.
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *models.Comment) (*models.Comment, error)
	GetByID(ctx context.Context, commentID int64) (*models.Comment, error)
	// ListBySeries возвращает ленту серии владельца. Ключ серии сам по себе
	// серию не идентифицирует: одинаковые имена файлов у разных владельцев
	// дают одинаковый производный ключ.
	ListBySeries(ctx context.Context, seriesKey string, uploaderID int64, teamID *int64) ([]models.Comment, error)
	ListByVersionIDs(ctx context.Context, versionIDs []int64) ([]models.Comment, error)
	SetResolved(ctx context.Context, commentID int64, resolved bool) (*models.Comment, error)
}

// postgresCommentRepository реализует CommentRepository для PostgreSQL.
type postgresCommentRepository struct {
	db *sqlx.DB
}

// NewPostgresCommentRepository создает новый экземпляр репозитория комментариев.
func NewPostgresCommentRepository(db *sqlx.DB) CommentRepository {
	return &postgresCommentRepository{db: db}
}

// CreateComment добавляет комментарий в ленту и возвращает созданную запись
// (с присвоенными БД id и created_at).
func (r *postgresCommentRepository) CreateComment(
	ctx context.Context,
	comment *models.Comment,
) (*models.Comment, error) {
	query := `INSERT INTO comments
	          (series_key, asset_version_id, timecode_seconds, body,
	           author_class, author_display_name, author_team_name, author_user_id)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING ` + commentColumns
	var created models.Comment

	err := r.db.GetContext(ctx, &created, query,
		comment.SeriesKey, comment.AssetVersionID, comment.TimecodeSeconds, comment.Body,
		comment.AuthorClass, comment.AuthorDisplayName, comment.AuthorTeamName, comment.AuthorUserID,
	)
	if err != nil {
		log.Printf("[CommentRepo] Ошибка при добавлении комментария к версии %d: %v", comment.AssetVersionID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на добавление комментария: %w", err)
	}

	log.Printf("[CommentRepo] Комментарий ID %d добавлен к версии %d (%s)",
		created.ID, created.AssetVersionID, created.AuthorClass)
	return &created, nil
}

// GetByID находит комментарий по его ID.
func (r *postgresCommentRepository) GetByID(ctx context.Context, commentID int64) (*models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments WHERE id=$1`
	var comment models.Comment

	err := r.db.GetContext(ctx, &comment, query, commentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Printf("[CommentRepo] Комментарий с ID %d не найден", commentID)
			return nil, ErrCommentNotFound
		}
		log.Printf("[CommentRepo] Ошибка при поиске комментария ID %d: %v", commentID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение комментария: %w", err)
	}

	return &comment, nil
}

// ListBySeries возвращает все комментарии серии владельца по возрастанию времени
// создания. Принадлежность серии проверяется через версии, к которым прикреплены
// комментарии: строки чужих владельцев с тем же производным ключом не попадают
// в выборку. Комментарии мягко удаленных версий остаются в ленте.
// Вторичная сортировка по id делает порядок устойчивым при совпадающих created_at.
func (r *postgresCommentRepository) ListBySeries(
	ctx context.Context,
	seriesKey string,
	uploaderID int64,
	teamID *int64,
) ([]models.Comment, error) {
	query := `SELECT ` + commentColumnsQualified + `
	          FROM comments c
	          JOIN asset_versions v ON v.id = c.asset_version_id
	          WHERE COALESCE(v.series_key, regexp_replace(v.file_name, '^v[0-9]+_', '')) = $1
	            AND (v.uploader_id = $2 OR (v.team_id IS NOT NULL AND v.team_id = $3))
	          ORDER BY c.created_at, c.id`

	comments := make([]models.Comment, 0)
	err := r.db.SelectContext(ctx, &comments, query, seriesKey, uploaderID, teamID)
	if err != nil {
		log.Printf("[CommentRepo] Ошибка при получении комментариев серии '%s': %v", seriesKey, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение комментариев: %w", err)
	}

	log.Printf("[CommentRepo] Получено %d комментариев серии '%s'", len(comments), seriesKey)
	return comments, nil
}

// ListByVersionIDs возвращает комментарии перечисленных версий по возрастанию
// времени создания. Используется для подборок.
func (r *postgresCommentRepository) ListByVersionIDs(
	ctx context.Context,
	versionIDs []int64,
) ([]models.Comment, error) {
	if len(versionIDs) == 0 {
		return []models.Comment{}, nil
	}
	query := `SELECT ` + commentColumns + ` FROM comments WHERE asset_version_id = ANY($1) ORDER BY created_at, id`

	comments := make([]models.Comment, 0)
	err := r.db.SelectContext(ctx, &comments, query, pq.Array(versionIDs))
	if err != nil {
		log.Printf("[CommentRepo] Ошибка при получении комментариев версий %v: %v", versionIDs, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение комментариев: %w", err)
	}

	return comments, nil
}

// SetResolved обновляет флаг is_resolved комментария и возвращает обновленную запись.
func (r *postgresCommentRepository) SetResolved(
	ctx context.Context,
	commentID int64,
	resolved bool,
) (*models.Comment, error) {
	query := `UPDATE comments SET is_resolved=$2 WHERE id=$1 RETURNING ` + commentColumns
	var comment models.Comment

	err := r.db.GetContext(ctx, &comment, query, commentID, resolved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Printf("[CommentRepo] Комментарий с ID %d не найден для отметки решенным", commentID)
			return nil, ErrCommentNotFound
		}
		log.Printf("[CommentRepo] Ошибка при отметке комментария ID %d: %v", commentID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на отметку комментария: %w", err)
	}

	log.Printf("[CommentRepo] Комментарий ID %d теперь is_resolved=%t", comment.ID, comment.IsResolved)
	return &comment, nil
}

// Кастомные ошибки репозитория комментариев.
var (
	ErrCommentNotFound = errors.New("комментарий не найден")
)
