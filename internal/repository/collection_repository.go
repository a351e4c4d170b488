package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/reelproof/server/internal/models"
)

// CollectionRepository определяет методы для работы с подборками версий.
type CollectionRepository interface {
	CreateCollection(ctx context.Context, collection *models.Collection) (int64, error)
	GetByID(ctx context.Context, collectionID int64) (*models.Collection, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]models.Collection, error)
	AddItem(ctx context.Context, collectionID, assetVersionID int64) error
	ListItemVersionIDs(ctx context.Context, collectionID int64) ([]int64, error)
}

// postgresCollectionRepository реализует CollectionRepository для PostgreSQL.
type postgresCollectionRepository struct {
	db *sqlx.DB
}

// NewPostgresCollectionRepository создает новый экземпляр репозитория подборок.
func NewPostgresCollectionRepository(db *sqlx.DB) CollectionRepository {
	return &postgresCollectionRepository{db: db}
}

// CreateCollection создает новую подборку.
func (r *postgresCollectionRepository) CreateCollection(
	ctx context.Context,
	collection *models.Collection,
) (int64, error) {
	query := `INSERT INTO collections (name, owner_id) VALUES ($1, $2) RETURNING id`
	var collectionID int64

	err := r.db.QueryRowxContext(ctx, query, collection.Name, collection.OwnerID).Scan(&collectionID)
	if err != nil {
		log.Printf("[CollectionRepo] Ошибка при создании подборки '%s': %v", collection.Name, err)
		return 0, fmt.Errorf("ошибка выполнения запроса на создание подборки: %w", err)
	}

	log.Printf("[CollectionRepo] Подборка '%s' (ID: %d) создана пользователем %d",
		collection.Name, collectionID, collection.OwnerID)
	return collectionID, nil
}

// GetByID находит подборку по ее ID.
func (r *postgresCollectionRepository) GetByID(ctx context.Context, collectionID int64) (*models.Collection, error) {
	query := `SELECT id, name, owner_id, created_at FROM collections WHERE id=$1`
	var collection models.Collection

	err := r.db.GetContext(ctx, &collection, query, collectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Printf("[CollectionRepo] Подборка с ID %d не найдена", collectionID)
			return nil, ErrCollectionNotFound
		}
		log.Printf("[CollectionRepo] Ошибка при поиске подборки ID %d: %v", collectionID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение подборки: %w", err)
	}

	return &collection, nil
}

// ListByOwner возвращает подборки пользователя, сначала новые.
func (r *postgresCollectionRepository) ListByOwner(ctx context.Context, ownerID int64) ([]models.Collection, error) {
	query := `SELECT id, name, owner_id, created_at FROM collections WHERE owner_id=$1 ORDER BY created_at DESC`

	collections := make([]models.Collection, 0)
	err := r.db.SelectContext(ctx, &collections, query, ownerID)
	if err != nil {
		log.Printf("[CollectionRepo] Ошибка при получении подборок пользователя %d: %v", ownerID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение подборок: %w", err)
	}

	return collections, nil
}

// AddItem добавляет версию в подборку. Повторное добавление той же версии
// не считается ошибкой (ON CONFLICT DO NOTHING).
func (r *postgresCollectionRepository) AddItem(ctx context.Context, collectionID, assetVersionID int64) error {
	query := `INSERT INTO collection_items (collection_id, asset_version_id)
	          VALUES ($1, $2) ON CONFLICT DO NOTHING`

	_, err := r.db.ExecContext(ctx, query, collectionID, assetVersionID)
	if err != nil {
		log.Printf("[CollectionRepo] Ошибка при добавлении версии %d в подборку %d: %v",
			assetVersionID, collectionID, err)
		return fmt.Errorf("ошибка выполнения запроса на добавление в подборку: %w", err)
	}

	log.Printf("[CollectionRepo] Версия %d добавлена в подборку %d", assetVersionID, collectionID)
	return nil
}

// ListItemVersionIDs возвращает ID версий, входящих в подборку, в порядке добавления.
func (r *postgresCollectionRepository) ListItemVersionIDs(ctx context.Context, collectionID int64) ([]int64, error) {
	query := `SELECT asset_version_id FROM collection_items WHERE collection_id=$1 ORDER BY added_at, asset_version_id`

	ids := make([]int64, 0)
	err := r.db.SelectContext(ctx, &ids, query, collectionID)
	if err != nil {
		log.Printf("[CollectionRepo] Ошибка при получении состава подборки %d: %v", collectionID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение состава подборки: %w", err)
	}

	return ids, nil
}

// Кастомные ошибки репозитория подборок.
var (
	ErrCollectionNotFound = errors.New("подборка не найдена")
)
