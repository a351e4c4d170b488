package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/reelproof/server/internal/models"
	"github.com/reelproof/server/internal/repository"
)

// CollectionService определяет интерфейс для сервиса подборок версий.
type CollectionService interface {
	Create(ownerID int64, name string) (*models.Collection, error)
	AddItem(ownerID int64, collectionID, assetVersionID int64) error
	ListOwn(ownerID int64) ([]models.Collection, error)
}

// collectionService реализует логику подборок.
var _ CollectionService = (*collectionService)(nil) // Проверка соответствия интерфейсу

type collectionService struct {
	collectionRepo repository.CollectionRepository
	assetRepo      repository.AssetRepository
	userRepo       repository.UserRepository
}

// NewCollectionService создает новый экземпляр сервиса подборок.
func NewCollectionService(
	collectionRepo repository.CollectionRepository,
	assetRepo repository.AssetRepository,
	userRepo repository.UserRepository,
) CollectionService {
	return &collectionService{collectionRepo: collectionRepo, assetRepo: assetRepo, userRepo: userRepo}
}

// Create создает новую подборку с непустым именем.
func (s *collectionService) Create(ownerID int64, name string) (*models.Collection, error) {
	ctx := context.Background()

	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, ErrEmptyCollectionName
	}

	collection := &models.Collection{Name: trimmed, OwnerID: ownerID}
	collectionID, err := s.collectionRepo.CreateCollection(ctx, collection)
	if err != nil {
		return nil, errors.New("внутренняя ошибка сервера при создании подборки")
	}
	collection.ID = collectionID

	log.Printf("[CollectionService] Подборка '%s' (ID: %d) создана пользователем %d", trimmed, collectionID, ownerID)
	return collection, nil
}

// AddItem добавляет версию в подборку владельца. Версия должна быть доступна
// пользователю на запись.
func (s *collectionService) AddItem(ownerID int64, collectionID, assetVersionID int64) error {
	ctx := context.Background()

	collection, err := s.collectionRepo.GetByID(ctx, collectionID)
	if err != nil {
		if errors.Is(err, repository.ErrCollectionNotFound) {
			return ErrCollectionNotFound
		}
		return errors.New("внутренняя ошибка сервера при получении подборки")
	}
	if collection.OwnerID != ownerID {
		log.Printf("[CollectionService] Пользователь %d не владеет подборкой %d", ownerID, collectionID)
		return ErrForbidden
	}

	version, err := s.assetRepo.GetVersionByID(ctx, assetVersionID)
	if err != nil {
		if errors.Is(err, repository.ErrVersionNotFound) {
			return ErrVersionNotFound
		}
		return errors.New("внутренняя ошибка сервера при получении версии")
	}

	user, err := s.userRepo.GetUserByID(ctx, ownerID)
	if err != nil {
		return errors.New("внутренняя ошибка сервера при получении пользователя")
	}
	if !canModifyAsset(user, version) {
		log.Printf("[CollectionService] Пользователь %d не имеет доступа к версии %d", ownerID, assetVersionID)
		return ErrForbidden
	}

	if err = s.collectionRepo.AddItem(ctx, collectionID, assetVersionID); err != nil {
		return errors.New("внутренняя ошибка сервера при добавлении в подборку")
	}
	return nil
}

// ListOwn возвращает подборки пользователя.
func (s *collectionService) ListOwn(ownerID int64) ([]models.Collection, error) {
	ctx := context.Background()

	collections, err := s.collectionRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, errors.New("внутренняя ошибка сервера при получении подборок")
	}
	return collections, nil
}

// Кастомные ошибки сервиса подборок.
var (
	ErrEmptyCollectionName = errors.New("название подборки не может быть пустым")
)
