package services_test

import (
	"context"
	"io"
	"time"

	"github.com/reelproof/server/internal/models"
	"github.com/stretchr/testify/mock"
)

// --- Mocks ---

// MockUserRepository is a mock for UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, user *models.User) (int64, error) {
	args := m.Called(ctx, user)
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetUserByID(ctx context.Context, userID int64) (*models.User, error) {
	args := m.Called(ctx, userID)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.User), args.Error(1)
}

// MockAssetRepository is a mock for AssetRepository.
type MockAssetRepository struct {
	mock.Mock
}

func (m *MockAssetRepository) CreateVersion(ctx context.Context, version *models.AssetVersion) (int64, int, error) {
	args := m.Called(ctx, version)
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return args.Get(0).(int64), args.Get(1).(int), args.Error(2)
}

func (m *MockAssetRepository) GetVersionByID(ctx context.Context, versionID int64) (*models.AssetVersion, error) {
	args := m.Called(ctx, versionID)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.AssetVersion), args.Error(1)
}

func (m *MockAssetRepository) ListByUploaderOrTeam(
	ctx context.Context,
	userID int64,
	teamID *int64,
) ([]models.AssetVersion, error) {
	args := m.Called(ctx, userID, teamID)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.([]models.AssetVersion), args.Error(1)
}

func (m *MockAssetRepository) SoftDeleteByIDs(ctx context.Context, versionIDs []int64) error {
	args := m.Called(ctx, versionIDs)
	return args.Error(0)
}

func (m *MockAssetRepository) SetSeriesTitleByIDs(ctx context.Context, versionIDs []int64, title string) error {
	args := m.Called(ctx, versionIDs, title)
	return args.Error(0)
}

// MockShareRepository is a mock for ShareRepository.
type MockShareRepository struct {
	mock.Mock
}

func (m *MockShareRepository) CreateShare(ctx context.Context, share *models.Share) (int64, error) {
	args := m.Called(ctx, share)
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockShareRepository) GetByToken(ctx context.Context, token string) (*models.Share, error) {
	args := m.Called(ctx, token)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.Share), args.Error(1)
}

func (m *MockShareRepository) ListByOwner(ctx context.Context, ownerID int64) ([]models.Share, error) {
	args := m.Called(ctx, ownerID)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.([]models.Share), args.Error(1)
}

func (m *MockShareRepository) ToggleActive(ctx context.Context, token string, ownerID int64) (*models.Share, error) {
	args := m.Called(ctx, token, ownerID)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.Share), args.Error(1)
}

func (m *MockShareRepository) IncrementViewCount(ctx context.Context, shareID int64) error {
	args := m.Called(ctx, shareID)
	return args.Error(0)
}

func (m *MockShareRepository) IncrementDownloadCount(ctx context.Context, shareID int64) error {
	args := m.Called(ctx, shareID)
	return args.Error(0)
}

// MockCommentRepository is a mock for CommentRepository.
type MockCommentRepository struct {
	mock.Mock
}

func (m *MockCommentRepository) CreateComment(ctx context.Context, comment *models.Comment) (*models.Comment, error) {
	args := m.Called(ctx, comment)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.Comment), args.Error(1)
}

func (m *MockCommentRepository) GetByID(ctx context.Context, commentID int64) (*models.Comment, error) {
	args := m.Called(ctx, commentID)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.Comment), args.Error(1)
}

func (m *MockCommentRepository) ListBySeries(
	ctx context.Context,
	seriesKey string,
	uploaderID int64,
	teamID *int64,
) ([]models.Comment, error) {
	args := m.Called(ctx, seriesKey, uploaderID, teamID)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.([]models.Comment), args.Error(1)
}

func (m *MockCommentRepository) ListByVersionIDs(ctx context.Context, versionIDs []int64) ([]models.Comment, error) {
	args := m.Called(ctx, versionIDs)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.([]models.Comment), args.Error(1)
}

func (m *MockCommentRepository) SetResolved(ctx context.Context, commentID int64, resolved bool) (*models.Comment, error) {
	args := m.Called(ctx, commentID, resolved)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.Comment), args.Error(1)
}

// MockScanRepository is a mock for ScanRepository.
type MockScanRepository struct {
	mock.Mock
}

func (m *MockScanRepository) CreateSession(ctx context.Context, session *models.ScanSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockScanRepository) GetByScanID(ctx context.Context, scanID string) (*models.ScanSession, error) {
	args := m.Called(ctx, scanID)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.ScanSession), args.Error(1)
}

func (m *MockScanRepository) MarkScanned(ctx context.Context, scanID string, now time.Time) (bool, error) {
	args := m.Called(ctx, scanID, now)
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return args.Get(0).(bool), args.Error(1)
}

func (m *MockScanRepository) ConfirmSession(
	ctx context.Context,
	scanID string,
	userID int64,
	credential string,
	now time.Time,
) (*models.ScanSession, error) {
	args := m.Called(ctx, scanID, userID, credential, now)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.ScanSession), args.Error(1)
}

func (m *MockScanRepository) ExpireSession(ctx context.Context, scanID string) error {
	args := m.Called(ctx, scanID)
	return args.Error(0)
}

func (m *MockScanRepository) DeleteTerminatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return args.Get(0).(int64), args.Error(1)
}

// MockCollectionRepository is a mock for CollectionRepository.
type MockCollectionRepository struct {
	mock.Mock
}

func (m *MockCollectionRepository) CreateCollection(ctx context.Context, collection *models.Collection) (int64, error) {
	args := m.Called(ctx, collection)
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCollectionRepository) GetByID(ctx context.Context, collectionID int64) (*models.Collection, error) {
	args := m.Called(ctx, collectionID)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(*models.Collection), args.Error(1)
}

func (m *MockCollectionRepository) ListByOwner(ctx context.Context, ownerID int64) ([]models.Collection, error) {
	args := m.Called(ctx, ownerID)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.([]models.Collection), args.Error(1)
}

func (m *MockCollectionRepository) AddItem(ctx context.Context, collectionID, assetVersionID int64) error {
	args := m.Called(ctx, collectionID, assetVersionID)
	return args.Error(0)
}

func (m *MockCollectionRepository) ListItemVersionIDs(ctx context.Context, collectionID int64) ([]int64, error) {
	args := m.Called(ctx, collectionID)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.([]int64), args.Error(1)
}

// MockFileStorage is a mock for storage.FileStorage.
type MockFileStorage struct {
	mock.Mock
}

func (m *MockFileStorage) UploadFile(
	ctx context.Context,
	objectKey string,
	reader io.Reader,
	size int64,
	contentType string,
) error {
	args := m.Called(ctx, objectKey, reader, size, contentType)
	return args.Error(0)
}

func (m *MockFileStorage) DownloadFile(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	args := m.Called(ctx, objectKey)
	ret := args.Get(0)
	if ret == nil {
		return nil, args.Error(1)
	}
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return ret.(io.ReadCloser), args.Error(1)
}

// MockAuthService is a mock for AuthService.
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(username, password string) error {
	args := m.Called(username, password)
	return args.Error(0)
}

func (m *MockAuthService) Login(username, password string) (string, error) {
	args := m.Called(username, password)
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return args.Get(0).(string), args.Error(1)
}

func (m *MockAuthService) IssueToken(userID int64) (string, error) {
	args := m.Called(userID)
	//nolint:errcheck // Ошибки кастования в моках приемлемы
	return args.Get(0).(string), args.Error(1)
}
