package handlers_test

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/reelproof/server/internal/middleware"
	"github.com/reelproof/server/internal/models"
	"github.com/reelproof/server/internal/services"
)

// withUser кладет ID пользователя в контекст запроса, как это делает Authenticator.
func withUser(r *http.Request, userID int64) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), middleware.UserIDKey, userID))
}

// Моки сервисов, общие для всех тестов обработчиков.

// --- Mock AuthService --- //

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(username, password string) error {
	args := m.Called(username, password)
	return args.Error(0)
}

func (m *MockAuthService) Login(username, password string) (string, error) {
	args := m.Called(username, password)
	return args.String(0), args.Error(1)
}

func (m *MockAuthService) IssueToken(userID int64) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}

// --- Mock ShareService --- //

type MockShareService struct {
	mock.Mock
}

func (m *MockShareService) Issue(ownerID int64, req models.IssueShareRequest) (*models.Share, error) {
	args := m.Called(ownerID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Share), args.Error(1) //nolint:errcheck // Ошибки кастования в моках приемлемы
}

func (m *MockShareService) Redeem(token, password string) (*models.ScopedGrant, error) {
	args := m.Called(token, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ScopedGrant), args.Error(1) //nolint:errcheck // Ошибки кастования в моках приемлемы
}

func (m *MockShareService) ToggleActive(ownerID int64, token string) (*models.Share, error) {
	args := m.Called(ownerID, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Share), args.Error(1) //nolint:errcheck // Ошибки кастования в моках приемлемы
}

func (m *MockShareService) ListOwn(ownerID int64) ([]models.Share, error) {
	args := m.Called(ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Share), args.Error(1) //nolint:errcheck // Ошибки кастования в моках приемлемы
}

func (m *MockShareService) RegisterDownload(grant *models.ScopedGrant) {
	m.Called(grant)
}

// --- Mock CommentService --- //

type MockCommentService struct {
	mock.Mock
}

func (m *MockCommentService) AppendViaGrant(
	grant *models.ScopedGrant,
	userID *int64,
	req models.AppendCommentRequest,
) (*models.Comment, error) {
	args := m.Called(grant, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Comment), args.Error(1) //nolint:errcheck // Ошибки кастования в моках приемлемы
}

func (m *MockCommentService) AppendAsUser(userID int64, req models.AppendCommentRequest) (*models.Comment, error) {
	args := m.Called(userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Comment), args.Error(1) //nolint:errcheck // Ошибки кастования в моках приемлемы
}

func (m *MockCommentService) ListViaGrant(grant *models.ScopedGrant) ([]models.CommentView, error) {
	args := m.Called(grant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CommentView), args.Error(1) //nolint:errcheck // Ошибки кастования в моках приемлемы
}

func (m *MockCommentService) ListForVersion(userID, versionID int64) ([]models.CommentView, error) {
	args := m.Called(userID, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CommentView), args.Error(1) //nolint:errcheck // Ошибки кастования в моках приемлемы
}

func (m *MockCommentService) MarkResolved(userID, commentID int64) (*models.Comment, error) {
	args := m.Called(userID, commentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Comment), args.Error(1) //nolint:errcheck // Ошибки кастования в моках приемлемы
}

// --- Mock AssetService --- //

type MockAssetService struct {
	mock.Mock
}

func (m *MockAssetService) UploadVersion(
	uploaderID int64,
	upload services.UploadParams,
	reader io.Reader,
) (*models.AssetVersion, error) {
	args := m.Called(uploaderID, upload, reader)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AssetVersion), args.Error(1) //nolint:errcheck // Ошибки кастования в моках приемлемы
}

func (m *MockAssetService) ListSeries(userID int64) ([]models.AssetSeries, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AssetSeries), args.Error(1) //nolint:errcheck // Ошибки кастования в моках приемлемы
}

func (m *MockAssetService) LatestInSeries(userID int64, seriesKey string) (*models.AssetVersion, error) {
	args := m.Called(userID, seriesKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AssetVersion), args.Error(1) //nolint:errcheck // Ошибки кастования в моках приемлемы
}

func (m *MockAssetService) DownloadVersion(userID, versionID int64) (io.ReadCloser, *models.AssetVersion, error) {
	args := m.Called(userID, versionID)
	var reader io.ReadCloser
	if args.Get(0) != nil {
		reader = args.Get(0).(io.ReadCloser) //nolint:errcheck // Ошибки кастования в моках приемлемы
	}
	var version *models.AssetVersion
	if args.Get(1) != nil {
		version = args.Get(1).(*models.AssetVersion) //nolint:errcheck // Ошибки кастования в моках приемлемы
	}
	return reader, version, args.Error(2)
}

func (m *MockAssetService) DownloadViaGrant(
	grant *models.ScopedGrant,
	versionID int64,
) (io.ReadCloser, *models.AssetVersion, error) {
	args := m.Called(grant, versionID)
	var reader io.ReadCloser
	if args.Get(0) != nil {
		reader = args.Get(0).(io.ReadCloser) //nolint:errcheck // Ошибки кастования в моках приемлемы
	}
	var version *models.AssetVersion
	if args.Get(1) != nil {
		version = args.Get(1).(*models.AssetVersion) //nolint:errcheck // Ошибки кастования в моках приемлемы
	}
	return reader, version, args.Error(2)
}

func (m *MockAssetService) DeleteVersion(userID, versionID int64) error {
	args := m.Called(userID, versionID)
	return args.Error(0)
}

func (m *MockAssetService) DeleteSeries(userID int64, seriesKey string) error {
	args := m.Called(userID, seriesKey)
	return args.Error(0)
}

func (m *MockAssetService) RenameSeries(userID int64, seriesKey, title string) error {
	args := m.Called(userID, seriesKey, title)
	return args.Error(0)
}

// --- Mock ScanService --- //

type MockScanService struct {
	mock.Mock
}

func (m *MockScanService) Create() (*models.ScanSession, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ScanSession), args.Error(1) //nolint:errcheck // Ошибки кастования в моках приемлемы
}

func (m *MockScanService) MarkScanned(scanID string) error {
	args := m.Called(scanID)
	return args.Error(0)
}

func (m *MockScanService) Confirm(scanID string, userID int64) (*models.ScanSession, error) {
	args := m.Called(scanID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ScanSession), args.Error(1) //nolint:errcheck // Ошибки кастования в моках приемлемы
}

func (m *MockScanService) Status(scanID string) (*models.ScanSession, error) {
	args := m.Called(scanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ScanSession), args.Error(1) //nolint:errcheck // Ошибки кастования в моках приемлемы
}

func (m *MockScanService) Cleanup(grace time.Duration) error {
	args := m.Called(grace)
	return args.Error(0)
}

// --- Mock CollectionService --- //

type MockCollectionService struct {
	mock.Mock
}

func (m *MockCollectionService) Create(ownerID int64, name string) (*models.Collection, error) {
	args := m.Called(ownerID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Collection), args.Error(1) //nolint:errcheck // Ошибки кастования в моках приемлемы
}

func (m *MockCollectionService) AddItem(ownerID, collectionID, assetVersionID int64) error {
	args := m.Called(ownerID, collectionID, assetVersionID)
	return args.Error(0)
}

func (m *MockCollectionService) ListOwn(ownerID int64) ([]models.Collection, error) {
	args := m.Called(ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Collection), args.Error(1) //nolint:errcheck // Ошибки кастования в моках приемлемы
}
