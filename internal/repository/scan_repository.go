package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/reelproof/server/internal/models"
)

// Колонки таблицы scan_sessions, возвращаемые во всех запросах чтения.
const scanColumns = `scan_id, state, issued_at, expires_at, confirmed_user_id, issued_credential`

// ScanRepository определяет методы для работы с сессиями входа по QR-коду.
// Все переходы состояний выражены одиночными условными UPDATE-ами: подтверждающее
// мобильное приложение и опрашивающий веб-клиент работают параллельно, и
// compare-and-swap на уровне строки - единственная гарантия от гонок.
type ScanRepository interface {
	CreateSession(ctx context.Context, session *models.ScanSession) error
	GetByScanID(ctx context.Context, scanID string) (*models.ScanSession, error)
	MarkScanned(ctx context.Context, scanID string, now time.Time) (bool, error)
	ConfirmSession(ctx context.Context, scanID string, userID int64, credential string, now time.Time) (*models.ScanSession, error)
	ExpireSession(ctx context.Context, scanID string) error
	DeleteTerminatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// postgresScanRepository реализует ScanRepository для PostgreSQL.
type postgresScanRepository struct {
	db *sqlx.DB
}

// NewPostgresScanRepository создает новый экземпляр репозитория сессий сканирования.
func NewPostgresScanRepository(db *sqlx.DB) ScanRepository {
	return &postgresScanRepository{db: db}
}

// CreateSession создает новую сессию в состоянии pending.
func (r *postgresScanRepository) CreateSession(ctx context.Context, session *models.ScanSession) error {
	query := `INSERT INTO scan_sessions (scan_id, state, issued_at, expires_at)
	          VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, query,
		session.ScanID, session.State, session.IssuedAt, session.ExpiresAt)
	if err != nil {
		log.Printf("[ScanRepo] Ошибка при создании сессии '%s': %v", session.ScanID, err)
		return fmt.Errorf("ошибка выполнения запроса на создание сессии: %w", err)
	}

	log.Printf("[ScanRepo] Сессия '%s' создана, истекает %s", session.ScanID, session.ExpiresAt.Format(time.RFC3339))
	return nil
}

// GetByScanID находит сессию по ее идентификатору.
func (r *postgresScanRepository) GetByScanID(ctx context.Context, scanID string) (*models.ScanSession, error) {
	query := `SELECT ` + scanColumns + ` FROM scan_sessions WHERE scan_id=$1`
	var session models.ScanSession

	err := r.db.GetContext(ctx, &session, query, scanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Printf("[ScanRepo] Сессия '%s' не найдена", scanID)
			return nil, ErrScanSessionNotFound
		}
		log.Printf("[ScanRepo] Ошибка при поиске сессии '%s': %v", scanID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на получение сессии: %w", err)
	}

	return &session, nil
}

// MarkScanned переводит сессию pending -> scanned. Переход разрешен только из
// pending и только до истечения срока; в остальных случаях возвращает false
// без ошибки (повторное сканирование игнорируется).
func (r *postgresScanRepository) MarkScanned(
	ctx context.Context,
	scanID string,
	now time.Time,
) (bool, error) {
	query := `UPDATE scan_sessions SET state=$2
	          WHERE scan_id=$1 AND state=$3 AND expires_at > $4`

	res, err := r.db.ExecContext(ctx, query, scanID, models.ScanStateScanned, models.ScanStatePending, now)
	if err != nil {
		log.Printf("[ScanRepo] Ошибка при отметке сканирования сессии '%s': %v", scanID, err)
		return false, fmt.Errorf("ошибка выполнения запроса на отметку сканирования: %w", err)
	}

	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// ConfirmSession атомарно переводит сессию в confirmed, привязывая личность и
// выданный токен. Compare-and-swap: срабатывает только из нетерминального
// состояния и только до истечения срока. Если условие не выполнено, возвращает
// ErrScanCASFailed - решать, идемпотентный это повтор или отказ, должен сервис
// по фактическому состоянию строки.
func (r *postgresScanRepository) ConfirmSession(
	ctx context.Context,
	scanID string,
	userID int64,
	credential string,
	now time.Time,
) (*models.ScanSession, error) {
	query := `UPDATE scan_sessions
	          SET state=$2, confirmed_user_id=$3, issued_credential=$4
	          WHERE scan_id=$1 AND state IN ($5, $6) AND expires_at > $7
	          RETURNING ` + scanColumns
	var session models.ScanSession

	err := r.db.GetContext(ctx, &session, query,
		scanID, models.ScanStateConfirmed, userID, credential,
		models.ScanStatePending, models.ScanStateScanned, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScanCASFailed
		}
		log.Printf("[ScanRepo] Ошибка при подтверждении сессии '%s': %v", scanID, err)
		return nil, fmt.Errorf("ошибка выполнения запроса на подтверждение сессии: %w", err)
	}

	log.Printf("[ScanRepo] Сессия '%s' подтверждена пользователем %d", scanID, userID)
	return &session, nil
}

// ExpireSession принудительно помечает сессию истекшей. Вызывается при ленивой
// проверке срока в момент опроса статуса, поэтому перекрывает даже состояние
// confirmed: истечение авторитетно.
func (r *postgresScanRepository) ExpireSession(ctx context.Context, scanID string) error {
	query := `UPDATE scan_sessions SET state=$2 WHERE scan_id=$1 AND state <> $2`

	_, err := r.db.ExecContext(ctx, query, scanID, models.ScanStateExpired)
	if err != nil {
		log.Printf("[ScanRepo] Ошибка при пометке сессии '%s' истекшей: %v", scanID, err)
		return fmt.Errorf("ошибка выполнения запроса на пометку сессии истекшей: %w", err)
	}

	log.Printf("[ScanRepo] Сессия '%s' помечена истекшей", scanID)
	return nil
}

// DeleteTerminatedBefore удаляет сессии, срок которых истек раньше cutoff.
// Чистая гигиена хранилища: корректность истечения обеспечивается ленивой
// проверкой при чтении, а не этой зачисткой.
func (r *postgresScanRepository) DeleteTerminatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM scan_sessions WHERE expires_at < $1`

	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		log.Printf("[ScanRepo] Ошибка при зачистке истекших сессий: %v", err)
		return 0, fmt.Errorf("ошибка выполнения запроса на зачистку сессий: %w", err)
	}

	deleted, _ := res.RowsAffected()
	if deleted > 0 {
		log.Printf("[ScanRepo] Удалено %d истекших сессий", deleted)
	}
	return deleted, nil
}

// Кастомные ошибки репозитория сессий сканирования.
var (
	ErrScanSessionNotFound = errors.New("сессия сканирования не найдена")
	ErrScanCASFailed       = errors.New("условный переход состояния сессии не выполнен")
)
