package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/reelproof/server/internal/models"
	"github.com/reelproof/server/internal/repository"
)

// Срок жизни сессии входа по QR-коду. Интервал опроса - политика клиента
// (рекомендуется 2-3 секунды); на корректность он не влияет.
const scanSessionTTL = 5 * time.Minute

// ScanService определяет интерфейс сервиса входа по QR-коду.
//
// Машина состояний: pending -> scanned -> confirmed, либо expired из любого
// состояния по истечении срока. Подтверждающий канал (мобильное приложение) и
// опрашивающий веб-клиент работают параллельно; все переходы атомарны на уровне
// строки БД, а истечение срока проверяется лениво при каждом чтении статуса и
// авторитетно перекрывает любое сохраненное состояние.
type ScanService interface {
	Create() (*models.ScanSession, error)
	MarkScanned(scanID string) error
	// Confirm привязывает подтвержденную личность и выдает учетные данные.
	// Идемпотентен: повторный вызов для уже подтвержденной сессии возвращает
	// те же учетные данные, вторые не выдаются.
	Confirm(scanID string, userID int64) (*models.ScanSession, error)
	// Status возвращает текущее состояние сессии; учетные данные - только
	// в состоянии confirmed и никогда после истечения срока.
	Status(scanID string) (*models.ScanSession, error)
	// Cleanup удаляет сессии, истекшие раньше чем grace назад. Гигиена
	// хранилища; на корректность истечения не влияет.
	Cleanup(grace time.Duration) error
}

// scanService реализует логику входа по QR-коду.
var _ ScanService = (*scanService)(nil) // Проверка соответствия интерфейсу

type scanService struct {
	scanRepo repository.ScanRepository
	auth     AuthService // Выдает JWT для подтвержденной личности
}

// NewScanService создает новый экземпляр сервиса входа по QR-коду.
func NewScanService(scanRepo repository.ScanRepository, auth AuthService) ScanService {
	return &scanService{scanRepo: scanRepo, auth: auth}
}

// Create создает новую сессию в состоянии pending с фиксированным сроком жизни.
func (s *scanService) Create() (*models.ScanSession, error) {
	ctx := context.Background()

	now := time.Now()
	session := &models.ScanSession{
		ScanID:    uuid.NewString(),
		State:     models.ScanStatePending,
		IssuedAt:  now,
		ExpiresAt: now.Add(scanSessionTTL),
	}

	if err := s.scanRepo.CreateSession(ctx, session); err != nil {
		log.Printf("[ScanService] Ошибка создания сессии: %v", err)
		return nil, errors.New("внутренняя ошибка сервера при создании сессии")
	}

	log.Printf("[ScanService] Сессия '%s' создана", session.ScanID)
	return session, nil
}

// MarkScanned отмечает сессию отсканированной. Разрешен только переход
// pending -> scanned. Повторное сканирование уже отсканированной или даже
// подтвержденной сессии игнорируется; отказ получают только неизвестная и
// истекшая сессии - этот код надо показать пользователю как мертвый, а не
// молча проглотить.
func (s *scanService) MarkScanned(scanID string) error {
	ctx := context.Background()

	moved, err := s.scanRepo.MarkScanned(ctx, scanID, time.Now())
	if err != nil {
		return errors.New("внутренняя ошибка сервера при отметке сканирования")
	}
	if moved {
		log.Printf("[ScanService] Сессия '%s' отсканирована", scanID)
		return nil
	}

	// Переход не сработал: выясняем, почему
	session, err := s.scanRepo.GetByScanID(ctx, scanID)
	if err != nil {
		if errors.Is(err, repository.ErrScanSessionNotFound) {
			return ErrScanUnknownOrTerminal
		}
		return errors.New("внутренняя ошибка сервера при отметке сканирования")
	}
	if time.Now().After(session.ExpiresAt) || session.State == models.ScanStateExpired {
		return ErrScanUnknownOrTerminal
	}
	// Уже scanned или confirmed - повтор игнорируется
	log.Printf("[ScanService] Повторное сканирование сессии '%s' (состояние %s) игнорируется", scanID, session.State)
	return nil
}

// Confirm атомарно подтверждает сессию и выдает JWT подтвержденной личности.
// Переход выполняется одним compare-and-swap из нетерминального состояния;
// если он не сработал, по фактическому состоянию строки различаются
// идемпотентный повтор (возвращаются уже выданные учетные данные) и отказ
// (сессия неизвестна или истекла - вход надо начинать заново).
func (s *scanService) Confirm(scanID string, userID int64) (*models.ScanSession, error) {
	ctx := context.Background()
	now := time.Now()

	credential, err := s.auth.IssueToken(userID)
	if err != nil {
		log.Printf("[ScanService] Ошибка выдачи учетных данных для пользователя %d: %v", userID, err)
		return nil, errors.New("внутренняя ошибка сервера при выдаче учетных данных")
	}

	session, err := s.scanRepo.ConfirmSession(ctx, scanID, userID, credential, now)
	if err == nil {
		log.Printf("[ScanService] Сессия '%s' подтверждена пользователем %d", scanID, userID)
		return session, nil
	}
	if !errors.Is(err, repository.ErrScanCASFailed) {
		return nil, errors.New("внутренняя ошибка сервера при подтверждении сессии")
	}

	// CAS не сработал: либо сессия уже подтверждена (идемпотентный повтор),
	// либо она неизвестна или истекла
	session, err = s.scanRepo.GetByScanID(ctx, scanID)
	if err != nil {
		if errors.Is(err, repository.ErrScanSessionNotFound) {
			return nil, ErrScanUnknownOrTerminal
		}
		return nil, errors.New("внутренняя ошибка сервера при подтверждении сессии")
	}

	if session.State == models.ScanStateConfirmed && !now.After(session.ExpiresAt) {
		// Уже выданные учетные данные возвращаются как есть - вторые не выдаются
		log.Printf("[ScanService] Повторное подтверждение сессии '%s' - возвращаем выданные учетные данные", scanID)
		return session, nil
	}

	log.Printf("[ScanService] Отказ в подтверждении сессии '%s' (состояние %s)", scanID, session.State)
	return nil, ErrScanUnknownOrTerminal
}

// Status возвращает текущее состояние сессии для опрашивающего клиента.
// Сначала проверяется срок: если он истек, сессия авторитетно помечается
// истекшей независимо от сохраненного состояния, и учетные данные не
// возвращаются - даже если подтверждение успело записаться до истечения.
func (s *scanService) Status(scanID string) (*models.ScanSession, error) {
	ctx := context.Background()

	session, err := s.scanRepo.GetByScanID(ctx, scanID)
	if err != nil {
		if errors.Is(err, repository.ErrScanSessionNotFound) {
			return nil, ErrScanUnknownOrTerminal
		}
		return nil, errors.New("внутренняя ошибка сервера при получении статуса сессии")
	}

	if time.Now().After(session.ExpiresAt) {
		if session.State != models.ScanStateExpired {
			if expErr := s.scanRepo.ExpireSession(ctx, scanID); expErr != nil {
				log.Printf("[ScanService] Не удалось пометить сессию '%s' истекшей: %v", scanID, expErr)
			}
		}
		session.State = models.ScanStateExpired
		session.IssuedCredential = nil
		return session, nil
	}

	if session.State != models.ScanStateConfirmed {
		// Учетные данные видны только в confirmed
		session.IssuedCredential = nil
	}
	return session, nil
}

// Cleanup удаляет сессии, истекшие раньше чем grace назад.
func (s *scanService) Cleanup(grace time.Duration) error {
	ctx := context.Background()

	if _, err := s.scanRepo.DeleteTerminatedBefore(ctx, time.Now().Add(-grace)); err != nil {
		return errors.New("внутренняя ошибка сервера при зачистке сессий")
	}
	return nil
}

// Кастомные ошибки сервиса входа по QR-коду.
var (
	ErrScanUnknownOrTerminal = errors.New("сессия сканирования неизвестна или завершена - начните вход заново")
)
