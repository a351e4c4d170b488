package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // Драйвер PostgreSQL
	"github.com/reelproof/server/internal/handlers"
	appmiddleware "github.com/reelproof/server/internal/middleware"
	"github.com/reelproof/server/internal/repository"
	"github.com/reelproof/server/internal/services"
	"github.com/reelproof/server/internal/storage"
)

const (
	defaultReadTimeout = 10 * time.Second
	// Отдача видео может занимать минуты
	defaultWriteTimeout = 5 * time.Minute
	defaultIdleTimeout  = 30 * time.Second

	// Период фоновой зачистки завершенных сессий входа по QR-коду и срок,
	// после которого истекшая сессия удаляется. Зачистка - гигиена хранилища:
	// корректность истечения обеспечивается при чтении статуса.
	scanCleanupInterval = 10 * time.Minute
	scanCleanupGrace    = time.Hour

	// Переменные окружения для MinIO (значения по умолчанию из docker-compose).
	envMinioEndpoint     = "MINIO_ENDPOINT"
	envMinioUser         = "MINIO_USER"
	envMinioPassword     = "MINIO_PASSWORD"
	envMinioBucket       = "MINIO_BUCKET"
	defaultMinioEndpoint = "localhost:9000"
	defaultMinioUser     = "minioadmin"
	defaultMinioPassword = "minioadmin"
	defaultMinioBucket   = "reelproof-assets"
	minioUseSSL          = false // Для локальной разработки
)

// newPostgresDB выделен в переменную для подмены в тестах.
var newPostgresDB = repository.NewPostgresDB

// Структура для хранения инициализированных зависимостей.
type dependencies struct {
	db          *sqlx.DB
	fileStorage storage.FileStorage

	scanService services.ScanService

	authHandler       *handlers.AuthHandler
	assetHandler      *handlers.AssetHandler
	shareHandler      *handlers.ShareHandler
	publicHandler     *handlers.PublicHandler
	commentHandler    *handlers.CommentHandler
	scanHandler       *handlers.ScanHandler
	collectionHandler *handlers.CollectionHandler
}

// main - точка входа. Вызывает run и обрабатывает ошибку.
func main() {
	if err := run(); err != nil {
		log.Printf("Ошибка выполнения сервера: %v", err)
		os.Exit(1)
	}
}

// run содержит основную логику запуска сервера и возвращает ошибку.
func run() error {
	log.Println("Запуск сервера ReelProof...")

	cfg, err := parseFlags()
	if err != nil {
		return fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}

	// Инициализация зависимостей
	deps, err := setupDependencies(cfg)
	if err != nil {
		return fmt.Errorf("ошибка инициализации зависимостей: %w", err)
	}
	defer func() {
		if deps.db != nil {
			if closeErr := deps.db.Close(); closeErr != nil {
				log.Printf("Ошибка закрытия соединения с БД: %v", closeErr)
			}
		}
	}()

	// Фоновая зачистка завершенных сессий входа по QR-коду
	stopCleanup := startScanCleanup(deps.scanService)
	defer stopCleanup()

	// Настройка роутера
	r := setupRouter(deps)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	log.Printf("Запуск HTTPS-сервера на порту %s...", cfg.Port)
	log.Printf("Используется сертификат: %s", cfg.CertFile)
	log.Printf("Используется ключ: %s", cfg.KeyFile)

	if err = server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ошибка запуска HTTPS-сервера: %w", err)
	}
	return nil
}

// setupDependencies инициализирует и возвращает все необходимые зависимости сервера.
func setupDependencies(cfg *config) (*dependencies, error) {
	deps := &dependencies{}
	var err error

	// 1. Подключение к БД
	deps.db, err = newPostgresDB(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации БД: %w", err)
	}
	log.Println("Соединение с БД успешно установлено.")

	// 2. Инициализация клиента MinIO
	minioCfg := storage.MinioConfig{
		Endpoint:        getEnv(envMinioEndpoint, defaultMinioEndpoint),
		AccessKeyID:     getEnv(envMinioUser, defaultMinioUser),
		SecretAccessKey: getEnv(envMinioPassword, defaultMinioPassword),
		UseSSL:          minioUseSSL,
		BucketName:      getEnv(envMinioBucket, defaultMinioBucket),
	}
	deps.fileStorage, err = storage.NewMinioClient(minioCfg)
	if err != nil {
		if dbCloseErr := deps.db.Close(); dbCloseErr != nil {
			log.Printf("Ошибка закрытия соединения с БД при ошибке MinIO: %v", dbCloseErr)
		}
		return nil, fmt.Errorf("ошибка инициализации клиента MinIO: %w", err)
	}

	// 3. Создание репозиториев
	userRepo := repository.NewPostgresUserRepository(deps.db)
	assetRepo := repository.NewPostgresAssetRepository(deps.db)
	shareRepo := repository.NewPostgresShareRepository(deps.db)
	commentRepo := repository.NewPostgresCommentRepository(deps.db)
	scanRepo := repository.NewPostgresScanRepository(deps.db)
	collectionRepo := repository.NewPostgresCollectionRepository(deps.db)

	// 4. Создание сервисов
	authService := services.NewAuthService(userRepo)
	assetService := services.NewAssetService(assetRepo, userRepo, collectionRepo, deps.fileStorage)
	shareService := services.NewShareService(shareRepo, assetRepo, collectionRepo, userRepo)
	commentService := services.NewCommentService(commentRepo, assetRepo, collectionRepo, userRepo)
	deps.scanService = services.NewScanService(scanRepo, authService)
	collectionService := services.NewCollectionService(collectionRepo, assetRepo, userRepo)

	// 5. Создание обработчиков
	deps.authHandler = handlers.NewAuthHandler(authService)
	deps.assetHandler = handlers.NewAssetHandler(assetService)
	deps.shareHandler = handlers.NewShareHandler(shareService)
	deps.publicHandler = handlers.NewPublicHandler(shareService, commentService, assetService)
	deps.commentHandler = handlers.NewCommentHandler(commentService)
	deps.scanHandler = handlers.NewScanHandler(deps.scanService)
	deps.collectionHandler = handlers.NewCollectionHandler(collectionService)

	return deps, nil
}

// startScanCleanup запускает периодическую зачистку завершенных сессий входа
// по QR-коду и возвращает функцию остановки.
func startScanCleanup(scanService services.ScanService) func() {
	ticker := time.NewTicker(scanCleanupInterval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := scanService.Cleanup(scanCleanupGrace); err != nil {
					log.Printf("Ошибка зачистки сессий входа по QR-коду: %v", err)
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}

// setupRouter настраивает и возвращает роутер chi.
func setupRouter(deps *dependencies) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong\n"))
	})

	r.Route("/api", func(r chi.Router) {
		// Публичные маршруты (регистрация, вход)
		r.Post("/register", deps.authHandler.Register)
		r.Post("/login", deps.authHandler.Login)

		// Вход по QR-коду: создание и опрос публичны (веб-клиент еще не вошел),
		// сканирование и подтверждение выполняет уже вошедшее мобильное приложение
		r.Route("/scan", func(r chi.Router) {
			r.Post("/", deps.scanHandler.Create)
			r.Get("/{scanID}", deps.scanHandler.Status)

			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.Authenticator)
				r.Post("/{scanID}/scanned", deps.scanHandler.Scanned)
				r.Post("/{scanID}/confirm", deps.scanHandler.Confirm)
			})
		})

		// Публичная поверхность погашения ссылок общего доступа. Валидный JWT
		// здесь не обязателен, но учитывается: комментарии аутентифицированных
		// зрителей пишутся от имени их аккаунта
		r.Route("/public/shares/{token}", func(r chi.Router) {
			r.Use(appmiddleware.MaybeAuthenticator)
			r.Post("/redeem", deps.publicHandler.Redeem)
			r.Get("/comments", deps.publicHandler.ListComments)
			r.Post("/comments", deps.publicHandler.AppendComment)
			r.Get("/download", deps.publicHandler.Download)
		})

		// Приватные маршруты (требуют аутентификации)
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Authenticator)

			r.Route("/assets", func(r chi.Router) {
				r.Post("/upload", deps.assetHandler.Upload)
				r.Get("/", deps.assetHandler.ListSeries)

				r.Route("/series/{seriesKey}", func(r chi.Router) {
					r.Get("/latest", deps.assetHandler.Latest)
					r.Delete("/", deps.assetHandler.DeleteSeries)
					r.Put("/title", deps.assetHandler.RenameSeries)
				})

				r.Route("/versions/{versionID}", func(r chi.Router) {
					r.Get("/download", deps.assetHandler.Download)
					r.Delete("/", deps.assetHandler.DeleteVersion)
					r.Get("/comments", deps.commentHandler.ListForVersion)
					r.Post("/comments", deps.commentHandler.Append)
				})
			})

			r.Post("/comments/{commentID}/resolve", deps.commentHandler.MarkResolved)

			r.Route("/shares", func(r chi.Router) {
				r.Post("/", deps.shareHandler.Issue)
				r.Get("/", deps.shareHandler.ListOwn)
				r.Post("/{token}/toggle", deps.shareHandler.ToggleActive)
			})

			r.Route("/collections", func(r chi.Router) {
				r.Post("/", deps.collectionHandler.Create)
				r.Get("/", deps.collectionHandler.ListOwn)
				r.Post("/{collectionID}/items", deps.collectionHandler.AddItem)
			})
		})
	})
	return r
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	log.Printf("Переменная окружения '%s' не установлена, используется значение по умолчанию: '%s'", key, fallback)
	return fallback
}
