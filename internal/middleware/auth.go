package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Тип для ключа контекста.
type contextKey string

// Ключ для хранения ID пользователя в контексте.
const UserIDKey contextKey = "userID"

// TODO: Вынести секретный ключ в конфигурацию/переменные окружения! (Дублируется с services)
const jwtSecretKey = "your-very-secret-key"

// Структура для пользовательских данных в JWT (claims) - должна совпадать с той, что в services.
type jwtClaims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// parseToken разбирает и валидирует JWT из заголовка Authorization ("Bearer <token>").
// Возвращает ID пользователя или ошибку.
func parseToken(authHeader string) (int64, error) {
	// Проверяем формат "Bearer token"
	headerParts := strings.Split(authHeader, " ")
	if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
		return 0, fmt.Errorf("неверный формат заголовка Authorization")
	}

	tokenString := headerParts[1]

	// Парсим и валидируем токен
	claims := &jwtClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Убеждаемся, что метод подписи - HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный метод подписи: %v", token.Header["alg"])
		}
		// Возвращаем секретный ключ
		return []byte(jwtSecretKey), nil
	})
	if err != nil {
		return 0, fmt.Errorf("ошибка парсинга/валидации токена: %w", err)
	}

	// Проверяем валидность токена (включая время жизни, issuer и т.д.)
	if !token.Valid {
		return 0, fmt.Errorf("невалидный токен")
	}

	return claims.UserID, nil
}

// Authenticator проверяет JWT токен аутентификации и требует его наличия.
func Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Получаем заголовок Authorization
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			log.Println("[AuthMiddleware] Заголовок Authorization отсутствует")
			http.Error(w, "Требуется аутентификация", http.StatusUnauthorized)
			return
		}

		userID, err := parseToken(authHeader)
		if err != nil {
			log.Printf("[AuthMiddleware] %v", err)
			http.Error(w, "Невалидный токен", http.StatusUnauthorized)
			return
		}

		// Добавляем UserID в контекст запроса
		ctx := context.WithValue(r.Context(), UserIDKey, userID)

		// Логируем успешную аутентификацию
		log.Printf("[AuthMiddleware] Пользователь %d успешно аутентифицирован", userID)

		// Передаем управление следующему обработчику с обновленным контекстом
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// MaybeAuthenticator пропускает запрос и без токена: публичная поверхность
// погашения ссылок доступна анонимам, но аутентифицированный автор, пришедший
// по той же ссылке, должен быть узнан (его имя берется из учетной записи).
// Предъявленный, но невалидный токен - все равно отказ.
func MaybeAuthenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			// Анонимный запрос - пропускаем без UserID в контексте
			next.ServeHTTP(w, r)
			return
		}

		userID, err := parseToken(authHeader)
		if err != nil {
			log.Printf("[AuthMiddleware] %v", err)
			http.Error(w, "Невалидный токен", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserIDFromContext извлекает UserID из контекста запроса.
// Возвращает ID пользователя и true, если ID найден, иначе 0 и false.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	return userID, ok
}
