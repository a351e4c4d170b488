package models

import "time"

// Типы области действия ссылки общего доступа.
const (
	ScopeSingleVersion     = "single_version"     // Одна конкретная версия актива
	ScopeCuratedCollection = "curated_collection" // Подборка версий
)

// Share представляет ссылку общего доступа: непрозрачный токен-капабилити,
// привязанный к одной версии актива или к подборке. Доступ может быть ограничен
// паролем и сроком действия, ссылку можно деактивировать в любой момент.
type Share struct {
	ID            int64      `db:"id" json:"id"`
	Token         string     `db:"token" json:"token"`
	ScopeType     string     `db:"scope_type" json:"scope_type"`
	ScopeRef      int64      `db:"scope_ref" json:"scope_ref"` // ID версии или подборки
	PasswordHash  *string    `db:"password_hash" json:"-"`     // Не отправляем хеш пароля в JSON
	AllowDownload bool       `db:"allow_download" json:"allow_download"`
	ExpiresAt     *time.Time `db:"expires_at" json:"expires_at,omitempty"` // NULL - бессрочная ссылка
	IsActive      bool       `db:"is_active" json:"is_active"`
	Justification *string    `db:"justification" json:"justification,omitempty"` // Обязательно для не-последней версии
	ViewCount     int64      `db:"view_count" json:"view_count"`
	DownloadCount int64      `db:"download_count" json:"download_count"`
	CreatedBy     int64      `db:"created_by" json:"created_by"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// IssueShareRequest представляет тело запроса на выпуск ссылки общего доступа.
type IssueShareRequest struct {
	ScopeType     string `json:"scope_type"`
	ScopeRef      int64  `json:"scope_ref"`
	Password      string `json:"password,omitempty"` // Открытый пароль, хешируется перед сохранением
	AllowDownload bool   `json:"allow_download"`
	TTL           string `json:"ttl,omitempty"` // "7d" или "never" (по умолчанию "never")
	Justification string `json:"justification,omitempty"`
}

// RedeemRequest представляет тело запроса на погашение ссылки.
type RedeemRequest struct {
	Password string `json:"password,omitempty"`
}

// ScopedGrant - эфемерный результат успешного погашения ссылки. Не является
// новым токеном и нигде не сохраняется: вычисляется заново при каждом обращении.
type ScopedGrant struct {
	Token         string  `json:"token"`
	ScopeType     string  `json:"scope_type"`
	ScopeRef      int64   `json:"scope_ref"`
	AllowDownload bool    `json:"allow_download"`
	Justification *string `json:"justification,omitempty"`
}
