package models

import "time"

// Классы авторов комментариев.
const (
	AuthorTeamMember = "team_member"        // Участник команды-владельца актива
	AuthorIndividual = "individual_account" // Аутентифицированный пользователь вне команды
	AuthorGuest      = "guest"              // Анонимный гость по ссылке общего доступа
)

// Comment представляет комментарий к версии актива, привязанный к таймкоду.
// Лента комментариев append-only: изменяется только флаг is_resolved.
type Comment struct {
	ID                int64     `db:"id" json:"id"`
	SeriesKey         string    `db:"series_key" json:"series_key"`
	AssetVersionID    int64     `db:"asset_version_id" json:"asset_version_id"`
	TimecodeSeconds   float64   `db:"timecode_seconds" json:"timecode_seconds"`
	Body              string    `db:"body" json:"body"`
	AuthorClass       string    `db:"author_class" json:"author_class"`
	AuthorDisplayName string    `db:"author_display_name" json:"author_display_name"`
	AuthorTeamName    *string   `db:"author_team_name" json:"author_team_name,omitempty"` // Только для team_member
	AuthorUserID      *int64    `db:"author_user_id" json:"-"`                            // NULL для гостей
	IsResolved        bool      `db:"is_resolved" json:"is_resolved"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// AuthorContext - однажды вычисленный контекст автора запроса: кто пишет
// комментарий и как его отображать. Передается явно в сервисные методы,
// чтобы не переопределять "гость или аккаунт" в каждом месте заново.
type AuthorContext struct {
	Class       string
	UserID      *int64
	DisplayName string
	TeamID      *int64
	TeamName    *string
}

// CommentView - комментарий, подготовленный к отображению: цвет автора
// (детерминированно по порядку первого появления в текущем наборе) и позиция
// маркера на дорожке [0,1] (NULL, пока длительность ролика неизвестна).
type CommentView struct {
	Comment
	Color          string   `json:"color"`
	MarkerPosition *float64 `json:"marker_position,omitempty"`
}

// AppendCommentRequest представляет тело запроса на добавление комментария.
// DisplayName учитывается только для гостей: для аутентифицированных авторов
// имя всегда берется из сессии, чтобы исключить подмену.
type AppendCommentRequest struct {
	AssetVersionID  int64   `json:"asset_version_id"`
	TimecodeSeconds float64 `json:"timecode_seconds"`
	Body            string  `json:"body"`
	DisplayName     string  `json:"display_name,omitempty"`
}
