package models

import (
	"regexp"
	"time"
)

// Маркер версии в начале имени файла: "v2_final.mp4" -> серия "final.mp4".
var versionMarkerRe = regexp.MustCompile(`^v[0-9]+_`)

// AssetVersion представляет конкретную версию видеоактива и его метаданные.
// Все версии одного и того же ролика образуют серию: либо по явному ключу серии,
// либо по имени файла без префикса-маркера версии (v<цифры>_).
type AssetVersion struct {
	ID              int64      `db:"id" json:"id"`
	SeriesKey       *string    `db:"series_key" json:"series_key,omitempty"` // Явный ключ серии, может быть NULL
	SeriesTitle     *string    `db:"series_title" json:"series_title,omitempty"`
	VersionNumber   int        `db:"version_number" json:"version_number"`
	FileName        string     `db:"file_name" json:"file_name"`
	ObjectKey       string     `db:"object_key" json:"object_key"` // Ключ файла в S3/MinIO
	SizeBytes       *int64     `db:"size_bytes" json:"size_bytes,omitempty"`
	DurationSeconds *float64   `db:"duration_seconds" json:"duration_seconds,omitempty"`
	UploaderID      int64      `db:"uploader_id" json:"uploader_id"`
	TeamID          *int64     `db:"team_id" json:"team_id,omitempty"` // Команда-владелец, NULL для личных активов
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	DeletedAt       *time.Time `db:"deleted_at" json:"-"` // Мягкое удаление
}

// EffectiveSeriesKey возвращает ключ серии: явный, если он задан,
// иначе производный - имя файла без ведущего маркера версии.
func (v *AssetVersion) EffectiveSeriesKey() string {
	if v.SeriesKey != nil && *v.SeriesKey != "" {
		return *v.SeriesKey
	}
	return versionMarkerRe.ReplaceAllString(v.FileName, "")
}

// AssetSeries представляет сгруппированную серию версий для выдачи клиенту.
// Версии отсортированы по убыванию номера (первая - последняя версия).
type AssetSeries struct {
	SeriesKey string         `json:"series_key"`
	Title     *string        `json:"title,omitempty"`
	Versions  []AssetVersion `json:"versions"`
}

// RenameSeriesRequest представляет тело запроса на переименование серии.
type RenameSeriesRequest struct {
	Title string `json:"title"`
}
