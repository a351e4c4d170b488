package models

import "time"

// Collection представляет именованную подборку версий активов,
// которой можно поделиться одной ссылкой (scope_type=curated_collection).
type Collection struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	OwnerID   int64     `db:"owner_id" json:"owner_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CreateCollectionRequest представляет тело запроса на создание подборки.
type CreateCollectionRequest struct {
	Name string `json:"name"`
}

// AddCollectionItemRequest представляет тело запроса на добавление версии в подборку.
type AddCollectionItemRequest struct {
	AssetVersionID int64 `json:"asset_version_id"`
}
