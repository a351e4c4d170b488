package models

import "time"

// Состояния сессии входа по QR-коду.
// Переходы монотонны: pending -> scanned -> confirmed, либо expired из любого
// нетерминального состояния после истечения срока. Из confirmed и expired
// переходов нет.
const (
	ScanStatePending   = "pending"
	ScanStateScanned   = "scanned"
	ScanStateConfirmed = "confirmed"
	ScanStateExpired   = "expired"
)

// ScanSession представляет короткоживущую сессию входа по QR-коду.
// Создается веб-клиентом, подтверждается мобильным приложением по внешнему
// каналу, наблюдается веб-клиентом через периодический опрос статуса.
type ScanSession struct {
	ScanID           string    `db:"scan_id" json:"scan_id"`
	State            string    `db:"state" json:"state"`
	IssuedAt         time.Time `db:"issued_at" json:"issued_at"`
	ExpiresAt        time.Time `db:"expires_at" json:"expires_at"`
	ConfirmedUserID  *int64    `db:"confirmed_user_id" json:"-"`
	IssuedCredential *string   `db:"issued_credential" json:"-"` // JWT, выданный ровно один раз при подтверждении
}

// ScanStatusResponse представляет тело ответа на опрос статуса сессии.
// Токен присутствует только в состоянии confirmed.
type ScanStatusResponse struct {
	ScanID    string    `json:"scan_id"`
	State     string    `json:"state"`
	ExpiresAt time.Time `json:"expires_at"`
	Token     *string   `json:"token,omitempty"`
}
