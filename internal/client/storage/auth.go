package storage

import (
	"context"
	"time"
)

// AuthStorage хранит локальную сессию клиента между запусками.
// Одновременно хранится не больше одной сессии.
type AuthStorage interface {
	// SaveAuth сохраняет сессию, перезаписывая предыдущую
	SaveAuth(ctx context.Context, auth *AuthData) error

	// GetAuth возвращает сохраненную сессию.
	// Returns ErrAuthNotFound if no session exists
	GetAuth(ctx context.Context) (*AuthData, error)

	// DeleteAuth удаляет сессию (logout). Отсутствие сессии не ошибка.
	DeleteAuth(ctx context.Context) error
}

// AuthData represents a persisted session
type AuthData struct {
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"` // unix время истечения access token
}

// AccessExpired сообщает, истечет ли access token в течение leeway
func (a *AuthData) AccessExpired(now time.Time, leeway time.Duration) bool {
	return !now.Add(leeway).Before(time.Unix(a.ExpiresAt, 0))
}
