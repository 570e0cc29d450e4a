package models

import "time"

// User представляет учетную запись identity provider'а
type User struct {
	CreatedAt    time.Time  `json:"created_at"`    // время создания
	LastLogin    *time.Time `json:"last_login"`    // время последнего входа (nil если не входил)
	ID           string     `json:"id"`            // UUID пользователя
	Username     string     `json:"username"`      // уникальный username
	DisplayName  string     `json:"display_name"`  // отображаемое имя
	PasswordHash string     `json:"password_hash"` // bcrypt хеш пароля
}

// RefreshToken представляет refresh token пользователя.
// Сам токен на сервере не хранится, только его SHA256 хеш.
type RefreshToken struct {
	ExpiresAt time.Time `json:"expires_at"` // время истечения
	CreatedAt time.Time `json:"created_at"` // время создания
	Token     string    `json:"-"`          // открытый токен, есть только в момент выдачи
	TokenHash string    `json:"token_hash"` // SHA256 хеш токена (hex)
	UserID    string    `json:"user_id"`    // ID пользователя
}

// Identity is the authenticated principal as seen by the journal.
type Identity struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}
