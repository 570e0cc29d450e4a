package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// RefreshTokenSize - размер случайной части refresh token в байтах
const RefreshTokenSize = 32

// NewRefreshToken генерирует новый случайный refresh token (base64 URL-safe)
func NewRefreshToken() (string, error) {
	tokenBytes := make([]byte, RefreshTokenSize)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(tokenBytes), nil
}

// HashToken хеширует opaque токен с использованием SHA256.
// На сервере хранится только хеш, сам токен знает только клиент.
func HashToken(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("token cannot be empty")
	}

	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:]), nil
}

// VerifyToken проверяет, соответствует ли токен сохраненному хешу
func VerifyToken(token, hashedToken string) error {
	if hashedToken == "" {
		return fmt.Errorf("hashed token cannot be empty")
	}

	computedHash, err := HashToken(token)
	if err != nil {
		return fmt.Errorf("failed to compute token hash: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(computedHash), []byte(hashedToken)) != 1 {
		return fmt.Errorf("invalid token")
	}

	return nil
}
