package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iudanet/dreamjournal/internal/crypto"
	"github.com/iudanet/dreamjournal/internal/models"
)

// Issuer is written to the iss claim of every access token
const Issuer = "dreamjournal"

// ErrInvalidToken is returned for any token that fails parsing or validation
var ErrInvalidToken = errors.New("invalid token")

// Claims представляет JWT claims access token'а
type Claims struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the principal carried by the token
func (c *Claims) Identity() models.Identity {
	return models.Identity{
		UserID:      c.UserID,
		Username:    c.Username,
		DisplayName: c.DisplayName,
	}
}

// IssuedRefreshToken is a freshly generated refresh token: the raw value goes
// to the client, the hash goes to storage.
type IssuedRefreshToken struct {
	ExpiresAt time.Time
	Token     string
	Hash      string
}

// Service issues and validates tokens of the identity provider
type Service struct {
	secret          []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

// NewService creates a new JWT service
// secret should be a cryptographically secure random string
func NewService(secret []byte, accessTokenTTL, refreshTokenTTL time.Duration) *Service {
	return &Service{
		secret:          secret,
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
	}
}

// GenerateAccessToken создает новый JWT access token.
// Возвращает токен и время жизни в секундах.
func (s *Service) GenerateAccessToken(user *models.User) (string, int64, error) {
	now := time.Now()
	expiresAt := now.Add(s.accessTokenTTL)

	claims := Claims{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, int64(s.accessTokenTTL.Seconds()), nil
}

// ValidateAccessToken валидирует и парсит JWT access token
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		// Проверяем что используется правильный алгоритм подписи
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(Issuer), jwt.WithExpirationRequired())

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GenerateRefreshToken создает новый random refresh token вместе с его хешем
func (s *Service) GenerateRefreshToken() (*IssuedRefreshToken, error) {
	token, err := crypto.NewRefreshToken()
	if err != nil {
		return nil, err
	}

	hash, err := crypto.HashToken(token)
	if err != nil {
		return nil, err
	}

	return &IssuedRefreshToken{
		Token:     token,
		Hash:      hash,
		ExpiresAt: time.Now().Add(s.refreshTokenTTL),
	}, nil
}

// BearerToken извлекает токен из значения заголовка Authorization ("Bearer <token>")
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
