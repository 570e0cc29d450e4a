package api

// RegisterRequest представляет запрос на регистрацию нового пользователя
type RegisterRequest struct {
	Username    string `json:"username" validate:"required"` // username пользователя
	Password    string `json:"password" validate:"required"` // пароль в открытом виде (только по TLS)
	DisplayName string `json:"display_name,omitempty"`       // отображаемое имя, по умолчанию username
}

// RegisterResponse представляет ответ на успешную регистрацию
type RegisterResponse struct {
	UserID  string `json:"user_id"` // UUID пользователя
	Message string `json:"message"` // сообщение об успешной регистрации
}

// LoginRequest представляет запрос на аутентификацию
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse представляет ответ с токенами доступа и данными identity
type TokenResponse struct {
	AccessToken  string `json:"access_token"`  // JWT access token
	RefreshToken string `json:"refresh_token"` // refresh token
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	ExpiresIn    int64  `json:"expires_in"` // время жизни access token в секундах
}

// IdentityResponse описывает текущего аутентифицированного пользователя
type IdentityResponse struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
