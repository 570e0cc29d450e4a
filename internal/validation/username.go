package validation

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// UsernamePattern определяет допустимый формат username:
// латинские буквы, цифры и нижнее подчеркивание, 3-32 символа
var UsernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

const (
	// MinUsernameLen минимальная длина username
	MinUsernameLen = 3
	// MaxUsernameLen максимальная длина username
	MaxUsernameLen = 32
	// MinPasswordLen минимальная длина пароля учетной записи
	MinPasswordLen = 8
	// MaxDisplayNameLen максимальная длина отображаемого имени (в рунах)
	MaxDisplayNameLen = 64
)

// ValidateUsername проверяет, что username соответствует требованиям
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}

	if len(username) < MinUsernameLen {
		return fmt.Errorf("username must be at least %d characters long", MinUsernameLen)
	}

	if len(username) > MaxUsernameLen {
		return fmt.Errorf("username must not exceed %d characters", MaxUsernameLen)
	}

	if !UsernamePattern.MatchString(username) {
		return fmt.Errorf("username can only contain letters (a-z, A-Z), numbers (0-9), and underscores (_)")
	}

	return nil
}

// ValidatePassword проверяет минимальные требования к паролю учетной записи
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	if utf8.RuneCountInString(password) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLen)
	}

	return nil
}

// ValidateDisplayName проверяет отображаемое имя. Пустое имя допустимо:
// сервер подставит username.
func ValidateDisplayName(name string) error {
	if utf8.RuneCountInString(name) > MaxDisplayNameLen {
		return fmt.Errorf("display name must not exceed %d characters", MaxDisplayNameLen)
	}
	return nil
}
