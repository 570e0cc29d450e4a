package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iudanet/dreamjournal/internal/models"
	"github.com/iudanet/dreamjournal/pkg/api"
)

// maxBodyBytes ограничивает размер тела запроса
const maxBodyBytes = 1 << 20

// contextKey тип для ключей контекста
type contextKey string

// IdentityKey ключ для хранения identity в контексте (устанавливает middleware)
const IdentityKey contextKey = "identity"

// WithIdentity кладет аутентифицированного пользователя в контекст
func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// GetIdentity извлекает identity из контекста запроса
func GetIdentity(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(models.Identity)
	return id, ok
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// В сообщениях используем имена полей из json тегов
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON читает тело запроса в dst и проверяет validate теги
func decodeJSON(r *http.Request, dst any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

// sendJSON отправляет JSON ответ
func sendJSON(logger *slog.Logger, w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError отправляет JSON ответ с ошибкой
func sendError(logger *slog.Logger, w http.ResponseWriter, message string, statusCode int) {
	resp := api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}
	sendJSON(logger, w, resp, statusCode)
}

// WriteError is the error writer shared with the middleware package
func WriteError(logger *slog.Logger, w http.ResponseWriter, message string, statusCode int) {
	sendError(logger, w, message, statusCode)
}
