package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iudanet/dreamjournal/internal/models"
	"github.com/iudanet/dreamjournal/pkg/api"
)

// DefaultTimeout is the request timeout used when none is configured
const DefaultTimeout = 30 * time.Second

// Client представляет HTTP клиент для взаимодействия с сервером.
// Ни одна операция не повторяется автоматически.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option настраивает Client
type Option func(*Client)

// WithTimeout задает таймаут одного запроса
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient заменяет HTTP клиент (например, клиент httptest сервера)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient создает новый API клиент
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	var resp api.RegisterResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/register", "", req, &resp); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// Login выполняет аутентификацию пользователя
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", "", req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// Refresh обменивает refresh token на новую пару токенов
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/refresh", refreshToken, nil, &resp); err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	return &resp, nil
}

// Logout отзывает refresh token'ы пользователя на сервере
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/logout", accessToken, nil, nil); err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	return nil
}

// Me возвращает identity, которой принадлежит access token
func (c *Client) Me(ctx context.Context, accessToken string) (*models.Identity, error) {
	var resp api.IdentityResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/auth/me", accessToken, nil, &resp); err != nil {
		return nil, fmt.Errorf("identity request failed: %w", err)
	}
	return &models.Identity{
		UserID:      resp.UserID,
		Username:    resp.Username,
		DisplayName: resp.DisplayName,
	}, nil
}

// ListEntries получает все записи журнала вместе с комментариями
func (c *Client) ListEntries(ctx context.Context) ([]models.Entry, error) {
	var resp api.ListEntriesResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/dreams", "", nil, &resp); err != nil {
		return nil, fmt.Errorf("list entries failed: %w", err)
	}

	entries := make([]models.Entry, 0, len(resp.Entries))
	for i := range resp.Entries {
		entries = append(entries, fromAPIEntry(&resp.Entries[i]))
	}
	return entries, nil
}

// CreateEntry создает запись. ID и время назначает сервер.
func (c *Client) CreateEntry(ctx context.Context, token string, entry models.NewEntry) (*models.Entry, error) {
	req := api.CreateEntryRequest{
		Title:       entry.Title,
		Description: entry.Description,
		Nickname:    entry.Nickname,
	}

	var resp api.Entry
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/dreams", token, req, &resp); err != nil {
		return nil, fmt.Errorf("create entry failed: %w", err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("create entry failed: %w: response without id", ErrStoreUnavailable)
	}

	created := fromAPIEntry(&resp)
	return &created, nil
}

// DeleteEntry удаляет запись. Удаление отсутствующей записи не ошибка.
func (c *Client) DeleteEntry(ctx context.Context, token, id string) error {
	path := "/api/v1/dreams/" + url.PathEscape(id)
	if err := c.doRequest(ctx, http.MethodDelete, path, token, nil, nil); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete entry failed: %w", err)
	}
	return nil
}

// CreateComment добавляет комментарий к записи
func (c *Client) CreateComment(ctx context.Context, token, entryID string, comment models.NewComment) (*models.Comment, error) {
	req := api.CreateCommentRequest{
		Text:     comment.Text,
		Nickname: comment.Nickname,
	}

	path := "/api/v1/dreams/" + url.PathEscape(entryID) + "/comments"

	var resp api.Comment
	if err := c.doRequest(ctx, http.MethodPost, path, token, req, &resp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("create comment failed: %w: %w", ErrEntryNotFound, err)
		}
		return nil, fmt.Errorf("create comment failed: %w", err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("create comment failed: %w: response without id", ErrStoreUnavailable)
	}

	created := fromAPIComment(&resp)
	if created.EntryID == "" {
		created.EntryID = entryID
	}
	return &created, nil
}

// DeleteComment удаляет комментарий. Удаление отсутствующего комментария не ошибка.
func (c *Client) DeleteComment(ctx context.Context, token, entryID, commentID string) error {
	path := "/api/v1/dreams/" + url.PathEscape(entryID) + "/comments/" + url.PathEscape(commentID)
	if err := c.doRequest(ctx, http.MethodDelete, path, token, nil, nil); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete comment failed: %w", err)
	}
	return nil
}

// doRequest выполняет HTTP запрос и переводит ответ в ошибки таксономии
func (c *Client) doRequest(ctx context.Context, method, path, token string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %w", ErrStoreUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{
			StatusCode: resp.StatusCode,
			kind:       kindForStatus(resp.StatusCode),
		}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			statusErr.Message = errResp.Message
			if statusErr.Message == "" {
				statusErr.Message = errResp.Error
			}
		} else {
			statusErr.Message = strings.TrimSpace(string(respBody))
		}
		return statusErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %w", ErrStoreUnavailable, err)
		}
	}

	return nil
}

func fromAPIEntry(e *api.Entry) models.Entry {
	out := models.Entry{
		ID:          e.ID,
		OwnerID:     e.OwnerID,
		Title:       e.Title,
		Description: e.Description,
		Nickname:    e.Nickname,
		CreatedAt:   e.Timestamp,
		Comments:    make([]models.Comment, 0, len(e.Comments)),
	}
	for i := range e.Comments {
		out.Comments = append(out.Comments, fromAPIComment(&e.Comments[i]))
	}
	return out
}

func fromAPIComment(c *api.Comment) models.Comment {
	return models.Comment{
		ID:        c.ID,
		EntryID:   c.EntryID,
		OwnerID:   c.OwnerID,
		Text:      c.Text,
		Nickname:  c.Nickname,
		CreatedAt: c.Timestamp,
	}
}
