// Package backend реализует HTTP-клиент REST-бэкенда образовательной платформы.
//
// Клиент различает два рода отказов: явный отказ в авторизации
// (ErrUnauthorized — бэкенд отверг токен) и транзиентные ошибки сети
// или сервера. Только первый род даёт вызывающей стороне право
// уничтожать сохранённые учётные данные.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/studyhub/session-guard/internal/models"
)

// ErrUnauthorized означает, что бэкенд явно отверг учётные данные.
var ErrUnauthorized = errors.New("unauthorized")

// Client — клиент REST API платформы.
// Таймаут на запросы не выставляется: устаревание сессионных проверок
// ограничивается окнами платёжного маркера, а не таймаутами транспорта.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New создаёт новый клиент бэкенда.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Token   string          `json:"token"`
	IsNew   bool            `json:"is_new_user"`
	User    json.RawMessage `json:"user"`
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request) (*envelope, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode backend response: %w", err)
	}
	if !env.Success {
		return nil, fmt.Errorf("backend rejected request: %s", env.Message)
	}
	return &env, nil
}

func (env *envelope) snapshot() (*models.UserSnapshot, error) {
	if len(env.User) == 0 {
		return nil, nil
	}
	var snap models.UserSnapshot
	if err := json.Unmarshal(env.User, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode user snapshot: %w", err)
	}
	return &snap, nil
}

// Login аутентифицирует пользователя и возвращает токен бэкенда и снимок.
func (c *Client) Login(ctx context.Context, username, password string) (string, *models.UserSnapshot, error) {
	const op = "backend.Login"
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	env, err := c.do(req)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	snap, err := env.snapshot()
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	return env.Token, snap, nil
}

// WhoAmI проверяет токен и возвращает актуальный снимок пользователя.
func (c *Client) WhoAmI(ctx context.Context, token string) (*models.UserSnapshot, error) {
	const op = "backend.WhoAmI"
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/me", token, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	env, err := c.do(req)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return env.snapshot()
}

// UpdateProfile частично обновляет профиль и возвращает свежий снимок.
func (c *Client) UpdateProfile(ctx context.Context, token string, fields map[string]any) (*models.UserSnapshot, error) {
	const op = "backend.UpdateProfile"
	req, err := c.newRequest(ctx, http.MethodPatch, "/profile", token, fields)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	env, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return env.snapshot()
}

// SendOTP запрашивает отправку одноразового кода на телефон.
func (c *Client) SendOTP(ctx context.Context, phone string) error {
	const op = "backend.SendOTP"
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/otp/send", "", map[string]string{"phone": phone})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := c.do(req); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// VerifyOTP проверяет одноразовый код и возвращает токен, снимок
// и признак нового пользователя.
func (c *Client) VerifyOTP(ctx context.Context, phone, code string) (string, *models.UserSnapshot, bool, error) {
	const op = "backend.VerifyOTP"
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/otp/verify", "", map[string]string{
		"phone": phone,
		"code":  code,
	})
	if err != nil {
		return "", nil, false, fmt.Errorf("%s: %w", op, err)
	}
	env, err := c.do(req)
	if err != nil {
		return "", nil, false, fmt.Errorf("%s: %w", op, err)
	}
	snap, err := env.snapshot()
	if err != nil {
		return "", nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return env.Token, snap, env.IsNew, nil
}

// ResendOTP повторно отправляет одноразовый код.
func (c *Client) ResendOTP(ctx context.Context, phone string) error {
	const op = "backend.ResendOTP"
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/otp/resend", "", map[string]string{"phone": phone})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := c.do(req); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
