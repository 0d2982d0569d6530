// Package session implements the authenticated identity variant: a thin
// client for the external auth service. Sign-in itself is delegated to
// the provider; this client only exchanges the provider credential for a
// session and keeps the token on disk between runs.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	gosync "sync"
	"time"

	"golang.org/x/exp/slog"

	"smartledger/internal/domain/identity"
)

type Client struct {
	client    *http.Client
	log       *slog.Logger
	baseURL   string
	tokenPath string

	mu      gosync.Mutex
	token   string
	current *identity.Identity
	changes chan identity.Change
}

func New(baseURL, tokenPath string, log *slog.Logger) *Client {
	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 10,
		},
	}

	c := &Client{
		client:    client,
		log:       log.With("component", "session"),
		baseURL:   baseURL,
		tokenPath: tokenPath,
		changes:   make(chan identity.Change, 8),
	}

	// Загружаем токен предыдущего запуска, если он есть.
	if data, err := os.ReadFile(tokenPath); err == nil && len(data) > 0 {
		c.token = string(data)
	}

	return c
}

// Current восстанавливает сессию по сохраненному токену. Просроченный
// или отозванный токен удаляется, результат — (nil, nil).
func (c *Client) Current(ctx context.Context) (*identity.Identity, error) {
	c.mu.Lock()
	if c.current != nil {
		cur := c.current
		c.mu.Unlock()
		return cur, nil
	}
	token := c.token
	c.mu.Unlock()

	if token == "" {
		return nil, nil
	}

	ident, err := c.fetchUser(ctx, token)
	if err != nil {
		if _, ok := err.(*identity.AuthError); ok {
			// Токен больше не действителен.
			c.log.Debug("stored token rejected, clearing", "error", err)
			c.clearToken()
			return nil, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.current = ident
	c.mu.Unlock()
	c.emit(ident)

	return ident, nil
}

func (c *Client) Changes() <-chan identity.Change {
	return c.changes
}

// SignInWithProvider обменивает учетные данные внешнего провайдера на
// сессию и сохраняет токен для последующих запусков.
func (c *Client) SignInWithProvider(ctx context.Context, provider, secret string) (*identity.Identity, error) {
	body := struct {
		Provider string `json:"provider"`
		Token    string `json:"token"`
	}{Provider: provider, Token: secret}

	var resp struct {
		AccessToken string `json:"access_token"`
		User        struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}

	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", "", body, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" || resp.User.ID == "" {
		return nil, &identity.AuthError{Op: "sign-in", Message: "auth service returned an incomplete session"}
	}

	if err := os.WriteFile(c.tokenPath, []byte(resp.AccessToken), 0600); err != nil {
		return nil, fmt.Errorf("persist session token: %w", err)
	}

	ident := &identity.Identity{ID: resp.User.ID, Email: resp.User.Email}

	c.mu.Lock()
	c.token = resp.AccessToken
	c.current = ident
	c.mu.Unlock()
	c.emit(ident)

	c.log.Info("signed in", "provider", provider, "user", ident.Display())
	return ident, nil
}

// SignOut аннулирует сессию на сервере и удаляет локальный токен.
// Локальное состояние очищается даже если сервер недоступен.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	if token == "" {
		return nil
	}

	err := c.do(ctx, http.MethodPost, "/auth/v1/logout", token, nil, nil)
	c.clearToken()
	c.emit(nil)

	if err != nil {
		return &identity.AuthError{Op: "sign-out", Message: "failed to revoke session", Err: err}
	}
	return nil
}

func (c *Client) fetchUser(ctx context.Context, token string) (*identity.Identity, error) {
	var resp struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", token, nil, &resp); err != nil {
		return nil, err
	}
	return &identity.Identity{ID: resp.ID, Email: resp.Email}, nil
}

func (c *Client) clearToken() {
	c.mu.Lock()
	c.token = ""
	c.current = nil
	c.mu.Unlock()

	if err := os.Remove(c.tokenPath); err != nil && !os.IsNotExist(err) {
		c.log.Warn("failed to remove token file", "error", err)
	}
}

func (c *Client) emit(ident *identity.Identity) {
	select {
	case c.changes <- identity.Change{Identity: ident}:
	default:
		// Слушателя нет — событие не блокирует вход и выход.
	}
}

func (c *Client) do(ctx context.Context, method, path, token string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &identity.AuthError{Op: method + " " + path, Message: "auth service unreachable", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		msg := fmt.Sprintf("auth service returned status %d", resp.StatusCode)
		if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return &identity.AuthError{Op: method + " " + path, Message: msg}
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}
