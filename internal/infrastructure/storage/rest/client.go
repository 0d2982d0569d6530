// Package rest implements the record store against the REST backend.
// The backend exposes the whole dashboard of one owner in a single
// read and a per-entity upsert write.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/exp/slog"

	"smartledger/internal/domain/ledger"
	"smartledger/internal/infrastructure/storage"
)

type Client struct {
	client    *http.Client
	log       *slog.Logger
	baseURL   string
	userAgent string
}

// Dashboard holds the latest record of every entity for one owner. A
// nil entry means the owner has never saved that entity.
type Dashboard map[ledger.Entity]*ledger.Record

type dashboardRow struct {
	OwnerID   string        `json:"ownerId"`
	Values    ledger.Values `json:"values"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

type upsertRequest struct {
	OwnerID string        `json:"ownerId"`
	Values  ledger.Values `json:"values"`
}

func New(serverAddress string, enableTLS bool, log *slog.Logger) *Client {
	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			DisableCompression:  false,
			DisableKeepAlives:   false,
			MaxIdleConnsPerHost: 10,
		},
	}

	scheme := "http://"
	if enableTLS {
		scheme = "https://"
	}

	return &Client{
		client:    client,
		log:       log.With("component", "rest_store"),
		baseURL:   scheme + serverAddress,
		userAgent: "SmartLedger-Client/1.0",
	}
}

// FetchDashboard reads the latest row of every entity in one request.
func (c *Client) FetchDashboard(ctx context.Context, owner string) (Dashboard, error) {
	resp, err := c.doRequest(ctx, "GET", "/api/dashboard/"+owner, nil)
	if err != nil {
		return nil, &storage.StoreError{Op: "fetch", Message: "backend unreachable", Err: err}
	}

	var rows map[string]*dashboardRow
	if err := c.parseResponse(resp, &rows); err != nil {
		return nil, storeError("fetch", "", err)
	}

	dashboard := make(Dashboard, len(rows))
	for name, row := range rows {
		entity, err := ledger.ParseEntity(name)
		if err != nil {
			// Новые таблицы на бэкенде не должны ломать клиент.
			c.log.Warn("ignoring unknown dashboard entity", "entity", name)
			continue
		}
		if row == nil {
			dashboard[entity] = nil
			continue
		}
		dashboard[entity] = &ledger.Record{
			Owner:     row.OwnerID,
			Values:    ledger.SchemaOf(entity).Coerce(row.Values),
			UpdatedAt: row.UpdatedAt,
		}
	}

	return dashboard, nil
}

// FetchLatest reads one entity's latest row. The backend has no
// per-entity read, so the whole dashboard is fetched and the requested
// entity extracted.
func (c *Client) FetchLatest(ctx context.Context, entity ledger.Entity, owner string) (*ledger.Record, error) {
	dashboard, err := c.FetchDashboard(ctx, owner)
	if err != nil {
		return nil, err
	}
	return dashboard[entity], nil
}

func (c *Client) Upsert(ctx context.Context, entity ledger.Entity, owner string, values ledger.Values) (*ledger.Record, error) {
	if _, err := ledger.ParseEntity(string(entity)); err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, "POST", "/api/upsert/"+string(entity), upsertRequest{
		OwnerID: owner,
		Values:  values,
	})
	if err != nil {
		return nil, &storage.StoreError{Op: "upsert", Entity: entity, Message: "backend unreachable", Err: err}
	}

	var row dashboardRow
	if err := c.parseResponse(resp, &row); err != nil {
		return nil, storeError("upsert", entity, err)
	}

	return &ledger.Record{
		Owner:     row.OwnerID,
		Values:    ledger.SchemaOf(entity).Coerce(row.Values),
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend returned status: %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	c.log.Debug("sending request",
		"method", method,
		"url", req.URL.String(),
	)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	return resp, nil
}

// serverError carries the backend's error body so the store error can
// surface its message.
type serverError struct {
	status  int
	message string
}

func (e *serverError) Error() string {
	if e.message != "" {
		return e.message
	}
	return fmt.Sprintf("server returned status: %d", e.status)
}

func (c *Client) parseResponse(resp *http.Response, result interface{}) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.log.Debug("received response",
		"status", resp.StatusCode,
		"body", string(body),
	)

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return &serverError{status: resp.StatusCode, message: errResp.Error}
		}
		// Бэкенд отвечает ошибкой и в JSON, и в виде простого текста.
		if msg := strings.TrimSpace(string(body)); msg != "" && !json.Valid(body) {
			return &serverError{status: resp.StatusCode, message: msg}
		}
		return &serverError{status: resp.StatusCode}
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}

	return nil
}

func storeError(op string, entity ledger.Entity, err error) *storage.StoreError {
	message := "backend request failed"
	if srvErr, ok := err.(*serverError); ok {
		message = srvErr.Error()
	}
	return &storage.StoreError{
		Op:      op,
		Entity:  entity,
		Message: message,
		Err:     err,
	}
}
