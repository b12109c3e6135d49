// Package client is a thin HTTP client for the gatewatch engine API, used by
// the gatewatchctl command.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gatewatch-systems/gatewatch/internal/models"
)

// Client talks to a running gatewatch engine.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates an API client. The token is sent as a Bearer credential on
// every request.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (c *Client) do(method, path string, body, out interface{}) error {
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if !env.Success {
		if env.Error != "" {
			return fmt.Errorf("%s", env.Error)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}
	return nil
}

// Overview fetches the dashboard stats snapshot.
func (c *Client) Overview() (*models.StatsSnapshot, error) {
	var snap models.StatsSnapshot
	if err := c.do(http.MethodGet, "/api/stats/overview", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ListEvents fetches one page of events.
func (c *Client) ListEvents(search, eventType string, page, limit int) (*models.EventPage, error) {
	q := url.Values{}
	if search != "" {
		q.Set("search", search)
	}
	if eventType != "" {
		q.Set("type", eventType)
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	path := "/api/events"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var result models.EventPage
	if err := c.do(http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListBans fetches all active bans.
func (c *Client) ListBans() ([]models.BanRecord, error) {
	var records []models.BanRecord
	if err := c.do(http.MethodGet, "/api/bans", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// History fetches recent ban transitions, newest first.
func (c *Client) History(limit int) ([]models.BanAuditEntry, error) {
	path := "/api/bans/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var entries []models.BanAuditEntry
	if err := c.do(http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Ban applies a manual ban.
func (c *Client) Ban(req *models.BanRequest) (*models.BanRecord, error) {
	var record models.BanRecord
	if err := c.do(http.MethodPost, "/api/bans", req, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Unban lifts a ban by id or IP.
func (c *Client) Unban(idOrIP string) error {
	return c.do(http.MethodDelete, "/api/bans/"+url.PathEscape(idOrIP), nil, nil)
}
