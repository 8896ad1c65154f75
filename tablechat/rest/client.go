package rest

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

	"github.com/ZiplEix/questhub/tablechat-go/tablechat"
)

var (
	// ErrNotArray is returned when the history endpoint answers with something other than a JSON array.
	ErrNotArray = errors.New("history response is not an array")

	// ErrUnauthorized is wrapped into errors for 401 responses.
	ErrUnauthorized = errors.New("unauthorized")
)

var (
	_ tablechat.HistoryFetcher = (*Client)(nil)
	_ tablechat.MessagePoster  = (*Client)(nil)
)

// Client provides the table chat HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new REST API client.
// baseURL is the API root, e.g. "http://localhost:8080".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewClientFromConfig uses cfg.APIBaseURL and cfg.HTTPTimeout.
func NewClientFromConfig(cfg tablechat.Config) *Client {
	c := NewClient(cfg.APIBaseURL)
	if cfg.HTTPTimeout > 0 {
		c.httpClient.Timeout = cfg.HTTPTimeout
	}
	return c
}

// SetHTTPClient allows setting a custom HTTP client.
func (c *Client) SetHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

// FetchHistory returns the stored messages of a table, oldest first.
func (c *Client) FetchHistory(ctx context.Context, roomID, token string) ([]tablechat.Message, error) {
	var raw json.RawMessage
	if err := c.get(ctx, chatPath(roomID), token, &raw); err != nil {
		return nil, err
	}
	if !isJSONArray(raw) {
		return nil, ErrNotArray
	}
	var messages []tablechat.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	if messages == nil {
		messages = []tablechat.Message{}
	}
	return messages, nil
}

// PostMessage submits msg to the table's chat.
func (c *Client) PostMessage(ctx context.Context, roomID string, msg tablechat.Message, token string) error {
	return c.post(ctx, chatPath(roomID), token, msg, nil)
}

func chatPath(roomID string) string {
	return "/table/" + url.PathEscape(roomID) + "/chat"
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

// Helper methods

func (c *Client) post(ctx context.Context, path, token string, body, dest any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	setBearer(req, token)

	return c.do(req, dest)
}

func (c *Client) get(ctx context.Context, path, token string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	setBearer(req, token)

	return c.do(req, dest)
}

func setBearer(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) do(req *http.Request, dest any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, body)
	}

	if dest != nil {
		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
