// Package client is a Go client for the chat API and its WebSocket topic
// stream.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"slackclone/internal/chat/models"
	"slackclone/internal/common"
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// New returns a client for the API at baseURL, e.g. http://localhost:3001.
// A nil httpClient gets a 10s timeout.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: u, http: httpClient}, nil
}

// MessageRequest is the body of CreateMessage.
type MessageRequest struct {
	ChannelID  uint    `json:"channelId"`
	UserID     string  `json:"userId"`
	Username   string  `json:"username"`
	Text       string  `json:"text"`
	UserAvatar *string `json:"userAvatar,omitempty"`
}

func (c *Client) ListChannels(ctx context.Context) ([]models.Channel, error) {
	var out []models.Channel
	return out, c.do(ctx, http.MethodGet, "/api/channels", nil, nil, &out)
}

func (c *Client) CreateChannel(ctx context.Context, name string) (*models.Channel, error) {
	var out models.Channel
	if err := c.do(ctx, http.MethodPost, "/api/channels", nil, map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListMessages(ctx context.Context, channelID uint) ([]models.Message, error) {
	q := url.Values{"channelId": {strconv.FormatUint(uint64(channelID), 10)}}
	var out []models.Message
	return out, c.do(ctx, http.MethodGet, "/api/messages", q, nil, &out)
}

func (c *Client) CreateMessage(ctx context.Context, req MessageRequest) (*models.Message, error) {
	var out models.Message
	if err := c.do(ctx, http.MethodPost, "/api/messages", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddReaction(ctx context.Context, messageID uint, userID, emoji string) (*models.Reaction, error) {
	body := struct {
		MessageID uint   `json:"messageId"`
		UserID    string `json:"userId"`
		Emoji     string `json:"emoji"`
	}{messageID, userID, emoji}

	var out models.Reaction
	if err := c.do(ctx, http.MethodPost, "/api/reactions", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e common.ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
