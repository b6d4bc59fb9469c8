package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ConnectionInfo describes one client connected to the signing service.
type ConnectionInfo struct {
	ID           string  `json:"id"`
	Address      *string `json:"address"`
	IP           string  `json:"ip"`
	ConnectedAt  string  `json:"connectedAt"`
	LastActiveAt string  `json:"lastActiveAt"`
}

// EventResult is the outcome of a triggered event.
type EventResult struct {
	OK      bool            `json:"ok"`
	Address string          `json:"address"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// TriggerEvent asks the service to start its event flow for address.
func (c *Client) TriggerEvent(ctx context.Context, address string) (EventResult, error) {
	var out EventResult
	body, err := json.Marshal(map[string]string{"address": address})
	if err != nil {
		return out, fmt.Errorf("marshal: %w", err)
	}
	err = c.doJSON(ctx, http.MethodPost, "/event", body, &out)
	return out, err
}

// Connections lists the clients connected to the service.
func (c *Client) Connections(ctx context.Context) ([]ConnectionInfo, error) {
	var out []ConnectionInfo
	err := c.doJSON(ctx, http.MethodGet, "/connections", nil, &out)
	return out, err
}

// ActiveEvents lists the addresses with an event in progress.
func (c *Client) ActiveEvents(ctx context.Context) ([]string, error) {
	var out []string
	err := c.doJSON(ctx, http.MethodGet, "/active-events", nil, &out)
	return out, err
}

// Count returns the number of connected clients.
func (c *Client) Count(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/count", nil, &out)
	return out.Count, err
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.restURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: HTTP %d: %s", method, path, resp.StatusCode, string(data))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
