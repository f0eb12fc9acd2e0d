// Package remote calls the cloud function that turns spreadsheet bytes
// into rows. The endpoint is a black box: base64 in, {"data": rows} out.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/conorfennell/memodeck/internal/domain"
	"github.com/conorfennell/memodeck/internal/parser"
)

// DefaultTimeout bounds a single parse request.
const DefaultTimeout = 30 * time.Second

// ErrParseFailed wraps every failure of the remote endpoint.
var ErrParseFailed = errors.New("remote parse failed")

// Client posts spreadsheets to the parsing endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a client for endpoint with the given request timeout.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

type parseRequest struct {
	Body string `json:"body"`
}

// Parse sends the spreadsheet bytes and returns the parsed rows.
func (c *Client) Parse(ctx context.Context, data []byte) ([]domain.Row, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("%w: no endpoint configured", ErrParseFailed)
	}

	payload, err := json.Marshal(parseRequest{Body: base64.StdEncoding.EncodeToString(data)})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrParseFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrParseFailed, resp.StatusCode)
	}

	rows, err := decodeResponse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	slog.Debug("remote parse complete", "bytes", len(data), "rows", len(rows), "elapsed", time.Since(start))
	return rows, nil
}

// decodeResponse accepts the rows object either directly or wrapped in a
// JSON string, as some gateways return it.
func decodeResponse(body []byte) ([]domain.Row, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '"' {
		var inner string
		if err := json.Unmarshal(body, &inner); err != nil {
			return nil, fmt.Errorf("decode wrapped response: %w", err)
		}
		body = []byte(inner)
	}
	return parser.DecodeRows(body)
}
