package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/farekeeper/internal/common"
	"github.com/dmitrijs2005/farekeeper/internal/logging"
	"github.com/dmitrijs2005/farekeeper/internal/syncapi"
)

// HTTPClient talks JSON over HTTP(S) to the central server. It registers the
// terminal on first use and holds the issued bearer token; a 401 clears the
// token so the next heartbeat re-registers.
type HTTPClient struct {
	baseURL    string
	terminalID string
	httpc      *http.Client
	token      string
	logger     logging.Logger
}

func NewHTTPClient(baseURL, terminalID string, timeout time.Duration, l logging.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		terminalID: terminalID,
		httpc:      &http.Client{Timeout: timeout},
		logger:     l.With("module", "api_client"),
	}
}

func (c *HTTPClient) post(ctx context.Context, path string, in, out any, authed bool) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	case resp.StatusCode == http.StatusUnauthorized:
		c.token = ""
		return common.ErrInvalidToken
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: server returned %s", common.ErrUnavailable, resp.Status)
	default:
		var er syncapi.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		return fmt.Errorf("request to %s failed: %s: %s", path, resp.Status, er.Error)
	}
}

func (c *HTTPClient) ensureToken(ctx context.Context) error {
	if c.token != "" {
		return nil
	}

	var out syncapi.RegisterResponse
	err := c.post(ctx, "/api/v1/terminals/register", syncapi.RegisterRequest{TerminalID: c.terminalID}, &out, false)
	if err != nil {
		return err
	}

	c.token = out.Token
	c.logger.Info(ctx, "terminal registered", "terminal_id", c.terminalID)
	return nil
}

func (c *HTTPClient) Heartbeat(ctx context.Context, pending int) (time.Time, error) {
	if err := c.ensureToken(ctx); err != nil {
		return time.Time{}, err
	}

	in := syncapi.HeartbeatRequest{TerminalID: c.terminalID, Timestamp: time.Now().UTC(), Pending: pending}
	var out syncapi.HeartbeatResponse
	if err := c.post(ctx, "/api/v1/heartbeat", in, &out, true); err != nil {
		return time.Time{}, err
	}
	return out.ServerTime, nil
}

func (c *HTTPClient) Sync(ctx context.Context, batch []syncapi.Transaction) (*syncapi.SyncResponse, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	in := syncapi.SyncRequest{TerminalID: c.terminalID, Transactions: batch}
	out := &syncapi.SyncResponse{}
	if err := c.post(ctx, "/api/v1/sync", in, out, true); err != nil {
		return nil, err
	}
	return out, nil
}
