package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nimbushost/provisioner/pkg/apperr"
	"github.com/nimbushost/provisioner/pkg/config"
	"github.com/nimbushost/provisioner/pkg/logctx"
)

// Response is the control-plane envelope. Result is the authoritative success
// signal: providers return HTTP 200 with Result != 1 on command failure, and
// callers must treat that as a hard failure, not a transport error.
type Response struct {
	Result  int             `json:"result"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (r *Response) OK() bool { return r != nil && r.Result == 1 }

// Client is the thin authenticated wrapper shared by both control planes.
// It performs no retries and no caching; retry policy belongs to callers.
type Client struct {
	httpClient *http.Client
	log        *zap.SugaredLogger
}

func NewClient(cfg *config.Config, log *zap.SugaredLogger) *Client {
	timeout := time.Duration(cfg.Panel.CallTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Call posts params to https://<hostname>/api/<function> with a bearer token.
// Transport failures and non-2xx statuses come back as provider errors.
func (c *Client) Call(ctx context.Context, hostname, token, function string, params map[string]any) (*Response, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	base := hostname
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	url := fmt.Sprintf("%s/api/%s", base, function)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Provider(fmt.Sprintf("control plane %s unreachable for %s", hostname, function), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Provider(fmt.Sprintf("read %s response from %s", function, hostname), err)
	}

	logctx.FromCtx(ctx, c.log).Infow("panel_call",
		"host", hostname,
		"function", function,
		"status", resp.StatusCode,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.Provider(fmt.Sprintf("control plane %s returned HTTP %d for %s", hostname, resp.StatusCode, function), nil)
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperr.Provider(fmt.Sprintf("decode %s response from %s", function, hostname), err)
	}
	return &out, nil
}

// CallResolved resolves the server credential before calling. Resolution
// failure short-circuits without any network I/O.
func (c *Client) CallResolved(ctx context.Context, cfg *config.Config, serverID, hostname, function string, params map[string]any) (*Response, error) {
	token, err := cfg.ResolveToken(serverID)
	if err != nil {
		return nil, err
	}
	return c.Call(ctx, hostname, token, function, params)
}
