package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nimbushost/provisioner/pkg/config"
	"github.com/nimbushost/provisioner/pkg/logctx"
)

// Email is one outbound message handed to the mail collaborator.
type Email struct {
	To       string         `json:"to"`
	UserID   string         `json:"user_id"`
	Template string         `json:"template"`
	Subject  string         `json:"subject"`
	Data     map[string]any `json:"data"`
}

// Mailer hands messages to the external mail collaborator. Callers treat
// sends as fire-and-forget; delivery tracking lives in the email_log table.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

type httpMailer struct {
	cfg        *config.Config
	log        *zap.SugaredLogger
	httpClient *http.Client
}

func New(cfg *config.Config, log *zap.SugaredLogger) Mailer {
	return &httpMailer{
		cfg:        cfg,
		log:        log,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (m *httpMailer) Send(ctx context.Context, email Email) error {
	if m.cfg.Mailer.Endpoint == "" {
		logctx.FromCtx(ctx, m.log).Infow("mailer not configured, dropping email",
			"to", email.To, "template", email.Template)
		return nil
	}

	payload := map[string]any{
		"to":       email.To,
		"from":     m.cfg.Mailer.From,
		"template": email.Template,
		"subject":  email.Subject,
		"data":     email.Data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.Mailer.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mailer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.cfg.Mailer.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.cfg.Mailer.APIKey)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("mailer returned HTTP %d", resp.StatusCode)
	}
	return nil
}

var Module = fx.Options(
	fx.Provide(New),
)
