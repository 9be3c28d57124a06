package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nimbushost/provisioner/pkg/config"
	"github.com/nimbushost/provisioner/pkg/logctx"
)

// Event is one audit entry forwarded to the external audit-log sink.
type Event struct {
	ActorID    string         `json:"actor_id"`
	ActorRole  string         `json:"actor_role"`
	ActionType string         `json:"action_type"`
	TargetType string         `json:"target_type"`
	TargetID   string         `json:"target_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Service posts events to the configured sink; with no sink configured the
// event still lands in the structured log so nothing is silently lost.
// Emission is best-effort and never fails the calling operation.
type Service struct {
	cfg        *config.Config
	log        *zap.SugaredLogger
	httpClient *http.Client
}

func NewService(cfg *config.Config, log *zap.SugaredLogger) *Service {
	return &Service{
		cfg:        cfg,
		log:        log,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *Service) Emit(ctx context.Context, ev Event) {
	lg := logctx.FromCtx(ctx, s.log)
	lg.Infow("audit_event",
		"actor_id", ev.ActorID,
		"actor_role", ev.ActorRole,
		"action_type", ev.ActionType,
		"target_type", ev.TargetType,
		"target_id", ev.TargetID,
	)
	if s.cfg.Audit.Endpoint == "" {
		return
	}

	body, err := json.Marshal(ev)
	if err != nil {
		lg.Errorw("audit marshal failed", "err", err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Audit.Endpoint, bytes.NewReader(body))
	if err != nil {
		lg.Errorw("audit request build failed", "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		lg.Warnw("audit sink unreachable", "err", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		lg.Warnw("audit sink rejected event", "status", resp.StatusCode)
	}
}
