package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nimbushost/provisioner/pkg/apperr"
	"github.com/nimbushost/provisioner/pkg/config"
	"github.com/nimbushost/provisioner/pkg/logctx"
)

// DomainInfo is the registrar's authoritative view of a domain.
type DomainInfo struct {
	Status            string     `json:"status"`
	ExpiryDate        *time.Time `json:"expiry_date"`
	Nameservers       []string   `json:"nameservers"`
	RegistrarDomainID string     `json:"registrar_domain_id"`
}

// RegistrarAPI talks to the domain registrar control plane. With no registrar
// configured, Renew succeeds in simulation mode so the rest of the renewal
// pipeline stays exercisable in dev environments, while GetDomainInfo fails
// fast: drift detection against a simulated registrar would be meaningless.
type RegistrarAPI struct {
	client *Client
	cfg    *config.Config
	log    *zap.SugaredLogger
}

func NewRegistrarAPI(client *Client, cfg *config.Config, log *zap.SugaredLogger) *RegistrarAPI {
	return &RegistrarAPI{client: client, cfg: cfg, log: log}
}

func (r *RegistrarAPI) configured() bool { return r.cfg.Registrar.Hostname != "" }

func (r *RegistrarAPI) call(ctx context.Context, function string, params map[string]any, out any) error {
	resp, err := r.client.Call(ctx, r.cfg.Registrar.Hostname, r.cfg.Registrar.Token, function, params)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return apperr.Provider(fmt.Sprintf("registrar %s failed: %s", function, resp.Message), nil)
	}
	if out != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			return apperr.Provider(fmt.Sprintf("decode registrar %s data", function), err)
		}
	}
	return nil
}

func (r *RegistrarAPI) GetDomainInfo(ctx context.Context, domainName string) (*DomainInfo, error) {
	if !r.configured() {
		return nil, apperr.Configuration("registrar control plane not configured", nil)
	}
	var info DomainInfo
	if err := r.call(ctx, "domain/info", map[string]any{"domain": domainName}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (r *RegistrarAPI) Renew(ctx context.Context, domainName string, years int) error {
	if !r.configured() {
		logctx.FromCtx(ctx, r.log).Infow("registrar not configured, simulating renewal", "domain", domainName, "years", years)
		return nil
	}
	return r.call(ctx, "domain/renew", map[string]any{"domain": domainName, "years": years}, nil)
}
