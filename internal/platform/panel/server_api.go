package panel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nimbushost/provisioner/internal/models"
	"github.com/nimbushost/provisioner/pkg/apperr"
	"github.com/nimbushost/provisioner/pkg/config"
)

// ServerAPI is the typed facade over the account-management control plane:
// account creation and lifecycle, server stats, package management.
type ServerAPI struct {
	client *Client
	cfg    *config.Config
}

func NewServerAPI(client *Client, cfg *config.Config) *ServerAPI {
	return &ServerAPI{client: client, cfg: cfg}
}

type CreateAccountRequest struct {
	Username string `json:"username"`
	Domain   string `json:"domain"`
	Package  string `json:"package"`
	Email    string `json:"email"`
}

type CreateAccountResult struct {
	Username string `json:"username"`
	Domain   string `json:"domain"`
	IP       string `json:"ip"`
	Package  string `json:"package"`
}

type AccountSummary struct {
	Username    string `json:"username"`
	Domain      string `json:"domain"`
	Package     string `json:"package"`
	Suspended   bool   `json:"suspended"`
	DiskUsedMB  int64  `json:"disk_used_mb"`
	DiskLimitMB int64  `json:"disk_limit_mb"`
}

type ServerStatus struct {
	LoadAvg       float64 `json:"load_avg"`
	AccountCount  int     `json:"account_count"`
	DiskFreePct   float64 `json:"disk_free_pct"`
	PanelVersion  string  `json:"panel_version"`
	UptimeSeconds int64   `json:"uptime_seconds"`
}

type Package struct {
	Name        string `json:"name"`
	DiskMB      int64  `json:"disk_mb"`
	BandwidthMB int64  `json:"bandwidth_mb"`
	Mailboxes   int    `json:"mailboxes"`
	Databases   int    `json:"databases"`
}

func (a *ServerAPI) call(ctx context.Context, server *models.Server, function string, params map[string]any, out any) error {
	resp, err := a.client.CallResolved(ctx, a.cfg, server.ID, server.Hostname, function, params)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return apperr.Provider(fmt.Sprintf("%s failed on %s: %s", function, server.Hostname, resp.Message), nil)
	}
	if out != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			return apperr.Provider(fmt.Sprintf("decode %s data from %s", function, server.Hostname), err)
		}
	}
	return nil
}

func (a *ServerAPI) CreateAccount(ctx context.Context, server *models.Server, req CreateAccountRequest) (*CreateAccountResult, error) {
	var res CreateAccountResult
	err := a.call(ctx, server, "createacct", map[string]any{
		"username": req.Username,
		"domain":   req.Domain,
		"package":  req.Package,
		"email":    req.Email,
	}, &res)
	if err != nil {
		return nil, err
	}
	if res.IP == "" {
		res.IP = server.IP
	}
	return &res, nil
}

func (a *ServerAPI) SuspendAccount(ctx context.Context, server *models.Server, username, reason string) error {
	return a.call(ctx, server, "suspendacct", map[string]any{"username": username, "reason": reason}, nil)
}

func (a *ServerAPI) UnsuspendAccount(ctx context.Context, server *models.Server, username string) error {
	return a.call(ctx, server, "unsuspendacct", map[string]any{"username": username}, nil)
}

func (a *ServerAPI) TerminateAccount(ctx context.Context, server *models.Server, username string) error {
	return a.call(ctx, server, "removeacct", map[string]any{"username": username}, nil)
}

func (a *ServerAPI) ListAccounts(ctx context.Context, server *models.Server) ([]AccountSummary, error) {
	var res []AccountSummary
	if err := a.call(ctx, server, "listaccts", map[string]any{}, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (a *ServerAPI) GetAccountSummary(ctx context.Context, server *models.Server, username string) (*AccountSummary, error) {
	var res AccountSummary
	if err := a.call(ctx, server, "accountsummary", map[string]any{"username": username}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *ServerAPI) GetServerStatus(ctx context.Context, server *models.Server) (*ServerStatus, error) {
	var res ServerStatus
	if err := a.call(ctx, server, "serverstatus", map[string]any{}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (a *ServerAPI) ListPackages(ctx context.Context, server *models.Server) ([]Package, error) {
	var res []Package
	if err := a.call(ctx, server, "listpkgs", map[string]any{}, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (a *ServerAPI) CreatePackage(ctx context.Context, server *models.Server, pkg Package) error {
	return a.call(ctx, server, "addpkg", map[string]any{
		"name":         pkg.Name,
		"disk_mb":      pkg.DiskMB,
		"bandwidth_mb": pkg.BandwidthMB,
		"mailboxes":    pkg.Mailboxes,
		"databases":    pkg.Databases,
	}, nil)
}
