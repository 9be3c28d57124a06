package panel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nimbushost/provisioner/internal/models"
	"github.com/nimbushost/provisioner/pkg/apperr"
	"github.com/nimbushost/provisioner/pkg/config"
)

// AccountAPI is the typed facade over the per-account control plane:
// mailboxes, databases, SSL, files and resource usage scoped to a single
// hosting account.
type AccountAPI struct {
	client *Client
	cfg    *config.Config
}

func NewAccountAPI(client *Client, cfg *config.Config) *AccountAPI {
	return &AccountAPI{client: client, cfg: cfg}
}

type Mailbox struct {
	Address   string `json:"address"`
	QuotaMB   int64  `json:"quota_mb"`
	UsedMB    int64  `json:"used_mb"`
	Suspended bool   `json:"suspended"`
}

type Database struct {
	Name   string `json:"name"`
	SizeMB int64  `json:"size_mb"`
}

type DatabaseUser struct {
	Username  string   `json:"username"`
	Databases []string `json:"databases"`
}

type SSLStatus struct {
	Domain    string `json:"domain"`
	Issuer    string `json:"issuer"`
	Status    string `json:"status"`
	ExpiresAt string `json:"expires_at"`
}

type FileEntry struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Size  int64  `json:"size"`
	Mtime string `json:"mtime"`
}

type Usage struct {
	DiskUsedMB       int64 `json:"disk_used_mb"`
	DiskLimitMB      int64 `json:"disk_limit_mb"`
	BandwidthUsedMB  int64 `json:"bandwidth_used_mb"`
	BandwidthLimitMB int64 `json:"bandwidth_limit_mb"`
	MailboxCount     int   `json:"mailbox_count"`
	MailboxLimit     int   `json:"mailbox_limit"`
	DatabaseCount    int   `json:"database_count"`
	DatabaseLimit    int   `json:"database_limit"`
}

func (a *AccountAPI) call(ctx context.Context, server *models.Server, username, function string, params map[string]any, out any) error {
	if params == nil {
		params = map[string]any{}
	}
	params["account"] = username
	resp, err := a.client.CallResolved(ctx, a.cfg, server.ID, server.Hostname, function, params)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return apperr.Provider(fmt.Sprintf("%s failed for %s on %s: %s", function, username, server.Hostname, resp.Message), nil)
	}
	if out != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			return apperr.Provider(fmt.Sprintf("decode %s data from %s", function, server.Hostname), err)
		}
	}
	return nil
}

func (a *AccountAPI) ListEmails(ctx context.Context, server *models.Server, username string) ([]Mailbox, error) {
	var res []Mailbox
	if err := a.call(ctx, server, username, "email/list", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (a *AccountAPI) CreateEmail(ctx context.Context, server *models.Server, username, address, password string, quotaMB int64) error {
	return a.call(ctx, server, username, "email/create", map[string]any{
		"address": address, "password": password, "quota_mb": quotaMB,
	}, nil)
}

func (a *AccountAPI) DeleteEmail(ctx context.Context, server *models.Server, username, address string) error {
	return a.call(ctx, server, username, "email/delete", map[string]any{"address": address}, nil)
}

func (a *AccountAPI) ChangeEmailPassword(ctx context.Context, server *models.Server, username, address, password string) error {
	return a.call(ctx, server, username, "email/passwd", map[string]any{"address": address, "password": password}, nil)
}

func (a *AccountAPI) ListDatabases(ctx context.Context, server *models.Server, username string) ([]Database, error) {
	var res []Database
	if err := a.call(ctx, server, username, "db/list", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (a *AccountAPI) CreateDatabase(ctx context.Context, server *models.Server, username, name string) error {
	return a.call(ctx, server, username, "db/create", map[string]any{"name": name}, nil)
}

func (a *AccountAPI) DeleteDatabase(ctx context.Context, server *models.Server, username, name string) error {
	return a.call(ctx, server, username, "db/delete", map[string]any{"name": name}, nil)
}

func (a *AccountAPI) ListDatabaseUsers(ctx context.Context, server *models.Server, username string) ([]DatabaseUser, error) {
	var res []DatabaseUser
	if err := a.call(ctx, server, username, "db/users", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (a *AccountAPI) GetSSLStatus(ctx context.Context, server *models.Server, username string) ([]SSLStatus, error) {
	var res []SSLStatus
	if err := a.call(ctx, server, username, "ssl/status", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (a *AccountAPI) ListFiles(ctx context.Context, server *models.Server, username, path string) ([]FileEntry, error) {
	var res []FileEntry
	if err := a.call(ctx, server, username, "files/list", map[string]any{"path": path}, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (a *AccountAPI) GetUsage(ctx context.Context, server *models.Server, username string) (*Usage, error) {
	var res Usage
	if err := a.call(ctx, server, username, "usage", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
