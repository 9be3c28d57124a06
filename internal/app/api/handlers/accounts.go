package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"

	mw "github.com/nimbushost/provisioner/internal/app/api/middleware"
	acctsvc "github.com/nimbushost/provisioner/internal/app/service/account"
	"github.com/nimbushost/provisioner/internal/platform/panel"
	"github.com/nimbushost/provisioner/pkg/apperr"
	"github.com/nimbushost/provisioner/pkg/response"
)

// ActionRequest is the dispatch envelope for control-plane operations scoped
// to one hosting account.
type ActionRequest struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
}

type AccountHandler struct {
	accountSvc *acctsvc.Service
	accountAPI *panel.AccountAPI
	registrar  *panel.RegistrarAPI
}

func NewAccountHandler(accountSvc *acctsvc.Service, accountAPI *panel.AccountAPI, registrar *panel.RegistrarAPI) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc, accountAPI: accountAPI, registrar: registrar}
}

func bindParams[T any](raw json.RawMessage) (*T, error) {
	var p T
	if len(raw) == 0 {
		return &p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperr.BadRequest(fmt.Sprintf("invalid params: %v", err))
	}
	return &p, nil
}

// @Summary      Run a hosting account action
// @Description  Dispatches lifecycle and per-account control-plane operations for one account.
// @Tags         Accounts
// @Accept       json
// @Produce      json
// @Param        id      path  string         true  "Hosting account ID"
// @Param        request body  ActionRequest  true  "Action and parameters"
// @Success      200  {object}  response.Success[any]
// @Router       /api/v1/accounts/{id}/actions [post]
func (h *AccountHandler) Dispatch(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	actor := mw.ActorFrom(c)
	accountID := c.Param("id")

	// Lifecycle actions carry their own ownership checks inside the service.
	switch req.Action {
	case "suspendAccount":
		p, err := bindParams[struct {
			Reason string `json:"reason"`
		}](req.Params)
		if err != nil {
			response.Err(c, err)
			return
		}
		if err := h.accountSvc.Suspend(ctx, actor, accountID, p.Reason); err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, gin.H{"status": "suspended"})
		return
	case "unsuspendAccount":
		if err := h.accountSvc.Unsuspend(ctx, actor, accountID); err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, gin.H{"status": "active"})
		return
	case "terminateAccount":
		if err := h.accountSvc.Terminate(ctx, actor, accountID); err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, gin.H{"status": "terminated"})
		return
	}

	// Everything below reads through the per-account control plane; resolve
	// enforces ownership before any provider call.
	account, server, err := h.accountSvc.Resolve(ctx, actor, accountID)
	if err != nil {
		response.Err(c, err)
		return
	}

	switch req.Action {
	case "listEmails":
		res, err := h.accountAPI.ListEmails(ctx, server, account.Username)
		if err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, res)
	case "createEmail":
		p, err := bindParams[struct {
			Address  string `json:"address"`
			Password string `json:"password"`
			QuotaMB  int64  `json:"quota_mb"`
		}](req.Params)
		if err != nil {
			response.Err(c, err)
			return
		}
		if err := h.accountAPI.CreateEmail(ctx, server, account.Username, p.Address, p.Password, p.QuotaMB); err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, gin.H{"address": p.Address})
	case "deleteEmail":
		p, err := bindParams[struct {
			Address string `json:"address"`
		}](req.Params)
		if err != nil {
			response.Err(c, err)
			return
		}
		if err := h.accountAPI.DeleteEmail(ctx, server, account.Username, p.Address); err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, gin.H{"address": p.Address})
	case "changeEmailPassword":
		p, err := bindParams[struct {
			Address  string `json:"address"`
			Password string `json:"password"`
		}](req.Params)
		if err != nil {
			response.Err(c, err)
			return
		}
		if err := h.accountAPI.ChangeEmailPassword(ctx, server, account.Username, p.Address, p.Password); err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, gin.H{"address": p.Address})
	case "listDatabases":
		res, err := h.accountAPI.ListDatabases(ctx, server, account.Username)
		if err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, res)
	case "createDatabase":
		p, err := bindParams[struct {
			Name string `json:"name"`
		}](req.Params)
		if err != nil {
			response.Err(c, err)
			return
		}
		if err := h.accountAPI.CreateDatabase(ctx, server, account.Username, p.Name); err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, gin.H{"name": p.Name})
	case "deleteDatabase":
		p, err := bindParams[struct {
			Name string `json:"name"`
		}](req.Params)
		if err != nil {
			response.Err(c, err)
			return
		}
		if err := h.accountAPI.DeleteDatabase(ctx, server, account.Username, p.Name); err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, gin.H{"name": p.Name})
	case "listDatabaseUsers":
		res, err := h.accountAPI.ListDatabaseUsers(ctx, server, account.Username)
		if err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, res)
	case "getSSLStatus":
		res, err := h.accountAPI.GetSSLStatus(ctx, server, account.Username)
		if err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, res)
	case "listFiles":
		p, err := bindParams[struct {
			Path string `json:"path"`
		}](req.Params)
		if err != nil {
			response.Err(c, err)
			return
		}
		res, err := h.accountAPI.ListFiles(ctx, server, account.Username, p.Path)
		if err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, res)
	case "getDomainInfo":
		res, err := h.registrar.GetDomainInfo(ctx, account.Domain)
		if err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, res)
	case "getUsage":
		res, err := h.accountAPI.GetUsage(ctx, server, account.Username)
		if err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, res)
	default:
		response.Err(c, apperr.BadRequest(fmt.Sprintf("unknown action %q", req.Action)))
	}
}

func RegisterAccountRoutes(r gin.IRouter, h *AccountHandler) {
	r.POST("/accounts/:id/actions", h.Dispatch)
}
