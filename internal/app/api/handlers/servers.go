package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"

	invsvc "github.com/nimbushost/provisioner/internal/app/service/inventory"
	"github.com/nimbushost/provisioner/internal/platform/panel"
	"github.com/nimbushost/provisioner/pkg/apperr"
	"github.com/nimbushost/provisioner/pkg/response"
)

type ServerHandler struct {
	inventorySvc *invsvc.Service
	serverAPI    *panel.ServerAPI
}

func NewServerHandler(inventorySvc *invsvc.Service, serverAPI *panel.ServerAPI) *ServerHandler {
	return &ServerHandler{inventorySvc: inventorySvc, serverAPI: serverAPI}
}

// @Summary      Run a server-level control-plane action
// @Description  Dispatches admin operations against one server's account-management control plane.
// @Tags         Servers
// @Accept       json
// @Produce      json
// @Param        id      path  string         true  "Server ID"
// @Param        request body  ActionRequest  true  "Action and parameters"
// @Success      200  {object}  response.Success[any]
// @Router       /api/v1/servers/{id}/actions [post]
func (h *ServerHandler) Dispatch(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	server, err := h.inventorySvc.ServerByID(ctx, c.Param("id"))
	if err != nil {
		response.Err(c, err)
		return
	}

	switch req.Action {
	case "createAccount":
		p, err := bindParams[panel.CreateAccountRequest](req.Params)
		if err != nil {
			response.Err(c, err)
			return
		}
		res, err := h.serverAPI.CreateAccount(ctx, server, *p)
		if err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, res)
	case "listAccounts":
		res, err := h.serverAPI.ListAccounts(ctx, server)
		if err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, res)
	case "getAccountSummary":
		p, err := bindParams[struct {
			Username string `json:"username"`
		}](req.Params)
		if err != nil {
			response.Err(c, err)
			return
		}
		res, err := h.serverAPI.GetAccountSummary(ctx, server, p.Username)
		if err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, res)
	case "serverStatus":
		res, err := h.serverAPI.GetServerStatus(ctx, server)
		if err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, res)
	case "listPackages":
		res, err := h.serverAPI.ListPackages(ctx, server)
		if err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, res)
	case "createPackage":
		p, err := bindParams[panel.Package](req.Params)
		if err != nil {
			response.Err(c, err)
			return
		}
		if err := h.serverAPI.CreatePackage(ctx, server, *p); err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, gin.H{"name": p.Name})
	default:
		response.Err(c, apperr.BadRequest(fmt.Sprintf("unknown action %q", req.Action)))
	}
}

func RegisterServerRoutes(r gin.IRouter, h *ServerHandler) {
	r.POST("/servers/:id/actions", h.Dispatch)
}
