package handlers

import (
	"github.com/gin-gonic/gin"

	mw "github.com/nimbushost/provisioner/internal/app/api/middleware"
	provsvc "github.com/nimbushost/provisioner/internal/app/service/provisioning"
	"github.com/nimbushost/provisioner/pkg/apperr"
	"github.com/nimbushost/provisioner/pkg/response"
)

type ProvisionRequest struct {
	OrderID string `json:"orderId"`
}

// @Summary      Provision a hosting order
// @Description  Consumes a pending hosting order, selects a server and creates the account.
// @Tags         Provisioning
// @Accept       json
// @Produce      json
// @Param        request body ProvisionRequest true "Order to provision"
// @Success      200  {object}  response.Success[provisioning.ProvisionResult]
// @Router       /api/v1/provisioning/provision [post]
func ApiProvisionOrder(svc *provsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !mw.ActorFrom(c).Admin {
			response.Err(c, apperr.AccessDenied("provisioning requires administrative privilege"))
			return
		}
		var req ProvisionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err)
			return
		}
		if req.OrderID == "" {
			response.Err(c, apperr.BadRequest("missing orderId"))
			return
		}
		res, err := svc.ProvisionOrder(c.Request.Context(), req.OrderID)
		if err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, res)
	}
}

func RegisterProvisioningRoutes(r gin.IRouter, svc *provsvc.Service) {
	r.POST("/provisioning/provision", ApiProvisionOrder(svc))
}
