package handlers

import (
	"github.com/gin-gonic/gin"

	mw "github.com/nimbushost/provisioner/internal/app/api/middleware"
	"github.com/nimbushost/provisioner/internal/app/service/domainsync"
	renewsvc "github.com/nimbushost/provisioner/internal/app/service/renewal"
	"github.com/nimbushost/provisioner/internal/models"
	"github.com/nimbushost/provisioner/pkg/apperr"
	"github.com/nimbushost/provisioner/pkg/response"
)

type RenewDomainRequest struct {
	Years       int    `json:"years"`
	RenewalType string `json:"renewalType"`
	PaymentID   string `json:"paymentId"`
}

type SyncDomainsRequest struct {
	DomainID string `json:"domainId"`
	SyncType string `json:"syncType"`
}

// @Summary      Renew a domain
// @Description  Extends the domain expiry by N years through the registrar.
// @Tags         Domains
// @Accept       json
// @Produce      json
// @Param        id      path  string              true  "Domain ID"
// @Param        request body  RenewDomainRequest  true  "Renewal parameters"
// @Success      200  {object}  response.Success[renewal.Result]
// @Router       /api/v1/domains/{id}/renew [post]
func ApiRenewDomain(svc *renewsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RenewDomainRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err)
			return
		}
		res, err := svc.Renew(c.Request.Context(), mw.ActorFrom(c), renewsvc.RenewRequest{
			DomainID:    c.Param("id"),
			Years:       req.Years,
			RenewalType: models.RenewalType(req.RenewalType),
			PaymentID:   req.PaymentID,
		})
		if err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, gin.H{"renewal": res})
	}
}

// @Summary      Reconcile domains against the registrar
// @Description  Diffs local domain records against the registrar view; single domain or stalest batch.
// @Tags         Domains
// @Accept       json
// @Produce      json
// @Param        request body SyncDomainsRequest true "Sync scope"
// @Success      200  {object}  response.Success[domainsync.Summary]
// @Router       /api/v1/domains/sync [post]
func ApiSyncDomains(svc *domainsync.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !mw.ActorFrom(c).Admin {
			response.Err(c, apperr.AccessDenied("domain sync requires administrative privilege"))
			return
		}
		var req SyncDomainsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err)
			return
		}
		res, err := svc.SyncDomains(c.Request.Context(), req.DomainID)
		if err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, res)
	}
}

func RegisterDomainRoutes(r gin.IRouter, renewSvc *renewsvc.Service, syncSvc *domainsync.Service) {
	r.POST("/domains/:id/renew", ApiRenewDomain(renewSvc))
	r.POST("/domains/sync", ApiSyncDomains(syncSvc))
}
