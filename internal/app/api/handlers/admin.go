package handlers

import (
	"github.com/gin-gonic/gin"

	invsvc "github.com/nimbushost/provisioner/internal/app/service/inventory"
	"github.com/nimbushost/provisioner/pkg/response"
)

// @Summary      List hosting accounts (Admin)
// @Description  Paginated, filterable listing of hosting accounts.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body inventory.ScanRequest true "Filters, pagination and sorting"
// @Success      200  {object}  response.Success[any]
// @Router       /api/v1/admin/list_hosting_accounts [post]
func ApiListHostingAccounts(svc *invsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req invsvc.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err)
			return
		}
		res, err := svc.ScanHostingAccounts(c.Request.Context(), &req)
		if err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, res)
	}
}

// @Summary      List domains (Admin)
// @Description  Paginated, filterable listing of domains.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body inventory.ScanRequest true "Filters, pagination and sorting"
// @Success      200  {object}  response.Success[any]
// @Router       /api/v1/admin/list_domains [post]
func ApiListDomains(svc *invsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req invsvc.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err)
			return
		}
		res, err := svc.ScanDomains(c.Request.Context(), &req)
		if err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, res)
	}
}

// @Summary      List domain renewals (Admin)
// @Description  Paginated, filterable listing of renewal attempts.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body inventory.ScanRequest true "Filters, pagination and sorting"
// @Success      200  {object}  response.Success[any]
// @Router       /api/v1/admin/list_domain_renewals [post]
func ApiListDomainRenewals(svc *invsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req invsvc.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err)
			return
		}
		res, err := svc.ScanRenewals(c.Request.Context(), &req)
		if err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, res)
	}
}

// @Summary      List provisioning queue items (Admin)
// @Description  Paginated, filterable listing of provisioning queue entries.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body inventory.ScanRequest true "Filters, pagination and sorting"
// @Success      200  {object}  response.Success[any]
// @Router       /api/v1/admin/list_queue_items [post]
func ApiListQueueItems(svc *invsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req invsvc.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err)
			return
		}
		res, err := svc.ScanQueueItems(c.Request.Context(), &req)
		if err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, res)
	}
}

// @Summary      List domain sync logs (Admin)
// @Description  Paginated, filterable listing of drift reconciliation logs.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body inventory.ScanRequest true "Filters, pagination and sorting"
// @Success      200  {object}  response.Success[any]
// @Router       /api/v1/admin/list_sync_logs [post]
func ApiListSyncLogs(svc *invsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req invsvc.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err)
			return
		}
		res, err := svc.ScanSyncLogs(c.Request.Context(), &req)
		if err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, res)
	}
}

func RegisterAdminRoutes(r gin.IRouter, svc *invsvc.Service) {
	r.POST("/list_hosting_accounts", ApiListHostingAccounts(svc))
	r.POST("/list_domains", ApiListDomains(svc))
	r.POST("/list_domain_renewals", ApiListDomainRenewals(svc))
	r.POST("/list_queue_items", ApiListQueueItems(svc))
	r.POST("/list_sync_logs", ApiListSyncLogs(svc))
}
