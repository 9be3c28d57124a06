package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/nimbushost/provisioner/pkg/response"
)

// @Summary      Health check
// @Description  Returns service status
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /healthz [get]
func Healthz(c *gin.Context) {
	response.OK(c, map[string]string{"status": "ok"})
}

func RegisterHealthRoutes(r gin.IRouter) {
	r.GET("/healthz", Healthz)
}
