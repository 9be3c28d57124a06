package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	schedsvc "github.com/nimbushost/provisioner/internal/app/service/scheduler"
	"github.com/nimbushost/provisioner/internal/models"
	"github.com/nimbushost/provisioner/pkg/response"
)

// @Summary      Trigger a scheduled job
// @Description  Runs one named job under the ledger; overlapping runs of the same job are rejected.
// @Tags         Jobs
// @Produce      json
// @Param        name  path  string  true  "Job name"
// @Success      200  {object}  response.Success[any]
// @Router       /api/v1/jobs/{name}/run [post]
func ApiRunJob(svc *schedsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := svc.Run(c.Request.Context(), c.Param("name"), models.JobTypeManual)
		if err != nil {
			response.Err(c, err)
			return
		}
		data := gin.H{"jobId": rec.ID, "status": rec.Status}
		for k, v := range rec.Metadata {
			data[k] = v
		}
		response.OK(c, data)
	}
}

// @Summary      List job ledger records
// @Description  Returns recent scheduled-job runs, newest first.
// @Tags         Jobs
// @Produce      json
// @Param        job_name  query  string  false  "Filter by job name"
// @Param        limit     query  int     false  "Max records (default 50)"
// @Success      200  {object}  response.Success[any]
// @Router       /api/v1/jobs [get]
func ApiListJobs(svc *schedsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		records, err := svc.ListRecords(c.Request.Context(), c.Query("job_name"), limit)
		if err != nil {
			response.Err(c, err)
			return
		}
		response.OK(c, gin.H{"jobs": svc.JobNames(), "records": records})
	}
}

func RegisterJobRoutes(r gin.IRouter, svc *schedsvc.Service) {
	r.POST("/jobs/:name/run", ApiRunJob(svc))
	r.GET("/jobs", ApiListJobs(svc))
}
