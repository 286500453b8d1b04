package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sigilo/go-sigilo-server/global"
)

type HealthCheckApi struct {
}

func NewHealthCheckApi() *HealthCheckApi {
	return &HealthCheckApi{}
}

// HealthCheck godoc
// @Summary Service liveness probe
// @Tags Health
// @Produce json
// @Success 200
// @Router /api/healthcheck [get]
func (hc *HealthCheckApi) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": global.Conf.Version})
}
