package apiroutes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sigilo/go-sigilo-server/api"
	restinterceptors "github.com/sigilo/go-sigilo-server/api/interceptors"
	"github.com/sigilo/go-sigilo-server/global"
	"github.com/sigilo/go-sigilo-server/metrics"
	"github.com/sigilo/go-sigilo-server/queue"
	"github.com/sigilo/go-sigilo-server/render"
	"github.com/sigilo/go-sigilo-server/repository"
	"github.com/sigilo/go-sigilo-server/services"
	"github.com/sigilo/go-sigilo-server/types"
)

// NewAPIRouter creates the gin engine with the cross cutting middleware
func NewAPIRouter() *gin.Engine {
	if global.Conf.Mode != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	return router
}

// REST API routes
func ConfigRoutes(router *gin.Engine, dbSelector *repository.CouchDBSelector, taskQueue *queue.TaskQueue, artifacts services.ArtifactStore, engine *render.Engine, env *types.Environment) *gin.Engine {
	if global.Conf.Prometheus.Enabled {
		authorized := router.Group("/metrics", gin.BasicAuth(gin.Accounts{
			global.Conf.Prometheus.Username: global.Conf.Prometheus.Password,
		}))

		authorized.GET("", gin.WrapH(promhttp.Handler()))
	}

	// SERVICE definitions
	docService := services.NewDocumentService(dbSelector)
	keystoreService := services.NewKeystoreService(dbSelector)
	signingService := services.NewSigningService(dbSelector, artifacts, engine)
	certService := services.NewCertificateService(dbSelector)
	batchService := services.NewBatchService(dbSelector, env)

	// API definitions
	keysApi := api.NewKeysApi(keystoreService)
	documentApi := api.NewDocumentApi(docService, signingService, artifacts)
	certificateApi := api.NewCertificateApi(docService, certService, batchService, keystoreService, taskQueue, env)
	verificationApi := api.NewVerificationApi(docService, certService, artifacts)
	healthApi := api.NewHealthCheckApi()

	// PUBLIC ROOT API (no auth, rate limited)
	rootPublicApi := router.Group("/", restinterceptors.RateLimitMiddleware())
	{
		rootPublicApi.GET("verify/:id", verificationApi.Verify)
	}

	router.GET("/api/healthcheck", healthApi.HealthCheck)

	rootApi := router.Group("/api", metrics.MetricsMiddleware(), restinterceptors.RateLimitMiddleware())
	{
		rootApi.POST("/v1/keys", keysApi.GenerateKeys)
		rootApi.GET("/v1/keys/:userId", keysApi.GetKeys)
		rootApi.DELETE("/v1/keys/:userId", keysApi.DeleteKeys)

		rootApi.POST("/v1/documents", documentApi.CreateDocument)
		rootApi.GET("/v1/documents/:id", documentApi.GetDocument)
		rootApi.POST("/v1/documents/:id/sign", documentApi.SignDocument)
		rootApi.DELETE("/v1/documents/:id", documentApi.DeleteDocument)

		rootApi.POST("/v1/templates/:id/issue", certificateApi.IssueBulk)
		rootApi.GET("/v1/batches/:id", certificateApi.GetBatch)
		rootApi.POST("/v1/batches/:id/cancel", certificateApi.CancelBatch)
		rootApi.GET("/v1/certificates/:id", certificateApi.GetCertificate)
		rootApi.POST("/v1/certificates/:id/dispatch", certificateApi.DispatchCertificate)
	}

	return router
}
