package handlers

import (
	"net/http"

	"smart_bartender/internal/logger"
	"smart_bartender/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	metrics  http.Handler
}

// NewHandler constructs a new HTTP handler with dependencies. metrics may be
// nil, in which case /metrics is not registered.
func NewHandler(services *service.Service, log *logger.Logger, metrics http.Handler) *Handler {
	return &Handler{services: services, log: log, metrics: metrics}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// Status stream for the UI, same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		h.registerBarRoutes(api)
	}

	protected := r.Group("/api/v1", h.operatorMiddleware)
	{
		h.registerManualRoutes(protected)
		h.registerLogRoutes(protected)
	}
}

func (h *Handler) registerBarRoutes(api *gin.RouterGroup) {
	api.GET("/status", h.getStatus)
	api.GET("/recipes", h.getRecipes)
	api.GET("/reservoirs/:id", h.getReservoir)
	api.POST("/pour/:drink", h.pour)
	api.POST("/refill/:id", h.refill)
}

func (h *Handler) registerManualRoutes(api *gin.RouterGroup) {
	manual := api.Group("/manual")
	{
		// e.g. POST /api/v1/manual/valve/3/open, POST /api/v1/manual/pump/3/off
		manual.POST("/:kind/:id/:action", h.manual)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
