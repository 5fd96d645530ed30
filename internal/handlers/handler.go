package handlers

import (
	"context"
	"net/http"

	"motor_gateway/internal/logger"
	"motor_gateway/internal/models"
	"motor_gateway/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Gateway is the part of the WebSocket gateway the HTTP layer uses.
type Gateway interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
	Stats(ctx context.Context) (models.Stats, error)
}

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	gateway  Gateway
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, gw Gateway, log *logger.Logger) *Handler {
	return &Handler{services: services, gateway: gw, log: logger.OrNop(log)}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	// device and dashboard sockets authenticate with ?token=, not the bearer header
	router.GET("/ws/*path", h.wsConnect)

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
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerCommandRoutes(api)
		h.registerGatewayRoutes(api)
		h.registerDeviceRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerCommandRoutes(api *gin.RouterGroup) {
	cmd := api.Group("/command")
	{
		cmd.POST("/start", h.startMotor)
		cmd.POST("/stop", h.stopMotor)
		// Body example: {"motor":"A","speed":60}
		cmd.POST("/set-speed", h.setSpeed)
		cmd.POST("/reset", h.resetMotor)
	}
}

func (h *Handler) registerGatewayRoutes(api *gin.RouterGroup) {
	api.GET("/gateway/stats", h.gatewayStats)
}

func (h *Handler) registerDeviceRoutes(api *gin.RouterGroup) {
	devices := api.Group("/devices")
	{
		devices.GET("/", h.listDevices)
		devices.POST("/token", h.issueDeviceToken)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
