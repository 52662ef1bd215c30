package restapi

import (
	"net/http"
	"time"

	"wallet_session/internal/app/port"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RouterOptions configures SetupRouter.
type RouterOptions struct {
	AllowedOrigins []string     // empty allows any origin
	Metrics        http.Handler // served on /metrics when set
	Logger         port.Logger
}

// SetupRouter настраивает и возвращает экземпляр Gin роутера.
func SetupRouter(sessionHandler *SessionHandler, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if opts.Logger != nil {
		router.Use(requestLogger(opts.Logger))
	}

	corsConfig := cors.DefaultConfig()
	if len(opts.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = opts.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsConfig))

	// Группа для API v1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/session", sessionHandler.GetSession)
		v1.POST("/session/connect", sessionHandler.Connect)
		v1.POST("/session/disconnect", sessionHandler.Disconnect)
		v1.GET("/session/events", sessionHandler.StreamEvents)
		v1.GET("/networks", sessionHandler.ListNetworks)
	}

	router.GET("/healthz", sessionHandler.Health)
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	return router
}

// RequestIDHeader carries the request id set by requestLogger.
const RequestIDHeader = "X-Request-ID"

func requestLogger(logger port.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("requestID", requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()
		logger.Debug("HTTP request",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}
