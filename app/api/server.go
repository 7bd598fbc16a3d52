package api

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/agenda-comb/app/discovery"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey, cronSecret, version string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health"},
	}))

	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiAccessKey, cronSecret, version)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey, cronSecret, version string) {
	r.GET("/health", handler.GetHealth)

	// Cron trigger is always mounted; without a configured secret every call is rejected
	cron := r.Group("/api/cron")
	cron.Use(cronAuthMiddleware(cronSecret, handler))
	cron.Match([]string{http.MethodGet, http.MethodPost}, "/discover", handler.CronDiscover)

	if cronSecret == "" {
		slog.Warn("CRON_SECRET not set, discovery trigger will reject all requests")
	}

	if apiAccessKey != "" {
		api := r.Group("/api")
		api.Use(authMiddleware(apiAccessKey))
		{
			api.GET("/sources", handler.APIListSources)
			api.GET("/requests", handler.APIListRequests)
			api.POST("/sources/reload", handler.APIReloadSources)
		}

		feeds := r.Group("/feeds")
		feeds.Use(authMiddleware(apiAccessKey))
		feeds.GET("/pending", handler.GetPendingFeed)

		slog.Info("API endpoints enabled with authentication")
	} else {
		slog.Info("API endpoints disabled (API_ACCESS_KEY not set)")
	}

	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"health":   "/health",
			"discover": "/api/cron/discover (GET or POST, requires Authorization: Bearer <CRON_SECRET>)",
		}

		if apiAccessKey != "" {
			endpoints["sources"] = "/api/sources (requires X-API-Key header)"
			endpoints["requests"] = "/api/requests?status=&limit= (requires X-API-Key header)"
			endpoints["reload"] = "/api/sources/reload (POST, requires X-API-Key header)"
			endpoints["pending_feed"] = "/feeds/pending (requires X-API-Key header)"
		}

		c.JSON(http.StatusOK, gin.H{
			"service":     "Agenda Comb",
			"version":     version,
			"description": "Event discovery from agenda pages with deduplication and enrichment",
			"endpoints":   endpoints,
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}

// cronAuthMiddleware checks the scheduler's bearer token in constant time
func cronAuthMiddleware(cronSecret string, handler *Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if cronSecret == "" || !ok || subtle.ConstantTimeCompare([]byte(token), []byte(cronSecret)) != 1 {
			slog.Warn("Rejected discovery trigger", "client_ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Success: false,
				Message: "Unauthorized",
				Error:   discovery.ErrUnauthorized.Error(),
				Limits:  handler.limits,
			})
			return
		}

		c.Next()
	}
}

// authMiddleware creates authentication middleware for API endpoints
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiAccessKey)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
