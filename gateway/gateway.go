// Package gateway exposes the order board over HTTP, WebSocket and SSE.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/example/drivethru/gateway/docs"
	"github.com/example/drivethru/pkg/board"
	"github.com/example/drivethru/pkg/config"
	"github.com/example/drivethru/pkg/models"
	"github.com/example/drivethru/pkg/repository"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// HistoryReader returns archived records of a session.
type HistoryReader interface {
	History(ctx context.Context, sessionID string, limit int) ([]models.Order, error)
}

// AuditReader returns the lifecycle log of a session.
type AuditReader interface {
	GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*repository.AuditLog, error)
}

type Gateway struct {
	config   *config.GatewayConfig
	board    *board.Board
	history  HistoryReader
	audit    AuditReader
	logger   *zap.Logger
	router   *gin.Engine
	server   *http.Server
	upgrader websocket.Upgrader
}

type Option func(*Gateway)

func WithHistory(h HistoryReader) Option {
	return func(g *Gateway) { g.history = h }
}

func WithAudit(a AuditReader) Option {
	return func(g *Gateway) { g.audit = a }
}

func NewGateway(cfg *config.GatewayConfig, b *board.Board, logger *zap.Logger, opts ...Option) *Gateway {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))
	router.Use(cors.New(corsConfig(cfg.AllowOrigins)))

	g := &Gateway{
		config: cfg,
		board:  b,
		logger: logger,
		router: router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(cfg.AllowOrigins),
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) SetupRoutes() {
	// Health check
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := g.router.Group("/api")
	{
		// Agent callbacks
		sessions := api.Group("/sessions")
		{
			sessions.POST("", g.startSession)
			sessions.POST("/:id/order", g.applyAgentUpdate)
		}
		api.POST("/order", g.receiveOrder)

		// Kitchen display routes
		orders := api.Group("/orders")
		{
			orders.GET("", g.listOrders)
			orders.GET("/latest", g.latestOrder)
			orders.GET("/stream", g.streamOrders)
			orders.GET("/:id", g.getOrder)
			orders.PUT("/:id/status", g.setKitchenStatus)
			orders.DELETE("/:id", g.deleteOrder)
			orders.POST("/:id/undo", g.undoDelete)
			if g.history != nil {
				orders.GET("/:id/history", g.orderHistory)
			}
			if g.audit != nil {
				orders.GET("/:id/audit", g.orderAudit)
			}
		}
	}

	g.router.GET("/ws/kitchen", g.kitchenSocket)

	// Swagger
	if g.config.Swagger {
		docs.SwaggerInfo.BasePath = "/"
		g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
}

func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) Start() error {
	addr := g.config.Addr()
	g.server = &http.Server{
		Addr:              addr,
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.logger.Info("Gateway starting", zap.String("address", addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones. Open
// WebSocket and SSE feeds end when the board stops.
func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		logger.Info("HTTP request", fields...)
	}
}
