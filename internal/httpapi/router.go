// Package httpapi exposes the reservation service over JSON HTTP.
package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/reservas/pkg/reservas"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDHeader          = "X-Request-ID"
	confirmedRedirectPath    = "/confirmar-reserva"
	alreadyConfirmedRedirect = "/confirmada-reserva"
)

// Config holds the HTTP surface settings.
type Config struct {
	AllowedOrigins []string
	JWTSecret      string
	JWTIssuer      string
	FrontendURL    string
	RequestTimeout time.Duration
}

type httpHandler struct {
	service *reservas.Service
	logger  *zap.Logger
	cfg     Config
}

// NewRouter wires every route onto a gin engine.
func NewRouter(cfg Config, service *reservas.Service, logger *zap.Logger) (*gin.Engine, error) {
	if service == nil {
		return nil, fmt.Errorf("httpapi: service is required")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, fmt.Errorf("httpapi: jwt secret is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	handler := &httpHandler{service: service, logger: logger, cfg: cfg}
	auth := authenticator{secret: []byte(cfg.JWTSecret), issuer: cfg.JWTIssuer}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.POST("/reservas/visitante", handler.handleCreateGuest)
	api.GET("/confirmar-reserva/:token", handler.handleConfirmToken)
	api.GET("/configuracoes", handler.handleSettings)
	api.GET("/disponibilidade", handler.handleAvailability)

	secured := api.Group("")
	secured.Use(auth.requireActor())
	secured.GET("/reservas", handler.handleList)
	secured.POST("/reservas", handler.handleCreate)
	secured.GET("/reservas/:id", handler.handleGet)
	secured.PUT("/reservas/:id", handler.handleUpdate)
	secured.POST("/reservas/:id/cancelar", handler.handleCancel)
	secured.POST("/reservas/:id/confirmar", handler.handleConfirm)
	secured.DELETE("/reservas/:id", handler.handleDelete)
	secured.GET("/relatorios/reservas/:periodo", handler.handleReport)
	secured.GET("/configuracoes/capacidade", handler.handleSettings)
	secured.PUT("/configuracoes/capacidade", handler.handleUpdateCapacity)
	secured.POST("/configuracoes/pausar", handler.handlePause)
	secured.POST("/configuracoes/retomar", handler.handleResume)

	return router, nil
}

// requestLogger tags each request with an id and logs its outcome.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		started := time.Now()
		requestID := ctx.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx.Header(requestIDHeader, requestID)
		ctx.Next()

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.FullPath()),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("latency", time.Since(started)),
		}
		if len(ctx.Errors) > 0 {
			logger.Error("request failed", append(fields, zap.Error(ctx.Errors.Last().Err))...)
			return
		}
		logger.Info("request", fields...)
	}
}
