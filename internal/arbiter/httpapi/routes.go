// Package httpapi exposes the reference authority over HTTP/JSON.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/park285/cheese-chess-sync/internal/adapter/chesspresenter"
	"github.com/park285/cheese-chess-sync/internal/arbiter"
	"github.com/park285/cheese-chess-sync/internal/arbiter/store"
	"github.com/park285/cheese-chess-sync/internal/domain"
	"github.com/park285/cheese-chess-sync/internal/metrics"
	"github.com/park285/cheese-chess-sync/internal/msgcat"
	"github.com/park285/cheese-chess-sync/pkg/chessdto"
)

// Service is the authority behaviour the routes expose.
type Service interface {
	CreateGame(ctx context.Context, seats domain.Seats) (chessdto.NewGameResponse, error)
	State(ctx context.Context, id string) (chessdto.GameStateResponse, error)
	Move(ctx context.Context, id, code string) (chessdto.MoveResponse, error)
	AutomatedMove(ctx context.Context, id string) (chessdto.MoveResponse, error)
	Players() []chessdto.AIPluginInfo
}

var _ Service = (*arbiter.Service)(nil)

type Options struct {
	AllowOrigins []string
	Messages     *msgcat.Catalog
	Logger       *zap.Logger
}

type Handler struct {
	svc    Service
	msgs   *msgcat.Catalog
	logger *zap.Logger
}

// NewRouter builds a gin engine serving the authority routes plus /metrics and /healthz.
func NewRouter(svc Service, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	msgs := opts.Messages
	if msgs == nil {
		msgs = msgcat.Default()
	}
	r := gin.New()
	r.Use(gin.Recovery(), accessLog(logger), cors(opts.AllowOrigins))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	RegisterRoutes(r, &Handler{svc: svc, msgs: msgs, logger: logger})
	return r
}

func RegisterRoutes(r gin.IRoutes, h *Handler) {
	r.POST("/games", h.CreateGame)
	r.GET("/games/:id", h.State)
	r.POST("/games/:id/move", h.Move)
	r.POST("/games/:id/ai-move", h.AutomatedMove)
	r.GET("/ai-plugins", h.Players)
}

func (h *Handler) CreateGame(c *gin.Context) {
	var req chessdto.NewGameRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, chessdto.ErrorResponse{Detail: "invalid request: " + err.Error()})
			return
		}
	}
	resp, err := h.svc.CreateGame(c.Request.Context(), chesspresenter.SeatsFromRequest(&req))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) State(c *gin.Context) {
	resp, err := h.svc.State(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Move(c *gin.Context) {
	var req chessdto.MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, chessdto.ErrorResponse{Detail: "invalid request: " + err.Error()})
		return
	}
	resp, err := h.svc.Move(c.Request.Context(), c.Param("id"), req.UCIMove)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) AutomatedMove(c *gin.Context) {
	resp, err := h.svc.AutomatedMove(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Players(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Players())
}

// fail maps service errors onto the {detail} error payload.
func (h *Handler) fail(c *gin.Context, err error) {
	var rej *arbiter.RejectedError
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, chessdto.ErrorResponse{Detail: h.msgs.Text("arbiter.not_found", nil, "Game not found")})
	case errors.As(err, &rej):
		c.JSON(http.StatusBadRequest, chessdto.ErrorResponse{Detail: rej.Detail})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, chessdto.ErrorResponse{Detail: h.msgs.Text("arbiter.conflict", nil, "Concurrent update detected. Please retry.")})
	default:
		h.logger.Error("request_failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, chessdto.ErrorResponse{Detail: err.Error()})
	}
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http_request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

// cors echoes allowed origins; an empty list allows any origin.
func cors(allowed []string) gin.HandlerFunc {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			if _, ok := set[origin]; ok || len(set) == 0 {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
