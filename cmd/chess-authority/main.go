package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/park285/cheese-chess-sync/internal/arbiter/httpapi"
	"github.com/park285/cheese-chess-sync/internal/chessbuilder"
	appcfg "github.com/park285/cheese-chess-sync/internal/config"
	"github.com/park285/cheese-chess-sync/internal/msgcat"
	"github.com/park285/cheese-chess-sync/internal/obslog"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, err := obslog.InitFromEnv("chess-authority")
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("message catalog", zap.Error(err))
	}

	deps, err := chessbuilder.New(context.Background(), cfg, msgs, logger)
	if err != nil {
		logger.Fatal("authority init", zap.Error(err))
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn("authority_close", zap.Error(err))
		}
	}()

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.NewRouter(deps.Service, httpapi.Options{
		AllowOrigins: cfg.AllowedOrigins,
		Messages:     msgs,
		Logger:       logger,
	})
	srv := &http.Server{
		Addr:              cfg.AuthorityListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("authority_listening", zap.String("addr", cfg.AuthorityListenAddr),
			zap.Int("players", len(deps.Service.Players())))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("authority_shutting_down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}
