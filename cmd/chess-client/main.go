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

	"go.uber.org/zap"

	"github.com/park285/cheese-chess-sync/internal/authority"
	"github.com/park285/cheese-chess-sync/internal/boardfeed"
	appcfg "github.com/park285/cheese-chess-sync/internal/config"
	"github.com/park285/cheese-chess-sync/internal/domain"
	"github.com/park285/cheese-chess-sync/internal/metrics"
	"github.com/park285/cheese-chess-sync/internal/msgcat"
	"github.com/park285/cheese-chess-sync/internal/obslog"
	"github.com/park285/cheese-chess-sync/internal/reconcile"
	"github.com/park285/cheese-chess-sync/internal/render"
	"github.com/park285/cheese-chess-sync/internal/validator"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := cfg.ValidateClient(); err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, err := obslog.InitFromEnv("chess-client")
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("message catalog", zap.Error(err))
	}

	client := authority.NewClient(cfg.AuthorityBaseURL,
		authority.WithTimeout(cfg.AuthorityTimeout),
		authority.WithRetry(cfg.AuthorityRetryMax),
		authority.WithLogger(logger),
	)
	ctrl := reconcile.New(client, validator.New(), reconcile.Options{
		Logger:               logger,
		Messages:             msgs,
		AutomatedMoveTimeout: cfg.AutomatedMoveTimeout,
	})
	defer ctrl.Close()

	hub := boardfeed.NewHub(ctrl, render.New(), boardfeed.Options{
		AllowOrigins: cfg.AllowedOrigins,
		Images:       cfg.BoardImages,
		Logger:       logger,
	})
	hub.Start()
	defer hub.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", hub.Handler())
	srv := &http.Server{
		Addr:              cfg.ClientListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("client_listening", zap.String("addr", cfg.ClientListenAddr),
			zap.String("authority", cfg.AuthorityBaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	if cfg.WhitePlayer != "" || cfg.BlackPlayer != "" {
		ctrl.NewGame(domain.Seats{
			White: domain.SeatFromWire(&cfg.WhitePlayer),
			Black: domain.SeatFromWire(&cfg.BlackPlayer),
		})
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("client_shutting_down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}
