// Package chessbuilder assembles the reference authority from configuration.
package chessbuilder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-chess-sync/internal/arbiter"
	"github.com/park285/cheese-chess-sync/internal/arbiter/archive"
	"github.com/park285/cheese-chess-sync/internal/arbiter/players"
	"github.com/park285/cheese-chess-sync/internal/arbiter/store"
	"github.com/park285/cheese-chess-sync/internal/config"
	"github.com/park285/cheese-chess-sync/internal/msgcat"
)

type Deps struct {
	Service *arbiter.Service
	Store   store.Store
	Archive *archive.Postgres
	Players *players.Registry

	closers []func() error
}

// New builds the authority service. Redis and Postgres are optional: without REDIS_URL
// sessions live in memory, without DATABASE_URL finished games are not archived.
func New(ctx context.Context, cfg *config.AppConfig, msgs *msgcat.Catalog, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{Players: players.NewRegistry(logger)}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		st, err := store.NewRedis(rctx, cfg.RedisURL, cfg.SessionTTL)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("init redis store: %w", err)
		}
		d.Store = st
		logger.Info("session_store", zap.String("backend", "redis"), zap.Duration("ttl", cfg.SessionTTL))
	} else {
		d.Store = store.NewMemory()
		logger.Warn("session_store", zap.String("backend", "memory"))
	}
	d.closers = append(d.closers, d.Store.Close)

	opts := arbiter.Options{Messages: msgs, Logger: logger}
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		arc, err := archive.NewPostgres(pctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("init archive: %w", err)
		}
		d.Archive = arc
		d.closers = append(d.closers, arc.Close)
		opts.Archive = arc
	}

	players.RegisterBuiltins(d.Players)
	if dir := strings.TrimSpace(cfg.PlayerScriptsDir); dir != "" {
		scripts, err := players.LoadScriptDir(dir)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("load player scripts: %w", err)
		}
		for _, s := range scripts {
			d.Players.Register(s)
			d.closers = append(d.closers, func() error { s.Close(); return nil })
		}
	}
	if path := strings.TrimSpace(cfg.StockfishPath); path != "" {
		ectx, cancel := context.WithTimeout(ctx, 10*time.Second)
		engine, err := players.StartEngine(ectx, path, players.Limits{
			MoveTimeMS: cfg.StockfishMoveTimeMS,
			Depth:      cfg.StockfishDepth,
			SkillLevel: cfg.StockfishSkillLevel,
		})
		cancel()
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("init engine: %w", err)
		}
		d.Players.Register(engine)
		d.closers = append(d.closers, engine.Close)
	}

	d.Service = arbiter.NewService(d.Store, d.Players, opts)
	return d, nil
}

// Close releases everything New opened, in reverse order.
func (d *Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
