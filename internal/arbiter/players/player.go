// Package players holds the automated players the reference authority can seat.
package players

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/cheese-chess-sync/internal/domain"
)

var ErrNoMove = errors.New("no legal move")

// Request describes the position a player must answer. History is the UCI move list
// from the start position; Legal lists every legal reply.
type Request struct {
	GameID  string
	FEN     string
	History []string
	Legal   []string
}

type Player interface {
	Name() string
	Description() string
	Choose(ctx context.Context, req Request) (string, error)
}

// Registry maps player names to players. List keeps registration order.
type Registry struct {
	mu      sync.RWMutex
	players map[string]Player
	order   []string
	logger  *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{players: make(map[string]Player), logger: logger}
}

// Register adds p; a duplicate name replaces the earlier player.
func (r *Registry) Register(p Player) {
	name := strings.TrimSpace(p.Name())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.players[name]; dup {
		r.logger.Warn("player_duplicate_name", zap.String("player", name))
	} else {
		r.order = append(r.order, name)
	}
	r.players[name] = p
	r.logger.Info("player_registered", zap.String("player", name))
}

func (r *Registry) Get(name string) (Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[strings.TrimSpace(name)]
	return p, ok
}

func (r *Registry) List() []domain.AutomatedPlayerDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.AutomatedPlayerDescriptor, 0, len(r.order))
	for _, name := range r.order {
		p := r.players[name]
		out = append(out, domain.AutomatedPlayerDescriptor{Name: name, Description: p.Description()})
	}
	return out
}

// RegisterBuiltins adds the players that need no external resources.
func RegisterBuiltins(r *Registry) {
	r.Register(NewRandom())
	r.Register(NewMockLLM())
	r.Register(NewOpeningBook())
}

// Random picks a uniformly random legal move.
type Random struct {
	name string
	desc string
	pick func(n int) int
}

func NewRandom() *Random {
	return &Random{
		name: "RandomMoveAI",
		desc: "A simple AI that selects a random legal move from the available options.",
		pick: rand.IntN,
	}
}

// NewMockLLM is a stand-in for a language-model player; it plays random moves.
func NewMockLLM() *Random {
	return &Random{
		name: "LLM_Mock_AI",
		desc: "A mock placeholder for an LLM-based AI. Makes random moves.",
		pick: rand.IntN,
	}
}

func (p *Random) Name() string        { return p.name }
func (p *Random) Description() string { return p.desc }

func (p *Random) Choose(_ context.Context, req Request) (string, error) {
	if len(req.Legal) == 0 {
		return "", ErrNoMove
	}
	return req.Legal[p.pick(len(req.Legal))], nil
}

// checkLegal rejects answers that are not among the legal replies.
func checkLegal(player, move string, legal []string) (string, error) {
	move = strings.ToLower(strings.TrimSpace(move))
	for _, l := range legal {
		if l == move {
			return move, nil
		}
	}
	return "", fmt.Errorf("%s answered %q, which is not a legal move", player, move)
}
