// Package arbiter is a reference game authority: it owns sessions, decides legality and
// outcomes, and plays automated seats. The reconciliation client talks to it over HTTP.
package arbiter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-chess-sync/internal/arbiter/players"
	"github.com/park285/cheese-chess-sync/internal/arbiter/store"
	"github.com/park285/cheese-chess-sync/internal/domain"
	"github.com/park285/cheese-chess-sync/internal/metrics"
	"github.com/park285/cheese-chess-sync/internal/msgcat"
	"github.com/park285/cheese-chess-sync/pkg/chessdto"
)

const (
	kindHuman     = "human"
	kindAutomated = "automated"
)

// RejectedError is a request the authority refuses; Detail is reported to the caller.
type RejectedError struct {
	Detail string
}

func (e *RejectedError) Error() string { return e.Detail }

// Archive receives games once they reach a terminal state.
type Archive interface {
	SaveResult(ctx context.Context, rec *store.Record, pgn string) error
}

type Options struct {
	Archive  Archive
	Messages *msgcat.Catalog
	Logger   *zap.Logger
	Now      func() time.Time
}

type Service struct {
	store   store.Store
	players *players.Registry
	archive Archive
	msgs    *msgcat.Catalog
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(st store.Store, reg *players.Registry, opts Options) *Service {
	s := &Service{
		store:   st,
		players: reg,
		archive: opts.Archive,
		msgs:    opts.Messages,
		logger:  opts.Logger,
		now:     opts.Now,
	}
	if s.msgs == nil {
		s.msgs = msgcat.Default()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.players == nil {
		s.players = players.NewRegistry(s.logger)
	}
	return s
}

func (s *Service) reject(key string, data any, fallback string) error {
	return &RejectedError{Detail: s.msgs.Text(key, data, fallback)}
}

// CreateGame starts a game at the initial position. Every automated seat must name a
// registered player.
func (s *Service) CreateGame(ctx context.Context, seats domain.Seats) (chessdto.NewGameResponse, error) {
	for _, seat := range []domain.Seat{seats.White, seats.Black} {
		if name, ok := seat.AutomatedID(); ok {
			if _, found := s.players.Get(name); !found {
				return chessdto.NewGameResponse{}, s.reject("arbiter.automated.unknown_player",
					map[string]any{"Player": name}, "Unknown AI player: "+name+".")
			}
		}
	}
	now := s.now().UTC()
	rec := &store.Record{
		ID:        uuid.NewString(),
		FEN:       domain.StartFEN,
		MovesUCI:  []string{},
		MovesSAN:  []string{},
		Status:    store.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	rec.White, _ = seats.White.AutomatedID()
	rec.Black, _ = seats.Black.AutomatedID()
	if err := s.store.Create(ctx, rec); err != nil {
		return chessdto.NewGameResponse{}, err
	}
	s.logger.Info("game_created",
		zap.String("session_id", rec.ID),
		zap.String("white", seats.White.String()),
		zap.String("black", seats.Black.String()),
	)
	return chessdto.NewGameResponse{
		GameID:        rec.ID,
		BoardFEN:      rec.FEN,
		Turn:          string(domain.White),
		PGN:           BuildPGN(rec),
		PlayerWhiteAI: seats.White.Wire(),
		PlayerBlackAI: seats.Black.Wire(),
	}, nil
}

func (s *Service) State(ctx context.Context, id string) (chessdto.GameStateResponse, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return chessdto.GameStateResponse{}, err
	}
	return stateOf(rec)
}

// stateOf replays rec to report turn, flags and legal moves.
func stateOf(rec *store.Record) (chessdto.GameStateResponse, error) {
	game, err := replay(rec.MovesUCI)
	if err != nil {
		return chessdto.GameStateResponse{}, err
	}
	flags := flagsOf(game)
	return chessdto.GameStateResponse{
		GameID:                 rec.ID,
		BoardFEN:               game.FEN(),
		PGN:                    BuildPGN(rec),
		Turn:                   string(turnOf(game)),
		PlayerWhiteAI:          seatOf(rec.White).Wire(),
		PlayerBlackAI:          seatOf(rec.Black).Wire(),
		IsCheckmate:            flags.Checkmate,
		IsStalemate:            flags.Stalemate,
		IsInsufficientMaterial: flags.InsufficientMaterial,
		IsSeventyFiveMoves:     flags.SeventyFiveMoves,
		IsFivefoldRepetition:   flags.FivefoldRepetition,
		IsGameOver:             flags.Over(),
		LegalMoves:             legalMoves(game),
	}, nil
}

func seatOf(name string) domain.Seat {
	if strings.TrimSpace(name) == "" {
		return domain.Human()
	}
	return domain.Automated(name)
}

// Move applies a human move given as a compact code.
func (s *Service) Move(ctx context.Context, id, code string) (chessdto.MoveResponse, error) {
	code = strings.TrimSpace(code)
	rec, err := s.store.Update(ctx, id, func(r *store.Record) error {
		if r.Status != store.StatusActive {
			return s.reject("arbiter.game_over", nil, "Game is already over.")
		}
		game, err := replay(r.MovesUCI)
		if err != nil {
			return err
		}
		mv, fault := decodeMove(game.Position(), strings.ToLower(code))
		switch fault {
		case faultFormat:
			return s.reject("arbiter.move.bad_format", map[string]any{"UCI": code}, "Invalid move format: "+code+".")
		case faultIllegal:
			return s.reject("arbiter.move.illegal", map[string]any{"UCI": code}, "Invalid move: "+code+". Not a legal move.")
		}
		return applyMove(r, game, mv, s.now().UTC())
	})
	if err != nil {
		s.observe(kindHuman, err)
		s.logger.Info("move_rejected", zap.String("session_id", id), zap.String("move_uci", code), zap.Error(err))
		return chessdto.MoveResponse{}, err
	}
	s.observe(kindHuman, nil)
	s.logger.Info("move_applied", zap.String("session_id", id), zap.String("move_uci", code),
		zap.String("status", string(rec.Status)))
	s.archiveIfFinal(ctx, rec)
	msg := s.msgs.Text("arbiter.move.ok", map[string]any{"UCI": code}, "Move "+code+" successful.")
	return s.moveResponse(rec, msg)
}

// AutomatedMove lets the player seated on the side to move choose and play a move.
// The choice is made outside the store update; if another move lands in between, the
// update fails with store.ErrConflict.
func (s *Service) AutomatedMove(ctx context.Context, id string) (chessdto.MoveResponse, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return chessdto.MoveResponse{}, err
	}
	if rec.Status != store.StatusActive {
		return chessdto.MoveResponse{}, s.reject("arbiter.game_over", nil, "Game is already over.")
	}
	game, err := replay(rec.MovesUCI)
	if err != nil {
		return chessdto.MoveResponse{}, err
	}
	name := rec.White
	if turnOf(game) == domain.Black {
		name = rec.Black
	}
	if name == "" {
		return chessdto.MoveResponse{}, s.reject("arbiter.automated.human_seat", nil, "It's a human player's turn.")
	}
	player, ok := s.players.Get(name)
	if !ok {
		return chessdto.MoveResponse{}, s.reject("arbiter.automated.unknown_player",
			map[string]any{"Player": name}, "Unknown AI player: "+name+".")
	}

	ply := rec.Ply()
	code, err := player.Choose(ctx, players.Request{
		GameID:  rec.ID,
		FEN:     game.FEN(),
		History: append([]string(nil), rec.MovesUCI...),
		Legal:   legalMoves(game),
	})
	if errors.Is(err, players.ErrNoMove) {
		s.observe(kindAutomated, err)
		return chessdto.MoveResponse{}, s.reject("arbiter.automated.no_move",
			map[string]any{"Player": name}, "AI "+name+" has no legal move.")
	}
	if err != nil {
		s.observe(kindAutomated, err)
		s.logger.Warn("automated_move_failed", zap.String("session_id", id), zap.String("player", name), zap.Error(err))
		return chessdto.MoveResponse{}, errors.New(s.msgs.Text("arbiter.automated.failed",
			map[string]any{"Player": name, "Error": err.Error()}, "AI "+name+" failed: "+err.Error()))
	}

	rec, err = s.store.Update(ctx, id, func(r *store.Record) error {
		if r.Ply() != ply || r.Status != store.StatusActive {
			return store.ErrConflict
		}
		g, err := replay(r.MovesUCI)
		if err != nil {
			return err
		}
		mv, fault := decodeMove(g.Position(), code)
		if fault != faultNone {
			return fmt.Errorf("%s chose unplayable move %q", name, code)
		}
		return applyMove(r, g, mv, s.now().UTC())
	})
	if err != nil {
		s.observe(kindAutomated, err)
		return chessdto.MoveResponse{}, err
	}
	s.observe(kindAutomated, nil)
	s.logger.Info("automated_move_applied", zap.String("session_id", id), zap.String("player", name),
		zap.String("move_uci", code), zap.String("status", string(rec.Status)))
	s.archiveIfFinal(ctx, rec)
	msg := s.msgs.Text("arbiter.automated.ok", map[string]any{"Player": name, "UCI": code}, name+" played "+code+".")
	return s.moveResponse(rec, msg)
}

func (s *Service) Players() []chessdto.AIPluginInfo {
	list := s.players.List()
	out := make([]chessdto.AIPluginInfo, 0, len(list))
	for _, p := range list {
		out = append(out, chessdto.AIPluginInfo{Name: p.Name, Description: p.Description})
	}
	return out
}

func (s *Service) moveResponse(rec *store.Record, msg string) (chessdto.MoveResponse, error) {
	state, err := stateOf(rec)
	if err != nil {
		return chessdto.MoveResponse{}, err
	}
	return chessdto.MoveResponse{
		GameID:    rec.ID,
		BoardFEN:  state.BoardFEN,
		Message:   msg,
		GameState: &state,
	}, nil
}

func (s *Service) archiveIfFinal(ctx context.Context, rec *store.Record) {
	if s.archive == nil || rec.Status == store.StatusActive {
		return
	}
	if err := s.archive.SaveResult(ctx, rec, BuildPGN(rec)); err != nil {
		s.logger.Error("game_archive_failed", zap.String("session_id", rec.ID), zap.Error(err))
		return
	}
	s.logger.Info("game_archived", zap.String("session_id", rec.ID),
		zap.String("outcome", rec.Outcome), zap.String("method", rec.Method))
}

func (s *Service) observe(kind string, err error) {
	outcome := metrics.OutcomeOK
	var rej *RejectedError
	switch {
	case err == nil:
	case errors.As(err, &rej), errors.Is(err, players.ErrNoMove):
		outcome = metrics.OutcomeRejected
	case errors.Is(err, store.ErrConflict):
		outcome = metrics.OutcomeConflict
	case errors.Is(err, context.DeadlineExceeded):
		outcome = metrics.OutcomeTimeout
	default:
		outcome = metrics.OutcomeError
	}
	metrics.AuthorityMoves.WithLabelValues(kind, outcome).Inc()
}
