package arbiter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/park285/cheese-chess-sync/internal/arbiter/archive"
	"github.com/park285/cheese-chess-sync/internal/arbiter/players"
	"github.com/park285/cheese-chess-sync/internal/arbiter/store"
	"github.com/park285/cheese-chess-sync/internal/domain"
)

type scriptedPlayer struct {
	name   string
	moves  []string
	before func()
}

func (p *scriptedPlayer) Name() string        { return p.name }
func (p *scriptedPlayer) Description() string { return "plays a fixed list" }
func (p *scriptedPlayer) Choose(_ context.Context, req players.Request) (string, error) {
	if p.before != nil {
		p.before()
	}
	if len(p.moves) == 0 {
		return "", players.ErrNoMove
	}
	mv := p.moves[0]
	p.moves = p.moves[1:]
	return mv, nil
}

func newTestService(t *testing.T, extra ...players.Player) (*Service, *archive.Memory) {
	t.Helper()
	reg := players.NewRegistry(nil)
	players.RegisterBuiltins(reg)
	for _, p := range extra {
		reg.Register(p)
	}
	arc := archive.NewMemory()
	return NewService(store.NewMemory(), reg, Options{Archive: arc}), arc
}

func detailOf(t *testing.T, err error) string {
	t.Helper()
	var rej *RejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	return rej.Detail
}

func TestCreateGame(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.CreateGame(ctx, domain.Seats{Black: domain.Automated("RandomMoveAI")})
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if resp.GameID == "" || resp.BoardFEN != domain.StartFEN || resp.Turn != "white" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.PlayerWhiteAI != nil || resp.PlayerBlackAI == nil || *resp.PlayerBlackAI != "RandomMoveAI" {
		t.Fatalf("unexpected seats: %+v", resp)
	}
	if !strings.Contains(resp.PGN, `[Event "Chess AI Web App Game"]`) {
		t.Fatalf("missing event header: %q", resp.PGN)
	}

	_, err = svc.CreateGame(ctx, domain.Seats{White: domain.Automated("DeepThought")})
	if got := detailOf(t, err); got != "Unknown AI player: DeepThought." {
		t.Fatalf("unexpected detail: %q", got)
	}
}

func TestMoveOutcomes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	g, _ := svc.CreateGame(ctx, domain.Seats{})

	resp, err := svc.Move(ctx, g.GameID, "e2e4")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if resp.Message != "Move e2e4 successful." || resp.GameState == nil || resp.GameState.Turn != "black" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !strings.HasPrefix(resp.BoardFEN, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq") {
		t.Fatalf("unexpected fen: %s", resp.BoardFEN)
	}
	if len(resp.GameState.LegalMoves) != 20 {
		t.Fatalf("expected 20 legal replies, got %d", len(resp.GameState.LegalMoves))
	}

	_, err = svc.Move(ctx, g.GameID, "e2e9")
	if got := detailOf(t, err); got != "Invalid move format: e2e9." {
		t.Fatalf("unexpected detail: %q", got)
	}
	_, err = svc.Move(ctx, g.GameID, "e7e4")
	if got := detailOf(t, err); got != "Invalid move: e7e4. Not a legal move." {
		t.Fatalf("unexpected detail: %q", got)
	}
	if _, err := svc.Move(ctx, "missing", "e2e4"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	state, err := svc.State(ctx, g.GameID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.Turn != "black" || state.IsGameOver || !strings.Contains(state.PGN, "1. e4") {
		t.Fatalf("rejected moves changed the game: %+v", state)
	}
}

func TestCheckmateIsReportedAndArchived(t *testing.T) {
	svc, arc := newTestService(t)
	ctx := context.Background()
	g, _ := svc.CreateGame(ctx, domain.Seats{})

	var last string
	for _, mv := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		resp, err := svc.Move(ctx, g.GameID, mv)
		if err != nil {
			t.Fatalf("Move %s: %v", mv, err)
		}
		last = resp.BoardFEN
	}
	state, err := svc.State(ctx, g.GameID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if !state.IsCheckmate || !state.IsGameOver || state.IsStalemate || len(state.LegalMoves) != 0 {
		t.Fatalf("unexpected flags: %+v", state)
	}
	if state.BoardFEN != last {
		t.Fatalf("state fen %s differs from last move fen %s", state.BoardFEN, last)
	}

	entry, ok := arc.Get(g.GameID)
	if !ok {
		t.Fatalf("finished game was not archived")
	}
	if entry.Record.Outcome != "black" || entry.Record.Method != "checkmate" {
		t.Fatalf("unexpected archived record: %+v", entry.Record)
	}
	if !strings.Contains(entry.PGN, `[Result "0-1"]`) || !strings.Contains(entry.PGN, "2. g4 Qh4") {
		t.Fatalf("unexpected pgn: %q", entry.PGN)
	}

	_, err = svc.Move(ctx, g.GameID, "a2a3")
	if got := detailOf(t, err); got != "Game is already over." {
		t.Fatalf("unexpected detail: %q", got)
	}
}

func TestPromotionDefaultsToQueen(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	g, _ := svc.CreateGame(ctx, domain.Seats{})
	// The h-pawn captures its way to g7, then takes the rook on h8.
	for _, mv := range []string{"h2h4", "g7g5", "h4g5", "h7h6", "g5h6", "f8g7", "h6g7", "a7a6"} {
		if _, err := svc.Move(ctx, g.GameID, mv); err != nil {
			t.Fatalf("Move %s: %v", mv, err)
		}
	}
	resp, err := svc.Move(ctx, g.GameID, "g7h8")
	if err != nil {
		t.Fatalf("promotion: %v", err)
	}
	if !strings.HasPrefix(resp.BoardFEN, "rnbqk1nQ/") {
		t.Fatalf("expected a queen on h8, got %s", resp.BoardFEN)
	}
}

func TestAutomatedMove(t *testing.T) {
	bot := &scriptedPlayer{name: "Scripted", moves: []string{"e7e5"}}
	svc, _ := newTestService(t, bot)
	ctx := context.Background()
	g, _ := svc.CreateGame(ctx, domain.Seats{Black: domain.Automated("Scripted")})

	_, err := svc.AutomatedMove(ctx, g.GameID)
	if got := detailOf(t, err); got != "It's a human player's turn." {
		t.Fatalf("unexpected detail: %q", got)
	}
	if _, err := svc.Move(ctx, g.GameID, "e2e4"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	resp, err := svc.AutomatedMove(ctx, g.GameID)
	if err != nil {
		t.Fatalf("AutomatedMove: %v", err)
	}
	if resp.Message != "Scripted played e7e5." || resp.GameState.Turn != "white" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !strings.Contains(resp.GameState.PGN, "1. e4 e5") {
		t.Fatalf("unexpected pgn: %q", resp.GameState.PGN)
	}
}

func TestAutomatedMoveConflict(t *testing.T) {
	bot := &scriptedPlayer{name: "Slow", moves: []string{"e7e5"}}
	svc, _ := newTestService(t, bot)
	ctx := context.Background()
	g, _ := svc.CreateGame(ctx, domain.Seats{Black: domain.Automated("Slow")})
	if _, err := svc.Move(ctx, g.GameID, "e2e4"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	bot.before = func() {
		if _, err := svc.Move(ctx, g.GameID, "c7c5"); err != nil {
			t.Errorf("interleaved move: %v", err)
		}
	}
	if _, err := svc.AutomatedMove(ctx, g.GameID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	state, _ := svc.State(ctx, g.GameID)
	if !strings.Contains(state.PGN, "1. e4 c5") {
		t.Fatalf("interleaved move should stand: %q", state.PGN)
	}
}

func TestAutomatedMoveWithoutAnswer(t *testing.T) {
	bot := &scriptedPlayer{name: "Mute"}
	svc, _ := newTestService(t, bot)
	ctx := context.Background()
	g, _ := svc.CreateGame(ctx, domain.Seats{White: domain.Automated("Mute")})
	_, err := svc.AutomatedMove(ctx, g.GameID)
	if got := detailOf(t, err); got != "AI Mute has no legal move." {
		t.Fatalf("unexpected detail: %q", got)
	}
	if list := svc.Players(); len(list) != 4 || list[3].Name != "Mute" {
		t.Fatalf("unexpected players: %+v", list)
	}
}
