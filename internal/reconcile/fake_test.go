package reconcile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/park285/cheese-chess-sync/internal/authority"
	"github.com/park285/cheese-chess-sync/internal/domain"
	"github.com/park285/cheese-chess-sync/internal/validator"
	"github.com/park285/cheese-chess-sync/pkg/chessdto"
)

// fakeAuthority keeps one game per id and plays it with the local rules.
type fakeAuthority struct {
	mu    sync.Mutex
	rules validator.Local
	games map[string]*fakeGame
	next  int

	// scripted automated replies, consumed in order; falls back to the first legal move
	script []string

	submitErr    error
	fetchErr     error
	automatedErr error

	submitGate    chan struct{}
	fetchGate     chan struct{}
	automatedGate chan struct{}

	submits, fetches, automated   int
	inFlight, maxInFlight         int
	automatedOnHumanSeat, creates int
}

type fakeGame struct {
	pos   domain.Position
	seats domain.Seats
	moves []string
}

func newFakeAuthority() *fakeAuthority {
	return &fakeAuthority{games: make(map[string]*fakeGame)}
}

func (f *fakeAuthority) CreateSession(ctx context.Context, seats domain.Seats) (*domain.GameSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.next++
	id := fmt.Sprintf("g%d", f.next)
	f.games[id] = &fakeGame{pos: domain.StartFEN, seats: seats}
	return f.sessionLocked(id), nil
}

func (f *fakeAuthority) FetchState(ctx context.Context, id string) (*domain.GameSession, error) {
	f.mu.Lock()
	f.fetches++
	gate := f.fetchGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if _, ok := f.games[id]; !ok {
		return nil, &chessdto.APIError{Status: 404, Detail: "Game not found"}
	}
	return f.sessionLocked(id), nil
}

func (f *fakeAuthority) SubmitMove(ctx context.Context, id, code string) (domain.MoveResult, error) {
	f.mu.Lock()
	gate := f.submitGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	if f.submitErr != nil {
		return domain.MoveResult{}, f.submitErr
	}
	g, ok := f.games[id]
	if !ok {
		return domain.MoveResult{}, &chessdto.APIError{Status: 404, Detail: "Game not found"}
	}
	if err := f.applyLocked(g, code); err != nil {
		return domain.MoveResult{}, err
	}
	return domain.MoveResult{SessionID: id, Position: g.pos, Message: "Move " + code + " successful."}, nil
}

func (f *fakeAuthority) RequestAutomatedMove(ctx context.Context, id string) (domain.MoveResult, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	gate := f.automatedGate
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			f.mu.Lock()
			f.automated++
			f.mu.Unlock()
			return domain.MoveResult{}, fmt.Errorf("%w: %v", authority.ErrNetwork, ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.automated++
	if f.automatedErr != nil {
		return domain.MoveResult{}, f.automatedErr
	}
	g, ok := f.games[id]
	if !ok {
		return domain.MoveResult{}, &chessdto.APIError{Status: 404, Detail: "Game not found"}
	}
	seat := g.seats.For(g.pos.Side())
	if seat.IsHuman() {
		f.automatedOnHumanSeat++
		return domain.MoveResult{}, &chessdto.APIError{Status: 400, Detail: "It's a human player's turn."}
	}
	code := ""
	if len(f.script) > 0 {
		code, f.script = f.script[0], f.script[1:]
	} else if legal := f.rules.LegalMoves(g.pos); len(legal) > 0 {
		code = legal[0]
	}
	if err := f.applyLocked(g, code); err != nil {
		return domain.MoveResult{}, err
	}
	name, _ := seat.AutomatedID()
	return domain.MoveResult{SessionID: id, Position: g.pos, Message: name + " played " + code + "."}, nil
}

func (f *fakeAuthority) ListAutomatedPlayers(ctx context.Context) ([]domain.AutomatedPlayerDescriptor, error) {
	return []domain.AutomatedPlayerDescriptor{{Name: "RandomMoveAI", Description: "random"}}, nil
}

func (f *fakeAuthority) applyLocked(g *fakeGame, code string) error {
	m, err := domain.ParseMove(code)
	if err != nil {
		return &chessdto.APIError{Status: 400, Detail: "Invalid move format: " + code + "."}
	}
	next, ok := f.rules.AttemptLocalMove(g.pos, m)
	if !ok {
		return &chessdto.APIError{Status: 400, Detail: "Invalid move: " + code + ". Not a legal move."}
	}
	g.pos = next
	g.moves = append(g.moves, code)
	return nil
}

func (f *fakeAuthority) sessionLocked(id string) *domain.GameSession {
	g := f.games[id]
	legal := f.rules.LegalMoves(g.pos)
	return &domain.GameSession{
		ID:         id,
		Position:   g.pos,
		PGN:        strings.Join(g.moves, " "),
		Turn:       g.pos.Side(),
		Seats:      g.seats,
		Flags:      domain.TerminalFlags{Checkmate: len(legal) == 0},
		LegalMoves: legal,
	}
}

func (f *fakeAuthority) position(id string) domain.Position {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.games[id].pos
}

func (f *fakeAuthority) counts() (submits, fetches, automated int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits, f.fetches, f.automated
}

func (f *fakeAuthority) set(fn func(f *fakeAuthority)) {
	f.mu.Lock()
	fn(f)
	f.mu.Unlock()
}

func newTestController(t *testing.T, auth *fakeAuthority, timeout time.Duration) *Controller {
	t.Helper()
	c := New(auth, validator.New(), Options{AutomatedMoveTimeout: timeout})
	t.Cleanup(c.Close)
	return c
}

// startGame creates a session and waits until the controller has settled on it.
func startGame(t *testing.T, c *Controller, seats domain.Seats) View {
	t.Helper()
	c.NewGame(seats)
	c.Wait()
	v := c.View()
	if v.SessionID == "" {
		t.Fatalf("no session after NewGame: %+v", v)
	}
	return v
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
