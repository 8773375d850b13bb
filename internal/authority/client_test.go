package authority

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/park285/cheese-chess-sync/internal/domain"
	"github.com/park285/cheese-chess-sync/pkg/chessdto"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, WithTimeout(2*time.Second), WithRetry(3))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestFetchStateMapsFlagsAndSeats(t *testing.T) {
	black := "RandomMoveAI"
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/games/g1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		writeJSON(w, http.StatusOK, chessdto.GameStateResponse{
			GameID:        "g1",
			BoardFEN:      domain.StartFEN,
			Turn:          "white",
			PlayerBlackAI: &black,
			IsStalemate:   true,
			LegalMoves:    []string{"e2e4"},
		})
	})

	s, err := c.FetchState(context.Background(), "g1")
	if err != nil {
		t.Fatalf("FetchState: %v", err)
	}
	if s.ID != "g1" || s.Turn != domain.White || s.Position != domain.StartFEN {
		t.Fatalf("unexpected session: %+v", s)
	}
	if !s.Seats.White.IsHuman() {
		t.Fatalf("absent white seat should be human")
	}
	if id, ok := s.Seats.Black.AutomatedID(); !ok || id != "RandomMoveAI" {
		t.Fatalf("unexpected black seat: %v", s.Seats.Black)
	}
	if !s.Flags.Stalemate || !s.Flags.Draw() || len(s.LegalMoves) != 1 {
		t.Fatalf("unexpected flags/moves: %+v", s)
	}
}

func TestSubmitMoveRejectionCarriesDetail(t *testing.T) {
	var calls int32
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var body chessdto.MoveRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.UCIMove != "e2e5" {
			t.Errorf("unexpected move body: %+v", body)
		}
		writeJSON(w, http.StatusBadRequest, chessdto.ErrorResponse{Detail: "Invalid move: e2e5. Not a legal move."})
	})

	_, err := c.SubmitMove(context.Background(), "g1", "e2e5")
	var apiErr *chessdto.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("expected APIError 400, got %v", err)
	}
	if Detail(err) != "Invalid move: e2e5. Not a legal move." {
		t.Fatalf("unexpected detail: %q", Detail(err))
	}
	if errors.Is(err, ErrNetwork) {
		t.Fatalf("rejection must not be classified as network failure")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("moves must not be retried, got %d calls", calls)
	}
}

func TestMovesAreNotRetriedOnServerError(t *testing.T) {
	var calls int32
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusServiceUnavailable, chessdto.ErrorResponse{Detail: "busy"})
	})
	if _, err := c.RequestAutomatedMove(context.Background(), "g1"); err == nil {
		t.Fatalf("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("automated move retried: %d calls", calls)
	}
}

func TestReadsRetryOnServerError(t *testing.T) {
	var calls int32
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			writeJSON(w, http.StatusBadGateway, chessdto.ErrorResponse{Detail: "upstream"})
			return
		}
		writeJSON(w, http.StatusOK, []chessdto.AIPluginInfo{{Name: "RandomMoveAI", Description: "random"}})
	})
	players, err := c.ListAutomatedPlayers(context.Background())
	if err != nil {
		t.Fatalf("ListAutomatedPlayers: %v", err)
	}
	if len(players) != 1 || players[0].Name != "RandomMoveAI" {
		t.Fatalf("unexpected players: %+v", players)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected one retry, got %d calls", calls)
	}
}

func TestCreateSessionSendsSeats(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body chessdto.NewGameRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.PlayerWhiteAI != nil || body.PlayerBlackAI == nil || *body.PlayerBlackAI != "RandomMoveAI" {
			t.Errorf("unexpected seats: %+v", body)
		}
		writeJSON(w, http.StatusOK, chessdto.NewGameResponse{
			GameID: "g2", BoardFEN: domain.StartFEN, Turn: "white", PlayerBlackAI: body.PlayerBlackAI,
		})
	})
	s, err := c.CreateSession(context.Background(), domain.Seats{Black: domain.Automated("RandomMoveAI")})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if s.ID != "g2" || s.Seats.Black.IsHuman() {
		t.Fatalf("unexpected session: %+v", s)
	}
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(base, WithTimeout(500*time.Millisecond), WithRetry(1))
	_, err := c.SubmitMove(context.Background(), "g1", "e2e4")
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestAutomatedMoveUsesContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		if r.URL.Path == "/games/g1/ai-move" {
			writeJSON(w, http.StatusOK, chessdto.MoveResponse{GameID: "g1", BoardFEN: domain.StartFEN, Message: "RandomMoveAI played e7e5."})
			return
		}
		writeJSON(w, http.StatusOK, chessdto.GameStateResponse{GameID: "g1", BoardFEN: domain.StartFEN, Turn: "white"})
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, WithTimeout(100*time.Millisecond), WithRetry(1))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := c.RequestAutomatedMove(ctx, "g1")
	if err != nil {
		t.Fatalf("automated move should wait for the context deadline: %v", err)
	}
	if res.Message != "RandomMoveAI played e7e5." {
		t.Fatalf("unexpected result: %+v", res)
	}

	if _, err := c.FetchState(ctx, "g1"); !errors.Is(err, ErrNetwork) {
		t.Fatalf("reads keep the client timeout, got %v", err)
	}

	short, cancelShort := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancelShort()
	if _, err := c.RequestAutomatedMove(short, "g1"); !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected a timeout under the short deadline, got %v", err)
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	s := "ab" + "가나다"
	for n := 2; n <= len(s); n++ {
		got := truncate(s, n)
		if !utf8.ValidString(got) || len(got) > n {
			t.Fatalf("truncate(%d) = %q", n, got)
		}
	}
	if got := truncate(s, 4); got != "ab" {
		t.Fatalf("truncate(4) = %q, want %q", got, "ab")
	}
	if got := truncate("short", 512); got != "short" {
		t.Fatalf("short strings must pass through, got %q", got)
	}
}
