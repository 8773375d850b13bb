package chesspresenter

import (
	"context"
	"strings"
	"testing"

	"github.com/park285/cheese-chess-sync/internal/domain"
	"github.com/park285/cheese-chess-sync/internal/reconcile"
	"github.com/park285/cheese-chess-sync/internal/render"
	"github.com/park285/cheese-chess-sync/pkg/chessdto"
)

func sampleView() reconcile.View {
	return reconcile.View{
		SessionID: "g1",
		Displayed: "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1",
		Confirmed: domain.StartFEN,
		Highlight: []string{"e2", "E4"},
		Status:    "Submitting move...",
		Turn:      domain.White,
		Seats:     domain.Seats{Black: domain.Automated("RandomMoveAI")},
		State:     reconcile.OptimisticPending,
	}
}

func TestToBoardView(t *testing.T) {
	bv := ToBoardView(sampleView())
	if bv.FEN == bv.Confirmed {
		t.Fatalf("displayed and confirmed should differ while pending")
	}
	if len(bv.Squares) != 2 || bv.Squares["e4"].BackgroundColor != HighlightColor {
		t.Fatalf("unexpected square styles: %+v", bv.Squares)
	}
	if bv.White != "Human" || bv.Black != "RandomMoveAI" || bv.State != "optimistic_pending" {
		t.Fatalf("unexpected labels: %+v", bv)
	}
	if len(SquareStyles(nil)) != 0 {
		t.Fatalf("no highlight should give an empty map")
	}
}

func TestPresenterBoardAttachesImage(t *testing.T) {
	var frames []chessdto.Frame
	p := NewPresenter(func(f chessdto.Frame) error {
		frames = append(frames, f)
		return nil
	}, render.New())

	if err := p.Board(context.Background(), sampleView()); err != nil {
		t.Fatalf("Board: %v", err)
	}
	if err := p.Ack(7, false, "Illegal move."); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	if len(frames) != 2 || frames[0].T != chessdto.FrameView || frames[1].T != chessdto.FrameAck {
		t.Fatalf("unexpected frames: %+v", frames)
	}
	if frames[0].View.BoardImage == "" {
		t.Fatalf("expected a rendered board image")
	}
	if frames[1].Ack.ID != 7 || frames[1].Ack.Accepted {
		t.Fatalf("unexpected ack: %+v", frames[1].Ack)
	}
}

func TestSummaryAndSeats(t *testing.T) {
	s := Summary(sampleView())
	if !strings.Contains(s, "Game g1: Human (white) vs RandomMoveAI (black)") || !strings.Contains(s, "Confirmed: ") {
		t.Fatalf("unexpected summary:\n%s", s)
	}
	white := "human"
	seats := SeatsFromRequest(&chessdto.NewGameRequest{PlayerWhiteAI: &white})
	if !seats.White.IsHuman() || !seats.Black.IsHuman() {
		t.Fatalf("\"human\" must map to a human seat: %+v", seats)
	}
}
