package chesspresenter

import (
	"fmt"
	"strings"

	"github.com/park285/cheese-chess-sync/internal/domain"
	"github.com/park285/cheese-chess-sync/internal/reconcile"
)

func SeatLabel(s domain.Seat) string {
	if id, ok := s.AutomatedID(); ok {
		return id
	}
	return "Human"
}

// Caption is the one-line header drawn above board snapshots.
func Caption(v reconcile.View) string {
	if v.SessionID == "" {
		return strings.TrimSpace(v.Status)
	}
	return fmt.Sprintf("%s vs %s | %s", SeatLabel(v.Seats.White), SeatLabel(v.Seats.Black), v.Status)
}

// Summary renders a multi-line text block for terminals and logs.
func Summary(v reconcile.View) string {
	var sb strings.Builder
	if v.SessionID == "" {
		sb.WriteString("No active game.\n")
	} else {
		sb.WriteString(fmt.Sprintf("Game %s: %s (white) vs %s (black)\n", v.SessionID, SeatLabel(v.Seats.White), SeatLabel(v.Seats.Black)))
		sb.WriteString(fmt.Sprintf("FEN: %s\n", v.Displayed))
		if v.Displayed != v.Confirmed {
			sb.WriteString(fmt.Sprintf("Confirmed: %s\n", v.Confirmed))
		}
		if pgn := strings.TrimSpace(v.PGN); pgn != "" {
			sb.WriteString("Moves: " + pgn + "\n")
		}
	}
	if s := strings.TrimSpace(v.Status); s != "" {
		sb.WriteString("Status: " + s + "\n")
	}
	return sb.String()
}
