package chesspresenter

import (
	"strings"

	"github.com/park285/cheese-chess-sync/internal/domain"
	"github.com/park285/cheese-chess-sync/internal/reconcile"
	"github.com/park285/cheese-chess-sync/pkg/chessdto"
)

// HighlightColor matches the translucent yellow board widgets expect for the last move.
const HighlightColor = "rgba(255, 255, 0, 0.4)"

func ToBoardView(v reconcile.View) *chessdto.BoardView {
	return &chessdto.BoardView{
		Version:   v.Version,
		SessionID: v.SessionID,
		FEN:       v.Displayed.String(),
		Confirmed: v.Confirmed.String(),
		Squares:   SquareStyles(v.Highlight),
		Status:    v.Status,
		Thinking:  v.AwaitingAutomated,
		Turn:      string(v.Turn),
		PGN:       v.PGN,
		White:     SeatLabel(v.Seats.White),
		Black:     SeatLabel(v.Seats.Black),
		State:     v.State.String(),
	}
}

// SquareStyles maps highlighted squares to widget styles. No highlight yields an empty map.
func SquareStyles(squares []string) map[string]chessdto.SquareStyle {
	out := make(map[string]chessdto.SquareStyle, len(squares))
	for _, sq := range squares {
		sq = strings.ToLower(strings.TrimSpace(sq))
		if sq == "" {
			continue
		}
		out[sq] = chessdto.SquareStyle{BackgroundColor: HighlightColor}
	}
	return out
}

func ToPlayerInfos(players []domain.AutomatedPlayerDescriptor) []chessdto.AIPluginInfo {
	out := make([]chessdto.AIPluginInfo, 0, len(players))
	for _, p := range players {
		out = append(out, chessdto.AIPluginInfo{Name: p.Name, Description: p.Description})
	}
	return out
}

// SeatsFromRequest reads a widget's new-game request; absent or "human" entries stay human.
func SeatsFromRequest(req *chessdto.NewGameRequest) domain.Seats {
	if req == nil {
		return domain.Seats{}
	}
	return domain.Seats{
		White: domain.SeatFromWire(req.PlayerWhiteAI),
		Black: domain.SeatFromWire(req.PlayerBlackAI),
	}
}
