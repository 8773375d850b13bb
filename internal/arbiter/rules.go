package arbiter

import (
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/cheese-chess-sync/internal/arbiter/store"
	"github.com/park285/cheese-chess-sync/internal/domain"
	"github.com/park285/cheese-chess-sync/internal/validator"
)

const pgnEvent = "Chess AI Web App Game"

type moveFault int

const (
	faultNone moveFault = iota
	faultFormat
	faultIllegal
)

// replay rebuilds a game from the start position and the stored move list.
func replay(moves []string) (*nchess.Game, error) {
	game := nchess.NewGame()
	for _, mv := range moves {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("replay %q: %w", mv, err)
		}
	}
	return game, nil
}

// decodeMove classifies a move code the way the authority reports it: malformed codes
// (bad length, off-board squares, unknown promotion piece) are format errors, everything
// else that is not legal is illegal.
func decodeMove(pos *nchess.Position, code string) (*nchess.Move, moveFault) {
	m, err := domain.ParseMove(code)
	if err != nil || !validSquare(m.From) || !validSquare(m.To) {
		return nil, faultFormat
	}
	if m.Promotion != "" && !strings.Contains("qrbn", m.Promotion) {
		return nil, faultFormat
	}
	mv, ok := validator.FindMove(pos, m.UCI())
	if !ok {
		return nil, faultIllegal
	}
	return mv, faultNone
}

func validSquare(sq string) bool {
	return len(sq) == 2 && sq[0] >= 'a' && sq[0] <= 'h' && sq[1] >= '1' && sq[1] <= '8'
}

// applyMove plays mv on game and appends it to rec, then settles the game status.
func applyMove(rec *store.Record, game *nchess.Game, mv *nchess.Move, now time.Time) error {
	pos := game.Position()
	uci := strings.ToLower(nchess.UCINotation{}.Encode(pos, mv))
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	if err := game.Move(mv, nil); err != nil {
		return fmt.Errorf("apply %s: %w", uci, err)
	}
	rec.MovesUCI = append(rec.MovesUCI, uci)
	rec.MovesSAN = append(rec.MovesSAN, san)
	rec.FEN = game.FEN()
	rec.UpdatedAt = now
	settle(rec, game)
	return nil
}

func settle(rec *store.Record, game *nchess.Game) {
	switch game.Outcome() {
	case nchess.WhiteWon:
		rec.Status = store.StatusFinished
		rec.Outcome = "white"
	case nchess.BlackWon:
		rec.Status = store.StatusFinished
		rec.Outcome = "black"
	case nchess.Draw:
		rec.Status = store.StatusDraw
		rec.Outcome = "draw"
	default:
		return
	}
	rec.Method = methodName(game.Method())
}

func methodName(m nchess.Method) string {
	switch m {
	case nchess.Checkmate:
		return "checkmate"
	case nchess.Stalemate:
		return "stalemate"
	case nchess.FivefoldRepetition:
		return "fivefold_repetition"
	case nchess.SeventyFiveMoveRule:
		return "seventyfive_move_rule"
	case nchess.InsufficientMaterial:
		return "insufficient_material"
	default:
		return ""
	}
}

// flagsOf derives the reported terminal flags from the game's automatic outcome.
func flagsOf(game *nchess.Game) domain.TerminalFlags {
	var f domain.TerminalFlags
	switch game.Method() {
	case nchess.Checkmate:
		f.Checkmate = true
	case nchess.Stalemate:
		f.Stalemate = true
	case nchess.FivefoldRepetition:
		f.FivefoldRepetition = true
	case nchess.SeventyFiveMoveRule:
		f.SeventyFiveMoves = true
	case nchess.InsufficientMaterial:
		f.InsufficientMaterial = true
	}
	return f
}

func legalMoves(game *nchess.Game) []string {
	if game.Outcome() != nchess.NoOutcome {
		return []string{}
	}
	pos := game.Position()
	moves := pos.ValidMoves()
	out := make([]string, 0, len(moves))
	for i := range moves {
		out = append(out, strings.ToLower(nchess.UCINotation{}.Encode(pos, &moves[i])))
	}
	return out
}

func turnOf(game *nchess.Game) domain.Side {
	if game.Position().Turn() == nchess.Black {
		return domain.Black
	}
	return domain.White
}

func pgnResult(rec *store.Record) string {
	switch rec.Outcome {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

// BuildPGN renders the record as a PGN with the seven-tag roster and a Termination tag
// once the game is over.
func BuildPGN(rec *store.Record) string {
	if rec == nil {
		return ""
	}
	var b strings.Builder
	date := rec.CreatedAt
	if date.IsZero() {
		date = time.Now()
	}
	result := pgnResult(rec)
	b.WriteString(fmt.Sprintf("[Event \"%s\"]\n", pgnEvent))
	b.WriteString("[Site \"?\"]\n")
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString("[Round \"?\"]\n")
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", sanitizePGN(playerLabel(rec.White))))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", sanitizePGN(playerLabel(rec.Black))))
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n", result))
	if rec.Method != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(rec.Method)))
	}
	b.WriteString("\n")

	for i := 0; i < len(rec.MovesSAN); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s", i/2+1, strings.TrimSpace(rec.MovesSAN[i])))
		if i+1 < len(rec.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(rec.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

func playerLabel(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Human"
	}
	return name
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
