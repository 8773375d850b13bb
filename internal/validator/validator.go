// Package validator applies moves to a FEN locally so the board can show a projection before
// the authority answers. It performs no I/O and never decides outcomes.
package validator

import (
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/cheese-chess-sync/internal/domain"
)

// Local is the rules-library backed validator.
type Local struct{}

func New() Local { return Local{} }

// AttemptLocalMove returns the position after m, or false when m is not legal in pos.
// A pawn reaching the last rank without a promotion piece promotes to a queen.
func (Local) AttemptLocalMove(pos domain.Position, m domain.Move) (domain.Position, bool) {
	game, ok := gameAt(pos)
	if !ok {
		return "", false
	}
	mv, ok := FindMove(game.Position(), m.UCI())
	if !ok {
		return "", false
	}
	if err := game.Move(mv, nil); err != nil {
		return "", false
	}
	return domain.Position(game.FEN()), true
}

// LegalMoves lists the compact codes of every legal move in pos.
func (Local) LegalMoves(pos domain.Position) []string {
	game, ok := gameAt(pos)
	if !ok {
		return nil
	}
	p := game.Position()
	moves := p.ValidMoves()
	out := make([]string, 0, len(moves))
	for i := range moves {
		out = append(out, strings.ToLower(nchess.UCINotation{}.Encode(p, &moves[i])))
	}
	return out
}

func gameAt(pos domain.Position) (*nchess.Game, bool) {
	fen := strings.TrimSpace(pos.String())
	if fen == "" {
		return nil, false
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, false
	}
	return nchess.NewGame(opt), true
}

// FindMove resolves a compact move code against the legal moves of p. A four-character
// code for a promoting pawn resolves to the queen promotion.
func FindMove(p *nchess.Position, code string) (*nchess.Move, bool) {
	if len(code) != 4 && len(code) != 5 {
		return nil, false
	}
	var queened *nchess.Move
	moves := p.ValidMoves()
	for i := range moves {
		enc := strings.ToLower(nchess.UCINotation{}.Encode(p, &moves[i]))
		if enc == code {
			return &moves[i], true
		}
		if len(code) == 4 && enc == code+"q" {
			queened = &moves[i]
		}
	}
	return queened, queened != nil
}
