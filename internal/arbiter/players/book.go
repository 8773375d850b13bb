package players

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
)

var (
	ecoOnce sync.Once
	ecoBook *opening.BookECO
)

func loadECO() *opening.BookECO {
	ecoOnce.Do(func() {
		ecoBook = opening.NewBookECO()
	})
	return ecoBook
}

// OpeningBook follows named ECO lines while the game stays in them and plays a random
// legal move afterwards.
type OpeningBook struct {
	pick func(n int) int
}

func NewOpeningBook() *OpeningBook { return &OpeningBook{pick: rand.IntN} }

func (p *OpeningBook) Name() string { return "OpeningBookAI" }
func (p *OpeningBook) Description() string {
	return "Plays known ECO opening lines, then random legal moves."
}

func (p *OpeningBook) Choose(_ context.Context, req Request) (string, error) {
	if len(req.Legal) == 0 {
		return "", ErrNoMove
	}
	if candidates := bookMoves(req.History); len(candidates) > 0 {
		return candidates[p.pick(len(candidates))], nil
	}
	return req.Legal[p.pick(len(req.Legal))], nil
}

// bookMoves lists the replies that extend the current line into a deeper named opening.
func bookMoves(history []string) []string {
	game := nchess.NewGame()
	for _, mv := range history {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil
		}
	}
	book := loadECO()
	if book == nil {
		return nil
	}
	current := book.Find(game.Moves())
	pos := game.Position()
	moves := pos.ValidMoves()
	var out []string
	for i := range moves {
		uci := strings.ToLower(nchess.UCINotation{}.Encode(pos, &moves[i]))
		child := game.Clone()
		if err := child.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
			continue
		}
		if o := book.Find(child.Moves()); o != nil && o != current {
			out = append(out, uci)
		}
	}
	return out
}
