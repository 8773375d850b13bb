package domain

import (
	"fmt"
	"strings"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Position is a FEN snapshot. Values are never mutated; every transition yields a new one.
type Position string

func (p Position) String() string { return string(p) }

// Side returns the side to move encoded in the FEN.
func (p Position) Side() Side {
	fields := strings.Fields(string(p))
	if len(fields) >= 2 && fields[1] == "b" {
		return Black
	}
	return White
}

type Side string

const (
	White Side = "white"
	Black Side = "black"
)

func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, nil
	case "black", "b":
		return Black, nil
	default:
		return "", fmt.Errorf("unknown side %q", s)
	}
}

// Move is a source/destination pair with an optional promotion piece (q, r, b, n).
type Move struct {
	From      string
	To        string
	Promotion string
}

// UCI returns the compact move code, e.g. e2e4 or e7e8q.
func (m Move) UCI() string {
	return strings.ToLower(strings.TrimSpace(m.From)) +
		strings.ToLower(strings.TrimSpace(m.To)) +
		strings.ToLower(strings.TrimSpace(m.Promotion))
}

// ParseMove reads a compact move code. It only checks shape, not legality.
func ParseMove(code string) (Move, error) {
	c := strings.ToLower(strings.TrimSpace(code))
	if len(c) != 4 && len(c) != 5 {
		return Move{}, fmt.Errorf("invalid move code %q", code)
	}
	m := Move{From: c[0:2], To: c[2:4]}
	if len(c) == 5 {
		m.Promotion = c[4:]
	}
	return m, nil
}

// Seat is either a human or an automated player. The zero value is Human.
type Seat struct {
	automated string
}

func Human() Seat { return Seat{} }

func Automated(id string) Seat { return Seat{automated: strings.TrimSpace(id)} }

// SeatFromWire maps the authority encoding (absent, "" or "human" mean a human).
func SeatFromWire(v *string) Seat {
	if v == nil {
		return Human()
	}
	id := strings.TrimSpace(*v)
	if id == "" || strings.EqualFold(id, "human") {
		return Human()
	}
	return Automated(id)
}

// Wire is the inverse of SeatFromWire; humans encode as nil.
func (s Seat) Wire() *string {
	if s.IsHuman() {
		return nil
	}
	id := s.automated
	return &id
}

func (s Seat) IsHuman() bool { return s.automated == "" }

// AutomatedID reports the automated player identifier.
func (s Seat) AutomatedID() (string, bool) {
	return s.automated, s.automated != ""
}

func (s Seat) String() string {
	if s.IsHuman() {
		return "human"
	}
	return s.automated
}

type Seats struct {
	White Seat
	Black Seat
}

func (s Seats) For(side Side) Seat {
	if side == Black {
		return s.Black
	}
	return s.White
}

// TerminalFlags are reported by the authority; the client never derives them locally.
type TerminalFlags struct {
	Checkmate            bool
	Stalemate            bool
	InsufficientMaterial bool
	SeventyFiveMoves     bool
	FivefoldRepetition   bool
}

func (f TerminalFlags) Draw() bool {
	return f.Stalemate || f.InsufficientMaterial || f.SeventyFiveMoves || f.FivefoldRepetition
}

func (f TerminalFlags) Over() bool { return f.Checkmate || f.Draw() }

// GameSession is the client's cached copy of the authority's record.
type GameSession struct {
	ID         string
	Position   Position
	PGN        string
	Turn       Side
	Seats      Seats
	Flags      TerminalFlags
	LegalMoves []string
}

// ToMove returns the seat assignment of the side to move.
func (g *GameSession) ToMove() Seat {
	if g == nil {
		return Human()
	}
	return g.Seats.For(g.Turn)
}

// MoveResult is the authority's answer to a human or automated move.
type MoveResult struct {
	SessionID string
	Position  Position
	Message   string
}

type AutomatedPlayerDescriptor struct {
	Name        string
	Description string
}
