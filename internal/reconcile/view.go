package reconcile

import "github.com/park285/cheese-chess-sync/internal/domain"

// State is the controller's synchronisation phase.
type State int

const (
	Idle State = iota
	OptimisticPending
	Syncing
)

func (s State) String() string {
	switch s {
	case OptimisticPending:
		return "optimistic_pending"
	case Syncing:
		return "syncing"
	default:
		return "idle"
	}
}

// View is a snapshot of everything the board surface shows.
// Displayed is either Confirmed or exactly one local ply ahead of it.
type View struct {
	Version           uint64
	SessionID         string
	Displayed         domain.Position
	Confirmed         domain.Position
	Highlight         []string
	Status            string
	AwaitingAutomated bool
	PGN               string
	Turn              domain.Side
	Seats             domain.Seats
	Flags             domain.TerminalFlags
	LegalMoves        []string
	State             State
}

func (v View) clone() View {
	v.Highlight = append([]string(nil), v.Highlight...)
	v.LegalMoves = append([]string(nil), v.LegalMoves...)
	return v
}
