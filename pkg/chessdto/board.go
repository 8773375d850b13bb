package chessdto

// Frames exchanged with a board widget over the board feed websocket.

const (
	FrameView    = "view"
	FrameAck     = "ack"
	FramePlayers = "players"
	FrameError   = "error"
	FrameGesture = "gesture"
	FrameNewGame = "new_game"
	FrameRefresh = "refresh"
	FrameListAIs = "list_players"
)

type Frame struct {
	T string `json:"t"`

	View    *BoardView      `json:"view,omitempty"`
	Ack     *GestureAck     `json:"ack,omitempty"`
	Gesture *Gesture        `json:"gesture,omitempty"`
	NewGame *NewGameRequest `json:"new_game,omitempty"`
	Players []AIPluginInfo  `json:"players,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type SquareStyle struct {
	BackgroundColor string `json:"backgroundColor"`
}

type BoardView struct {
	Version    uint64                 `json:"version"`
	SessionID  string                 `json:"session_id,omitempty"`
	FEN        string                 `json:"fen"`
	Confirmed  string                 `json:"confirmed_fen"`
	Squares    map[string]SquareStyle `json:"square_styles"`
	Status     string                 `json:"status"`
	Thinking   bool                   `json:"ai_thinking"`
	Turn       string                 `json:"turn"`
	PGN        string                 `json:"pgn"`
	White      string                 `json:"white"`
	Black      string                 `json:"black"`
	State      string                 `json:"state"`
	BoardImage string                 `json:"board_image,omitempty"`
}

type Gesture struct {
	ID     int64  `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Piece  string `json:"piece,omitempty"`
	// Promotion is q, r, b or n; empty lets a pawn on the last rank become a queen.
	Promotion string `json:"promotion,omitempty"`
}

type GestureAck struct {
	ID       int64  `json:"id"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}
