package chessdto

type MoveRequest struct {
	UCIMove string `json:"uci_move"`
}

// MoveResponse answers both human and automated moves.
type MoveResponse struct {
	GameID    string             `json:"game_id"`
	BoardFEN  string             `json:"board_fen"`
	Message   string             `json:"message"`
	GameState *GameStateResponse `json:"game_state,omitempty"`
}

type AIPluginInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
