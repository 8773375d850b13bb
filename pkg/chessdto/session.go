package chessdto

// NewGameRequest assigns automated players; a nil or "human" value keeps the seat human.
type NewGameRequest struct {
	PlayerWhiteAI *string `json:"player_white_ai,omitempty"`
	PlayerBlackAI *string `json:"player_black_ai,omitempty"`
}

type NewGameResponse struct {
	GameID        string  `json:"game_id"`
	BoardFEN      string  `json:"board_fen"`
	Turn          string  `json:"turn"`
	PGN           string  `json:"pgn"`
	PlayerWhiteAI *string `json:"player_white_ai"`
	PlayerBlackAI *string `json:"player_black_ai"`
}

type GameStateResponse struct {
	GameID                 string   `json:"game_id"`
	BoardFEN               string   `json:"board_fen"`
	PGN                    string   `json:"pgn"`
	Turn                   string   `json:"turn"`
	PlayerWhiteAI          *string  `json:"player_white_ai"`
	PlayerBlackAI          *string  `json:"player_black_ai"`
	IsCheckmate            bool     `json:"is_checkmate"`
	IsStalemate            bool     `json:"is_stalemate"`
	IsInsufficientMaterial bool     `json:"is_insufficient_material"`
	IsSeventyFiveMoves     bool     `json:"is_seventyfive_moves"`
	IsFivefoldRepetition   bool     `json:"is_fivefold_repetition"`
	IsGameOver             bool     `json:"is_game_over"`
	LegalMoves             []string `json:"legal_moves"`
}
