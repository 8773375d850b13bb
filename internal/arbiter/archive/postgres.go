// Package archive persists finished games.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/cheese-chess-sync/internal/arbiter/store"
)

const schema = `CREATE TABLE IF NOT EXISTS chess_games (
  game_id TEXT PRIMARY KEY,
  board_fen TEXT NOT NULL,
  pgn TEXT NOT NULL DEFAULT '',
  turn TEXT NOT NULL DEFAULT 'white',
  player_white_ai TEXT,
  player_black_ai TEXT,
  result TEXT NOT NULL,
  result_method TEXT NOT NULL DEFAULT '',
  is_checkmate BOOLEAN NOT NULL DEFAULT false,
  is_stalemate BOOLEAN NOT NULL DEFAULT false,
  is_insufficient_material BOOLEAN NOT NULL DEFAULT false,
  is_seventyfive_moves BOOLEAN NOT NULL DEFAULT false,
  is_fivefold_repetition BOOLEAN NOT NULL DEFAULT false,
  moves_uci JSONB NOT NULL DEFAULT '[]',
  moves_san JSONB NOT NULL DEFAULT '[]',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  duration_ms BIGINT NOT NULL DEFAULT 0
)`

const upsert = `INSERT INTO chess_games (
    game_id, board_fen, pgn, turn, player_white_ai, player_black_ai,
    result, result_method,
    is_checkmate, is_stalemate, is_insufficient_material, is_seventyfive_moves, is_fivefold_repetition,
    moves_uci, moves_san, created_at, updated_at, duration_ms
  ) VALUES (
    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
  ) ON CONFLICT (game_id) DO UPDATE SET
    board_fen=EXCLUDED.board_fen,
    pgn=EXCLUDED.pgn,
    turn=EXCLUDED.turn,
    player_white_ai=EXCLUDED.player_white_ai,
    player_black_ai=EXCLUDED.player_black_ai,
    result=EXCLUDED.result,
    result_method=EXCLUDED.result_method,
    is_checkmate=EXCLUDED.is_checkmate,
    is_stalemate=EXCLUDED.is_stalemate,
    is_insufficient_material=EXCLUDED.is_insufficient_material,
    is_seventyfive_moves=EXCLUDED.is_seventyfive_moves,
    is_fivefold_repetition=EXCLUDED.is_fivefold_repetition,
    moves_uci=EXCLUDED.moves_uci,
    moves_san=EXCLUDED.moves_san,
    created_at=EXCLUDED.created_at,
    updated_at=EXCLUDED.updated_at,
    duration_ms=EXCLUDED.duration_ms`

type Postgres struct {
	db *sql.DB
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// SaveResult upserts a finished game. Active games are ignored.
func (p *Postgres) SaveResult(ctx context.Context, rec *store.Record, pgn string) error {
	if p == nil || p.db == nil || rec == nil || rec.Status == store.StatusActive {
		return nil
	}
	row := rowOf(rec)
	movesUCI, _ := json.Marshal(rec.MovesUCI)
	movesSAN, _ := json.Marshal(rec.MovesSAN)
	_, err := p.db.ExecContext(ctx, upsert,
		rec.ID, rec.FEN, pgn, row.turn, nullable(rec.White), nullable(rec.Black),
		rec.Outcome, rec.Method,
		row.checkmate, row.stalemate, row.insufficient, row.seventyFive, row.fivefold,
		string(movesUCI), string(movesSAN), rec.CreatedAt, rec.UpdatedAt, row.durationMS,
	)
	return err
}

type row struct {
	turn         string
	checkmate    bool
	stalemate    bool
	insufficient bool
	seventyFive  bool
	fivefold     bool
	durationMS   int64
}

func rowOf(rec *store.Record) row {
	r := row{turn: "white"}
	if len(rec.MovesUCI)%2 == 1 {
		r.turn = "black"
	}
	switch rec.Method {
	case "checkmate":
		r.checkmate = true
	case "stalemate":
		r.stalemate = true
	case "insufficient_material":
		r.insufficient = true
	case "seventyfive_move_rule":
		r.seventyFive = true
	case "fivefold_repetition":
		r.fivefold = true
	}
	if d := rec.UpdatedAt.Sub(rec.CreatedAt).Milliseconds(); d > 0 {
		r.durationMS = d
	}
	return r
}

func nullable(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

// Memory keeps finished games in process, for development and tests.
type Memory struct {
	mu    sync.Mutex
	games map[string]Entry
}

type Entry struct {
	Record *store.Record
	PGN    string
}

func NewMemory() *Memory { return &Memory{games: make(map[string]Entry)} }

func (m *Memory) SaveResult(_ context.Context, rec *store.Record, pgn string) error {
	if rec == nil || rec.Status == store.StatusActive {
		return nil
	}
	m.mu.Lock()
	m.games[rec.ID] = Entry{Record: rec.Clone(), PGN: pgn}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(id string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.games[id]
	return e, ok
}
