// Package store keeps the reference authority's game records.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("game not found")
	// ErrConflict is returned when another writer changed the record during an update.
	ErrConflict = errors.New("concurrent update")
)

// Status is the lifecycle state of a game record.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusFinished Status = "FINISHED"
	StatusDraw     Status = "DRAW"
)

// Record is the persisted state of one game. White and Black hold the automated player
// name for that seat; empty means human.
type Record struct {
	ID        string    `json:"id"`
	FEN       string    `json:"fen"`
	MovesUCI  []string  `json:"moves_uci"`
	MovesSAN  []string  `json:"moves_san"`
	White     string    `json:"white,omitempty"`
	Black     string    `json:"black,omitempty"`
	Status    Status    `json:"status"`
	Outcome   string    `json:"outcome,omitempty"`
	Method    string    `json:"method,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.MovesUCI = append([]string(nil), r.MovesUCI...)
	out.MovesSAN = append([]string(nil), r.MovesSAN...)
	return &out
}

// Ply is the number of half-moves played.
func (r *Record) Ply() int { return len(r.MovesUCI) }

// Store is implemented by the Redis and in-memory backends.
type Store interface {
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	// Update applies fn to the current record and writes the result atomically.
	// An error from fn aborts the update and is returned unchanged.
	Update(ctx context.Context, id string, fn func(*Record) error) (*Record, error)
	Close() error
}
