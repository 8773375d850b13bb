package chesspresenter

import (
	"context"
	"encoding/base64"

	"github.com/park285/cheese-chess-sync/internal/domain"
	"github.com/park285/cheese-chess-sync/internal/reconcile"
	"github.com/park285/cheese-chess-sync/internal/render"
	"github.com/park285/cheese-chess-sync/pkg/chessdto"
)

// BoardRenderer produces a PNG snapshot of a position.
type BoardRenderer interface {
	RenderPNG(ctx context.Context, pos domain.Position, opts render.Options) ([]byte, error)
}

// Presenter turns views into board-feed frames without coupling to the transport.
type Presenter struct {
	send     func(chessdto.Frame) error
	renderer BoardRenderer
}

// NewPresenter wires a frame sink. renderer may be nil, in which case frames carry no image.
func NewPresenter(send func(chessdto.Frame) error, renderer BoardRenderer) *Presenter {
	return &Presenter{send: send, renderer: renderer}
}

func (p *Presenter) Board(ctx context.Context, v reconcile.View) error {
	if p == nil || p.send == nil {
		return nil
	}
	view := ToBoardView(v)
	if p.renderer != nil && v.Displayed != "" {
		if data, err := Snapshot(ctx, p.renderer, v); err == nil {
			view.BoardImage = base64.StdEncoding.EncodeToString(data)
		}
	}
	return p.send(chessdto.Frame{T: chessdto.FrameView, View: view})
}

func (p *Presenter) Ack(id int64, accepted bool, reason string) error {
	if p == nil || p.send == nil {
		return nil
	}
	return p.send(chessdto.Frame{T: chessdto.FrameAck, Ack: &chessdto.GestureAck{ID: id, Accepted: accepted, Reason: reason}})
}

func (p *Presenter) Players(players []domain.AutomatedPlayerDescriptor) error {
	if p == nil || p.send == nil {
		return nil
	}
	return p.send(chessdto.Frame{T: chessdto.FramePlayers, Players: ToPlayerInfos(players)})
}

func (p *Presenter) Error(msg string) error {
	if p == nil || p.send == nil {
		return nil
	}
	return p.send(chessdto.Frame{T: chessdto.FrameError, Error: msg})
}

// Snapshot renders the displayed position with the last-move highlight.
func Snapshot(ctx context.Context, r BoardRenderer, v reconcile.View) ([]byte, error) {
	return r.RenderPNG(ctx, v.Displayed, render.Options{
		Highlight: v.Highlight,
		Caption:   Caption(v),
		Flip:      !v.Seats.White.IsHuman() && v.Seats.Black.IsHuman(),
	})
}
