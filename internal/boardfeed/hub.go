// Package boardfeed connects board widgets to the reconciliation controller over websocket.
// Widgets send gestures and receive every view change; /board.png serves a snapshot.
package boardfeed

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-chess-sync/internal/adapter/chesspresenter"
	"github.com/park285/cheese-chess-sync/internal/domain"
	"github.com/park285/cheese-chess-sync/internal/reconcile"
	"github.com/park285/cheese-chess-sync/pkg/chessdto"
)

// Controller is the part of the reconciliation controller the feed drives.
type Controller interface {
	View() reconcile.View
	Subscribe(fn func(reconcile.View)) int
	Unsubscribe(id int)
	SubmitMove(m domain.Move) (bool, error)
	NewGame(seats domain.Seats)
	Refresh() error
	Players(ctx context.Context) ([]domain.AutomatedPlayerDescriptor, error)
}

type Options struct {
	AllowOrigins []string
	// Images attaches a base64 PNG to every view frame.
	Images       bool
	PingInterval time.Duration
	Logger       *zap.Logger
}

type client struct {
	id   int
	conn *websocket.Conn
	send chan chessdto.Frame
}

type Hub struct {
	ctrl     Controller
	renderer chesspresenter.BoardRenderer
	opts     Options
	logger   *zap.Logger

	mu          sync.RWMutex
	clients     map[*client]struct{}
	nextID      int
	lastVersion uint64
	subID       int
}

func NewHub(ctrl Controller, renderer chesspresenter.BoardRenderer, opts Options) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 15 * time.Second
	}
	return &Hub{
		ctrl:     ctrl,
		renderer: renderer,
		opts:     opts,
		logger:   logger,
		clients:  make(map[*client]struct{}),
	}
}

// Start subscribes to controller changes.
func (h *Hub) Start() {
	id := h.ctrl.Subscribe(h.onView)
	h.mu.Lock()
	h.subID = id
	h.mu.Unlock()
}

// Stop unsubscribes and disconnects every widget.
func (h *Hub) Stop() {
	h.mu.Lock()
	id := h.subID
	h.subID = 0
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	if id != 0 {
		h.ctrl.Unsubscribe(id)
	}
	for _, c := range clients {
		_ = c.conn.Close(websocket.StatusGoingAway, "shutting down")
	}
}

func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("/board.png", h.ServeBoardPNG)
	return mux
}

// onView fans a view out to every widget. Older versions arriving late are dropped; the
// version check and the enqueue share one critical section so widgets see versions in order.
func (h *Hub) onView(v reconcile.View) {
	h.mu.RLock()
	stale := v.Version <= h.lastVersion
	h.mu.RUnlock()
	if stale {
		return
	}

	frame, err := h.viewFrame(context.Background(), v)
	if err != nil {
		h.logger.Warn("boardfeed_view_frame_failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if v.Version <= h.lastVersion {
		return
	}
	h.lastVersion = v.Version
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			h.logger.Debug("boardfeed_client_slow", zap.Int("client", c.id))
		}
	}
}

func (h *Hub) viewFrame(ctx context.Context, v reconcile.View) (chessdto.Frame, error) {
	var out chessdto.Frame
	var renderer chesspresenter.BoardRenderer
	if h.opts.Images {
		renderer = h.renderer
	}
	p := chesspresenter.NewPresenter(func(f chessdto.Frame) error {
		out = f
		return nil
	}, renderer)
	err := p.Board(ctx, v)
	return out, err
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.opts.AllowOrigins})
	if err != nil {
		h.logger.Debug("boardfeed_accept_failed", zap.Error(err))
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.mu.Lock()
	h.nextID++
	c := &client{id: h.nextID, conn: conn, send: make(chan chessdto.Frame, 32)}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("boardfeed_client_connected", zap.Int("client", c.id))

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
		h.logger.Info("boardfeed_client_disconnected", zap.Int("client", c.id))
	}()

	if frame, err := h.viewFrame(ctx, h.ctrl.View()); err == nil {
		c.send <- frame
	}

	go h.writeLoop(ctx, cancel, c)

	for {
		var in chessdto.Frame
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			return
		}
		h.handle(ctx, c, in)
	}
}

func (h *Hub) writeLoop(ctx context.Context, cancel context.CancelFunc, c *client) {
	ping := time.NewTicker(h.opts.PingInterval)
	defer ping.Stop()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-c.send:
			wctx, wcancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(wctx, c.conn, f)
			wcancel()
			if err != nil {
				return
			}
		case <-ping.C:
			pctx, pcancel := context.WithTimeout(ctx, 3*time.Second)
			err := c.conn.Ping(pctx)
			pcancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *Hub) handle(ctx context.Context, c *client, in chessdto.Frame) {
	p := chesspresenter.NewPresenter(func(f chessdto.Frame) error {
		select {
		case c.send <- f:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, nil)

	switch in.T {
	case chessdto.FrameGesture:
		if in.Gesture == nil {
			_ = p.Error("gesture frame without payload")
			return
		}
		g := in.Gesture
		ok, err := h.ctrl.SubmitMove(domain.Move{From: g.Source, To: g.Target, Promotion: g.Promotion})
		reason := ""
		if err != nil {
			reason = h.ctrl.View().Status
		}
		h.logger.Debug("boardfeed_gesture", zap.Int("client", c.id), zap.String("source", g.Source),
			zap.String("target", g.Target), zap.Bool("accepted", ok))
		_ = p.Ack(g.ID, ok, reason)
	case chessdto.FrameNewGame:
		h.ctrl.NewGame(chesspresenter.SeatsFromRequest(in.NewGame))
	case chessdto.FrameRefresh:
		if err := h.ctrl.Refresh(); err != nil {
			msg := h.ctrl.View().Status
			if msg == "" {
				msg = err.Error()
			}
			_ = p.Error(msg)
		}
	case chessdto.FrameListAIs:
		pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		players, err := h.ctrl.Players(pctx)
		if err != nil {
			_ = p.Error("Failed to fetch AI plugins: " + err.Error())
			return
		}
		_ = p.Players(players)
	default:
		_ = p.Error("unknown frame type: " + in.T)
	}
}

// ServeBoardPNG renders the displayed position with its highlight.
func (h *Hub) ServeBoardPNG(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		http.Error(w, "rendering disabled", http.StatusNotImplemented)
		return
	}
	v := h.ctrl.View()
	if v.Displayed == "" {
		http.Error(w, "no active game", http.StatusNotFound)
		return
	}
	data, err := chesspresenter.Snapshot(r.Context(), h.renderer, v)
	if err != nil {
		h.logger.Warn("boardfeed_render_failed", zap.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}
