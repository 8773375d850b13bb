// Package reconcile keeps a board view consistent with a remote authority: user moves are
// projected locally, submitted in the background and then confirmed or rolled back, and
// automated seats are driven whenever it is their turn.
package reconcile

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-chess-sync/internal/authority"
	"github.com/park285/cheese-chess-sync/internal/domain"
	"github.com/park285/cheese-chess-sync/internal/metrics"
	"github.com/park285/cheese-chess-sync/internal/msgcat"
)

var (
	ErrNoActiveSession = errors.New("no active session")
	ErrIllegalMove     = errors.New("illegal move")
	ErrMovePending     = errors.New("previous move still pending")
	ErrNotHumanTurn    = errors.New("side to move is not played by a human")
	ErrGameOver        = errors.New("game is over")
)

const DefaultAutomatedMoveTimeout = 30 * time.Second

// Authority is the remote owner of the game state.
type Authority interface {
	CreateSession(ctx context.Context, seats domain.Seats) (*domain.GameSession, error)
	FetchState(ctx context.Context, sessionID string) (*domain.GameSession, error)
	SubmitMove(ctx context.Context, sessionID, code string) (domain.MoveResult, error)
	RequestAutomatedMove(ctx context.Context, sessionID string) (domain.MoveResult, error)
	ListAutomatedPlayers(ctx context.Context) ([]domain.AutomatedPlayerDescriptor, error)
}

// Validator projects a move onto a position without consulting the authority.
type Validator interface {
	AttemptLocalMove(pos domain.Position, m domain.Move) (domain.Position, bool)
}

type Options struct {
	Logger               *zap.Logger
	Messages             *msgcat.Catalog
	AutomatedMoveTimeout time.Duration
}

type Controller struct {
	auth      Authority
	validator Validator
	logger    *zap.Logger
	msgs      *msgcat.Catalog

	automatedTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	view       View
	session    *domain.GameSession
	generation uint64
	fetchSeq   uint64
	floorSeq   uint64 // fetch results issued before this sequence are stale
	requesting bool

	subMu  sync.RWMutex
	subs   map[int]func(View)
	nextID int
}

func New(auth Authority, v Validator, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	msgs := opts.Messages
	if msgs == nil {
		msgs = msgcat.Default()
	}
	timeout := opts.AutomatedMoveTimeout
	if timeout <= 0 {
		timeout = DefaultAutomatedMoveTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		auth:             auth,
		validator:        v,
		logger:           logger,
		msgs:             msgs,
		automatedTimeout: timeout,
		ctx:              ctx,
		cancel:           cancel,
		subs:             make(map[int]func(View)),
	}
}

// View returns a copy of the current view.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.clone()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.State
}

// Subscribe registers fn to receive every view change. Callbacks run outside the controller
// lock and may arrive out of order across goroutines; compare View.Version.
func (c *Controller) Subscribe(fn func(View)) int {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.nextID++
	c.subs[c.nextID] = fn
	return c.nextID
}

func (c *Controller) Unsubscribe(id int) {
	c.subMu.Lock()
	delete(c.subs, id)
	c.subMu.Unlock()
}

// Wait blocks until every background operation has finished.
func (c *Controller) Wait() { c.wg.Wait() }

// Close cancels outstanding requests and waits for them to unwind.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}

// Players lists the automated players the authority offers.
func (c *Controller) Players(ctx context.Context) ([]domain.AutomatedPlayerDescriptor, error) {
	return c.auth.ListAutomatedPlayers(ctx)
}

// NewGame asks the authority for a fresh session and adopts it. Results of the previous
// session still in flight are discarded.
func (c *Controller) NewGame(seats domain.Seats) {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.resetLocked("")
	c.view.Status = c.text("status.creating", nil, "Creating new game...")
	snap := c.bumpLocked()
	c.mu.Unlock()
	c.publish(snap)

	c.goAsync(func() {
		s, err := c.auth.CreateSession(c.ctx, seats)
		if err != nil {
			c.mu.Lock()
			if gen != c.generation {
				c.mu.Unlock()
				return
			}
			c.view.Status = c.text("status.new_game_failed", map[string]any{"Error": authority.Detail(err)},
				"Failed to start new game: "+authority.Detail(err))
			snap := c.bumpLocked()
			c.mu.Unlock()
			c.logger.Warn("new_game_failed", zap.Error(err))
			c.publish(snap)
			return
		}
		c.logger.Info("new_game_created", zap.String("session_id", s.ID),
			zap.String("white", s.Seats.White.String()), zap.String("black", s.Seats.Black.String()))
		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return
		}
		c.session = s
		c.view.SessionID = s.ID
		c.mu.Unlock()
		c.drive(gen, s.ID, true, false)
	})
}

// SubmitUserMove handles a board gesture. It answers synchronously whether the piece may stay
// on the target square; confirmation or rollback follows asynchronously.
func (c *Controller) SubmitUserMove(source, target string) (bool, error) {
	return c.SubmitMove(domain.Move{From: source, To: target})
}

func (c *Controller) SubmitMove(m domain.Move) (bool, error) {
	c.mu.Lock()
	if c.session == nil {
		c.view.Status = c.text("status.no_session", nil, "No active game. Please start a new game.")
		snap := c.bumpLocked()
		c.mu.Unlock()
		c.publish(snap)
		return false, ErrNoActiveSession
	}
	if err := c.gestureBlockedLocked(); err != nil {
		snap := c.bumpLocked()
		c.mu.Unlock()
		c.publish(snap)
		return false, err
	}

	gen := c.generation
	sessionID := c.session.ID
	code := m.UCI()
	next, ok := c.validator.AttemptLocalMove(c.view.Displayed, m)
	if !ok {
		c.view.Status = c.text("status.illegal_move", nil, "Illegal move.")
		snap := c.bumpLocked()
		c.mu.Unlock()
		c.logger.Debug("move_rejected_locally", zap.String("session_id", sessionID), zap.String("move_uci", code))
		c.publish(snap)
		return false, ErrIllegalMove
	}

	c.view.Displayed = next
	c.view.Highlight = []string{strings.ToLower(m.From), strings.ToLower(m.To)}
	c.view.Status = c.text("status.submitting", nil, "Submitting move...")
	c.view.State = OptimisticPending
	snap := c.bumpLocked()
	c.mu.Unlock()
	c.publish(snap)

	c.logger.Info("move_submitted", zap.String("session_id", sessionID), zap.String("move_uci", code))
	c.goAsync(func() {
		res, err := c.auth.SubmitMove(c.ctx, sessionID, code)
		if c.applySubmit(submitResult{gen: gen, sessionID: sessionID, code: code, res: res, err: err}) {
			c.drive(gen, sessionID, true, false)
		}
	})
	return true, nil
}

// gestureBlockedLocked sets the status for, and returns, the reason a gesture cannot be
// accepted right now.
func (c *Controller) gestureBlockedLocked() error {
	switch {
	case c.view.State == OptimisticPending:
		c.view.Status = c.text("status.move_pending", nil, "A move is still being confirmed.")
		return ErrMovePending
	case c.session.Flags.Over():
		c.view.Status = c.text("status.game_over", nil, "The game is over.")
		return ErrGameOver
	case c.requesting || !c.session.ToMove().IsHuman():
		c.view.Status = c.text("status.not_human_turn", nil, "It's not your turn.")
		return ErrNotHumanTurn
	}
	return nil
}

type submitResult struct {
	gen       uint64
	sessionID string
	code      string
	res       domain.MoveResult
	err       error
}

// applySubmit reports whether a confirming resynchronisation should follow.
func (c *Controller) applySubmit(r submitResult) bool {
	c.mu.Lock()
	if r.gen != c.generation {
		c.mu.Unlock()
		return false
	}
	if r.err != nil {
		detail := authority.Detail(r.err)
		c.view.Displayed = c.view.Confirmed
		c.view.Highlight = nil
		c.view.Status = c.text("status.submit_failed", map[string]any{"Detail": detail},
			"Error: "+detail+". Reverting local move.")
		c.view.State = Idle
		snap := c.bumpLocked()
		c.mu.Unlock()
		metrics.Submissions.WithLabelValues(outcomeOf(r.err)).Inc()
		c.logger.Warn("move_reverted", zap.String("session_id", r.sessionID), zap.String("move_uci", r.code), zap.Error(r.err))
		c.publish(snap)
		return false
	}
	// The returned position is authoritative; the follow-up resync fills in the rest.
	pos := r.res.Position
	if pos == "" {
		pos = c.view.Displayed
	}
	c.view.Confirmed = pos
	c.view.Displayed = pos
	c.view.Turn = pos.Side()
	c.view.LegalMoves = nil
	if c.session != nil {
		next := *c.session
		next.Position = pos
		next.Turn = pos.Side()
		next.LegalMoves = nil
		c.session = &next
	}
	c.view.State = Syncing
	c.invalidateFetchesLocked()
	snap := c.bumpLocked()
	c.mu.Unlock()
	metrics.Submissions.WithLabelValues(metrics.OutcomeOK).Inc()
	c.logger.Info("move_accepted", zap.String("session_id", r.sessionID), zap.String("move_uci", r.code),
		zap.String("message", r.res.Message))
	c.publish(snap)
	return true
}

// Resynchronize fetches the authoritative state of sessionID and adopts it. Passing an id
// other than the current session attaches the controller to that session.
func (c *Controller) Resynchronize(sessionID string) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return
	}
	c.mu.Lock()
	if c.session == nil || c.session.ID != sessionID {
		c.generation++
		c.resetLocked(sessionID)
	}
	gen := c.generation
	c.mu.Unlock()
	c.goAsync(func() { c.drive(gen, sessionID, true, false) })
}

// Refresh resynchronises the current session, if any.
func (c *Controller) Refresh() error {
	c.mu.Lock()
	if c.view.SessionID == "" {
		c.view.Status = c.text("status.no_session", nil, "No active game. Please start a new game.")
		snap := c.bumpLocked()
		c.mu.Unlock()
		c.publish(snap)
		return ErrNoActiveSession
	}
	id := c.view.SessionID
	c.mu.Unlock()
	c.Resynchronize(id)
	return nil
}

type syncResult struct {
	gen       uint64
	seq       uint64
	sessionID string
	session   *domain.GameSession
	err       error
}

// resync fetches and applies state. keepStatus leaves the current status text in place on
// success. It returns the adopted session, or false when nothing was adopted.
func (c *Controller) resync(gen uint64, sessionID string, keepStatus bool) (*domain.GameSession, bool) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return nil, false
	}
	c.fetchSeq++
	seq := c.fetchSeq
	if c.view.State != OptimisticPending {
		c.view.State = Syncing
	}
	c.mu.Unlock()

	s, err := c.auth.FetchState(c.ctx, sessionID)
	return c.applySync(syncResult{gen: gen, seq: seq, sessionID: sessionID, session: s, err: err}, keepStatus)
}

func (c *Controller) applySync(r syncResult, keepStatus bool) (*domain.GameSession, bool) {
	c.mu.Lock()
	if r.gen != c.generation {
		c.mu.Unlock()
		return nil, false
	}
	if r.err != nil {
		if c.view.State == Syncing {
			c.view.State = Idle
		}
		detail := authority.Detail(r.err)
		c.view.Status = c.text("status.sync_failed", map[string]any{"Error": detail}, "Failed to fetch game state: "+detail)
		snap := c.bumpLocked()
		c.mu.Unlock()
		metrics.Resyncs.WithLabelValues(outcomeOf(r.err)).Inc()
		c.logger.Warn("resync_failed", zap.String("session_id", r.sessionID), zap.Error(r.err))
		c.publish(snap)
		return nil, false
	}
	if r.seq < c.floorSeq {
		c.mu.Unlock()
		metrics.Resyncs.WithLabelValues(metrics.OutcomeStale).Inc()
		c.logger.Debug("resync_stale", zap.String("session_id", r.sessionID), zap.Uint64("seq", r.seq))
		return nil, false
	}

	s := r.session
	c.floorSeq = r.seq
	c.session = s
	c.view.SessionID = s.ID
	// While a move is pending, a fetch of the position it was projected from leaves the
	// projection, its highlight and the submitting status in place.
	pending := c.view.State == OptimisticPending
	keepProjection := pending && s.Position == c.view.Confirmed
	if !keepProjection {
		c.view.Displayed = s.Position
		if pending {
			c.view.Highlight = nil
		}
	}
	c.view.Confirmed = s.Position
	c.view.PGN = s.PGN
	c.view.Turn = s.Turn
	c.view.Seats = s.Seats
	c.view.Flags = s.Flags
	c.view.LegalMoves = append([]string(nil), s.LegalMoves...)
	if c.view.State != OptimisticPending {
		c.view.State = Idle
	}
	if !keepStatus && !keepProjection {
		c.view.Status = c.turnStatus(s)
	}
	snap := c.bumpLocked()
	adopted := *s
	c.mu.Unlock()

	metrics.Resyncs.WithLabelValues(metrics.OutcomeOK).Inc()
	c.logger.Info("resync_adopted", zap.String("session_id", s.ID), zap.String("turn", string(s.Turn)),
		zap.Uint64("seq", r.seq), zap.String("state", snap.State.String()))
	c.publish(snap)
	return &adopted, true
}

func (c *Controller) turnStatus(s *domain.GameSession) string {
	suffix := ""
	switch {
	case s.Flags.Checkmate:
		suffix = c.text("status.suffix.checkmate", nil, " Checkmate!")
	case s.Flags.Stalemate:
		suffix = c.text("status.suffix.stalemate", nil, " Stalemate!")
	case s.Flags.Draw():
		suffix = c.text("status.suffix.draw", nil, " Draw!")
	}
	fallback := "Game ID: " + s.ID + ". It's " + string(s.Turn) + "'s turn." + suffix
	return c.text("status.turn", map[string]any{"ID": s.ID, "Side": string(s.Turn), "Suffix": suffix}, fallback)
}

// resetLocked clears everything tied to the previous session.
func (c *Controller) resetLocked(sessionID string) {
	c.session = nil
	c.requesting = false
	c.fetchSeq = 0
	c.floorSeq = 0
	version := c.view.Version
	c.view = View{Version: version, SessionID: sessionID, State: Idle}
}

// invalidateFetchesLocked marks every fetch issued so far as stale; used once the authority
// is known to have moved past them.
func (c *Controller) invalidateFetchesLocked() {
	c.floorSeq = c.fetchSeq + 1
}

// bumpLocked increments the view version and returns a snapshot for publishing.
func (c *Controller) bumpLocked() View {
	c.view.Version++
	return c.view.clone()
}

func (c *Controller) publish(v View) {
	c.subMu.RLock()
	fns := make([]func(View), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.RUnlock()
	for _, fn := range fns {
		fn(v)
	}
}

func (c *Controller) goAsync(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

func (c *Controller) text(key string, data any, fallback string) string {
	return c.msgs.Text(key, data, fallback)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeTimeout
	case errors.Is(err, authority.ErrNetwork):
		return metrics.OutcomeNetwork
	default:
		return metrics.OutcomeRejected
	}
}
