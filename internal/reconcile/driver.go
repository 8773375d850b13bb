package reconcile

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-chess-sync/internal/authority"
	"github.com/park285/cheese-chess-sync/internal/domain"
	"github.com/park285/cheese-chess-sync/internal/metrics"
)

type automatedResult struct {
	gen       uint64
	sessionID string
	res       domain.MoveResult
	err       error
	timedOut  bool
}

// drive runs resync → trigger → request → resync until a human is to move, the game ends,
// a request fails or the session is replaced. It never recurses.
func (c *Controller) drive(gen uint64, sessionID string, trigger, keepStatus bool) {
	for {
		if c.ctx.Err() != nil {
			return
		}
		if _, ok := c.resync(gen, sessionID, keepStatus); !ok || !trigger {
			return
		}
		if !c.maybeTriggerAutomatedMove(gen) {
			return
		}
		r := c.requestAutomated(gen, sessionID)
		ok, stale := c.applyAutomated(r)
		if stale {
			return
		}
		// After a failed request the follow-up resync keeps the error visible and does not
		// re-trigger; Refresh re-arms the driver.
		trigger = ok
		keepStatus = !ok
	}
}

// maybeTriggerAutomatedMove claims the in-flight slot when the side to move in the adopted
// session is automated. A trigger while a request is outstanding is dropped.
func (c *Controller) maybeTriggerAutomatedMove(gen uint64) bool {
	c.mu.Lock()
	if gen != c.generation || c.session == nil {
		c.mu.Unlock()
		return false
	}
	s := c.session
	if c.requesting || s.Flags.Over() || s.ToMove().IsHuman() {
		c.mu.Unlock()
		return false
	}
	c.requesting = true
	c.view.AwaitingAutomated = true
	c.view.Status = c.text("status.automated.thinking", nil, "AI is thinking...")
	snap := c.bumpLocked()
	player, _ := s.ToMove().AutomatedID()
	c.mu.Unlock()

	c.logger.Info("automated_move_requested", zap.String("session_id", s.ID), zap.String("player", player),
		zap.String("turn", string(s.Turn)))
	c.publish(snap)
	return true
}

func (c *Controller) requestAutomated(gen uint64, sessionID string) automatedResult {
	ctx, cancel := context.WithTimeout(c.ctx, c.automatedTimeout)
	defer cancel()
	deadline, _ := ctx.Deadline()
	res, err := c.auth.RequestAutomatedMove(ctx, sessionID)
	timedOut := err != nil && (errors.Is(ctx.Err(), context.DeadlineExceeded) || !time.Now().Before(deadline))
	return automatedResult{gen: gen, sessionID: sessionID, res: res, err: err, timedOut: timedOut}
}

// applyAutomated clears the in-flight flag and writes the outcome status. stale reports that
// the result belongs to a replaced session.
func (c *Controller) applyAutomated(r automatedResult) (ok, stale bool) {
	c.mu.Lock()
	if r.gen != c.generation {
		c.mu.Unlock()
		return false, true
	}
	c.requesting = false
	c.view.AwaitingAutomated = false
	c.invalidateFetchesLocked()

	outcome := metrics.OutcomeOK
	if r.err != nil {
		detail := authority.Detail(r.err)
		outcome = outcomeOf(r.err)
		if r.timedOut {
			detail = c.text("status.automated.timed_out", map[string]any{"Timeout": c.automatedTimeout.String()},
				"no answer within "+c.automatedTimeout.String())
			outcome = metrics.OutcomeTimeout
		}
		c.view.Status = c.text("status.automated.failed", map[string]any{"Detail": detail}, "Error during AI move: "+detail)
	} else if r.res.Message != "" {
		c.view.Status = r.res.Message
	} else {
		c.view.Status = c.text("status.automated.processed", nil, "AI move processed.")
	}
	snap := c.bumpLocked()
	c.mu.Unlock()

	metrics.AutomatedRequests.WithLabelValues(outcome).Inc()
	if r.err != nil {
		c.logger.Warn("automated_move_failed", zap.String("session_id", r.sessionID), zap.Bool("timed_out", r.timedOut), zap.Error(r.err))
	} else {
		c.logger.Info("automated_move_done", zap.String("session_id", r.sessionID), zap.String("message", r.res.Message))
	}
	c.publish(snap)
	return r.err == nil, false
}
