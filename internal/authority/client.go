// Package authority is the HTTP client for the service that owns the true game state.
package authority

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/cheese-chess-sync/internal/domain"
	"github.com/park285/cheese-chess-sync/pkg/chessdto"
)

// ErrNetwork marks transport failures (connection refused, timeouts, undecodable bodies).
var ErrNetwork = errors.New("authority unreachable")

type call struct {
	retry bool
	// ownDeadline lets a deadline on ctx replace the client timeout.
	ownDeadline bool
}

type Client struct {
	baseURL string
	http    *fasthttp.Client
	logger  *zap.Logger

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

// WithRetry sets the attempt budget for idempotent reads. Moves are never retried.
func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		logger:         zap.NewNop(),
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) CreateSession(ctx context.Context, seats domain.Seats) (*domain.GameSession, error) {
	req := chessdto.NewGameRequest{PlayerWhiteAI: seats.White.Wire(), PlayerBlackAI: seats.Black.Wire()}
	var resp chessdto.NewGameResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/games", req, &resp, call{}); err != nil {
		return nil, err
	}
	turn, err := domain.ParseSide(resp.Turn)
	if err != nil {
		turn = domain.Position(resp.BoardFEN).Side()
	}
	return &domain.GameSession{
		ID:       resp.GameID,
		Position: domain.Position(resp.BoardFEN),
		PGN:      resp.PGN,
		Turn:     turn,
		Seats: domain.Seats{
			White: domain.SeatFromWire(resp.PlayerWhiteAI),
			Black: domain.SeatFromWire(resp.PlayerBlackAI),
		},
	}, nil
}

func (c *Client) FetchState(ctx context.Context, sessionID string) (*domain.GameSession, error) {
	var resp chessdto.GameStateResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, gamePath(sessionID, ""), nil, &resp, call{retry: true}); err != nil {
		return nil, err
	}
	return SessionFromState(resp), nil
}

func (c *Client) SubmitMove(ctx context.Context, sessionID, code string) (domain.MoveResult, error) {
	var resp chessdto.MoveResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, gamePath(sessionID, "/move"), chessdto.MoveRequest{UCIMove: code}, &resp, call{}); err != nil {
		return domain.MoveResult{}, err
	}
	return moveResult(resp), nil
}

// RequestAutomatedMove asks the authority to play the automated seat. A deadline on ctx
// bounds the request instead of the client timeout.
func (c *Client) RequestAutomatedMove(ctx context.Context, sessionID string) (domain.MoveResult, error) {
	var resp chessdto.MoveResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, gamePath(sessionID, "/ai-move"), nil, &resp, call{ownDeadline: true}); err != nil {
		return domain.MoveResult{}, err
	}
	return moveResult(resp), nil
}

func (c *Client) ListAutomatedPlayers(ctx context.Context) ([]domain.AutomatedPlayerDescriptor, error) {
	var resp []chessdto.AIPluginInfo
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/ai-plugins", nil, &resp, call{retry: true}); err != nil {
		return nil, err
	}
	out := make([]domain.AutomatedPlayerDescriptor, 0, len(resp))
	for _, p := range resp {
		out = append(out, domain.AutomatedPlayerDescriptor{Name: p.Name, Description: p.Description})
	}
	return out, nil
}

// SessionFromState maps the wire game state onto the client's session record.
func SessionFromState(s chessdto.GameStateResponse) *domain.GameSession {
	pos := domain.Position(s.BoardFEN)
	turn, err := domain.ParseSide(s.Turn)
	if err != nil {
		turn = pos.Side()
	}
	return &domain.GameSession{
		ID:       s.GameID,
		Position: pos,
		PGN:      s.PGN,
		Turn:     turn,
		Seats: domain.Seats{
			White: domain.SeatFromWire(s.PlayerWhiteAI),
			Black: domain.SeatFromWire(s.PlayerBlackAI),
		},
		Flags: domain.TerminalFlags{
			Checkmate:            s.IsCheckmate,
			Stalemate:            s.IsStalemate,
			InsufficientMaterial: s.IsInsufficientMaterial,
			SeventyFiveMoves:     s.IsSeventyFiveMoves,
			FivefoldRepetition:   s.IsFivefoldRepetition,
		},
		LegalMoves: append([]string(nil), s.LegalMoves...),
	}
}

func moveResult(r chessdto.MoveResponse) domain.MoveResult {
	return domain.MoveResult{SessionID: r.GameID, Position: domain.Position(r.BoardFEN), Message: r.Message}
}

func gamePath(sessionID, suffix string) string {
	return "/games/" + url.PathEscape(strings.TrimSpace(sessionID)) + suffix
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, opt call) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if opt.retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrNetwork, err)
		}
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx, opt.ownDeadline))
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrNetwork, err)
			c.logger.Debug("authority_request_failed",
				zap.String("method", method), zap.String("path", path), zap.Int("attempt", attempt), zap.Error(err))
			if attempt == attempts {
				return lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			apiErr := decodeAPIError(status, resp.Body())
			if attempt == attempts || !shouldRetryStatus(status) {
				return apiErr
			}
			lastErr = apiErr
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("%w: decode response: %v", ErrNetwork, err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func decodeAPIError(status int, body []byte) *chessdto.APIError {
	var payload chessdto.ErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil && strings.TrimSpace(payload.Detail) != "" {
		return &chessdto.APIError{Status: status, Detail: payload.Detail}
	}
	return &chessdto.APIError{Status: status, Detail: truncate(strings.TrimSpace(string(body)), 512)}
}

func (c *Client) computeDeadline(ctx context.Context, ownDeadline bool) time.Time {
	dl, ok := ctx.Deadline()
	if ok && ownDeadline {
		return dl
	}
	clientDL := time.Now().Add(c.defaultTimeout)
	if ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Detail extracts the human-readable reason from an authority error.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *chessdto.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return err.Error()
}
