package players

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

const defaultReadyTimeout = 4 * time.Second

var errEngineClosed = errors.New("engine output closed")

// Limits bounds an engine search. SkillLevel is sent only when non-negative.
type Limits struct {
	MoveTimeMS int
	Depth      int
	SkillLevel int
}

func (l Limits) goCommand() string {
	args := []string{"go"}
	if l.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(l.Depth))
	}
	if l.MoveTimeMS > 0 {
		args = append(args, "movetime", strconv.Itoa(l.MoveTimeMS))
	}
	return strings.Join(args, " ") + "\n"
}

// searchBudget is how long Choose waits for bestmove.
func (l Limits) searchBudget() time.Duration {
	if l.MoveTimeMS > 0 {
		return time.Duration(l.MoveTimeMS)*time.Millisecond + 5*time.Second
	}
	return 30 * time.Second
}

// Engine drives a UCI engine process (e.g. Stockfish).
type Engine struct {
	name   string
	limits Limits

	stdin io.WriteCloser
	lines chan string
	wait  func() error

	mu     sync.Mutex
	search sync.Mutex
}

// StartEngine launches the binary and completes the uci/isready handshake.
func StartEngine(ctx context.Context, binaryPath string, limits Limits) (*Engine, error) {
	cmd := exec.Command(binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}
	e := newEngine(stdout, stdin, limits)
	e.wait = func() error {
		_ = cmd.Process.Kill()
		return cmd.Wait()
	}
	if err := e.initialize(ctx); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

// newEngine wires an engine over arbitrary pipes; StartEngine and tests use it.
func newEngine(r io.Reader, w io.WriteCloser, limits Limits) *Engine {
	if limits.MoveTimeMS <= 0 && limits.Depth <= 0 {
		limits.MoveTimeMS = 500
	}
	e := &Engine{
		name:   "Stockfish",
		limits: limits,
		stdin:  w,
		lines:  make(chan string, 64),
	}
	go e.readLoop(bufio.NewReader(r))
	return e
}

func (e *Engine) readLoop(r *bufio.Reader) {
	defer close(e.lines)
	for {
		line, err := r.ReadString('\n')
		if s := strings.TrimSpace(line); s != "" {
			e.lines <- s
		}
		if err != nil {
			return
		}
	}
}

func (e *Engine) Name() string { return e.name }
func (e *Engine) Description() string {
	desc := "UCI engine"
	if e.limits.SkillLevel >= 0 {
		desc += fmt.Sprintf(" at skill %d", e.limits.SkillLevel)
	}
	if e.limits.Depth > 0 {
		desc += fmt.Sprintf(", depth %d", e.limits.Depth)
	}
	if e.limits.MoveTimeMS > 0 {
		desc += fmt.Sprintf(", %d ms per move", e.limits.MoveTimeMS)
	}
	return desc + "."
}

func (e *Engine) Choose(ctx context.Context, req Request) (string, error) {
	if len(req.Legal) == 0 {
		return "", ErrNoMove
	}
	e.search.Lock()
	defer e.search.Unlock()

	if err := e.send(buildPositionCommand(req.History)); err != nil {
		return "", fmt.Errorf("send position: %w", err)
	}
	if err := e.send(e.limits.goCommand()); err != nil {
		return "", fmt.Errorf("send go: %w", err)
	}
	searchCtx, cancel := context.WithTimeout(ctx, e.limits.searchBudget())
	defer cancel()
	for {
		line, err := e.readLine(searchCtx)
		if err != nil {
			if searchCtx.Err() != nil {
				// Stop the search so the next request does not read this bestmove.
				_ = e.send("stop\n")
				e.drainUntil("bestmove", time.Second)
			}
			return "", fmt.Errorf("read bestmove: %w", err)
		}
		if strings.HasPrefix(line, "bestmove") {
			parts := strings.Fields(line)
			if len(parts) < 2 || parts[1] == "(none)" {
				return "", ErrNoMove
			}
			return checkLegal(e.name, parts[1], req.Legal)
		}
	}
}

func buildPositionCommand(moves []string) string {
	var sb strings.Builder
	sb.WriteString("position startpos")
	if len(moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(moves, " "))
	}
	sb.WriteString("\n")
	return sb.String()
}

func (e *Engine) initialize(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()
	if err := e.send("uci\n"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := e.awaitToken(initCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}
	if e.limits.SkillLevel >= 0 {
		if err := e.send(fmt.Sprintf("setoption name Skill Level value %d\n", e.limits.SkillLevel)); err != nil {
			return fmt.Errorf("set skill level: %w", err)
		}
	}
	if err := e.send("ucinewgame\nisready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := e.awaitToken(initCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (e *Engine) send(msg string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := io.WriteString(e.stdin, msg)
	return err
}

func (e *Engine) awaitToken(ctx context.Context, token string) error {
	for {
		line, err := e.readLine(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(line, token) {
			return nil
		}
	}
}

func (e *Engine) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-e.lines:
		if !ok {
			return "", errEngineClosed
		}
		return line, nil
	}
}

func (e *Engine) drainUntil(prefix string, d time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	for {
		line, err := e.readLine(ctx)
		if err != nil || strings.HasPrefix(line, prefix) {
			return
		}
	}
}

func (e *Engine) Close() error {
	e.mu.Lock()
	if e.stdin != nil {
		_ = e.stdin.Close()
	}
	e.mu.Unlock()
	if e.wait != nil {
		return e.wait()
	}
	return nil
}
