package players

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestRandomPicksLegalMove(t *testing.T) {
	p := NewRandom()
	p.pick = func(n int) int { return n - 1 }
	got, err := p.Choose(context.Background(), Request{Legal: []string{"e2e4", "d2d4"}})
	if err != nil || got != "d2d4" {
		t.Fatalf("Choose = %q, %v", got, err)
	}
	if _, err := p.Choose(context.Background(), Request{}); !errors.Is(err, ErrNoMove) {
		t.Fatalf("expected ErrNoMove, got %v", err)
	}
}

func TestRegistryOrderAndDuplicates(t *testing.T) {
	r := NewRegistry(nil)
	RegisterBuiltins(r)
	r.Register(NewRandom())

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 players, got %+v", list)
	}
	want := []string{"RandomMoveAI", "LLM_Mock_AI", "OpeningBookAI"}
	for i, name := range want {
		if list[i].Name != name || list[i].Description == "" {
			t.Fatalf("player %d = %+v, want %s", i, list[i], name)
		}
	}
	if _, ok := r.Get(" LLM_Mock_AI "); !ok {
		t.Fatalf("Get should trim the name")
	}
	if _, ok := r.Get("nobody"); ok {
		t.Fatalf("unexpected player")
	}
}

func TestBookMovesFromStart(t *testing.T) {
	moves := bookMoves(nil)
	seen := make(map[string]bool, len(moves))
	for _, m := range moves {
		seen[m] = true
	}
	if !seen["e2e4"] || !seen["d2d4"] {
		t.Fatalf("expected main openings among book moves, got %v", moves)
	}

	p := NewOpeningBook()
	p.pick = func(int) int { return 0 }
	got, err := p.Choose(context.Background(), Request{History: []string{"e2e4"}, Legal: []string{"e7e5", "c7c5"}})
	if err != nil || got == "" {
		t.Fatalf("Choose = %q, %v", got, err)
	}
	if bookMoves([]string{"e2e5"}) != nil {
		t.Fatalf("broken history should yield no book moves")
	}
}

const firstMoveScript = `
name = "FirstMove"
description = "Always plays the first legal move."
function choose(fen, moves)
  return moves[1]
end
`

func TestLuaScript(t *testing.T) {
	s, err := LoadScript("first.lua", firstMoveScript)
	if err != nil {
		t.Fatalf("LoadScript: %v", err)
	}
	defer s.Close()
	if s.Name() != "FirstMove" || s.Description() != "Always plays the first legal move." {
		t.Fatalf("unexpected metadata: %q %q", s.Name(), s.Description())
	}
	got, err := s.Choose(context.Background(), Request{FEN: "x", Legal: []string{"g1f3", "e2e4"}})
	if err != nil || got != "g1f3" {
		t.Fatalf("Choose = %q, %v", got, err)
	}
}

func TestLuaScriptIllegalAnswer(t *testing.T) {
	s, err := LoadScript("bad.lua", `function choose(fen, moves) return "a1a8" end`)
	if err != nil {
		t.Fatalf("LoadScript: %v", err)
	}
	defer s.Close()
	if s.Name() != "bad" {
		t.Fatalf("name should default to the file name, got %q", s.Name())
	}
	if _, err := s.Choose(context.Background(), Request{Legal: []string{"e2e4"}}); err == nil {
		t.Fatalf("expected illegal answer error")
	}
	if _, err := LoadScript("none.lua", `name = "x"`); err == nil {
		t.Fatalf("expected error without choose")
	}
}

func TestLoadScriptDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "first.lua"), []byte(firstMoveScript), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	scripts, err := LoadScriptDir(dir)
	if err != nil {
		t.Fatalf("LoadScriptDir: %v", err)
	}
	defer closeScripts(scripts)
	if len(scripts) != 1 || scripts[0].Name() != "FirstMove" {
		t.Fatalf("unexpected scripts: %d", len(scripts))
	}
}

type fakeUCI struct {
	mu        sync.Mutex
	positions []string
	commands  []string
	best      string
}

func startFakeEngine(t *testing.T, f *fakeUCI, limits Limits) *Engine {
	t.Helper()
	cmdR, cmdW := io.Pipe()
	outR, outW := io.Pipe()
	go func() {
		defer outW.Close()
		sc := bufio.NewScanner(cmdR)
		for sc.Scan() {
			line := sc.Text()
			var reply []string
			switch {
			case line == "uci":
				reply = []string{"id name Fake", "uciok"}
			case line == "isready":
				reply = []string{"readyok"}
			case strings.HasPrefix(line, "position"):
				f.mu.Lock()
				f.positions = append(f.positions, line)
				f.mu.Unlock()
			case strings.HasPrefix(line, "go"), strings.HasPrefix(line, "setoption"):
				f.mu.Lock()
				f.commands = append(f.commands, line)
				f.mu.Unlock()
			}
			if strings.HasPrefix(line, "go") {
				f.mu.Lock()
				best := f.best
				f.mu.Unlock()
				reply = []string{"info depth 1 score cp 20 pv " + best, "bestmove " + best}
			}
			for _, r := range reply {
				if _, err := io.WriteString(outW, r+"\n"); err != nil {
					return
				}
			}
		}
	}()
	e := newEngine(outR, cmdW, limits)
	if err := e.initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestEngineChoose(t *testing.T) {
	f := &fakeUCI{best: "e7e5"}
	e := startFakeEngine(t, f, Limits{MoveTimeMS: 10, Depth: 6, SkillLevel: 3})
	got, err := e.Choose(context.Background(), Request{History: []string{"e2e4"}, Legal: []string{"e7e5", "c7c5"}})
	if err != nil || got != "e7e5" {
		t.Fatalf("Choose = %q, %v", got, err)
	}
	f.mu.Lock()
	pos := append([]string(nil), f.positions...)
	f.mu.Unlock()
	if len(pos) != 1 || pos[0] != "position startpos moves e2e4" {
		t.Fatalf("unexpected position commands: %v", pos)
	}
	f.mu.Lock()
	cmds := append([]string(nil), f.commands...)
	f.mu.Unlock()
	if len(cmds) != 2 || cmds[0] != "setoption name Skill Level value 3" || cmds[1] != "go depth 6 movetime 10" {
		t.Fatalf("unexpected engine commands: %v", cmds)
	}
	if e.Description() != "UCI engine at skill 3, depth 6, 10 ms per move." {
		t.Fatalf("unexpected description: %q", e.Description())
	}

	f.mu.Lock()
	f.best = "a1a8"
	f.mu.Unlock()
	if _, err := e.Choose(context.Background(), Request{Legal: []string{"e2e4"}}); err == nil {
		t.Fatalf("expected illegal engine answer to fail")
	}
}
