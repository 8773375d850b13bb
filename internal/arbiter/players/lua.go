package players

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// Script is a player written in Lua. A script sets the globals name and description and
// defines choose(fen, moves), which returns one entry of the moves table.
type Script struct {
	name string
	desc string

	mu sync.Mutex
	L  *lua.LState
}

// LoadScript compiles src; path is only used in error messages.
func LoadScript(path, src string) (*Script, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: false})
	if err := L.DoString(src); err != nil {
		L.Close()
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	name := strings.TrimSpace(lua.LVAsString(L.GetGlobal("name")))
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if L.GetGlobal("choose").Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("load %s: choose(fen, moves) is not defined", path)
	}
	return &Script{
		name: name,
		desc: strings.TrimSpace(lua.LVAsString(L.GetGlobal("description"))),
		L:    L,
	}, nil
}

// LoadScriptDir loads every *.lua file in dir, sorted by file name.
func LoadScriptDir(dir string) ([]*Script, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".lua") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	out := make([]*Script, 0, len(names))
	for _, n := range names {
		path := filepath.Join(dir, n)
		b, err := os.ReadFile(path)
		if err != nil {
			closeScripts(out)
			return nil, err
		}
		s, err := LoadScript(path, string(b))
		if err != nil {
			closeScripts(out)
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func closeScripts(scripts []*Script) {
	for _, s := range scripts {
		s.Close()
	}
}

func (s *Script) Name() string { return s.name }
func (s *Script) Description() string {
	if s.desc == "" {
		return "Lua scripted player."
	}
	return s.desc
}

func (s *Script) Choose(ctx context.Context, req Request) (string, error) {
	if len(req.Legal) == 0 {
		return "", ErrNoMove
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	moves := s.L.NewTable()
	for _, m := range req.Legal {
		moves.Append(lua.LString(m))
	}
	if err := s.L.CallByParam(lua.P{
		Fn:      s.L.GetGlobal("choose"),
		NRet:    1,
		Protect: true,
	}, lua.LString(req.FEN), moves); err != nil {
		return "", fmt.Errorf("%s: %w", s.name, err)
	}
	ret := s.L.Get(-1)
	s.L.Pop(1)
	if ret.Type() != lua.LTString {
		return "", fmt.Errorf("%s: choose returned %s, want string", s.name, ret.Type())
	}
	return checkLegal(s.name, ret.String(), req.Legal)
}

func (s *Script) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.L != nil {
		s.L.Close()
		s.L = nil
	}
}
