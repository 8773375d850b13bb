package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedStatusTexts(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("status.turn", map[string]any{"ID": "g1", "Side": "black", "Suffix": ""})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Game ID: g1. It's black's turn." {
		t.Fatalf("unexpected turn text: %q", got)
	}
	got, err = c.Render("status.submit_failed", map[string]any{"Detail": "Invalid move: e2e5. Not a legal move."})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Error: Invalid move: e2e5. Not a legal move.. Reverting local move." {
		t.Fatalf("unexpected failure text: %q", got)
	}
}

func TestRenderMissingKeyFails(t *testing.T) {
	c := Default()
	if _, err := c.Render("status.turn", map[string]any{"ID": "g1"}); err == nil {
		t.Fatalf("expected missing data key to fail")
	}
	if _, err := c.Render("nope.nothing", nil); err == nil {
		t.Fatalf("expected unknown template to fail")
	}
	if got := c.Text("nope.nothing", nil, "fallback"); got != "fallback" {
		t.Fatalf("Text fallback = %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("status:\n  illegal_move: \"Nope.\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Text("status.illegal_move", nil, ""); got != "Nope." {
		t.Fatalf("override not applied: %q", got)
	}
	if got := c.Text("status.submitting", nil, ""); got != "Submitting move..." {
		t.Fatalf("default lost after override: %q", got)
	}

	if err := os.WriteFile(filepath.Join(dir, "b.yml"), []byte("status:\n  illegal_move: \"Again.\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "duplicate override key") {
		t.Fatalf("expected duplicate key error, got %v", err)
	}
}
