package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTHORITY_BASE_URL", "")
	t.Setenv("AUTOMATED_MOVE_TIMEOUT_MS", "")
	t.Setenv("STOCKFISH_SKILL_LEVEL", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AutomatedMoveTimeout != 30*time.Second {
		t.Fatalf("unexpected automated timeout: %v", cfg.AutomatedMoveTimeout)
	}
	if cfg.AuthorityRetryMax != 3 || cfg.ClientListenAddr != ":8090" || cfg.StockfishSkillLevel != -1 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.ValidateClient(); err == nil {
		t.Fatalf("expected ValidateClient to require AUTHORITY_BASE_URL")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AUTHORITY_BASE_URL", "http://localhost:8000/ ")
	t.Setenv("AUTOMATED_MOVE_TIMEOUT_MS", "1500")
	t.Setenv("AUTHORITY_RETRY_MAX", "0")
	t.Setenv("ALLOWED_ORIGINS", "http://a, ,http://b")
	t.Setenv("SESSION_TTL_SEC", "60")
	t.Setenv("BLACK_PLAYER", " RandomMoveAI ")
	t.Setenv("BOARD_IMAGES", "TRUE")
	t.Setenv("STOCKFISH_SKILL_LEVEL", "25")
	t.Setenv("STOCKFISH_DEPTH", "12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AuthorityBaseURL != "http://localhost:8000" {
		t.Fatalf("base url not normalised: %q", cfg.AuthorityBaseURL)
	}
	if cfg.AutomatedMoveTimeout != 1500*time.Millisecond {
		t.Fatalf("timeout override ignored: %v", cfg.AutomatedMoveTimeout)
	}
	if cfg.AuthorityRetryMax != 3 {
		t.Fatalf("non-positive retry should keep default, got %d", cfg.AuthorityRetryMax)
	}
	if len(cfg.AllowedOrigins) != 2 || !cfg.BoardImages {
		t.Fatalf("unexpected origins: %v", cfg.AllowedOrigins)
	}
	if cfg.StockfishSkillLevel != -1 || cfg.StockfishDepth != 12 {
		t.Fatalf("unexpected engine limits: skill=%d depth=%d", cfg.StockfishSkillLevel, cfg.StockfishDepth)
	}
	if cfg.SessionTTL != time.Minute || cfg.BlackPlayer != "RandomMoveAI" {
		t.Fatalf("unexpected authority settings: %+v", cfg)
	}
	if err := cfg.ValidateClient(); err != nil {
		t.Fatalf("ValidateClient: %v", err)
	}
}
