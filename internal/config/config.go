package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig covers both the client and the reference authority; each command validates
// the part it needs.
type AppConfig struct {
	// client
	AuthorityBaseURL     string
	AuthorityTimeout     time.Duration
	AuthorityRetryMax    int
	AutomatedMoveTimeout time.Duration
	ClientListenAddr     string
	AllowedOrigins       []string
	BoardImages          bool
	MessagesDir          string
	WhitePlayer          string
	BlackPlayer          string

	// authority
	AuthorityListenAddr string
	RedisURL            string
	DatabaseURL         string
	SessionTTL          time.Duration
	StockfishPath       string
	StockfishMoveTimeMS int
	StockfishDepth      int
	StockfishSkillLevel int
	PlayerScriptsDir    string
}

// Load reads .env (if present) and then the process environment.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{
		AuthorityTimeout:     10 * time.Second,
		AuthorityRetryMax:    3,
		AutomatedMoveTimeout: 30 * time.Second,
		ClientListenAddr:     ":8090",
		AuthorityListenAddr:  ":8000",
		SessionTTL:           24 * time.Hour,
		StockfishMoveTimeMS:  500,
		StockfishSkillLevel:  -1,
	}

	cfg.AuthorityBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("AUTHORITY_BASE_URL")), "/")
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))
	cfg.WhitePlayer = strings.TrimSpace(os.Getenv("WHITE_PLAYER"))
	cfg.BlackPlayer = strings.TrimSpace(os.Getenv("BLACK_PLAYER"))
	cfg.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))
	cfg.BoardImages = strings.EqualFold(strings.TrimSpace(os.Getenv("BOARD_IMAGES")), "true")

	if v := strings.TrimSpace(os.Getenv("CLIENT_LISTEN_ADDR")); v != "" {
		cfg.ClientListenAddr = v
	}
	if d, ok := millis("AUTHORITY_TIMEOUT_MS"); ok {
		cfg.AuthorityTimeout = d
	}
	if v := strings.TrimSpace(os.Getenv("AUTHORITY_RETRY_MAX")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AuthorityRetryMax = n
		}
	}
	if d, ok := millis("AUTOMATED_MOVE_TIMEOUT_MS"); ok {
		cfg.AutomatedMoveTimeout = d
	}

	if v := strings.TrimSpace(os.Getenv("AUTHORITY_LISTEN_ADDR")); v != "" {
		cfg.AuthorityListenAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if v := strings.TrimSpace(os.Getenv("SESSION_TTL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionTTL = time.Duration(n) * time.Second
		}
	}
	cfg.StockfishPath = strings.TrimSpace(os.Getenv("STOCKFISH_PATH"))
	if v := strings.TrimSpace(os.Getenv("STOCKFISH_MOVETIME_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.StockfishMoveTimeMS = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("STOCKFISH_DEPTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.StockfishDepth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("STOCKFISH_SKILL_LEVEL")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 20 {
			cfg.StockfishSkillLevel = n
		}
	}
	cfg.PlayerScriptsDir = strings.TrimSpace(os.Getenv("PLAYER_SCRIPTS_DIR"))

	return cfg, nil
}

// ValidateClient checks the keys the reconciliation client cannot run without.
func (c *AppConfig) ValidateClient() error {
	if c == nil {
		return errors.New("nil config")
	}
	if c.AuthorityBaseURL == "" {
		return errors.New("AUTHORITY_BASE_URL is required")
	}
	return nil
}

func millis(key string) (time.Duration, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return time.Duration(n) * time.Millisecond, true
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
