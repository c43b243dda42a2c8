package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port           int
	GinMode        string
	TLSCertFile    string
	TLSKeyFile     string
	BotToken       string
	BotAPIEndpoint string
	DatabasePath   string
	CatalogFile    string
	TokenExpiry    time.Duration
	LogLevel       string
	ScoreRateLimit int
	Catalog        Catalog
}

// Catalog is the YAML file describing the games the bot offers and who administers them.
type Catalog struct {
	Base   string  `yaml:"base"`
	Static string  `yaml:"static"`
	Games  []Game  `yaml:"games"`
	Admins []int64 `yaml:"admins"`
}

type Game struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

func (c Catalog) HasGame(id string) bool {
	for _, g := range c.Games {
		if g.ID == id {
			return true
		}
	}
	return false
}

func (c Catalog) IsAdmin(userID int64) bool {
	for _, id := range c.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

// LoadConfig reads an optional .env file into the process environment, then the environment
// itself, then the catalog file it points at.
func LoadConfig() (Config, error) {
	if err := loadEnvFile(".env"); err != nil {
		return Config{}, err
	}
	cfg, err := LoadConfigFromEnv(osEnv{})
	if err != nil {
		return Config{}, err
	}
	catalog, err := LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return Config{}, err
	}
	cfg.Catalog = catalog
	return cfg, nil
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:           3000,
		GinMode:        "release",
		DatabasePath:   "game.db",
		CatalogFile:    "config.yaml",
		TokenExpiry:    24 * time.Hour,
		LogLevel:       "info",
		ScoreRateLimit: 120,
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")
	cfg.BotToken = env.Getenv("BOT_TOKEN")
	cfg.BotAPIEndpoint = env.Getenv("BOT_API_ENDPOINT")

	if raw := env.Getenv("DATABASE_PATH"); raw != "" {
		cfg.DatabasePath = raw
	}
	if raw := env.Getenv("CATALOG_FILE"); raw != "" {
		cfg.CatalogFile = raw
	}

	if raw := env.Getenv("TOKEN_EXPIRY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid TOKEN_EXPIRY_SECONDS")
		}
		cfg.TokenExpiry = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("LOG_LEVEL"); raw != "" {
		switch strings.ToLower(raw) {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = strings.ToLower(raw)
		default:
			return Config{}, fmt.Errorf("invalid LOG_LEVEL")
		}
	}

	if raw := env.Getenv("SCORE_RATE_LIMIT"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return Config{}, fmt.Errorf("invalid SCORE_RATE_LIMIT")
		}
		cfg.ScoreRateLimit = limit
	}

	return cfg, nil
}

// RequireBot reports an error when the bot token needed by upstream-facing commands is missing.
func (c Config) RequireBot() error {
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	return nil
}

// LoadCatalog parses the YAML catalog. A missing file yields an empty catalog.
func LoadCatalog(path string) (Catalog, error) {
	catalog := Catalog{Static: "static"}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return catalog, nil
		}
		return catalog, fmt.Errorf("read catalog %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return catalog, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	for i, g := range catalog.Games {
		if g.ID == "" {
			return Catalog{}, fmt.Errorf("parse catalog %s: game #%d has no id", path, i)
		}
	}
	return catalog, nil
}

func loadEnvFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("access env file %s: %w", path, err)
	}
	if info.IsDir() {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}
