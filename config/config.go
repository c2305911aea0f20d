package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"nadlan-scraper/models"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	PostgresEnabled  bool

	Entities     []models.Entity
	EntitiesFile string
	EntityView   string
	BaseURL      string

	MaxWorkers         int
	MaxPages           int
	CheckpointInterval int
	RateLimitMs        int
	RetryAttempts      int
	RetryBackoff       time.Duration
	PageReadyTimeout   time.Duration

	CheckpointDir     string
	CheckpointBackend string
	SQLitePath        string
	DataDir           string

	Headless  bool
	ChromeBin string
	LogLevel  string
}

// Load reads the .env file and returns a populated Config struct.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "nadlan_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresEnabled:  getEnvBool("PG_ENABLED", false),

		EntitiesFile: getEnv("ENTITIES_FILE", ""),
		EntityView:   getEnv("ENTITY_VIEW", "neighborhood"),
		BaseURL:      getEnv("BASE_URL", "https://www.nadlan.gov.il"),

		MaxWorkers:         getEnvInt("MAX_WORKERS", 4),
		MaxPages:           getEnvInt("MAX_PAGES", 100),
		CheckpointInterval: getEnvInt("CHECKPOINT_INTERVAL", 100),
		RateLimitMs:        getEnvInt("RATE_LIMIT_MS", 2000),
		RetryAttempts:      getEnvInt("RETRY_ATTEMPTS", 3),
		RetryBackoff:       getEnvDuration("RETRY_BACKOFF_MS", time.Millisecond, time.Second),
		PageReadyTimeout:   getEnvDuration("PAGE_READY_TIMEOUT_SEC", time.Second, 10*time.Second),

		CheckpointDir:     getEnv("CHECKPOINT_DIR", "./checkpoints"),
		CheckpointBackend: getEnv("CHECKPOINT_BACKEND", "file"),
		SQLitePath:        getEnv("SQLITE_PATH", "./checkpoints/checkpoints.db"),
		DataDir:           getEnv("DATA_DIR", "./data"),

		Headless:  getEnvBool("HEADLESS", true),
		ChromeBin: getEnv("CHROME_BIN", ""),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
	}

	entities, err := ParseEntities(getEnv("ENTITIES", ""))
	if err != nil {
		return nil, err
	}
	if cfg.EntitiesFile != "" {
		fromFile, err := LoadEntitiesFile(cfg.EntitiesFile)
		if err != nil {
			return nil, err
		}
		entities = append(entities, fromFile...)
	}
	cfg.Entities = entities

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the crawler cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.MaxWorkers < 1:
		return fmt.Errorf("config: MAX_WORKERS must be at least 1, got %d", c.MaxWorkers)
	case c.MaxPages < 0:
		return fmt.Errorf("config: MAX_PAGES must not be negative, got %d", c.MaxPages)
	case c.CheckpointInterval < 1:
		return fmt.Errorf("config: CHECKPOINT_INTERVAL must be at least 1, got %d", c.CheckpointInterval)
	case c.CheckpointBackend != "file" && c.CheckpointBackend != "sqlite":
		return fmt.Errorf("config: CHECKPOINT_BACKEND must be file or sqlite, got %q", c.CheckpointBackend)
	case c.EntityView != "neighborhood" && c.EntityView != "settlement":
		return fmt.Errorf("config: ENTITY_VIEW must be neighborhood or settlement, got %q", c.EntityView)
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// ParseEntities reads a worklist written as "id:name;id:name". An item
// without a colon is a name-only entity.
func ParseEntities(s string) ([]models.Entity, error) {
	var out []models.Entity
	for _, item := range strings.Split(s, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		e, err := ParseEntity(item)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// ParseEntity reads one "id:name" or "name" item.
func ParseEntity(s string) (models.Entity, error) {
	id, name, found := strings.Cut(s, ":")
	if !found {
		name, id = id, ""
	}
	e := models.Entity{ID: strings.TrimSpace(id), Name: strings.TrimSpace(name)}
	if e.Key() == "" {
		return models.Entity{}, fmt.Errorf("config: empty entity in %q", s)
	}
	return e, nil
}

// LoadEntitiesFile reads a JSON array of {"id", "name"} objects.
func LoadEntitiesFile(path string) ([]models.Entity, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read entities file: %w", err)
	}
	var entities []models.Entity
	if err := json.Unmarshal(b, &entities); err != nil {
		return nil, fmt.Errorf("config: parse entities file %q: %w", path, err)
	}
	for i, e := range entities {
		if e.Key() == "" {
			return nil, fmt.Errorf("config: entity %d in %q has neither id nor name", i, path)
		}
	}
	return entities, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration reads an integer count of unit.
func getEnvDuration(key string, unit, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return time.Duration(n) * unit
		}
	}
	return fallback
}
