package config

import (
	"encoding/json"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration (ops/read API)
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
	}

	// Database configuration
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Timeout  time.Duration
	}

	// Discord configuration
	Discord struct {
		Token string
		// Guilds maps a display name to a guild snowflake, parsed from a
		// JSON object in SERVER_LIST, e.g. {"My Server":"81384788765712384"}
		Guilds map[string]string
	}

	// Sync configuration
	Sync struct {
		PageSize     int
		RequestDelay time.Duration
		PassInterval time.Duration
		// RetentionCutoff is the date below which backfill does not pursue
		// older history.
		RetentionCutoff time.Time
		// StoreContent keeps message text verbatim instead of its length
		// only. Deployment policy; defaults to length only.
		StoreContent bool
	}

	// Cache settings
	Cache struct {
		Enabled   bool
		TTL       time.Duration
		MaxSize   int
		RedisAddr string
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = &Config{}

		// Server config
		instance.Server.Port = getEnvString("PORT", "8081")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)

		// Database config
		instance.Database.Host = getEnvString("DB_HOST", "localhost")
		instance.Database.Port = getEnvString("DB_PORT", "5432")
		instance.Database.User = getEnvString("DB_USER", "postgres")
		instance.Database.Password = getEnvString("DB_PASSWORD", "postgres")
		instance.Database.Name = getEnvString("DB_NAME", "guildstats")
		instance.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
		instance.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
		instance.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)

		// Discord config
		instance.Discord.Token = getEnvString("DISCORD_TOKEN", "")
		instance.Discord.Guilds = getEnvStringMap("SERVER_LIST")

		// Sync config
		instance.Sync.PageSize = getEnvInt("SYNC_PAGE_SIZE", 100)
		instance.Sync.RequestDelay = getEnvDuration("SYNC_REQUEST_DELAY", 2*time.Second)
		instance.Sync.PassInterval = getEnvDuration("SYNC_PASS_INTERVAL", time.Hour)
		instance.Sync.RetentionCutoff = getEnvDate("SYNC_RETENTION_CUTOFF", time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC))
		instance.Sync.StoreContent = getEnvBool("SYNC_STORE_CONTENT", false)

		// Cache settings
		instance.Cache.Enabled = getEnvBool("CACHE_ENABLED", true)
		instance.Cache.TTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
		instance.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", 1000)
		instance.Cache.RedisAddr = getEnvString("CACHE_REDIS_ADDR", "")

		// Logging config
		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// GuildIDs returns the configured guild snowflakes in a fixed order so that
// repeated sync passes enumerate guilds identically.
func (c *Config) GuildIDs() []string {
	names := make([]string, 0, len(c.Discord.Guilds))
	for name := range c.Discord.Guilds {
		names = append(names, name)
	}
	sort.Strings(names)

	ids := make([]string, 0, len(names))
	for _, name := range names {
		ids = append(ids, c.Discord.Guilds[name])
	}
	return ids
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvDate(key string, defaultValue time.Time) time.Time {
	if value, exists := os.LookupEnv(key); exists {
		if date, err := time.Parse("2006-01-02", value); err == nil {
			return date
		}
	}
	return defaultValue
}

func getEnvStringMap(key string) map[string]string {
	result := map[string]string{}
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if err := json.Unmarshal([]byte(value), &result); err != nil {
			return map[string]string{}
		}
	}
	return result
}
