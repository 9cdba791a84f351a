package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	MarketplaceURL string
	PageCap        int
	WaitTimeout    time.Duration
	PollInterval   time.Duration
	ChromeBin      string
	Headless       bool

	RedditClientID     string
	RedditClientSecret string
	RedditUserAgent    string
	PostLimit          int
	RedditRateLimitMs  int
	MaxRetries         int

	VocabularyPath string
	CSVOutputPath  string

	ArchivePostgres  bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	HTTPAddr string
	LogLevel string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		MarketplaceURL: getEnv("MARKETPLACE_URL", "https://www.ebay.de/"),
		PageCap:        getEnvInt("PAGE_CAP", 30),
		WaitTimeout:    getEnvDuration("WAIT_TIMEOUT", 20*time.Second),
		PollInterval:   getEnvDuration("POLL_INTERVAL", 250*time.Millisecond),
		ChromeBin:      getEnv("CHROME_BIN", ""),
		Headless:       getEnvBool("HEADLESS", true),

		// The unprefixed names are what older .env files used.
		RedditClientID:     getEnv("REDDIT_CLIENT_ID", os.Getenv("CLIENT_ID")),
		RedditClientSecret: getEnv("REDDIT_CLIENT_SECRET", os.Getenv("CLIENT_SECRET")),
		RedditUserAgent:    getEnv("REDDIT_USER_AGENT", os.Getenv("USER_AGENT")),
		PostLimit:          getEnvInt("POST_LIMIT", 500),
		RedditRateLimitMs:  getEnvInt("REDDIT_RATE_LIMIT_MS", 1000),
		MaxRetries:         getEnvInt("MAX_RETRIES", 3),

		VocabularyPath: getEnv("VOCABULARY_PATH", ""),
		CSVOutputPath:  getEnv("CSV_OUTPUT_PATH", ""),

		ArchivePostgres:  getEnvBool("ARCHIVE_POSTGRES", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "screener"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "screener"),
		PostgresDB:       getEnv("POSTGRES_DB", "market_screener"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", time.Hour),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
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

// getEnvDuration accepts Go duration strings ("20s") or plain milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(val); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
