package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // SCHEDULE_TIMEZONE must resolve in minimal images

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreBolt     = "bolt"
	StoreMemory   = "memory"
)

// Gateway kinds.
const (
	GatewayFCM     = "fcm"
	GatewayWebhook = "webhook"
	GatewayLog     = "log"
)

// Config holds all runtime configuration.
//
// Values come from, in increasing precedence: built-in defaults, the YAML
// file named by CONFIG_FILE (keys are the lower-case variable names), a .env
// file in the working directory, and the process environment.
type Config struct {
	// Server
	HTTPPort           string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string
	CronSecret         string

	// Store
	StoreDriver   string
	DatabaseURL   string
	DBMaxConns    int32
	DBMinConns    int32
	BoltPath      string
	MigrationsDir string

	// Messaging gateway
	Gateway             string
	FirebaseProjectID   string
	FirebaseClientEmail string
	FirebasePrivateKey  string
	FCMEndpoint         string
	FCMTokenURL         string
	WebhookURL          string
	GatewayTimeout      time.Duration
	GatewayConcurrency  int

	// Rate limiting: maximum gateway sends per second per notification type
	RateLimit int

	// Dispatch
	DailySchedule    string
	ScheduleTimezone string
	MaxBatchSize     int
	DeepLinkScheme   string
	DailyTitle       string

	LogLevel string
}

func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	file, err := readFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	l := loader{file: file}

	cfg := &Config{
		HTTPPort:           l.getEnv("HTTP_PORT", "8080"),
		ReadTimeout:        l.getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:       l.getDuration("WRITE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:    l.getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		CORSAllowedOrigins: l.getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CronSecret:         l.getEnv("CRON_SECRET", ""),

		StoreDriver:   strings.ToLower(l.getEnv("STORE_DRIVER", StorePostgres)),
		DatabaseURL:   l.getEnv("DATABASE_URL", ""),
		DBMaxConns:    int32(l.getInt("DB_MAX_CONNS", 10)),
		DBMinConns:    int32(l.getInt("DB_MIN_CONNS", 2)),
		BoltPath:      l.getEnv("BOLT_PATH", "data/tipcast.db"),
		MigrationsDir: l.getEnv("MIGRATIONS_DIR", "migrations"),

		Gateway:             strings.ToLower(l.getEnv("GATEWAY", GatewayFCM)),
		FirebaseProjectID:   l.getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseClientEmail: l.getEnv("FIREBASE_CLIENT_EMAIL", ""),
		FirebasePrivateKey:  l.getEnv("FIREBASE_PRIVATE_KEY", ""),
		FCMEndpoint:         l.getEnv("FCM_ENDPOINT", "https://fcm.googleapis.com"),
		FCMTokenURL:         l.getEnv("FCM_TOKEN_URL", "https://oauth2.googleapis.com/token"),
		WebhookURL:          l.getEnv("WEBHOOK_URL", ""),
		GatewayTimeout:      l.getDuration("GATEWAY_TIMEOUT", 10*time.Second),
		GatewayConcurrency:  l.getInt("GATEWAY_CONCURRENCY", 8),

		RateLimit: l.getInt("RATE_LIMIT", 50),

		DailySchedule:    l.getEnv("DAILY_SCHEDULE", "0 9 * * *"),
		ScheduleTimezone: l.getEnv("SCHEDULE_TIMEZONE", "UTC"),
		MaxBatchSize:     l.getInt("MAX_BATCH_SIZE", 5),
		DeepLinkScheme:   l.getEnv("DEEP_LINK_SCHEME", "healthtips"),
		DailyTitle:       l.getEnv("DAILY_TITLE", "🌟 A health tip for you"),

		LogLevel: l.getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected store and gateway have what they need.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for STORE_DRIVER=%s", StorePostgres)
		}
	case StoreBolt:
		if c.BoltPath == "" {
			return fmt.Errorf("BOLT_PATH is required for STORE_DRIVER=%s", StoreBolt)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.Gateway {
	case GatewayFCM:
		if c.FirebaseProjectID == "" || c.FirebaseClientEmail == "" || c.FirebasePrivateKey == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID, FIREBASE_CLIENT_EMAIL and FIREBASE_PRIVATE_KEY are required for GATEWAY=%s", GatewayFCM)
		}
	case GatewayWebhook:
		if c.WebhookURL == "" {
			return fmt.Errorf("WEBHOOK_URL is required for GATEWAY=%s", GatewayWebhook)
		}
	case GatewayLog:
	default:
		return fmt.Errorf("unknown GATEWAY %q", c.Gateway)
	}

	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("MAX_BATCH_SIZE must be positive, got %d", c.MaxBatchSize)
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("RATE_LIMIT must be positive, got %d", c.RateLimit)
	}
	if c.GatewayConcurrency <= 0 {
		c.GatewayConcurrency = 1
	}
	return nil
}

// Location resolves ScheduleTimezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ScheduleTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// readFile parses the optional YAML config file into upper-cased keys.
func readFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if list, ok := v.([]any); ok {
			parts := make([]string, len(list))
			for i, item := range list {
				parts[i] = fmt.Sprint(item)
			}
			out[strings.ToUpper(k)] = strings.Join(parts, ",")
			continue
		}
		out[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}

type loader struct {
	file map[string]string
}

func (l loader) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return l.file[key]
}

func (l loader) getEnv(key, defaultVal string) string {
	if v := l.lookup(key); v != "" {
		return v
	}
	return defaultVal
}

func (l loader) getInt(key string, defaultVal int) int {
	if v := l.lookup(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func (l loader) getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := l.lookup(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func (l loader) getList(key string, defaultVal []string) []string {
	v := l.lookup(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
