package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	// Server configuration
	Port           string
	GinMode        string
	APIVersion     string
	APIPrefix      string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// JWT configuration
	JWT JWTConfig

	// Rate limiting
	RateLimit RateLimitConfig

	// Kafka order events
	Kafka KafkaConfig

	// Selection sessions
	Selection SelectionConfig

	// Order submission queue
	Queue QueueConfig

	// Notification center
	Notifications NotificationConfig

	// Logging
	LogLevel string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	DSN      string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Addr     string

	// Selection snapshots expire after SessionTTL of inactivity
	SessionTTL    time.Duration
	SubmissionTTL time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret     string
	AgentClaim string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool          `json:"enabled"`
	WindowDuration    time.Duration `json:"window_duration"`
	DefaultRequests   int           `json:"default_requests"`
	SelectionRequests int           `json:"selection_requests"`
	SubmitRequests    int           `json:"submit_requests"`
	HealthRequests    int           `json:"health_requests"`
	WhitelistedIPs    []string      `json:"whitelisted_ips"`
}

// KafkaConfig holds the order event producer configuration
type KafkaConfig struct {
	Enabled  bool
	Brokers  []string
	Topic    string
	ClientID string
}

// SelectionConfig holds per-session store settings
type SelectionConfig struct {
	RemoteLatency     time.Duration
	RemoteFailureRate float64
	OperationTTL      time.Duration
	MaxManualAttempts int
	OptimisticGrace   time.Duration
	CacheTTL          time.Duration

	MaxRooms     int
	MaxExtras    int
	MaxTotal     float64
	PriceCeiling float64

	// ExtraConflicts maps an extra to the extras it cannot be booked with
	ExtraConflicts map[string][]string
	// RoomCatalog maps catalog room names to canonical room types
	RoomCatalog map[string]string
}

// QueueConfig holds OperationQueue settings
type QueueConfig struct {
	ProcessingDelay time.Duration
	BatchSize       int
	MaxRetries      int
	BaseBackoff     time.Duration
	MaxBackoff      time.Duration
}

// NotificationConfig holds NotificationCenter settings
type NotificationConfig struct {
	BatchDelay      time.Duration
	MaxVisible      int
	DedupWindow     time.Duration
	MaxGroupSize    int
	DefaultDuration time.Duration
	HistorySize     int
}

// Load loads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		// Server configuration
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		APIVersion:     getEnv("API_VERSION", "v1"),
		APIPrefix:      getEnv("API_PREFIX", "/api"),
		ReadTimeout:    getDurationEnv("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:   getDurationEnv("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:    getDurationEnv("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes: getIntEnv("MAX_HEADER_BYTES", 1<<20), // 1 MB

		// Database configuration
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", "upsell_db"),
			User:     getEnv("DB_USER", "upsell_user"),
			Password: getEnv("DB_PASSWORD", "upsell_password"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},

		// Redis configuration
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),

			SessionTTL:    getDurationEnv("REDIS_SESSION_TTL", 2*time.Hour),
			SubmissionTTL: getDurationEnv("REDIS_SUBMISSION_TTL", 30*time.Minute),
		},

		// JWT configuration
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "your-super-secret-jwt-key"),
			AgentClaim: getEnv("JWT_AGENT_CLAIM", "agent"),
		},

		// Rate limiting
		RateLimit: RateLimitConfig{
			Enabled:           getBoolEnv("RATE_LIMIT_ENABLED", true),
			WindowDuration:    getDurationEnv("RATE_LIMIT_WINDOW_DURATION", 60*time.Second),
			DefaultRequests:   getIntEnv("RATE_LIMIT_DEFAULT_REQUESTS", 60),
			SelectionRequests: getIntEnv("RATE_LIMIT_SELECTION_REQUESTS", 120),
			SubmitRequests:    getIntEnv("RATE_LIMIT_SUBMIT_REQUESTS", 10),
			HealthRequests:    getIntEnv("RATE_LIMIT_HEALTH_REQUESTS", 300),
			WhitelistedIPs:    getStringSliceEnv("RATE_LIMIT_WHITELISTED_IPS", []string{}),
		},

		Kafka: KafkaConfig{
			Enabled:  getBoolEnv("KAFKA_ENABLED", false),
			Brokers:  getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:    getEnv("KAFKA_ORDERS_TOPIC", "upsell.orders"),
			ClientID: getEnv("KAFKA_CLIENT_ID", "upsell-orders"),
		},

		Selection: SelectionConfig{
			RemoteLatency:     getDurationEnv("SELECTION_REMOTE_LATENCY", 300*time.Millisecond),
			RemoteFailureRate: getFloatEnv("SELECTION_REMOTE_FAILURE_RATE", 0.1),
			OperationTTL:      getDurationEnv("SELECTION_OPERATION_TTL", 5*time.Second),
			MaxManualAttempts: getIntEnv("SELECTION_MAX_MANUAL_ATTEMPTS", 3),
			OptimisticGrace:   getDurationEnv("SELECTION_OPTIMISTIC_GRACE", time.Second),
			CacheTTL:          getDurationEnv("SMART_CACHE_TTL", 30*time.Second),

			MaxRooms:     getPositiveIntEnv("SELECTION_MAX_ROOMS", 5),
			MaxExtras:    getPositiveIntEnv("SELECTION_MAX_EXTRAS", 10),
			MaxTotal:     getPositiveFloatEnv("SELECTION_MAX_TOTAL", 50000),
			PriceCeiling: getPositiveFloatEnv("SELECTION_PRICE_CEILING", 10000),

			ExtraConflicts: getPairsEnv("EXTRA_CONFLICTS",
				"Early Check-in:Late Check-out;Private Spa Session:Group Spa Package"),
			RoomCatalog: getMapEnv("ROOM_CATALOG", ""),
		},

		Queue: QueueConfig{
			ProcessingDelay: getDurationEnv("QUEUE_PROCESSING_DELAY", 100*time.Millisecond),
			BatchSize:       getIntEnv("QUEUE_BATCH_SIZE", 3),
			MaxRetries:      getIntEnv("QUEUE_MAX_RETRIES", 3),
			BaseBackoff:     getDurationEnv("QUEUE_BASE_BACKOFF", time.Second),
			MaxBackoff:      getDurationEnv("QUEUE_MAX_BACKOFF", 10*time.Second),
		},

		Notifications: NotificationConfig{
			BatchDelay:      getDurationEnv("NOTIFICATION_BATCH_DELAY", 150*time.Millisecond),
			MaxVisible:      getIntEnv("NOTIFICATION_MAX_VISIBLE", 3),
			DedupWindow:     getDurationEnv("NOTIFICATION_DEDUP_WINDOW", 2*time.Second),
			MaxGroupSize:    getIntEnv("NOTIFICATION_MAX_GROUP_SIZE", 5),
			DefaultDuration: getDurationEnv("NOTIFICATION_DEFAULT_DURATION", 4*time.Second),
			HistorySize:     getIntEnv("NOTIFICATION_HISTORY_SIZE", 50),
		},

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "debug"),
	}

	// Build composite values
	cfg.Database.DSN = buildDatabaseDSN(cfg.Database)
	cfg.Redis.Addr = cfg.Redis.Host + ":" + cfg.Redis.Port

	return cfg
}

// buildDatabaseDSN builds the database connection string
func buildDatabaseDSN(db DatabaseConfig) string {
	return "host=" + db.Host +
		" port=" + db.Port +
		" user=" + db.User +
		" password=" + db.Password +
		" dbname=" + db.Name +
		" sslmode=" + db.SSLMode
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}

// getFloatEnv gets a float environment variable with a fallback value
func getFloatEnv(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getPositiveIntEnv is getIntEnv for caps, where zero or less means unset
func getPositiveIntEnv(key string, fallback int) int {
	if v := getIntEnv(key, fallback); v > 0 {
		return v
	}
	return fallback
}

func getPositiveFloatEnv(key string, fallback float64) float64 {
	if v := getFloatEnv(key, fallback); v > 0 {
		return v
	}
	return fallback
}

// getDurationEnv gets a duration environment variable with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}

// getStringSliceEnv gets a comma-separated string environment variable as a slice
func getStringSliceEnv(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// getPairsEnv parses "a:b,c;d:e" into a -> [b c], d -> [e]
func getPairsEnv(key, fallback string) map[string][]string {
	out := make(map[string][]string)
	for _, entry := range strings.Split(getEnv(key, fallback), ";") {
		name, others, ok := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		for _, other := range strings.Split(others, ",") {
			if trimmed := strings.TrimSpace(other); trimmed != "" {
				out[name] = append(out[name], trimmed)
			}
		}
	}
	return out
}

// getMapEnv parses "name=value;name=value"
func getMapEnv(key, fallback string) map[string]string {
	out := make(map[string]string)
	for _, entry := range strings.Split(getEnv(key, fallback), ";") {
		name, value, ok := strings.Cut(entry, "=")
		name, value = strings.TrimSpace(name), strings.TrimSpace(value)
		if ok && name != "" && value != "" {
			out[name] = value
		}
	}
	return out
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GinMode == "debug"
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return ":" + c.Port
}

// GetAPIBasePath returns the API base path
func (c *Config) GetAPIBasePath() string {
	return c.APIPrefix + "/" + c.APIVersion
}
