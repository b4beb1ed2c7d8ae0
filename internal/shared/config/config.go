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

	// Logging
	LogLevel string

	// Kafka notification publishing
	Kafka KafkaConfig

	// Waitlist engine and scheduler
	Waitlist WaitlistConfig
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
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	Addr     string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	JWTExpiresIn     time.Duration
	RefreshExpiresIn time.Duration
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled              bool          `json:"enabled"`
	WindowDuration       time.Duration `json:"window_duration"`
	DefaultRequests      int           `json:"default_requests"`
	PublicRequests       int           `json:"public_requests"`
	WaitlistRequests     int           `json:"waitlist_requests"`
	WaitlistJoinRequests int           `json:"waitlist_join_requests"`
	AdminRequests        int           `json:"admin_requests"`
	HealthRequests       int           `json:"health_requests"`
	WhitelistedIPs       []string      `json:"whitelisted_ips"`
}

// KafkaConfig holds the notification producer configuration. No brokers
// means notifications are only logged.
type KafkaConfig struct {
	Brokers           []string
	NotificationTopic string
	RetryMax          int
	TimeoutMs         int
}

// WaitlistConfig holds admission engine and scheduler settings
type WaitlistConfig struct {
	DefaultResponseDeadlineHours int
	NotificationTimeout          time.Duration
	MaxSize                      int
	RetainRemoved                bool

	// LockBackend is "memory" for a single instance or "redis" when several
	// instances share the database
	LockBackend     string
	LockTTL         time.Duration
	LockWaitTimeout time.Duration

	ExpiryCheckInterval time.Duration
	ReminderInterval    time.Duration
	ReminderWindow      time.Duration
	RefillOnExpiry      bool
	StatsCacheTTL       time.Duration
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
			Name:     getEnv("DB_NAME", "waitline_db"),
			User:     getEnv("DB_USER", "waitline_user"),
			Password: getEnv("DB_PASSWORD", "waitline_password"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},

		// Redis configuration
		Redis: RedisConfig{
			Enabled:  getBoolEnv("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},

		// JWT configuration
		JWT: JWTConfig{
			Secret:           getEnv("JWT_SECRET", "your-super-secret-jwt-key"),
			JWTExpiresIn:     getDurationEnvSeconds("JWT_EXPIRES_IN", 15*time.Minute),
			RefreshExpiresIn: getDurationEnvSeconds("JWT_REFRESH_EXPIRES_IN", 24*time.Hour),
		},

		// Rate limiting
		RateLimit: RateLimitConfig{
			Enabled:              getBoolEnv("RATE_LIMIT_ENABLED", true),
			WindowDuration:       getDurationEnv("RATE_LIMIT_WINDOW_DURATION", 60*time.Second),
			DefaultRequests:      getIntEnv("RATE_LIMIT_DEFAULT_REQUESTS", 60),
			PublicRequests:       getIntEnv("RATE_LIMIT_PUBLIC_REQUESTS", 100),
			WaitlistRequests:     getIntEnv("RATE_LIMIT_WAITLIST_REQUESTS", 30),
			WaitlistJoinRequests: getIntEnv("RATE_LIMIT_WAITLIST_JOIN_REQUESTS", 10),
			AdminRequests:        getIntEnv("RATE_LIMIT_ADMIN_REQUESTS", 200),
			HealthRequests:       getIntEnv("RATE_LIMIT_HEALTH_REQUESTS", 300),
			WhitelistedIPs:       getStringSliceEnv("RATE_LIMIT_WHITELISTED_IPS", []string{}),
		},

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		// Kafka configuration
		Kafka: KafkaConfig{
			Brokers:           getStringSliceEnv("KAFKA_BROKERS", []string{}),
			NotificationTopic: getEnv("KAFKA_NOTIFICATION_TOPIC", "waitlist-notifications"),
			RetryMax:          getIntEnv("KAFKA_RETRY_MAX", 3),
			TimeoutMs:         getIntEnv("KAFKA_TIMEOUT_MS", 10000),
		},

		// Waitlist configuration
		Waitlist: WaitlistConfig{
			DefaultResponseDeadlineHours: getIntEnv("WAITLIST_DEFAULT_DEADLINE_HOURS", 24),
			NotificationTimeout:          getDurationEnv("WAITLIST_NOTIFICATION_TIMEOUT", 5*time.Second),
			MaxSize:                      getIntEnv("WAITLIST_MAX_SIZE", 0),
			RetainRemoved:                getBoolEnv("WAITLIST_RETAIN_REMOVED", false),
			LockBackend:                  getEnv("WAITLIST_LOCK_BACKEND", "memory"),
			LockTTL:                      getDurationEnv("WAITLIST_LOCK_TTL", 10*time.Second),
			LockWaitTimeout:              getDurationEnv("WAITLIST_LOCK_WAIT_TIMEOUT", 5*time.Second),
			ExpiryCheckInterval:          getDurationEnv("WAITLIST_EXPIRY_INTERVAL", 1*time.Minute),
			ReminderInterval:             getDurationEnv("WAITLIST_REMINDER_INTERVAL", 5*time.Minute),
			ReminderWindow:               getDurationEnv("WAITLIST_REMINDER_WINDOW", 2*time.Hour),
			RefillOnExpiry:               getBoolEnv("WAITLIST_REFILL_ON_EXPIRY", true),
			StatsCacheTTL:                getDurationEnv("WAITLIST_STATS_CACHE_TTL", 30*time.Second),
		},
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

// getDurationEnv gets a duration environment variable with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}

// getDurationEnvSeconds gets an environment variable as seconds (int) and converts to time.Duration
func getDurationEnvSeconds(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
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
