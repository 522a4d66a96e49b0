package internal

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env           string              `mapstructure:"env"`
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security"`
	Session       SessionConfig       `mapstructure:"session"`
	Redis         RedisConfig         `mapstructure:"redis"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Events        EventsConfig        `mapstructure:"events"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

// Origins splits the comma separated AllowedOrigins value.
func (s ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(s.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	JWTIssuer  string        `mapstructure:"jwt_issuer"`
	JWTTTL     time.Duration `mapstructure:"jwt_ttl"`
	BCryptCost int           `mapstructure:"bcrypt_cost"`

	// PasswordMinLength is the shortest password accepted at registration
	// and password change.
	PasswordMinLength int `mapstructure:"password_min_length"`
}

// SessionConfig drives session lifetime, the per-user concurrency cap and housekeeping.
type SessionConfig struct {
	TTL                         time.Duration `mapstructure:"ttl"`
	RememberMeTTL               time.Duration `mapstructure:"remember_me_ttl"`
	MaxConcurrent               int           `mapstructure:"max_concurrent"`
	EnforceOnCreate             bool          `mapstructure:"enforce_on_create"`
	RetentionDays               int           `mapstructure:"retention_days"`
	CleanupSchedule             string        `mapstructure:"cleanup_schedule"`
	PurgeSchedule               string        `mapstructure:"purge_schedule"`
	HousekeepingInServer        bool          `mapstructure:"housekeeping_in_server"`
	SuspiciousCreationThreshold int           `mapstructure:"suspicious_creation_threshold"`
	SuspiciousActiveThreshold   int           `mapstructure:"suspicious_active_threshold"`
	CookieName                  string        `mapstructure:"cookie_name"`
	CookieDomain                string        `mapstructure:"cookie_domain"`
	CookieSecure                bool          `mapstructure:"cookie_secure"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Window      time.Duration `mapstructure:"window"`
	KeyPrefix   string        `mapstructure:"key_prefix"`

	// TrustedProxies lists comma separated CIDRs or addresses whose
	// X-Forwarded-For header is believed. Empty means key on RemoteAddr.
	TrustedProxies string `mapstructure:"trusted_proxies"`
}

// Proxies splits the comma separated TrustedProxies value.
func (c RateLimitConfig) Proxies() []string {
	var out []string
	for _, p := range strings.Split(c.TrustedProxies, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type EventsConfig struct {
	AMQPURL string `mapstructure:"amqp_url"`
	Queue   string `mapstructure:"queue"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ApplyDefaults fills zero values so a partially populated config is usable.
func (c *Config) ApplyDefaults() {
	if c.Env == "" {
		c.Env = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = 5 * time.Second
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Security.JWTIssuer == "" {
		c.Security.JWTIssuer = "admin-dashboard"
	}
	if c.Security.JWTTTL == 0 {
		c.Security.JWTTTL = 24 * time.Hour
	}
	if c.Security.BCryptCost == 0 {
		c.Security.BCryptCost = 12
	}
	if c.Security.PasswordMinLength == 0 {
		c.Security.PasswordMinLength = 5
	}
	c.Session.applyDefaults()
	if c.RateLimit.MaxAttempts == 0 {
		c.RateLimit.MaxAttempts = 5
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = 15 * time.Minute
	}
	if c.RateLimit.KeyPrefix == "" {
		c.RateLimit.KeyPrefix = "login_attempts"
	}
	if c.Events.Queue == "" {
		c.Events.Queue = "auth.events"
	}
	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
}

func (c *SessionConfig) applyDefaults() {
	if c.TTL == 0 {
		c.TTL = 24 * time.Hour
	}
	if c.RememberMeTTL == 0 {
		c.RememberMeTTL = 30 * 24 * time.Hour
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 5
	}
	if c.RetentionDays == 0 {
		c.RetentionDays = 30
	}
	if c.CleanupSchedule == "" {
		c.CleanupSchedule = "@hourly"
	}
	if c.PurgeSchedule == "" {
		c.PurgeSchedule = "@daily"
	}
	if c.SuspiciousCreationThreshold == 0 {
		c.SuspiciousCreationThreshold = 10
	}
	if c.SuspiciousActiveThreshold == 0 {
		c.SuspiciousActiveThreshold = 5
	}
	if c.CookieName == "" {
		c.CookieName = "session_token"
	}
}

// DefaultConfig returns a config with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{Session: SessionConfig{EnforceOnCreate: true}}
	cfg.ApplyDefaults()
	return cfg
}

// LoadConfigFromEnv builds the config for container deployments where no config file is mounted.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Env: getEnv("APP_ENV", "production"),
		Server: ServerConfig{
			Port:           getEnvAsInt("PORT", 8080),
			BaseURL:        getEnv("BASE_URL", ""),
			AllowedOrigins: getEnv("ALLOWED_ORIGINS", ""),
		},
		Database: DatabaseConfig{
			Source:       getEnv("DATABASE_URL", ""),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		},
		Security: SecurityConfig{
			JWTSecret:  getEnv("JWT_SECRET", ""),
			JWTIssuer:  getEnv("JWT_ISSUER", "admin-dashboard"),
			JWTTTL:     getEnvAsDuration("JWT_TTL", 24*time.Hour),
			BCryptCost: getEnvAsInt("BCRYPT_COST", 12),

			PasswordMinLength: getEnvAsInt("PASSWORD_MIN_LENGTH", 5),
		},
		Session: SessionConfig{
			TTL:                  getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			MaxConcurrent:        getEnvAsInt("SESSION_MAX_CONCURRENT", 5),
			EnforceOnCreate:      getEnvAsBool("SESSION_ENFORCE_ON_CREATE", true),
			RetentionDays:        getEnvAsInt("SESSION_RETENTION_DAYS", 30),
			HousekeepingInServer: getEnvAsBool("SESSION_HOUSEKEEPING_IN_SERVER", false),
			CookieDomain:         getEnv("SESSION_COOKIE_DOMAIN", ""),
			CookieSecure:         getEnvAsBool("SESSION_COOKIE_SECURE", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:     getEnvAsBool("RATE_LIMIT_ENABLED", true),
			MaxAttempts: getEnvAsInt("RATE_LIMIT_MAX_ATTEMPTS", 5),
			Window:      getEnvAsDuration("RATE_LIMIT_WINDOW", 15*time.Minute),

			TrustedProxies: getEnv("RATE_LIMIT_TRUSTED_PROXIES", ""),
		},
		Events: EventsConfig{
			AMQPURL: getEnv("AMQP_URL", ""),
			Queue:   getEnv("AMQP_QUEUE", "auth.events"),
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{Enabled: getEnvAsBool("METRICS_ENABLED", true)},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Session.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("session config: %v", err))
	}

	if err := c.RateLimit.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("rate limit config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.JWTSecret) < 32 {
		return errors.New("jwt_secret must be at least 32 characters")
	}
	if c.BCryptCost < 4 || c.BCryptCost > 31 {
		return fmt.Errorf("bcrypt_cost %d out of range 4..31", c.BCryptCost)
	}
	if c.JWTTTL < 0 {
		return errors.New("jwt_ttl must not be negative")
	}
	if c.PasswordMinLength < 1 || c.PasswordMinLength > 72 {
		return fmt.Errorf("password_min_length %d out of range 1..72", c.PasswordMinLength)
	}
	return nil
}

func (c *SessionConfig) Validate() error {
	if c.TTL <= 0 {
		return errors.New("ttl must be positive")
	}
	if c.MaxConcurrent < 1 {
		return errors.New("max_concurrent must be at least 1")
	}
	if c.RetentionDays < 1 {
		return errors.New("retention_days must be at least 1")
	}
	if c.CookieName == "" {
		return errors.New("cookie_name is required")
	}
	return nil
}

func (c *RateLimitConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.MaxAttempts < 1 {
		return errors.New("max_attempts must be at least 1")
	}
	if c.Window <= 0 {
		return errors.New("window must be positive")
	}
	for _, p := range c.Proxies() {
		if _, err := netip.ParsePrefix(p); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(p); err != nil {
			return fmt.Errorf("trusted_proxies: %q is neither an address nor a CIDR", p)
		}
	}
	return nil
}
