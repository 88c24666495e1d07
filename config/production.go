// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/url-shortener/utils"
)

// ProductionConfig holds all configuration for the service. It is built once at startup and not mutated.
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	JWT        JWTConfig        `json:"jwt"`
	Shortener  ShortenerConfig  `json:"shortener"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Deployment DeploymentConfig `json:"deployment"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
	AutoMigrate     bool          `json:"auto_migrate"`
}

// DSN returns the key/value connection string used by the gorm postgres driver
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// URL returns the postgres:// form used by the migration runner
func (d DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	BodyLimit       int           `json:"body_limit"`
}

// Address returns host:port for the listener
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type SecurityConfig struct {
	AllowedOrigins []string `json:"allowed_origins"`
	BcryptCost     int      `json:"bcrypt_cost"`
}

type JWTConfig struct {
	SecretKey  string `json:"secret_key"`
	PrivateKey string `json:"private_key"`  // RSA private key in PEM format
	PublicKey  string `json:"public_key"`   // RSA public key in PEM format
	UseRSAKeys bool   `json:"use_rsa_keys"` // Whether to use RSA keys instead of secret key
	Issuer     string `json:"issuer"`
	Audience   string `json:"audience"`
}

type ShortenerConfig struct {
	// BaseURL prefixes every alias in returned short URLs
	BaseURL        string `json:"base_url"`
	AllowAnonymous bool   `json:"allow_anonymous"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Format     string `json:"format"` // json, console
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`

	EnableCaller    bool `json:"enable_caller"`
	EnableAccessLog bool `json:"enable_access_log"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled        bool          `json:"enabled"`
	RedisURL       string        `json:"redis_url"`
	RedisDB        int           `json:"redis_db"`
	RedisPassword  string        `json:"redis_password"`
	RedisPrefix    string        `json:"redis_prefix"`
	DefaultTTL     time.Duration `json:"default_ttl"`
	HealthInterval time.Duration `json:"health_interval"`
}

type DeploymentConfig struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
	EnableDocs  bool   `json:"enable_docs"`
}

// IsDevelopment reports whether the service runs in a local or development environment
func (d DeploymentConfig) IsDevelopment() bool {
	return d.Environment == "development" || d.Environment == "local"
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "url_shortener"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 500*time.Millisecond),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 1*1024*1024), // 1MB
		},
		Security: SecurityConfig{
			AllowedOrigins: getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			BcryptCost:     getEnvInt("BCRYPT_COST", utils.BcryptCost),
		},
		JWT: JWTConfig{
			SecretKey:  getEnvString("JWT_SECRET_KEY", ""),
			PrivateKey: getEnvString("JWT_PRIVATE_KEY", ""),
			PublicKey:  getEnvString("JWT_PUBLIC_KEY", ""),
			UseRSAKeys: getEnvBool("JWT_USE_RSA_KEYS", false),
			Issuer:     getEnvString("JWT_ISSUER", "url-shortener"),
			Audience:   getEnvString("JWT_AUDIENCE", "url-shortener-api"),
		},
		Shortener: ShortenerConfig{
			BaseURL:        strings.TrimRight(getEnvString("BASE_URL", ""), "/"),
			AllowAnonymous: getEnvBool("SHORTENER_ALLOW_ANONYMOUS", false),
		},
		Logging: LoggingConfig{
			Level:           getEnvString("LOG_LEVEL", "info"),
			Format:          getEnvString("LOG_FORMAT", "json"),
			Output:          getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:        getEnvString("LOG_FILE_PATH", "/var/log/url-shortener/app.log"),
			MaxSize:         getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:      getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:          getEnvInt("LOG_MAX_AGE", 30),
			Compress:        getEnvBool("LOG_COMPRESS", true),
			EnableCaller:    getEnvBool("LOG_ENABLE_CALLER", false),
			EnableAccessLog: getEnvBool("LOG_ENABLE_ACCESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:        getEnvBool("CACHE_ENABLED", false),
			RedisURL:       getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:        getEnvInt("CACHE_REDIS_DB", 0),
			RedisPassword:  getEnvString("REDIS_PASSWORD", ""),
			RedisPrefix:    getEnvString("CACHE_REDIS_PREFIX", "url-shortener:"),
			DefaultTTL:     getEnvDuration("CACHE_DEFAULT_TTL", 10*time.Minute),
			HealthInterval: getEnvDuration("CACHE_HEALTH_INTERVAL", 30*time.Second),
		},
		Deployment: DeploymentConfig{
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
			EnableDocs:  getEnvBool("ENABLE_DOCS", true),
		},
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from the .env file (or ENV_FILE) if it exists.
// Variables already set in the process environment win.
func loadEnvFile() error {
	envFile := getEnvString("ENV_FILE", ".env")

	// Check if .env file exists
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		// .env file doesn't exist, continue with environment variables
		return nil
	}

	// Open .env file
	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	// Read file line by line
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key=value pairs
		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])

				// Remove quotes if present
				if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
					(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
					value = value[1 : len(value)-1]
				}

				// Set environment variable if not already set
				if os.Getenv(key) == "" {
					os.Setenv(key, value)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		// Use standard library strings.Split and strings.TrimSpace
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the configuration and reports every problem at once
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}

	// Validate JWT configuration
	if cfg.JWT.UseRSAKeys {
		if cfg.JWT.PrivateKey == "" || cfg.JWT.PublicKey == "" {
			errors = append(errors, "JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required when JWT_USE_RSA_KEYS is set")
		}
	} else {
		if cfg.JWT.SecretKey == "" {
			errors = append(errors, "JWT_SECRET_KEY is required")
		} else if len(cfg.JWT.SecretKey) < 32 {
			errors = append(errors, "JWT_SECRET_KEY must be at least 32 characters long")
		}
	}
	if cfg.JWT.Issuer == "" {
		errors = append(errors, "JWT_ISSUER is required")
	}
	if cfg.JWT.Audience == "" {
		errors = append(errors, "JWT_AUDIENCE is required")
	}

	// Validate shortener configuration
	if cfg.Shortener.BaseURL == "" {
		errors = append(errors, "BASE_URL is required")
	} else if u, err := url.Parse(cfg.Shortener.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors = append(errors, "BASE_URL must be an absolute http(s) URL")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.IdleTimeout <= 0 {
		errors = append(errors, "SERVER_IDLE_TIMEOUT must be positive")
	}

	// Validate security configuration
	if cfg.Security.BcryptCost < 10 || cfg.Security.BcryptCost > 14 {
		errors = append(errors, "BCRYPT_COST must be between 10 and 14")
	}

	// Validate logging configuration
	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, cfg.Logging.Level) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
	}
	validOutputs := []string{"stdout", "file", "both"}
	if !slices.Contains(validOutputs, cfg.Logging.Output) {
		errors = append(errors, fmt.Sprintf("LOG_OUTPUT must be one of: %v", validOutputs))
	}
	if cfg.Logging.Output != "stdout" && cfg.Logging.FilePath == "" {
		errors = append(errors, "LOG_FILE_PATH is required when logging to a file")
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled {
		if cfg.Cache.RedisURL == "" {
			errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled")
		}
		if cfg.Cache.DefaultTTL <= 0 {
			errors = append(errors, "CACHE_DEFAULT_TTL must be positive")
		}
	}

	// Return validation errors if any
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
