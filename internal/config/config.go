package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds every application setting
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Google   GoogleOAuthConfig
	Session  SessionConfig
	Email    EmailConfig
	Uploads  UploadsConfig
	CORS     CORSConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string `mapstructure:"migrations_path"`
}

// RedisConfig holds the unified Redis connection settings.
// Supported modes: single, sentinel, cluster.
type RedisConfig struct {
	// Mode is one of "single", "sentinel", "cluster". Defaults to "single".
	Mode string `mapstructure:"mode"`

	// Addrs lists host:port pairs. In single mode the first one is used.
	Addrs []string `mapstructure:"addrs"`

	// Addr is the single-mode address, used when Addrs is empty.
	Addr string `mapstructure:"addr"`

	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	MasterName string `mapstructure:"master_name"`

	MaxRetries int `mapstructure:"max_retries"`

	// MinRetryBackoff and MaxRetryBackoff are in milliseconds.
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`
}

// GoogleOAuthConfig holds the Google OAuth2 client registration.
// ClientID, ClientSecret and RedirectURI are required at startup.
type GoogleOAuthConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`

	// Endpoint overrides. Empty values fall back to Google's public endpoints.
	AuthURL     string `mapstructure:"auth_url"`
	TokenURL    string `mapstructure:"token_url"`
	UserInfoURL string `mapstructure:"userinfo_url"`
	JWKSURL     string `mapstructure:"jwks_url"`

	// RequestTimeout bounds every outbound provider call.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SessionConfig holds session cookie and lifetime settings
type SessionConfig struct {
	CookieName    string        `mapstructure:"cookie_name"`
	Secret        string        `mapstructure:"secret"`
	EncryptionKey string        `mapstructure:"encryption_key"`
	TTL           time.Duration `mapstructure:"ttl"`
	StateTTL      time.Duration `mapstructure:"state_ttl"`
	Secure        bool          `mapstructure:"secure"`
}

// EmailConfig holds Resend settings for complainant notifications.
// An empty APIKey disables outbound email.
type EmailConfig struct {
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
}

// UploadsConfig holds complaint photo storage settings
type UploadsConfig struct {
	Dir          string `mapstructure:"dir"`
	MaxSizeBytes int64  `mapstructure:"max_size_bytes"`
}

// CORSConfig lists origins allowed to call the API with credentials
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// PostgresConnectionString builds the PostgreSQL DSN
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load reads the configuration file (optional) and the bound environment
// variables, then validates the result.
func Load(configPath string) (*Config, error) {
	cfg, err := read(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabase reads the configuration but only requires the database
// settings. The migration tool uses it.
func LoadDatabase(configPath string) (*DatabaseConfig, error) {
	cfg, err := read(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Database.validate(); err != nil {
		return nil, err
	}
	return &cfg.Database, nil
}

func read(configPath string) (*Config, error) {
	vip := viper.New() // separate instance, no global state

	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.readtimeout", 15)
	vip.SetDefault("server.writetimeout", 15)
	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("database.migrations_path", "file://migrations")
	vip.SetDefault("redis.mode", "single")
	vip.SetDefault("google.request_timeout", 10*time.Second)
	vip.SetDefault("session.cookie_name", "complaint_session")
	vip.SetDefault("session.ttl", 24*time.Hour)
	vip.SetDefault("session.state_ttl", 10*time.Minute)
	vip.SetDefault("uploads.dir", "uploads")
	vip.SetDefault("uploads.max_size_bytes", 5<<20)

	// Database
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")
	vip.BindEnv("database.migrations_path", "DATABASE_MIGRATIONS_PATH")

	// Redis
	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	// Google OAuth
	vip.BindEnv("google.client_id", "GOOGLE_OAUTH_CLIENT_ID")
	vip.BindEnv("google.client_secret", "GOOGLE_OAUTH_CLIENT_SECRET")
	vip.BindEnv("google.redirect_uri", "GOOGLE_OAUTH_REDIRECT_URI")
	vip.BindEnv("google.request_timeout", "GOOGLE_OAUTH_REQUEST_TIMEOUT")

	// Session
	vip.BindEnv("session.secret", "SESSION_SECRET")
	vip.BindEnv("session.encryption_key", "SESSION_ENCRYPTION_KEY")
	vip.BindEnv("session.ttl", "SESSION_TTL")
	vip.BindEnv("session.state_ttl", "SESSION_STATE_TTL")
	vip.BindEnv("session.secure", "SESSION_SECURE")

	// Email
	vip.BindEnv("email.resend_api_key", "RESEND_API_KEY")
	vip.BindEnv("email.from", "EMAIL_FROM")

	// Server
	vip.BindEnv("server.port", "SERVER_PORT")
	vip.BindEnv("uploads.dir", "UPLOADS_DIR")
	vip.BindEnv("uploads.max_size_bytes", "UPLOADS_MAX_SIZE_BYTES")
	vip.BindEnv("cors.allow_origins", "CORS_ALLOW_ORIGINS")

	if configPath != "" {
		vip.SetConfigFile(configPath)
		// A missing file is fine: env vars and defaults still apply.
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
				log.Printf("[Config] file '%s' not found, using environment and defaults", configPath)
			} else {
				log.Printf("[Config] warning: failed to read config file '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Loaded configuration ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Mode: %s", cfg.Redis.Mode)
		log.Printf("Google Client ID Set: %t", cfg.Google.ClientID != "")
		log.Printf("Google Redirect URI: %s", cfg.Google.RedirectURI)
		log.Printf("Session TTL: %s, State TTL: %s", cfg.Session.TTL, cfg.Session.StateTTL)
		log.Printf("Email Enabled: %t", cfg.Email.ResendAPIKey != "")
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("----------------------------")
	}

	return &cfg, nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if c.Google.ClientID == "" || c.Google.ClientSecret == "" || c.Google.RedirectURI == "" {
		return fmt.Errorf("google oauth configuration (client_id, client_secret, redirect_uri) is incomplete (check GOOGLE_OAUTH_CLIENT_ID, GOOGLE_OAUTH_CLIENT_SECRET, GOOGLE_OAUTH_REDIRECT_URI env vars)")
	}
	if err := c.Database.validate(); err != nil {
		return err
	}
	if len(c.Session.Secret) < 32 {
		return fmt.Errorf("session secret must be at least 32 bytes (check SESSION_SECRET env var)")
	}
	if n := len(c.Session.EncryptionKey); n != 0 && n != 16 && n != 24 && n != 32 {
		return fmt.Errorf("session encryption key must be 16, 24 or 32 bytes (check SESSION_ENCRYPTION_KEY env var)")
	}
	if c.Session.StateTTL <= 0 {
		return fmt.Errorf("session state_ttl must be positive")
	}
	if c.Email.ResendAPIKey != "" && c.Email.From == "" {
		return fmt.Errorf("email from is required when RESEND_API_KEY is set (check EMAIL_FROM env var)")
	}
	return nil
}

func (d *DatabaseConfig) validate() error {
	if d.Host == "" || d.DBName == "" || d.User == "" {
		return fmt.Errorf("database configuration (host, dbname, user) is incomplete (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	return nil
}
