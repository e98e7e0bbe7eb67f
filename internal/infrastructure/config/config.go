package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Outbox    OutboxConfig
	Command   CommandConfig
	Bulk      BulkConfig
	Snapshot  SnapshotConfig
	Hold      HoldConfig
	Ledger    LedgerConfig
	Alert     AlertConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings. Redis backs the
// stock-level read cache and the ingest idempotency store; when
// disabled both fall back to their in-process implementations. A
// negative StockLevelTTL turns the level cache off altogether.
type RedisConfig struct {
	Enabled       bool
	Host          string
	Port          int
	Password      string
	DB            int
	KeyPrefix     string
	StockLevelTTL time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// OutboxConfig holds outbox publisher configuration
type OutboxConfig struct {
	PollingInterval time.Duration
	BatchSize       int
	RetentionDays   int
	MaxRetries      int
	CleanupInterval time.Duration
}

// CommandConfig holds the retry policy applied to commands that lose
// an optimistic-concurrency race. Delays grow exponentially from
// RetryBaseDelay, capped at RetryMaxDelay, with jitter.
type CommandConfig struct {
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
}

// BulkConfig holds bulk allocation settings
type BulkConfig struct {
	AllocationConcurrency int
}

// SnapshotConfig holds the snapshot scheduler settings. The cron specs
// are five-field expressions evaluated in the server's time zone.
// RetentionDays bounds how long non-year-end snapshots are kept; zero
// keeps them forever.
type SnapshotConfig struct {
	Daily         string
	Monthly       string
	YearEnd       string
	CheckInterval time.Duration
	RetentionDays int
}

// HoldConfig holds the hold expiry sweeper settings
type HoldConfig struct {
	ExpirySweepInterval time.Duration
}

// LedgerConfig holds ledger retention settings
type LedgerConfig struct {
	RetentionDays int
}

// AlertConfig holds low-stock alerting settings. The threshold is the
// available-to-promise floor; zero alerts only on full stockouts.
type AlertConfig struct {
	LowStockThreshold int64
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
	MaxBodySize     int64
	TrustedProxies  []string
}

// TelemetryConfig holds OpenTelemetry and continuous profiling configuration
type TelemetryConfig struct {
	Enabled             bool          // Whether to enable OpenTelemetry
	CollectorEndpoint   string        // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio       float64       // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName         string        // Service name for traces
	Insecure            bool          // Use insecure (non-TLS) connection (development only)
	ProfilingEnabled    bool          // Enable continuous profiling (Pyroscope)
	ProfilingEndpoint   string        // Pyroscope server address
	DBTraceEnabled      bool          // Enable database query tracing (otelgorm)
	MetricsInterval     time.Duration // Cadence for business gauge collection
	DeadStockWindowDays int           // No-movement window that classifies a SKU as dead stock
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with INVENTORY_ prefix (e.g., INVENTORY_DATABASE_PASSWORD)
// 2. config.toml (working directory, /app, or the file named by INVENTORY_CONFIG)
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	if path := os.Getenv("INVENTORY_CONFIG"); path != "" {
		v.SetConfigFile(path)
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("INVENTORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Build config struct
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:       v.GetBool("redis.enabled"),
			Host:          v.GetString("redis.host"),
			Port:          v.GetInt("redis.port"),
			Password:      v.GetString("redis.password"),
			DB:            v.GetInt("redis.db"),
			KeyPrefix:     v.GetString("redis.key_prefix"),
			StockLevelTTL: v.GetDuration("redis.stock_level_ttl"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Outbox: OutboxConfig{
			PollingInterval: v.GetDuration("outbox.polling_interval"),
			BatchSize:       v.GetInt("outbox.batch_size"),
			RetentionDays:   v.GetInt("outbox.retention_days"),
			MaxRetries:      v.GetInt("outbox.max_retries"),
			CleanupInterval: v.GetDuration("outbox.cleanup_interval"),
		},
		Command: CommandConfig{
			RetryMaxAttempts: v.GetInt("command.retry_max_attempts"),
			RetryBaseDelay:   v.GetDuration("command.retry_base_delay"),
			RetryMaxDelay:    v.GetDuration("command.retry_max_delay"),
		},
		Bulk: BulkConfig{
			AllocationConcurrency: v.GetInt("bulk.allocation_concurrency"),
		},
		Snapshot: SnapshotConfig{
			Daily:         v.GetString("snapshot.daily"),
			Monthly:       v.GetString("snapshot.monthly"),
			YearEnd:       v.GetString("snapshot.year_end"),
			CheckInterval: v.GetDuration("snapshot.check_interval"),
			RetentionDays: v.GetInt("snapshot.retention_days"),
		},
		Hold: HoldConfig{
			ExpirySweepInterval: v.GetDuration("hold.expiry_sweep_interval"),
		},
		Ledger: LedgerConfig{
			RetentionDays: v.GetInt("ledger.retention_days"),
		},
		Alert: AlertConfig{
			LowStockThreshold: v.GetInt64("alert.low_stock_threshold"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:  v.GetInt("http.max_header_bytes"),
			MaxBodySize:     v.GetInt64("http.max_body_size"),
			TrustedProxies:  v.GetStringSlice("http.trusted_proxies"),
		},
		Telemetry: TelemetryConfig{
			Enabled:             v.GetBool("telemetry.enabled"),
			CollectorEndpoint:   v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:       v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:         v.GetString("telemetry.service_name"),
			Insecure:            v.GetBool("telemetry.insecure"),
			ProfilingEnabled:    v.GetBool("telemetry.profiling_enabled"),
			ProfilingEndpoint:   v.GetString("telemetry.profiling_endpoint"),
			DBTraceEnabled:      v.GetBool("telemetry.db_trace_enabled"),
			MetricsInterval:     v.GetDuration("telemetry.metrics_interval"),
			DeadStockWindowDays: v.GetInt("telemetry.dead_stock_window_days"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "inventory-service"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "inventory"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "inventory"
	}
	if cfg.Redis.StockLevelTTL == 0 {
		cfg.Redis.StockLevelTTL = 5 * time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Outbox.PollingInterval == 0 {
		cfg.Outbox.PollingInterval = 5 * time.Second
	}
	if cfg.Outbox.BatchSize == 0 {
		cfg.Outbox.BatchSize = 100
	}
	if cfg.Outbox.RetentionDays == 0 {
		cfg.Outbox.RetentionDays = 30
	}
	if cfg.Outbox.MaxRetries == 0 {
		cfg.Outbox.MaxRetries = 5
	}
	if cfg.Outbox.CleanupInterval == 0 {
		cfg.Outbox.CleanupInterval = time.Hour
	}
	if cfg.Command.RetryMaxAttempts == 0 {
		cfg.Command.RetryMaxAttempts = 5
	}
	if cfg.Command.RetryBaseDelay == 0 {
		cfg.Command.RetryBaseDelay = 10 * time.Millisecond
	}
	if cfg.Command.RetryMaxDelay == 0 {
		cfg.Command.RetryMaxDelay = time.Second
	}
	if cfg.Bulk.AllocationConcurrency == 0 {
		cfg.Bulk.AllocationConcurrency = 8
	}
	if cfg.Snapshot.Daily == "" {
		cfg.Snapshot.Daily = "0 0 * * *"
	}
	if cfg.Snapshot.Monthly == "" {
		cfg.Snapshot.Monthly = "0 0 1 * *"
	}
	if cfg.Snapshot.YearEnd == "" {
		cfg.Snapshot.YearEnd = "0 0 31 12 *"
	}
	if cfg.Snapshot.CheckInterval == 0 {
		cfg.Snapshot.CheckInterval = time.Minute
	}
	if cfg.Snapshot.RetentionDays == 0 {
		cfg.Snapshot.RetentionDays = 365
	}
	if cfg.Hold.ExpirySweepInterval == 0 {
		cfg.Hold.ExpirySweepInterval = time.Minute
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 730
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB; bulk requests stay well under this
	}

	// Telemetry defaults
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0 // 100% in development
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "inventory-service"
	}
	if cfg.Telemetry.ProfilingEndpoint == "" {
		cfg.Telemetry.ProfilingEndpoint = "http://localhost:4040"
	}
	if cfg.Telemetry.MetricsInterval <= 0 {
		cfg.Telemetry.MetricsInterval = 5 * time.Minute
	}
	if cfg.Telemetry.DeadStockWindowDays <= 0 {
		cfg.Telemetry.DeadStockWindowDays = 90
	}
	// Note: Insecure defaults to false for safety (TLS enabled by default)
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	// Validate connection pool settings
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Outbox.BatchSize <= 0 {
		return fmt.Errorf("outbox.batch_size must be positive")
	}
	if c.Outbox.RetentionDays <= 0 {
		return fmt.Errorf("outbox.retention_days must be positive")
	}
	if c.Command.RetryMaxAttempts <= 0 {
		return fmt.Errorf("command.retry_max_attempts must be positive")
	}
	if c.Command.RetryBaseDelay > c.Command.RetryMaxDelay {
		return fmt.Errorf("command.retry_base_delay (%s) cannot exceed command.retry_max_delay (%s)",
			c.Command.RetryBaseDelay, c.Command.RetryMaxDelay)
	}
	if c.Bulk.AllocationConcurrency <= 0 {
		return fmt.Errorf("bulk.allocation_concurrency must be positive")
	}
	if c.Ledger.RetentionDays <= 0 {
		return fmt.Errorf("ledger.retention_days must be positive")
	}

	for _, spec := range []struct{ key, value string }{
		{"snapshot.daily", c.Snapshot.Daily},
		{"snapshot.monthly", c.Snapshot.Monthly},
		{"snapshot.year_end", c.Snapshot.YearEnd},
	} {
		if len(strings.Fields(spec.value)) != 5 {
			return fmt.Errorf("%s must be a five-field cron spec, got %q", spec.key, spec.value)
		}
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	// Validate telemetry configuration (all environments)
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

/// RedisAddr returns the host:port address for the Redis client
func (r *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
