package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	defaultAppName         = "wallet-engine"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultRequestTimeout  = 10 * time.Second
	defaultNotifyChannel   = "wallet.transactions"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	requestTimeoutEnvVar   = "REQUEST_TIMEOUT"
)

// Config captures application runtime configuration. Values come from the
// environment, an optional .env file and an optional CONFIG_FILE, in that order of precedence.
type Config struct {
	AppName            string `valid:"required"`
	AppEnv             string `valid:"required"`
	Port               string `valid:"required"`
	LogLevel           string `valid:"in(debug|info|warn|error)"`
	DatabaseURL        string
	RedisURL           string
	AutoMigrate        bool
	ShutdownPeriod     time.Duration
	RequestTimeout     time.Duration
	RateLimitPerMinute int
	NotifyChannel      string `valid:"required"`

	MinDeposit        decimal.Decimal `valid:"-"`
	MaxDeposit        decimal.Decimal `valid:"-"`
	MinWithdrawal     decimal.Decimal `valid:"-"`
	MaxWithdrawal     decimal.Decimal `valid:"-"`
	DoubleSubmitGuard time.Duration
	DefaultPageSize   int
	MaxPageSize       int
	ConflictRetries   int
	IsolationLevel    string `valid:"in(repeatable_read|serializable)"`
}

// Load reads configuration values and populates a Config instance.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := Config{
		AppName:        v.GetString("app_name"),
		AppEnv:         strings.ToLower(v.GetString("app_env")),
		Port:           v.GetString("port"),
		LogLevel:       strings.ToLower(v.GetString("log_level")),
		DatabaseURL:    v.GetString("database_url"),
		RedisURL:       v.GetString("redis_url"),
		ShutdownPeriod: defaultShutdownDelay,
		RequestTimeout: defaultRequestTimeout,
		NotifyChannel:  v.GetString("notify_channel"),
		IsolationLevel: strings.ToLower(v.GetString("isolation_level")),
	}

	var err error
	if cfg.AutoMigrate, err = strconv.ParseBool(v.GetString("auto_migrate")); err != nil {
		return Config{}, fmt.Errorf("invalid AUTO_MIGRATE: %w", err)
	}

	if s := v.GetString(shutdownSecondsEnvVar); s != "" {
		seconds, err := strconv.Atoi(s)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if s := v.GetString(shutdownDurationEnvVar); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	if s := v.GetString(requestTimeoutEnvVar); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", requestTimeoutEnvVar, err)
		}
		cfg.RequestTimeout = d
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"RATE_LIMIT_PER_MINUTE", &cfg.RateLimitPerMinute},
		{"DEFAULT_PAGE_SIZE", &cfg.DefaultPageSize},
		{"MAX_PAGE_SIZE", &cfg.MaxPageSize},
		{"CONFLICT_RETRIES", &cfg.ConflictRetries},
	}
	for _, f := range ints {
		if *f.dst, err = strconv.Atoi(v.GetString(f.key)); err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", f.key, err)
		}
	}

	guardSeconds, err := strconv.Atoi(v.GetString("DOUBLE_SUBMIT_GUARD_SECONDS"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid DOUBLE_SUBMIT_GUARD_SECONDS: %w", err)
	}
	cfg.DoubleSubmitGuard = time.Duration(guardSeconds) * time.Second

	decimals := []struct {
		key string
		dst *decimal.Decimal
	}{
		{"MIN_DEPOSIT", &cfg.MinDeposit},
		{"MAX_DEPOSIT", &cfg.MaxDeposit},
		{"MIN_WITHDRAWAL", &cfg.MinWithdrawal},
		{"MAX_WITHDRAWAL", &cfg.MaxWithdrawal},
	}
	for _, f := range decimals {
		if *f.dst, err = decimal.NewFromString(v.GetString(f.key)); err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", f.key, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", defaultAppName)
	v.SetDefault("app_env", defaultAppEnv)
	v.SetDefault("port", defaultPort)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("auto_migrate", "true")
	v.SetDefault("notify_channel", defaultNotifyChannel)
	v.SetDefault("isolation_level", "repeatable_read")
	v.SetDefault("rate_limit_per_minute", "60")
	v.SetDefault("min_deposit", "10")
	v.SetDefault("max_deposit", "10000")
	v.SetDefault("min_withdrawal", "0.01")
	v.SetDefault("max_withdrawal", "5000")
	v.SetDefault("double_submit_guard_seconds", "3")
	v.SetDefault("default_page_size", "10")
	v.SetDefault("max_page_size", "100")
	v.SetDefault("conflict_retries", "3")
}

// Validate checks structural rules with govalidator and the cross-field rules by hand.
func (c Config) Validate() error {
	if _, err := govalidator.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.DatabaseURL == "" && !c.IsDevelopment() {
		return fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", c.AppEnv)
	}
	if err := checkBounds("DEPOSIT", c.MinDeposit, c.MaxDeposit); err != nil {
		return err
	}
	if err := checkBounds("WITHDRAWAL", c.MinWithdrawal, c.MaxWithdrawal); err != nil {
		return err
	}
	if c.MaxPageSize <= 0 || c.DefaultPageSize <= 0 || c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("DEFAULT_PAGE_SIZE must be between 1 and MAX_PAGE_SIZE (%d)", c.MaxPageSize)
	}
	if c.ConflictRetries < 0 {
		return fmt.Errorf("CONFLICT_RETRIES must not be negative")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	if c.DoubleSubmitGuard < 0 {
		return fmt.Errorf("DOUBLE_SUBMIT_GUARD_SECONDS must not be negative")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s must be positive", requestTimeoutEnvVar)
	}
	return nil
}

func checkBounds(name string, lo, hi decimal.Decimal) error {
	if !lo.IsPositive() || !hi.IsPositive() {
		return fmt.Errorf("MIN_%s and MAX_%s must be positive", name, name)
	}
	if lo.GreaterThan(hi) {
		return fmt.Errorf("MIN_%s (%s) exceeds MAX_%s (%s)", name, lo, name, hi)
	}
	return nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDevelopment reports whether the process may run without external infrastructure.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// IsProduction reports whether internal error details must be hidden from clients.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production") || strings.EqualFold(c.AppEnv, "prod")
}
