package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultAppName         = "VaultKeep"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultDBMaxConns      = 10
	defaultRedisPoolSize   = 20
	defaultProgramName     = "vaultkeep-program"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultAuthMaxSkew     = 5 * time.Minute
	defaultAirdropMax      = 10_000_000_000
	defaultRateLimit       = 120
	configFileEnvVar       = "CONFIG_FILE"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from an optional
// YAML file and environment variables. Environment variables win.
type Config struct {
	AppName     string `yaml:"app_name"`
	AppEnv      string `yaml:"app_env"`
	Port        string `yaml:"port"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`
	NATSURL     string `yaml:"nats_url"`

	// DBMaxConns caps the Postgres pool; every ledger transaction holds one
	// connection for its whole lifetime.
	DBMaxConns    int `yaml:"db_max_conns"`
	RedisPoolSize int `yaml:"redis_pool_size"`

	// ProgramID is the vault program identity as address text. When empty the
	// identity is derived from defaultProgramName.
	ProgramID string `yaml:"program_id"`

	RentLamportsPerByteYear uint64 `yaml:"rent_lamports_per_byte_year"`
	RentExemptionYears      uint64 `yaml:"rent_exemption_years"`

	AuthMaxSkew        time.Duration `yaml:"auth_max_skew"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
	OperatorKeyHash    string        `yaml:"operator_key_hash"`
	AirdropMaxLamports uint64        `yaml:"airdrop_max_lamports"`

	ShutdownPeriod time.Duration `yaml:"shutdown_timeout"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
}

// Load reads configuration values and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:                 defaultAppName,
		AppEnv:                  defaultAppEnv,
		Port:                    defaultPort,
		LogLevel:                defaultLogLevel,
		LogFormat:               defaultLogFormat,
		DBMaxConns:              defaultDBMaxConns,
		RedisPoolSize:           defaultRedisPoolSize,
		RentLamportsPerByteYear: 3480,
		RentExemptionYears:      2,
		AuthMaxSkew:             defaultAuthMaxSkew,
		RateLimitPerMinute:      defaultRateLimit,
		AirdropMaxLamports:      defaultAirdropMax,
		ShutdownPeriod:          defaultShutdownDelay,
		IdempotencyTTL:          defaultIdempotencyTTL,
	}

	if path := os.Getenv(configFileEnvVar); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", configFileEnvVar, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.AppName = getEnv("APP_NAME", cfg.AppName)
	cfg.AppEnv = getEnv("APP_ENV", cfg.AppEnv)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", cfg.LogFormat))
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.NATSURL = getEnv("NATS_URL", cfg.NATSURL)
	cfg.ProgramID = getEnv("PROGRAM_ID", cfg.ProgramID)
	cfg.OperatorKeyHash = getEnv("OPERATOR_KEY_HASH", cfg.OperatorKeyHash)

	var err error
	if cfg.RentLamportsPerByteYear, err = getUint("RENT_LAMPORTS_PER_BYTE_YEAR", cfg.RentLamportsPerByteYear); err != nil {
		return Config{}, err
	}
	if cfg.RentExemptionYears, err = getUint("RENT_EXEMPTION_YEARS", cfg.RentExemptionYears); err != nil {
		return Config{}, err
	}
	if cfg.AirdropMaxLamports, err = getUint("AIRDROP_MAX_LAMPORTS", cfg.AirdropMaxLamports); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitPerMinute, err = getInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMinute); err != nil {
		return Config{}, err
	}
	if cfg.DBMaxConns, err = getInt("DB_MAX_CONNS", cfg.DBMaxConns); err != nil {
		return Config{}, err
	}
	if cfg.RedisPoolSize, err = getInt("REDIS_POOL_SIZE", cfg.RedisPoolSize); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("AUTH_MAX_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid AUTH_MAX_SKEW: %w", err)
		}
		cfg.AuthMaxSkew = d
	}

	if cfg.ShutdownPeriod, err = getDuration(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = getDuration(idemTTLSecondsEnvVar, idemTTLDurEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}

	if cfg.RentLamportsPerByteYear == 0 || cfg.RentExemptionYears == 0 {
		return Config{}, fmt.Errorf("rent parameters must be positive")
	}
	if cfg.DBMaxConns <= 0 || cfg.RedisPoolSize <= 0 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS and REDIS_POOL_SIZE must be positive")
	}

	if !cfg.IsDevelopment() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set")
		}
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDevelopment reports whether the service may run without Postgres and Redis.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// DefaultProgramName seeds the program identity when PROGRAM_ID is unset.
func (c Config) DefaultProgramName() string { return defaultProgramName }

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getUint(key string, fallback uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// getDuration prefers the whole-seconds variable over the Go duration one.
func getDuration(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}
