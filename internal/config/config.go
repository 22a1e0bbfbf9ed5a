// Package config provides configuration management using viper.
// It supports loading from YAML files, a .env file and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"smash-rewards/internal/referral"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Store    StoreConfig    `mapstructure:"store"`
	Database DatabaseConfig `mapstructure:"database"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Protocol ProtocolConfig `mapstructure:"protocol"`
	Ads      AdsConfig      `mapstructure:"ads"`
	Quiz     QuizConfig     `mapstructure:"quiz"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// StoreConfig selects the record store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// MongoConfig holds MongoDB connection configuration.
type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// RedisConfig holds Redis configuration for distributed account locks.
// An empty Addr keeps locking in-process.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// ChainConfig holds EVM network settings for mining fee verification.
type ChainConfig struct {
	RPCEndpoint     string `mapstructure:"rpc_endpoint"`
	ChainID         int64  `mapstructure:"chain_id"`
	TreasuryAddress string `mapstructure:"treasury_address"`
	// MiningFee is expressed in whole native tokens, e.g. "0.001".
	MiningFee string `mapstructure:"mining_fee"`
}

// ProtocolConfig holds reward policy constants.
type ProtocolConfig struct {
	MasterCode        string        `mapstructure:"master_code"`
	ActivationBonus   int64         `mapstructure:"activation_bonus"`
	MiningReward      int64         `mapstructure:"mining_reward"`
	MiningCycle       time.Duration `mapstructure:"mining_cycle"`
	DirectRate        string        `mapstructure:"direct_rate"`
	IndirectRate      string        `mapstructure:"indirect_rate"`
	CodeCacheSize     int           `mapstructure:"code_cache_size"`
	CodeRetryAttempts int           `mapstructure:"code_retry_attempts"`
}

// AdsConfig holds rewarded ad policy.
type AdsConfig struct {
	BaseReward int64         `mapstructure:"base_reward"`
	DailyCap   int           `mapstructure:"daily_cap"`
	Window     time.Duration `mapstructure:"window"`
	Provider   string        `mapstructure:"provider"`
	MockDelay  time.Duration `mapstructure:"mock_delay"`
}

// QuizConfig holds daily quiz policy.
type QuizConfig struct {
	RewardPerAnswer int64  `mapstructure:"reward_per_answer"`
	QuestionCount   int    `mapstructure:"question_count"`
	StreakBonus     int64  `mapstructure:"streak_bonus"`
	StreakBonusDays int    `mapstructure:"streak_bonus_days"`
	Timezone        string `mapstructure:"timezone"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Rates returns the direct and indirect commission rates.
func (p *ProtocolConfig) Rates() (decimal.Decimal, decimal.Decimal, error) {
	direct, err := decimal.NewFromString(p.DirectRate)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("invalid direct_rate %q: %w", p.DirectRate, err)
	}
	indirect, err := decimal.NewFromString(p.IndirectRate)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("invalid indirect_rate %q: %w", p.IndirectRate, err)
	}
	return direct, indirect, nil
}

// Location returns the timezone used for the quiz calendar day.
func (q *QuizConfig) Location() (*time.Location, error) {
	if q.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(q.Timezone)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. AUTH_JWT_SECRET, DATABASE_HOST, CHAIN_RPC_ENDPOINT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that would otherwise fail late at request time.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StorePostgres, StoreMongo, StoreMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("unknown server mode %q", c.Server.Mode)
	}
	if !referral.IsWellFormed(c.Protocol.MasterCode) {
		return fmt.Errorf("master_code must be %d characters of A-Z0-9, got %q", referral.CodeLength, c.Protocol.MasterCode)
	}
	// The Redis lock is never renewed, so it must outlive any request.
	if c.Redis.Addr != "" && c.Redis.LockTTL <= c.Server.RequestTimeout {
		return fmt.Errorf("redis lock_ttl %s must exceed server request_timeout %s", c.Redis.LockTTL, c.Server.RequestTimeout)
	}
	if _, _, err := c.Protocol.Rates(); err != nil {
		return err
	}
	if _, err := decimal.NewFromString(c.Chain.MiningFee); err != nil {
		return fmt.Errorf("invalid mining_fee %q: %w", c.Chain.MiningFee, err)
	}
	if _, err := c.Quiz.Location(); err != nil {
		return fmt.Errorf("invalid quiz timezone %q: %w", c.Quiz.Timezone, err)
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.request_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("store.backend", StorePostgres)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "smash")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "smash")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("mongo.database", "smash")
	v.SetDefault("mongo.connect_timeout", "10s")

	// Empty keys still need defaults so AutomaticEnv can override them.
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", "30s")

	v.SetDefault("chain.rpc_endpoint", "https://testnet-rpc.irys.xyz/v1/execution-rpc")
	v.SetDefault("chain.chain_id", 1270)
	v.SetDefault("chain.treasury_address", "0xA13351981c18D8A459f8CDCcC9Fd34966f5FF215")
	v.SetDefault("chain.mining_fee", "0.001")

	v.SetDefault("protocol.master_code", "HIRYS")
	v.SetDefault("protocol.activation_bonus", 200)
	v.SetDefault("protocol.mining_reward", 150)
	v.SetDefault("protocol.mining_cycle", "24h")
	v.SetDefault("protocol.direct_rate", "0.10")
	v.SetDefault("protocol.indirect_rate", "0.05")
	v.SetDefault("protocol.code_cache_size", 4096)
	v.SetDefault("protocol.code_retry_attempts", 5)

	v.SetDefault("ads.base_reward", 25)
	v.SetDefault("ads.daily_cap", 5)
	v.SetDefault("ads.window", "24h")
	v.SetDefault("ads.provider", "mock")
	v.SetDefault("ads.mock_delay", "2s")

	v.SetDefault("quiz.reward_per_answer", 50)
	v.SetDefault("quiz.question_count", 8)
	v.SetDefault("quiz.streak_bonus", 25)
	v.SetDefault("quiz.streak_bonus_days", 7)
	v.SetDefault("quiz.timezone", "UTC")
}
