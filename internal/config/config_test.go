package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, cfg.Store.Backend)
	assert.Equal(t, "HIRYS", cfg.Protocol.MasterCode)
	assert.Equal(t, int64(200), cfg.Protocol.ActivationBonus)
	assert.Equal(t, 24*time.Hour, cfg.Protocol.MiningCycle)
	assert.Equal(t, int64(1270), cfg.Chain.ChainID)
	assert.Equal(t, 5, cfg.Ads.DailyCap)
	assert.Equal(t, 8, cfg.Quiz.QuestionCount)

	direct, indirect, err := cfg.Protocol.Rates()
	require.NoError(t, err)
	assert.Equal(t, "0.1", direct.String())
	assert.Equal(t, "0.05", indirect.String())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
store:
  backend: memory
ads:
  daily_cap: 3
quiz:
  timezone: Europe/Berlin
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("AUTH_JWT_SECRET", "s3cret")
	t.Setenv("PROTOCOL_MINING_REWARD", "175")
	t.Setenv("DATABASE_PASSWORD", "pg-pass")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_PASSWORD", "redis-pass")
	t.Setenv("REDIS_DB", "2")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, 3, cfg.Ads.DailyCap)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, int64(175), cfg.Protocol.MiningReward)
	assert.Equal(t, "pg-pass", cfg.Database.Password)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "redis-pass", cfg.Redis.Password)
	assert.Equal(t, 2, cfg.Redis.DB)

	loc, err := cfg.Quiz.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(t.TempDir())
		require.NoError(t, err)
		return cfg
	}

	cfg := valid()
	cfg.Store.Backend = "sqlite"
	assert.ErrorContains(t, cfg.Validate(), "store backend")

	cfg = valid()
	cfg.Protocol.MasterCode = "HIRYS1"
	assert.ErrorContains(t, cfg.Validate(), "master_code")

	cfg = valid()
	cfg.Protocol.MasterCode = "hirys"
	assert.ErrorContains(t, cfg.Validate(), "master_code")

	cfg = valid()
	cfg.Protocol.MasterCode = "HI-YS"
	assert.ErrorContains(t, cfg.Validate(), "master_code")

	cfg = valid()
	cfg.Redis.Addr = "redis:6379"
	cfg.Redis.LockTTL = cfg.Server.RequestTimeout
	assert.ErrorContains(t, cfg.Validate(), "lock_ttl")

	cfg.Redis.LockTTL = cfg.Server.RequestTimeout + time.Second
	assert.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.Protocol.DirectRate = "ten percent"
	assert.ErrorContains(t, cfg.Validate(), "direct_rate")

	cfg = valid()
	cfg.Chain.MiningFee = ""
	assert.ErrorContains(t, cfg.Validate(), "mining_fee")

	cfg = valid()
	cfg.Quiz.Timezone = "Mars/Olympus"
	assert.ErrorContains(t, cfg.Validate(), "timezone")

	cfg = valid()
	cfg.Server.Mode = "verbose"
	assert.ErrorContains(t, cfg.Validate(), "server mode")
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "smash"}
	assert.Equal(t, "postgres://u:p@db:5433/smash?sslmode=disable", d.DSN())
}
