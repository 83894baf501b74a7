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
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "sms_app.db", cfg.SQLitePath)
	assert.Equal(t, 5*time.Second, cfg.CarrierTimeout)
	assert.Equal(t, 3*time.Second, cfg.StoreTimeout)
	assert.Equal(t, int32(10), cfg.DBMaxConns)
	assert.True(t, cfg.AutoMigrate)
	assert.False(t, cfg.IsProduction())

	// twilio credentials and the source number have no defaults
	require.Error(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("CARRIER_DRIVER", "simulated")
	t.Setenv("TWILIO_PHONE_NUMBER", "+15559990000")
	t.Setenv("CARRIER_TIMEOUT", "750ms")
	t.Setenv("PORT", "9000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, CarrierSimulated, cfg.CarrierDriver)
	assert.Equal(t, "/tmp/x.db", cfg.SQLitePath)
	assert.Equal(t, 750*time.Millisecond, cfg.CarrierTimeout)
	assert.Equal(t, 9000, cfg.Port)
	require.NoError(t, cfg.Validate())
}

func TestLoad_ConfigFileAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("LOG_LEVEL: debug\nCARRIER_QPS: 2.5\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TWILIO_ACCOUNT_SID=ACfromdotenv\n"), 0o600))
	// t.Setenv restores the original value; unset so godotenv can fill it
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	require.NoError(t, os.Unsetenv("TWILIO_ACCOUNT_SID"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2.5, cfg.CarrierQPS)
	assert.Equal(t, "ACfromdotenv", cfg.TwilioSID)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port: 8080, StoreDriver: DriverPostgres, DatabaseURL: "postgres://x", DBMaxConns: 2,
			CarrierDriver: CarrierTwilio, TwilioSID: "AC1", TwilioToken: "tok", SourceNumber: "+1",
			ReadTimeout: time.Second, WriteTimeout: time.Second, ShutdownTimeout: time.Second,
			StoreTimeout: time.Second, CarrierTimeout: time.Second, PoolStatsInterval: time.Second,
			CarrierQPS: 1,
		}
	}
	base := valid()
	require.NoError(t, base.Validate())

	cases := map[string]func(c *Config){
		"unknown store":     func(c *Config) { c.StoreDriver = "mysql" },
		"unknown carrier":   func(c *Config) { c.CarrierDriver = "pigeon" },
		"missing token":     func(c *Config) { c.TwilioToken = "" },
		"missing source":    func(c *Config) { c.SourceNumber = "" },
		"zero timeout":      func(c *Config) { c.CarrierTimeout = 0 },
		"bad port":          func(c *Config) { c.Port = 0 },
		"no qps":            func(c *Config) { c.CarrierQPS = 0 },
		"empty sqlite path": func(c *Config) { c.StoreDriver = DriverSQLite; c.SQLitePath = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
