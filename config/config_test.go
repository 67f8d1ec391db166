package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joripage/makerbot/pkg/logging"
	"github.com/joripage/makerbot/pkg/numeric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseConfig = `
service_name: makerbot
metrics_addr: ":9102"
defaults:
  env: sandbox
  max_funds_in_flight: "1000"
  max_funds_in_order: "200"
  max_drop_percentage: 20
  min_history_points: 30
  max_loading_time: 60
  max_obs_size: 500
  stable_price: "100"
  buy_down_interval: "0.5"
  straddle: "2"
  log_to_file: "no"
  log_level: info
markets:
  eth_usdc:
    straddle: "${MAKERBOT_TEST_STRADDLE}"
    log_to_file: "Yes"
  btc_usdc: {}
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMergesMarketOverDefaults(t *testing.T) {
	t.Setenv("MAKERBOT_TEST_STRADDLE", "3.5")
	cfg, err := Load(writeConfig(t, baseConfig), "eth_usdc")
	require.NoError(t, err)

	s := cfg.Settings
	assert.Equal(t, "eth_usdc", s.Market)
	assert.Equal(t, "sandbox", s.Env)
	assert.Equal(t, "3.5", s.Straddle.String())
	assert.Equal(t, "1000", s.MaxFundsInFlight.String())
	assert.Equal(t, 20, s.MaxDropPercentage)
	assert.Equal(t, logging.INFO, s.LogLevel)
	assert.True(t, s.LogsToFile())

	assert.Equal(t, 60*time.Second, s.Bootstrap().MaxLoadingTime)
	assert.Equal(t, 500, s.Bootstrap().MaxObsSize)
	assert.Equal(t, "0.5", s.Strategy().BuyDownInterval.String())

	assert.Equal(t, ":9102", cfg.MetricsAddr)
	require.NotNil(t, cfg.Paper)
	assert.Equal(t, 25, cfg.Paper.Depth)
	assert.Nil(t, cfg.JournalDB)
}

func TestLoadDefaultsOnly(t *testing.T) {
	cfg, err := Load(writeConfig(t, baseConfig), "btc_usdc")
	require.NoError(t, err)
	assert.Equal(t, "2", cfg.Settings.Straddle.String())
	assert.False(t, cfg.Settings.LogsToFile())
}

func TestLoadWithoutMarketSkipsSettings(t *testing.T) {
	cfg, err := Load(writeConfig(t, baseConfig), "")
	require.NoError(t, err)
	assert.Empty(t, cfg.Settings.Market)
}

func TestLoadFromEnvFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, baseConfig))
	cfg, err := Load("", "btc_usdc")
	require.NoError(t, err)
	assert.Equal(t, "makerbot", cfg.ServiceName)
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name    string
		replace [2]string
		market  string
		key     string
		is      error
	}{
		{name: "missing key", replace: [2]string{`  straddle: "2"`, ``}, market: "btc_usdc", key: "straddle"},
		{name: "not an integer", replace: [2]string{`max_obs_size: 500`, `max_obs_size: lots`}, market: "btc_usdc", key: "max_obs_size"},
		{name: "negative decimal", replace: [2]string{`stable_price: "100"`, `stable_price: "-1"`}, market: "btc_usdc", key: "stable_price", is: numeric.ErrValidation},
		{name: "not a decimal", replace: [2]string{`max_funds_in_order: "200"`, `max_funds_in_order: "lots"`}, market: "btc_usdc", key: "max_funds_in_order", is: numeric.ErrValidation},
		{name: "unknown log level", replace: [2]string{`log_level: info`, `log_level: verbose`}, market: "btc_usdc", key: "log_level"},
		{name: "drop out of range", replace: [2]string{`max_drop_percentage: 20`, `max_drop_percentage: 150`}, market: "btc_usdc", key: "max_drop_percentage", is: errRange},
		{name: "zero window", replace: [2]string{`max_obs_size: 500`, `max_obs_size: 0`}, market: "btc_usdc", key: "max_obs_size", is: errRange},
		{name: "list instead of value", replace: [2]string{`env: sandbox`, `env: [a, b]`}, market: "btc_usdc", key: "env"},
		{name: "unknown market", market: "doge_usdc", key: "markets.doge_usdc", is: errMissing},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("MAKERBOT_TEST_STRADDLE", "3")
			content := baseConfig
			if tc.replace[0] != "" {
				require.Contains(t, content, tc.replace[0])
				content = strings.Replace(content, tc.replace[0], tc.replace[1], 1)
			}
			_, err := Load(writeConfig(t, content), tc.market)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfig)

			var cerr *ConfigError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tc.key, cerr.Key)
			if tc.is != nil {
				assert.ErrorIs(t, err, tc.is)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "btc_usdc")
	assert.ErrorIs(t, err, ErrConfig)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoadCredentials(t *testing.T) {
	unsetenv(t, "MAKERBOT_LOGIN")
	unsetenv(t, "MAKERBOT_SECRET")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("MAKERBOT_LOGIN=maker@example.com\nMAKERBOT_SECRET=s3cret\n"), 0o600))

	creds, err := LoadCredentials(envFile)
	require.NoError(t, err)
	assert.Equal(t, "maker@example.com", creds.Login)
	assert.Equal(t, "s3cret", creds.Secret)
}

func TestLoadCredentialsMissing(t *testing.T) {
	unsetenv(t, "MAKERBOT_LOGIN")
	unsetenv(t, "MAKERBOT_SECRET")

	_, err := LoadCredentials(filepath.Join(t.TempDir(), "absent.env"))
	var cerr *ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "MAKERBOT_LOGIN", cerr.Key)
}
