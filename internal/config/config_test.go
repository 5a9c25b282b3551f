package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "BTCUSDT", cfg.Symbol())
	assert.Equal(t, "1h", cfg.Interval)
	assert.Equal(t, 0.05, cfg.SignalThreshold)
	assert.True(t, cfg.ShadowLimitEnabled)
	assert.Equal(t, 20, cfg.TicksBetweenOrderUpdates)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ASSET", "ETH")
	t.Setenv("PRICE_DEC_PLACES", "4")
	t.Setenv("SHADOW_LIMIT_ENABLED", "false")
	t.Setenv("SIGNAL_THRESHOLD", "0.1")

	cfg := Load()
	assert.Equal(t, "ETHUSDT", cfg.Symbol())
	assert.Equal(t, int32(4), cfg.PriceDecimals)
	assert.False(t, cfg.ShadowLimitEnabled)
	assert.Equal(t, 0.1, cfg.SignalThreshold)
}

func TestLoadCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"binance_key": "k",
		"binance_secret": "s",
		"tg_bot_token": "t",
		"tg_recipient": 12345
	}`), 0600))

	c, err := LoadCredentials(path)
	require.NoError(t, err)
	assert.Equal(t, "k", c.BinanceKey)
	assert.Equal(t, int64(12345), c.TgRecipient)
}

func TestLoadCredentialsRejectsIncomplete(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadCredentials(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	partial := filepath.Join(dir, "partial.json")
	require.NoError(t, os.WriteFile(partial, []byte(`{"binance_key":"k"}`), 0600))
	_, err = LoadCredentials(partial)
	assert.Error(t, err)
}
