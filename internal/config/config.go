package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration, read from the environment.
// Defaults cover a BTC/USDT hourly setup; anything can be overridden.
type Config struct {
	Asset         string
	QuoteAsset    string
	QtyDecimals   int32
	PriceDecimals int32
	Interval      string

	Mode            string
	SignalThreshold float64

	ShadowLimitEnabled bool
	BuyDeltaA          float64
	BuyDeltaB          float64
	BuyDeltaC          float64
	SellDeltaA         float64
	SellDeltaB         float64
	SellDeltaC         float64
	DeltaDecayFactor   float64

	SLATRFactor      float64
	SLPctOffset      float64
	SLTimeoutEnabled bool
	SLTimeoutHours   int

	OrderTimeoutSeconds      float64
	TicksBetweenOrderUpdates int

	PredictionMAWindow int
	BootstrapCandles   int

	StateFile       string
	CredentialsFile string
	ModelFile       string

	StatusAddr  string
	DatabaseURL string
	LogLevel    string

	CallTimeout time.Duration
}

// Symbol returns the exchange symbol for the configured pair.
func (c *Config) Symbol() string {
	return c.Asset + c.QuoteAsset
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Asset:         getEnv("ASSET", "BTC"),
		QuoteAsset:    getEnv("QUOTE_ASSET", "USDT"),
		QtyDecimals:   int32(getEnvInt("QTY_DEC_PLACES", 6)),
		PriceDecimals: int32(getEnvInt("PRICE_DEC_PLACES", 2)),
		Interval:      getEnv("KLINE_INTERVAL", "1h"),

		Mode:            getEnv("STRATEGY_MODE", "v04"),
		SignalThreshold: getEnvFloat("SIGNAL_THRESHOLD", 0.05),

		ShadowLimitEnabled: getEnvBool("SHADOW_LIMIT_ENABLED", true),
		BuyDeltaA:          getEnvFloat("BUY_DELTA_A", 0.0),
		BuyDeltaB:          getEnvFloat("BUY_DELTA_B", 0.0),
		BuyDeltaC:          getEnvFloat("BUY_DELTA_C", 0.0),
		SellDeltaA:         getEnvFloat("SELL_DELTA_A", 0.0),
		SellDeltaB:         getEnvFloat("SELL_DELTA_B", 0.0),
		SellDeltaC:         getEnvFloat("SELL_DELTA_C", 0.0),
		DeltaDecayFactor:   getEnvFloat("DELTA_DECAY_FACTOR", 2.0),

		SLATRFactor:      getEnvFloat("SL_ATR_FACTOR", 2.0),
		SLPctOffset:      getEnvFloat("SL_PCT_OFFSET", 15.0),
		SLTimeoutEnabled: getEnvBool("SL_TIMEOUT_ENABLED", true),
		SLTimeoutHours:   getEnvInt("SL_TIMEOUT_HOURS", 2),

		OrderTimeoutSeconds:      getEnvFloat("ORDER_TIMEOUT_SECONDS", 5),
		TicksBetweenOrderUpdates: getEnvInt("TICKS_BETWEEN_ORDER_UPDATES", 20),

		PredictionMAWindow: getEnvInt("PREDICTION_MA_WINDOW", 2),
		BootstrapCandles:   getEnvInt("BOOTSTRAP_CANDLES", 1000),

		StateFile:       getEnv("STATE_FILE", "./data/state.json"),
		CredentialsFile: getEnv("CREDENTIALS_FILE", "./data/credentials.json"),
		ModelFile:       getEnv("MODEL_FILE", "./models/model.json"),

		StatusAddr:  getEnv("STATUS_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		CallTimeout: time.Duration(getEnvInt("CALL_TIMEOUT_SECONDS", 10)) * time.Second,
	}
}

// Credentials holds the exchange and Telegram secrets, kept out of the
// environment in a separate file.
type Credentials struct {
	BinanceKey    string `json:"binance_key"`
	BinanceSecret string `json:"binance_secret"`
	TgBotToken    string `json:"tg_bot_token"`
	TgRecipient   int64  `json:"tg_recipient"`
}

// LoadCredentials reads the credentials file. Missing or malformed
// credentials are a startup error.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file %s: %w", path, err)
	}
	if c.BinanceKey == "" || c.BinanceSecret == "" {
		return nil, fmt.Errorf("credentials file %s is missing binance keys", path)
	}
	if c.TgBotToken == "" || c.TgRecipient == 0 {
		return nil, fmt.Errorf("credentials file %s is missing telegram settings", path)
	}
	return &c, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}
