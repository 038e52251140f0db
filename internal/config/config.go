package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	PostgresURL          string
	Port                 string
	LogLevel             logrus.Level
	Location             *time.Location
	MarketDataURL        string
	QuoteCacheTTL        time.Duration
	QuoteRefreshInterval time.Duration
	APIRateLimit         float64
	APIRateBurst         int
	DepositoryDefault    bool
}

// Load reads configuration from the environment, after loading .env if one
// exists. Invalid values fall back to defaults with a warning.
func Load(log *logrus.Logger) Config {
	// Load .env file if it exists, but don't fail if it's missing (e.g. in production)
	_ = godotenv.Load()

	c := Config{
		PostgresURL:          os.Getenv("POSTGRES_URL"),
		Port:                 getEnv("PORT", "8080"),
		LogLevel:             logrus.DebugLevel,
		Location:             time.UTC,
		MarketDataURL:        getEnv("MARKET_DATA_URL", "https://www.sharesansar.com/live-trading"),
		QuoteCacheTTL:        seconds(log, "QUOTE_CACHE_TTL", 60),
		QuoteRefreshInterval: seconds(log, "QUOTE_REFRESH_INTERVAL", 3600),
		APIRateLimit:         float64(positiveInt(log, "API_RATE_LIMIT", 10)),
		APIRateBurst:         positiveInt(log, "API_RATE_BURST", 30),
		DepositoryDefault:    getBool(log, "DEPOSITORY_CHARGE", false),
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if lvl, err := logrus.ParseLevel(v); err == nil {
			c.LogLevel = lvl
		} else {
			log.Warnf("invalid LOG_LEVEL %q, using debug", v)
		}
	}

	tz := getEnv("LEDGER_TIMEZONE", "Asia/Kolkata")
	if loc, err := time.LoadLocation(tz); err == nil {
		c.Location = loc
	} else {
		log.Warnf("unknown LEDGER_TIMEZONE %q, using UTC: %v", tz, err)
	}
	return c
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func positiveInt(log *logrus.Logger, key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	iv, err := strconv.Atoi(v)
	if err != nil || iv <= 0 {
		log.Warnf("invalid %s %q, using %d", key, v, def)
		return def
	}
	return iv
}

func seconds(log *logrus.Logger, key string, def int) time.Duration {
	return time.Duration(positiveInt(log, key, def)) * time.Second
}

func getBool(log *logrus.Logger, key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warnf("invalid %s %q, using %v", key, v, def)
		return def
	}
	return b
}
