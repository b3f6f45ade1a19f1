package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Matching holds the knobs of the reconciliation engine. The defaults are
// the shipped behaviour; every value can be overridden via environment.
type Matching struct {
	DateWindowDays  int
	AmountTolerance string // decimal string, parsed once by the engine
	AutoThreshold   float64
	ReviewThreshold float64
	TieMargin       float64
	Workers         int
}

// Config holds application configuration.
type Config struct {
	Port         string
	DatabaseURL  string
	IsProduction bool
	LogLevel     string

	Match      Matching
	AgingAfter time.Duration
}

// Load reads configuration from the environment, with .env overrides when
// the file exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MATCH_DATE_WINDOW_DAYS", 10)
	viper.SetDefault("MATCH_AMOUNT_TOLERANCE", "0.01")
	viper.SetDefault("MATCH_AUTO_THRESHOLD", 0.9)
	viper.SetDefault("MATCH_REVIEW_THRESHOLD", 0.5)
	viper.SetDefault("MATCH_TIE_MARGIN", 0.05)
	viper.SetDefault("MATCH_WORKERS", 4)
	viper.SetDefault("SUMMARY_AGING_DAYS", 14)

	viper.AutomaticEnv()

	cfg := &Config{
		Port:         viper.GetString("PORT"),
		DatabaseURL:  viper.GetString("DATABASE_URL"),
		IsProduction: viper.GetBool("IS_PRODUCTION"),
		LogLevel:     viper.GetString("LOG_LEVEL"),
		Match: Matching{
			DateWindowDays:  viper.GetInt("MATCH_DATE_WINDOW_DAYS"),
			AmountTolerance: viper.GetString("MATCH_AMOUNT_TOLERANCE"),
			AutoThreshold:   viper.GetFloat64("MATCH_AUTO_THRESHOLD"),
			ReviewThreshold: viper.GetFloat64("MATCH_REVIEW_THRESHOLD"),
			TieMargin:       viper.GetFloat64("MATCH_TIE_MARGIN"),
			Workers:         viper.GetInt("MATCH_WORKERS"),
		},
		AgingAfter: time.Duration(viper.GetInt("SUMMARY_AGING_DAYS")) * 24 * time.Hour,
	}
	return cfg, nil
}
