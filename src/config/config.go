package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const defaultJWTSecret = "change-me-local-development-secret-32b"

type AppConfig struct {
	Port         string `validate:"required,numeric"`
	DatabasePath string `validate:"required"`
	LogLevel     string `validate:"oneof=debug info warn error"`

	// Ledger computation
	ReferenceCurrency string `validate:"required,len=3,uppercase"`
	TaxRatesPath      string
	DefaultUSDRate    float64 `validate:"gt=0"`

	// Form 8949 rendering
	DateFormat          string `validate:"oneof=DD/MM/YYYY MM/DD/YYYY YYYY-MM-DD"`
	MultiDatesFormat    string `validate:"oneof='Static Text' All 'First and Last' First Last"`
	MultiDatesText      string
	MultiDatesSeparator string
	DescriptionFormat   string `validate:"required"`
	ShortTermCheckbox   string `validate:"oneof=A B C"`
	LongTermCheckbox    string `validate:"oneof=D E F"`

	MaxUploadSizeBytes int64         `validate:"gt=0"`
	ReportCacheExpiry  time.Duration `validate:"gt=0"`

	AuthEnabled       bool
	JWTSecret         string
	AdminPasswordHash string
	AccessTokenExpiry time.Duration `validate:"gt=0"`

	RateLimitPerSecond int `validate:"gt=0"`
	RateLimitBurst     int `validate:"gt=0"`
	AllowedOrigin      string
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	cfg, err := buildConfig()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	Cfg = cfg

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, ReferenceCurrency=%s, AuthEnabled=%t",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.ReferenceCurrency, Cfg.AuthEnabled)
}

func buildConfig() (*AppConfig, error) {
	jwtSecret := getEnv("JWT_SECRET", defaultJWTSecret)
	if jwtSecret == defaultJWTSecret {
		log.Println("WARNING: Using default insecure JWT_SECRET. Set JWT_SECRET environment variable for production.")
	}

	cfg := &AppConfig{
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./revoledger.db"),
		LogLevel:     strings.ToLower(getEnv("LOG_LEVEL", "info")),

		ReferenceCurrency: strings.ToUpper(getEnv("REFERENCE_CURRENCY", "EUR")),
		TaxRatesPath:      getEnv("TAX_RATES_PATH", ""),
		DefaultUSDRate:    getEnvAsFloat("DEFAULT_USD_RATE", 1),

		DateFormat:          getEnv("DATE_FORMAT", "MM/DD/YYYY"),
		MultiDatesFormat:    getEnv("MULTI_DATES_FORMAT", "Static Text"),
		MultiDatesText:      getEnv("MULTI_DATES_TEXT", "VARIOUS"),
		MultiDatesSeparator: getEnv("MULTI_DATES_SEPARATOR", "|"),
		DescriptionFormat:   getEnv("DESCRIPTION_FORMAT", "#CURRENCY# #AMOUNT#"),
		ShortTermCheckbox:   strings.ToUpper(getEnv("SHORT_TERM_CHECKBOX", "A")),
		LongTermCheckbox:    strings.ToUpper(getEnv("LONG_TERM_CHECKBOX", "D")),

		MaxUploadSizeBytes: getEnvAsInt64("MAX_UPLOAD_SIZE_BYTES", 10*1024*1024),
		ReportCacheExpiry:  getEnvAsDuration("REPORT_CACHE_EXPIRY", 15*time.Minute),

		AuthEnabled:       getEnvAsBool("AUTH_ENABLED", false),
		JWTSecret:         jwtSecret,
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		AccessTokenExpiry: getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 24*time.Hour),

		RateLimitPerSecond: getEnvAsInt("RATE_LIMIT_PER_SECOND", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 30),
		AllowedOrigin:      getEnv("ALLOWED_ORIGIN", "http://localhost:3000"),
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags and the cross-field rules of a configuration.
func Validate(cfg *AppConfig) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.AuthEnabled && len(cfg.JWTSecret) < 32 {
		return fmt.Errorf("invalid configuration: JWT_SECRET must be at least 32 bytes when AUTH_ENABLED is set (got %d)", len(cfg.JWTSecret))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	log.Printf("Invalid float value for %s ('%s'), using default: %g", key, valueStr, fallback)
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid boolean value for %s ('%s'), using default: %t", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
