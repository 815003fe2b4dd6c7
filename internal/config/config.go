package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	GinMode string

	DBUser     string
	DBPassword string
	DBName     string
	DBHost     string
	DBPort     string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	SyncPayBaseURL      string
	SyncPayClientID     string
	SyncPayClientSecret string

	JWTSecret string

	// Inbound webhook deliveries may be restricted to the provider's
	// source subnets. Empty means no filtering.
	WebhookAllowedCIDRs []string

	CORSOrigins []string
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return &Config{
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "afiliapix"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		SyncPayBaseURL:      getEnv("SYNCPAY_BASE_URL", "https://api.syncpayments.com.br"),
		SyncPayClientID:     getEnv("SYNCPAY_CLIENT_ID", ""),
		SyncPayClientSecret: getEnv("SYNCPAY_CLIENT_SECRET", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		WebhookAllowedCIDRs: getEnvAsSlice("WEBHOOK_ALLOWED_CIDRS", nil),
		CORSOrigins:         getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsSlice(key string, fallback []string) []string {
	val := getEnv(key, "")
	if val == "" {
		return fallback
	}
	parts := strings.Split(val, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}
