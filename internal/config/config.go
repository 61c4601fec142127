package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr        string
	DatabaseURL string
	JWTSecret   string
	AccessTTL   time.Duration
	CORSOrigin  string

	// Redis - empty means counters live in the relational store
	RedisURL string

	// Meilisearch - empty means search falls back to the store
	MeiliURL       string
	MeiliMasterKey string

	// Text generation - empty API key means personas use canned templates
	GenProvider string
	GenModel    string
	GenAPIKey   string
	GenBaseURL  string

	// SMTP - empty host disables flag alert mail
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	AlertEmail   string

	// Thread archiving - empty dir disables archiving entirely,
	// empty endpoint/bucket skips the object-storage mirror
	ArchiveDir  string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool

	// Bootstrap admin - created on startup when missing
	AdminName     string
	AdminPassword string
}

func Load() Config {
	return Config{
		Addr:        getenv("API_ADDR", ":8790"),
		DatabaseURL: getenv("DATABASE_URL", "./data/agora.db"),
		JWTSecret:   getenv("AGORA_JWT_SECRET", "agora-dev-secret"),
		AccessTTL:   time.Duration(getenvInt("AGORA_ACCESS_TTL_SECONDS", 3600)) * time.Second,
		CORSOrigin:  getenv("AGORA_CORS_ORIGIN", "*"),

		RedisURL: getenv("REDIS_URL", ""),

		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),

		GenProvider: getenv("AGORA_GEN_PROVIDER", "openai"),
		GenModel:    getenv("AGORA_GEN_MODEL", ""),
		GenAPIKey:   getenv("AGORA_GEN_API_KEY", ""),
		GenBaseURL:  getenv("AGORA_GEN_BASE_URL", ""),

		SMTPHost:     getenv("SMTP_HOST", ""),
		SMTPPort:     getenv("SMTP_PORT", "587"),
		SMTPUsername: getenv("SMTP_USERNAME", ""),
		SMTPPassword: getenv("SMTP_PASSWORD", ""),
		SMTPFrom:     getenv("SMTP_FROM", ""),
		SMTPFromName: getenv("SMTP_FROM_NAME", "Agora"),
		AlertEmail:   getenv("AGORA_ALERT_EMAIL", ""),

		ArchiveDir:  getenv("AGORA_ARCHIVE_DIR", ""),
		S3Endpoint:  getenv("S3_ENDPOINT", ""),
		S3AccessKey: getenv("S3_ACCESS_KEY", ""),
		S3SecretKey: getenv("S3_SECRET_KEY", ""),
		S3Bucket:    getenv("S3_BUCKET", ""),
		S3UseSSL:    getenvBool("S3_USE_SSL", false),

		AdminName:     getenv("AGORA_ADMIN_NAME", "admin"),
		AdminPassword: getenv("AGORA_ADMIN_PASSWORD", ""),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
