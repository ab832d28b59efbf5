package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is built once at startup and handed to every component that needs
// one of its values.
type Config struct {
	Port           string
	MongoURI       string
	DBName         string
	JWTSecret      string
	TokenTTL       time.Duration
	RedisAddr      string
	RedisPassword  string
	MLServiceURL   string
	MLTimeout      time.Duration
	UploadBucket   string
	AllowedOrigins []string
	LockTTL        time.Duration
	CacheTTL       time.Duration
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Error loading .env file: %v", err)
	}

	return Config{
		Port:           getEnv("PORT", "5000"),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:         getEnv("DB", "agrirent"),
		JWTSecret:      getEnv("JWT_SECRET", "secret"),
		TokenTTL:       getDuration("TOKEN_TTL", 7*24*time.Hour),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASS"),
		MLServiceURL:   getEnv("ML_SERVICE_URL", "http://127.0.0.1:5001/predict"),
		MLTimeout:      getDuration("ML_TIMEOUT", 120*time.Second),
		UploadBucket:   getEnv("UPLOAD_BUCKET", "uploads"),
		AllowedOrigins: strings.Split(getEnv("CORS_ORIGINS", "*"), ","),
		LockTTL:        getDuration("LOCK_TTL", 10*time.Second),
		CacheTTL:       getDuration("CACHE_TTL", 10*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Invalid duration for %s (%q), using %s", key, raw, fallback)
		return fallback
	}
	return d
}
