package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server Server
	Mongo  Mongo
	JWT    JWT
	Push   Push
	Blob   Blob
	Typing Typing
}

type Server struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// AuthRateLimit is the per-IP request budget per minute on the public
	// signup/login endpoints.
	AuthRateLimit int
}

type Mongo struct {
	URI      string
	Database string
}

type JWT struct {
	Secret     string
	Expiration time.Duration
}

type Push struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
}

type Blob struct {
	CloudinaryURL string
}

type Typing struct {
	// StalenessThreshold is how old a typing pointer may be before consumers
	// stop showing it. The pointer itself is never expired server-side.
	StalenessThreshold time.Duration
}

func Load() *Config {
	return &Config{
		Server: Server{
			Port:          getEnv("PORT", "8080"),
			Env:           getEnv("ENV", "development"),
			ReadTimeout:   getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			WriteTimeout:  getEnvAsDuration("WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:   getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
			AuthRateLimit: getEnvAsInt("AUTH_RATE_LIMIT", 30),
		},
		Mongo: Mongo{
			URI:      getEnv("MONGODB_URI", "mongodb://127.0.0.1:27017"),
			Database: getEnv("MONGODB_DATABASE", "chatsync"),
		},
		JWT: JWT{
			Secret:     getEnv("JWT_SECRET", "dev-secret-change-me"),
			Expiration: getEnvAsDuration("JWT_EXPIRATION", 24*time.Hour),
		},
		Push: Push{
			VAPIDPublicKey:  getEnv("VAPID_PUBLIC_KEY", ""),
			VAPIDPrivateKey: getEnv("VAPID_PRIVATE_KEY", ""),
			Subscriber:      getEnv("VAPID_SUBSCRIBER", "admin@localhost"),
		},
		Blob: Blob{
			CloudinaryURL: getEnv("CLOUDINARY_URL", ""),
		},
		Typing: Typing{
			StalenessThreshold: getEnvAsDuration("TYPING_STALENESS_THRESHOLD", 10*time.Second),
		},
	}
}

// Validate rejects configurations that cannot run: missing port or URI, and
// the development JWT secret outside development.
func Validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("PORT must not be empty")
	}
	if cfg.Mongo.URI == "" {
		return errors.New("MONGODB_URI must not be empty")
	}
	if cfg.JWT.Secret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if cfg.Server.Env != "development" && cfg.JWT.Secret == "dev-secret-change-me" {
		return errors.New("JWT_SECRET must be changed outside development")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
