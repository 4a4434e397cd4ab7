package config

import (
	"os"
)

type Config struct {
	ServerPort string

	// StoreBackend selects the document store implementation:
	// "postgres", "mongo" or "memory".
	StoreBackend string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	MongoURI string
	MongoDB  string

	// RedisAddr enables rate limiting on the auth endpoints when non-empty.
	RedisAddr     string
	RedisPassword string

	JWTSecret string

	// StaticDir is the root directory for the static asset server.
	StaticDir string

	// FriendsOnly gates messaging behind an accepted friendship.
	FriendsOnly bool

	// NotifyTrackByID switches the notification deduplicator from
	// positional-suffix diffing to id-set tracking.
	NotifyTrackByID bool
}

func Load() *Config {
	return &Config{
		ServerPort:      getEnv("SERVER_PORT", "3000"),
		StoreBackend:    getEnv("STORE_BACKEND", "postgres"),
		DBHost:          getEnv("DB_HOST", "localhost"),
		DBPort:          getEnv("DB_PORT", "5432"),
		DBUser:          getEnv("DB_USER", "messages"),
		DBPassword:      getEnv("DB_PASSWORD", "messages_dev_password"),
		DBName:          getEnv("DB_NAME", "messages"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:         getEnv("MONGO_DB", "messages"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret-change-me"),
		StaticDir:       getEnv("STATIC_DIR", "./public"),
		FriendsOnly:     getEnvBool("FRIENDS_ONLY", true),
		NotifyTrackByID: getEnvBool("NOTIFY_TRACK_BY_ID", false),
	}
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	val, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}

	switch val {
	case "1", "true", "TRUE", "yes":
		return true
	case "0", "false", "FALSE", "no":
		return false
	}

	return fallback
}
