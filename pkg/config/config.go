package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Ingest modes. Pull runs the Pub/Sub subscriber; push only exposes the HTTP
// push endpoint; both runs the two side by side.
const (
	IngestPull = "pull"
	IngestPush = "push"
	IngestBoth = "both"
)

type Config struct {
	Port                string
	GoogleProjectID     string
	FirebaseCredentials string
	PubSubTopic         string
	PubSubSubscription  string
	IngestMode          string
	// PushAudience is the OIDC audience expected on Pub/Sub push requests.
	// Empty disables verification (local development).
	PushAudience  string
	DefaultLocale string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:                getEnv("PORT", "8080"),
		GoogleProjectID:     getEnv("GOOGLE_PROJECT_ID", ""),
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),
		PubSubTopic:         getEnv("PUBSUB_TOPIC", "store-events"),
		PubSubSubscription:  getEnv("PUBSUB_SUBSCRIPTION", "store-events-sub"),
		IngestMode:          getEnv("INGEST_MODE", IngestPull),
		PushAudience:        getEnv("PUSH_AUDIENCE", ""),
		DefaultLocale:       getEnv("DEFAULT_LOCALE", "es"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
