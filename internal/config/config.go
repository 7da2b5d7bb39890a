package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	StoreMemory    = "memory"
	StoreFirestore = "firestore"
	StoreMongo     = "mongo"

	PresenceMemory = "memory"
	PresenceRTDB   = "rtdb"

	AuthFirebase = "firebase"
	AuthJWT      = "jwt"
)

// Config holds the runtime settings read from the environment
type Config struct {
	Port           string
	LogLevel       string
	AllowedOrigins []string

	StoreBackend    string
	PresenceBackend string

	AuthMode  string
	JWTSecret string

	FirebaseCredentialsPath string
	FirebaseDatabaseURL     string

	MongoURI      string
	MongoDatabase string

	PresenceSweepSchedule string
	PresenceStaleAfter    time.Duration
	PushEnabled           bool
}

// Load reads the environment. It fails when a backend name is unknown or a
// selected backend is missing its settings.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                    getEnv("PORT", "8080"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		AllowedOrigins:          splitList(getEnv("ALLOWED_ORIGINS", "*")),
		StoreBackend:            strings.ToLower(getEnv("STORE_BACKEND", StoreFirestore)),
		PresenceBackend:         strings.ToLower(getEnv("PRESENCE_BACKEND", PresenceRTDB)),
		AuthMode:                strings.ToLower(getEnv("AUTH_MODE", AuthFirebase)),
		JWTSecret:               os.Getenv("JWT_SECRET"),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", "./serviceAccountKey.json"),
		FirebaseDatabaseURL:     os.Getenv("FIREBASE_DATABASE_URL"),
		MongoURI:                getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:           getEnv("MONGO_DATABASE", "friendchat"),
		PresenceSweepSchedule:   getEnv("PRESENCE_SWEEP_SCHEDULE", "@every 5m"),
	}

	push, err := strconv.ParseBool(getEnv("PUSH_ENABLED", "true"))
	if err != nil {
		return nil, errors.Wrap(err, "PUSH_ENABLED")
	}
	cfg.PushEnabled = push

	staleAfter, err := time.ParseDuration(getEnv("PRESENCE_STALE_AFTER", "15m"))
	if err != nil {
		return nil, errors.Wrap(err, "PRESENCE_STALE_AFTER")
	}
	cfg.PresenceStaleAfter = staleAfter

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case StoreMemory, StoreFirestore, StoreMongo:
	default:
		return errors.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.PresenceBackend {
	case PresenceMemory:
	case PresenceRTDB:
		if c.FirebaseDatabaseURL == "" {
			return errors.New("FIREBASE_DATABASE_URL is required for rtdb presence")
		}
	default:
		return errors.Errorf("unknown PRESENCE_BACKEND %q", c.PresenceBackend)
	}
	switch c.AuthMode {
	case AuthFirebase:
	case AuthJWT:
		if c.JWTSecret == "" {
			return errors.New("JWT_SECRET is required when AUTH_MODE is jwt")
		}
	default:
		return errors.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}
	return nil
}

// NeedsFirebase reports whether any selected component talks to Firebase
func (c *Config) NeedsFirebase() bool {
	return c.StoreBackend == StoreFirestore ||
		c.PresenceBackend == PresenceRTDB ||
		c.AuthMode == AuthFirebase ||
		c.PushEnabled
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
