package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	// Portal.
	APIBaseURL  string
	TokenPath   string
	GeoTimeout  time.Duration
	HTTPTimeout time.Duration

	// Stub backend.
	StubHTTPAddr string
	JWTSecret    string
	JWTIssuer    string
	TokenTTL     time.Duration
}

func Load() Config {
	return Config{
		APIBaseURL:   getenv("EVV_API_BASE_URL", "http://127.0.0.1:8084"),
		TokenPath:    getenv("EVV_TOKEN_PATH", defaultTokenPath()),
		GeoTimeout:   getenvDuration("EVV_GEO_TIMEOUT", 15*time.Second),
		HTTPTimeout:  getenvDuration("EVV_HTTP_TIMEOUT", 30*time.Second),
		StubHTTPAddr: getenv("STUB_HTTP_ADDR", ":8084"),
		JWTSecret:    getenv("JWT_SECRET", "dev-secret"),
		JWTIssuer:    getenv("JWT_ISSUER", "evv-portal-stub"),
		TokenTTL:     getenvDuration("TOKEN_TTL", time.Hour),
	}
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "auth_tokens.json"
	}
	return filepath.Join(home, ".evv-portal", "auth_tokens.json")
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}
