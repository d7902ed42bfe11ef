package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	Environment   string
	ServerAddress string
	DatabasePath  string
	SiteURL       string // Origin used for OAuth and password-reset redirects
	SaveFile      string // Target of the POST /save persistence route
	Pages         PagesConfig
	Auth          AuthConfig
	SMTP          SMTPConfig
	Jobs          JobsConfig
	CORS          CORSConfig
}

// PagesConfig holds rendered page configuration
type PagesConfig struct {
	Dir            string
	LoginPage      string
	ProtectedPages []string
}

// CORSConfig holds CORS configuration for the session API.
// The persistence route always allows any origin.
type CORSConfig struct {
	AllowedOrigins []string
}

// AuthConfig holds identity provider configuration
type AuthConfig struct {
	JWTSecret         string
	AccessTokenTTL    time.Duration
	AutoConfirmSignUp bool
	SecureCookie      bool
	GitHub            OAuthClientConfig
	Google            OAuthClientConfig
}

// OAuthClientConfig holds a federated provider's client credentials
type OAuthClientConfig struct {
	ClientID     string
	ClientSecret string
}

// Enabled reports whether both credentials are set
func (o OAuthClientConfig) Enabled() bool {
	return o.ClientID != "" && o.ClientSecret != ""
}

// SMTPConfig holds outgoing mail configuration. An empty Host means
// recovery mails are written to the log instead of being sent.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// JobsConfig holds background job schedules
type JobsConfig struct {
	RefreshInterval time.Duration
	RefreshWindow   time.Duration
	PurgeInterval   time.Duration
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	corsOrigins := getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001")

	return &Config{
		Environment:   getEnv("ENVIRONMENT", "development"),
		ServerAddress: getEnv("SERVER_ADDRESS", ":3001"),
		DatabasePath:  getEnv("DATABASE_PATH", "./data/workbench.db"),
		SiteURL:       strings.TrimRight(getEnv("SITE_URL", "http://localhost:3001"), "/"),
		SaveFile:      getEnv("SAVE_FILE", "with_aime_answers.json"),
		Pages: PagesConfig{
			Dir:            getEnv("PAGES_DIR", "./web"),
			LoginPage:      getEnv("LOGIN_PAGE", "login.html"),
			ProtectedPages: parseCommaSeparatedList(getEnv("PROTECTED_PAGES", "profile.html")),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("JWT_SECRET", "change-me-in-production-secret-key"),
			AccessTokenTTL:    getDuration("ACCESS_TOKEN_TTL", time.Hour),
			AutoConfirmSignUp: getEnv("AUTO_CONFIRM_SIGNUP", "true") == "true",
			SecureCookie:      getEnv("AUTH_SECURE_COOKIE", "false") == "true",
			GitHub: OAuthClientConfig{
				ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
				ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
			},
			Google: OAuthClientConfig{
				ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
				ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			},
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("SMTP_FROM", "no-reply@localhost"),
		},
		Jobs: JobsConfig{
			RefreshInterval: getDuration("REFRESH_INTERVAL", time.Minute),
			RefreshWindow:   getDuration("REFRESH_WINDOW", 5*time.Minute),
			PurgeInterval:   getDuration("PURGE_INTERVAL", time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseCommaSeparatedList(corsOrigins),
		},
	}, nil
}

// parseCommaSeparatedList splits a comma-separated string into a slice
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return []string{}
	}

	items := strings.Split(s, ",")
	result := make([]string, 0, len(items))

	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}

	return result
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration falls back to the default when the value is missing or unparsable
func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
