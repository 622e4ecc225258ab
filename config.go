package blogapi

import (
	"errors"
	"time"

	"github.com/eringen/blogapi/storage"
)

// Config holds all configuration for a blogapi server.
type Config struct {
	Addr          string // Listen address (default ":5000")
	UploadDir     string // Local upload directory (default "uploads")
	MaxUploadSize int64  // Cover image limit in bytes (default 5 MiB)
	BodyLimit     string // Request body limit, echo notation (default "12M")

	AdminUsername     string // Admin login name (default "admin")
	AdminPassword     string // Plain admin password; hashed with bcrypt at startup
	AdminPasswordHash string // bcrypt hash, takes precedence over AdminPassword
	SessionSecret     string // Required: signs tokens and session cookies
	CookieSecure      bool   // Set true for HTTPS
	TokenTTL          time.Duration

	PostCacheTTL time.Duration // Public post list cache TTL (default 5min)
	CORSOrigins  []string      // Allowed origins (default "*")
	LogLevel     string        // debug|info|warn|error|off (default "info")

	// LiveStats derives totalViews from post view counters instead of the
	// seeded static value.
	LiveStats bool

	Storage    string // "local" (default) or "s3"
	S3Bucket   string
	S3Prefix   string
	S3Region   string
	S3Endpoint string // Custom endpoint, e.g. LocalStack
}

const defaultMaxUploadSize = 5 << 20

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":5000"
	}
	if c.UploadDir == "" {
		c.UploadDir = "uploads"
	}
	if c.MaxUploadSize <= 0 {
		c.MaxUploadSize = defaultMaxUploadSize
	}
	if c.BodyLimit == "" {
		c.BodyLimit = "12M"
	}
	if c.AdminUsername == "" {
		c.AdminUsername = "admin"
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = 12 * time.Hour
	}
	if c.PostCacheTTL == 0 {
		c.PostCacheTTL = 5 * time.Minute
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Storage == "" {
		c.Storage = "local"
	}
}

func (c *Config) validate() error {
	if c.AdminPassword == "" && c.AdminPasswordHash == "" {
		return errors.New("blogapi: AdminPassword or AdminPasswordHash is required")
	}
	if c.SessionSecret == "" {
		return errors.New("blogapi: SessionSecret is required")
	}
	if c.Storage != "local" && c.Storage != "s3" {
		return errors.New("blogapi: Storage must be \"local\" or \"s3\"")
	}
	if c.Storage == "s3" && c.S3Bucket == "" {
		return errors.New("blogapi: S3Bucket is required for s3 storage")
	}
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithStorage replaces the image storage backend selected by Config.Storage.
func WithStorage(s storage.Storage) Option {
	return func(a *App) {
		a.images = s
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}
