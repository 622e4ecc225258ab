package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eringen/blogapi"
)

func newServeCmd() *cobra.Command {
	var v *viper.Viper
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server.

Every flag can also be set through an environment variable with the
BLOGAPI_ prefix, e.g. BLOGAPI_ADMIN_PASSWORD or BLOGAPI_S3_BUCKET.
A .env file in the working directory is loaded first if present.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app := blogapi.New(cfg)
			defer app.Close()
			return app.Run(ctx)
		},
	}

	f := cmd.Flags()
	f.String("addr", ":5000", "listen address")
	f.String("upload-dir", "uploads", "directory for uploaded images (local storage)")
	f.Int64("max-upload-size", 5<<20, "maximum cover image size in bytes")
	f.String("body-limit", "12M", "maximum request body size")
	f.String("admin-username", "admin", "admin login name")
	f.String("admin-password", "", "admin password")
	f.String("admin-password-hash", "", "bcrypt hash of the admin password")
	f.String("session-secret", "", "secret used to sign tokens and session cookies")
	f.Bool("cookie-secure", false, "mark cookies Secure (HTTPS only)")
	f.Duration("token-ttl", 0, "lifetime of login tokens (default 12h)")
	f.Duration("post-cache-ttl", 0, "public post list cache TTL (default 5m)")
	f.StringSlice("cors-origins", []string{"*"}, "allowed CORS origins")
	f.String("log-level", "info", "log level: debug|info|warn|error|off")
	f.Bool("live-stats", false, "derive totalViews from post view counters")
	f.String("storage", "local", "image storage backend: local|s3")
	f.String("s3-bucket", "", "S3 bucket for images")
	f.String("s3-prefix", "uploads", "S3 key prefix for images")
	f.String("s3-region", "", "S3 region")
	f.String("s3-endpoint", "", "custom S3 endpoint, e.g. http://localhost:4566 for LocalStack")

	v = newConfigViper(cmd)
	return cmd
}

// newConfigViper binds cmd's flags and the matching BLOGAPI_* variables.
func newConfigViper(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())
	v.SetEnvPrefix("BLOGAPI")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func loadConfig(v *viper.Viper) (blogapi.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return blogapi.Config{}, fmt.Errorf("load .env: %w", err)
	}
	return blogapi.Config{
		Addr:              v.GetString("addr"),
		UploadDir:         v.GetString("upload-dir"),
		MaxUploadSize:     v.GetInt64("max-upload-size"),
		BodyLimit:         v.GetString("body-limit"),
		AdminUsername:     v.GetString("admin-username"),
		AdminPassword:     v.GetString("admin-password"),
		AdminPasswordHash: v.GetString("admin-password-hash"),
		SessionSecret:     v.GetString("session-secret"),
		CookieSecure:      v.GetBool("cookie-secure"),
		TokenTTL:          v.GetDuration("token-ttl"),
		PostCacheTTL:      v.GetDuration("post-cache-ttl"),
		CORSOrigins:       v.GetStringSlice("cors-origins"),
		LogLevel:          v.GetString("log-level"),
		LiveStats:         v.GetBool("live-stats"),
		Storage:           v.GetString("storage"),
		S3Bucket:          v.GetString("s3-bucket"),
		S3Prefix:          v.GetString("s3-prefix"),
		S3Region:          v.GetString("s3-region"),
		S3Endpoint:        v.GetString("s3-endpoint"),
	}, nil
}
