// Package blogapi is a JSON REST backend for a blog: posts with cover
// images, moderated comments, newsletter subscriptions, and contact
// messages, held in process memory and served with Echo.
//
// Privileged endpoints require an admin principal, authenticated either by
// a signed bearer token from /api/login or by the admin session cookie.
package blogapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/eringen/blogapi/storage"
)

// App is the central blogapi application. It wires together the store,
// cache, services, handlers, and middleware.
type App struct {
	Config Config
	Echo   *echo.Echo
	Store  *Store
	Cache  *PostCache

	Posts    *PostService
	Comments *CommentService
	Intake   *IntakeService
	Stats    *StatsService

	auth         *Authenticator
	uploader     *ImageUploader
	images       storage.Storage
	loginLimiter *LoginLimiter
	now          func() time.Time
	ready        bool
}

// New creates a new App with the given configuration.
func New(cfg Config, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		now:    time.Now,
	}
	a.Echo.HideBanner = true

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Setup initializes the store, image storage, services, middleware, and
// routes. Run calls it; tests call it directly and drive a.Echo.
func (a *App) Setup(ctx context.Context) error {
	if a.ready {
		return nil
	}
	if err := a.Config.validate(); err != nil {
		return err
	}
	a.Echo.Logger.SetLevel(parseLogLevel(a.Config.LogLevel))

	store, err := NewStore()
	if err != nil {
		return fmt.Errorf("blogapi: init store: %w", err)
	}
	a.Store = store
	a.Cache = NewPostCache(store, a.Config.PostCacheTTL)

	if a.images == nil {
		a.images, err = a.openStorage(ctx)
		if err != nil {
			return fmt.Errorf("blogapi: init storage: %w", err)
		}
	}

	a.auth, err = NewAuthenticator(a.Config, a.now)
	if err != nil {
		return fmt.Errorf("blogapi: init auth: %w", err)
	}
	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	a.uploader = NewImageUploader(a.images, store, a.Config.MaxUploadSize, a.now)
	a.Posts = NewPostService(store, a.Cache, a.uploader, a.now, a.Echo.Logger)
	a.Comments = NewCommentService(store, a.now)
	a.Intake = NewIntakeService(store, a.now)
	a.Stats = NewStatsService(store, a.Config.LiveStats)

	a.setupMiddleware()
	a.setupRoutes()
	a.ready = true
	return nil
}

func (a *App) openStorage(ctx context.Context) (storage.Storage, error) {
	if a.Config.Storage == "s3" {
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:   a.Config.S3Bucket,
			Prefix:   a.Config.S3Prefix,
			Region:   a.Config.S3Region,
			Endpoint: a.Config.S3Endpoint,
		})
	}
	return storage.NewLocalStorage(a.Config.UploadDir)
}

// Run sets the app up and serves until ctx is cancelled, then shuts the
// server down gracefully.
func (a *App) Run(ctx context.Context) error {
	if err := a.Setup(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		a.Echo.Logger.Infof("blogapi listening on %s", a.Config.Addr)
		errCh <- a.Echo.Start(a.Config.Addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("blogapi: shutdown: %w", err)
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo
	admin := a.requireAdmin

	e.GET("/uploads/:name", a.handleUpload)
	e.GET("/api/health", handleHealth)

	e.POST("/api/login", a.handleLogin)
	e.POST("/api/logout", a.handleLogout, admin)
	e.GET("/api/stats", a.handleStats, admin)

	e.GET("/api/posts", a.handleListPosts)
	e.GET("/api/posts/:id", a.handleGetPost)
	e.POST("/api/posts", a.handleCreatePost, admin)
	e.PUT("/api/posts/:id", a.handleUpdatePost, admin)
	e.DELETE("/api/posts/:id", a.handleDeletePost, admin)

	e.GET("/api/posts/:id/comments", a.handleListPostComments)
	e.POST("/api/posts/:id/comments", a.handleSubmitComment)
	e.GET("/api/comments", a.handleListComments, admin)
	e.PUT("/api/comments/:id/approve", a.handleApproveComment, admin)
	e.DELETE("/api/comments/:id", a.handleDeleteComment, admin)

	e.POST("/api/subscribe", a.handleSubscribe)
	e.POST("/api/contact", a.handleContact)
	e.GET("/api/subscribers", a.handleListSubscribers, admin)
	e.GET("/api/contacts", a.handleListContacts, admin)
	e.GET("/api/images", a.handleListImages, admin)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

func parseLogLevel(level string) log.Lvl {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off", "none":
		return log.OFF
	default:
		return log.INFO
	}
}
