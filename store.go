package blogapi

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store owns every collection of the blog. It is backed by a private
// in-memory SQLite database that lives as long as the Store; nothing is
// written to disk. Mutations are serialized by mu.
type Store struct {
	mu sync.Mutex
	db *sqlx.DB
}

// settingTotalViews holds the seeded view counter reported by /api/stats.
const settingTotalViews = "total_views"

// NewStore opens a fresh in-memory database, creates the schema, and seeds
// the sample posts and static counters.
func NewStore() (*Store, error) {
	db, err := sqlx.Open("sqlite", "file::memory:")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// Every connection to :memory: is a separate database, so keep exactly
	// one and never let it expire.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if err := s.seed(); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed: %w", err)
	}
	return s, nil
}

// Close releases the database; all data is discarded.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS posts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    excerpt TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '',
    comments_enabled INTEGER NOT NULL DEFAULT 1,
    published INTEGER NOT NULL DEFAULT 1,
    cover_image TEXT NOT NULL DEFAULT '',
    views INTEGER NOT NULL DEFAULT 0,
    comments INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS comments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    post_id INTEGER NOT NULL,
    author TEXT NOT NULL,
    content TEXT NOT NULL,
    approved INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS subscribers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL UNIQUE,
    subscribed_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS contacts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    subject TEXT NOT NULL,
    message TEXT NOT NULL,
    sent_at INTEGER NOT NULL,
    is_read INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS images (
    filename TEXT PRIMARY KEY,
    original_name TEXT NOT NULL,
    content_type TEXT NOT NULL,
    size INTEGER NOT NULL,
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    uploaded_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);
CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);
`)
	return err
}

func (s *Store) seed() error {
	samples := []Post{
		{
			Title:           "Getting Started with Web Development",
			Content:         "Web development is an exciting field that combines creativity with technical skills. In this post we walk through the fundamentals of HTML, CSS, and JavaScript.",
			Excerpt:         "Learn the basics of web development and start your journey.",
			Category:        "Web Development",
			Tags:            []string{"HTML", "CSS", "JavaScript"},
			CommentsEnabled: true,
			Published:       true,
			Views:           150,
			Comments:        5,
			CreatedAt:       time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		},
		{
			Title:           "The Future of AI in Web Design",
			Content:         "Artificial intelligence is changing how websites are designed and built, from layout generation to personalised content.",
			Excerpt:         "How AI tools are reshaping the way we design for the web.",
			Category:        "Technology",
			Tags:            []string{"AI", "Design", "Future"},
			CommentsEnabled: true,
			Published:       true,
			Views:           89,
			Comments:        3,
			CreatedAt:       time.Date(2024, 1, 10, 14, 30, 0, 0, time.UTC),
		},
	}
	for _, p := range samples {
		p.UpdatedAt = p.CreatedAt
		if _, err := s.CreatePost(p); err != nil {
			return err
		}
	}
	return s.SetSetting(settingTotalViews, "1250")
}

// GetSetting returns the value for key, or "" if unset.
func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.Get(&value, `SELECT value FROM settings WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetSetting upserts a setting.
func (s *Store) SetSetting(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// settingInt reads an integer setting; unset means zero.
func (s *Store) settingInt(key string) (int, error) {
	v, err := s.GetSetting(key)
	if err != nil || v == "" {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse setting %s=%q: %w", key, v, err)
	}
	return n, nil
}

// formatTags stores tags as ",a,b," so a single tag can be matched with instr.
func formatTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return "," + strings.Join(tags, ",") + ","
}

// ParseTags splits a stored tag string (e.g. ",go,web,") into a slice.
func ParseTags(tagString string) []string {
	tagString = strings.Trim(tagString, ",")
	if tagString == "" {
		return []string{}
	}
	parts := strings.Split(tagString, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func unixNano(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
