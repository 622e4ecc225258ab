package blogapi

import (
	"database/sql"
	"errors"
	"fmt"
)

type postRow struct {
	ID              int64  `db:"id"`
	Title           string `db:"title"`
	Content         string `db:"content"`
	Excerpt         string `db:"excerpt"`
	Category        string `db:"category"`
	Tags            string `db:"tags"`
	CommentsEnabled bool   `db:"comments_enabled"`
	Published       bool   `db:"published"`
	CoverImage      string `db:"cover_image"`
	Views           int    `db:"views"`
	Comments        int    `db:"comments"`
	CreatedAt       int64  `db:"created_at"`
	UpdatedAt       int64  `db:"updated_at"`
}

func (r postRow) post() Post {
	return Post{
		ID:              r.ID,
		Title:           r.Title,
		Content:         r.Content,
		Excerpt:         r.Excerpt,
		Category:        r.Category,
		Tags:            ParseTags(r.Tags),
		CommentsEnabled: r.CommentsEnabled,
		Published:       r.Published,
		CoverImage:      r.CoverImage,
		Views:           r.Views,
		Comments:        r.Comments,
		CreatedAt:       fromUnixNano(r.CreatedAt),
		UpdatedAt:       fromUnixNano(r.UpdatedAt),
	}
}

const postColumns = `id, title, content, excerpt, category, tags, comments_enabled, published,
	cover_image, views, comments, created_at, updated_at`

var errPostNotFound = notFoundError("Post not found")

// ListPosts returns posts ordered by creation time, newest first. Drafts are
// included only when includeDrafts is set.
func (s *Store) ListPosts(includeDrafts bool) ([]Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts`
	if !includeDrafts {
		query += ` WHERE published = 1`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	var rows []postRow
	if err := s.db.Select(&rows, query); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	posts := make([]Post, 0, len(rows))
	for _, r := range rows {
		posts = append(posts, r.post())
	}
	return posts, nil
}

// GetPost returns a post by id regardless of published status.
func (s *Store) GetPost(id int64) (Post, error) {
	var r postRow
	err := s.db.Get(&r, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, errPostNotFound
	}
	if err != nil {
		return Post{}, fmt.Errorf("get post %d: %w", id, err)
	}
	return r.post(), nil
}

// CreatePost inserts p and returns it with its new id. Ids come from an
// AUTOINCREMENT counter and are never reused.
func (s *Store) CreatePost(p Post) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`INSERT INTO posts (title, content, excerpt, category, tags, comments_enabled,
		published, cover_image, views, comments, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Title, p.Content, p.Excerpt, p.Category, formatTags(p.Tags), boolInt(p.CommentsEnabled),
		boolInt(p.Published), p.CoverImage, p.Views, p.Comments, unixNano(p.CreatedAt), unixNano(p.UpdatedAt))
	if err != nil {
		return Post{}, fmt.Errorf("insert post: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Post{}, fmt.Errorf("insert post: %w", err)
	}
	p.ID = id
	if p.Tags == nil {
		p.Tags = []string{}
	}
	p.CreatedAt = fromUnixNano(unixNano(p.CreatedAt))
	p.UpdatedAt = fromUnixNano(unixNano(p.UpdatedAt))
	return p, nil
}

// UpdatePost loads the post, lets apply modify it, and writes it back, all
// under the store lock. The id and creation time cannot be changed.
func (s *Store) UpdatePost(id int64, apply func(*Post) error) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var r postRow
	err := s.db.Get(&r, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, errPostNotFound
	}
	if err != nil {
		return Post{}, fmt.Errorf("get post %d: %w", id, err)
	}
	p := r.post()
	if err := apply(&p); err != nil {
		return Post{}, err
	}
	p.ID = r.ID
	p.CreatedAt = fromUnixNano(r.CreatedAt)

	_, err = s.db.Exec(`UPDATE posts SET title = ?, content = ?, excerpt = ?, category = ?, tags = ?,
		comments_enabled = ?, published = ?, cover_image = ?, views = ?, comments = ?, updated_at = ?
		WHERE id = ?`,
		p.Title, p.Content, p.Excerpt, p.Category, formatTags(p.Tags), boolInt(p.CommentsEnabled),
		boolInt(p.Published), p.CoverImage, p.Views, p.Comments, unixNano(p.UpdatedAt), id)
	if err != nil {
		return Post{}, fmt.Errorf("update post %d: %w", id, err)
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	p.UpdatedAt = fromUnixNano(unixNano(p.UpdatedAt))
	return p, nil
}

// DeletePost removes a post and returns what was removed. If before is
// non-nil it runs under the store lock ahead of the delete; an error from
// it aborts the delete.
func (s *Store) DeletePost(id int64, before func(Post) error) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var r postRow
	err := s.db.Get(&r, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, errPostNotFound
	}
	if err != nil {
		return Post{}, fmt.Errorf("get post %d: %w", id, err)
	}
	p := r.post()
	if before != nil {
		if err := before(p); err != nil {
			return Post{}, err
		}
	}
	if _, err := s.db.Exec(`DELETE FROM posts WHERE id = ?`, id); err != nil {
		return Post{}, fmt.Errorf("delete post %d: %w", id, err)
	}
	return p, nil
}

// CountPosts returns the number of posts and how many of them are published.
func (s *Store) CountPosts() (total, published int, err error) {
	err = s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(published), 0) FROM posts`).Scan(&total, &published)
	return total, published, err
}

// SumViews returns the sum of all post view counters.
func (s *Store) SumViews() (int, error) {
	var n int
	err := s.db.Get(&n, `SELECT COALESCE(SUM(views), 0) FROM posts`)
	return n, err
}
