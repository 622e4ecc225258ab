package blogapi

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type commentRow struct {
	ID        int64  `db:"id"`
	PostID    int64  `db:"post_id"`
	Author    string `db:"author"`
	Content   string `db:"content"`
	Approved  bool   `db:"approved"`
	CreatedAt int64  `db:"created_at"`
}

func (r commentRow) comment() Comment {
	return Comment{
		ID:        r.ID,
		PostID:    r.PostID,
		Author:    r.Author,
		Content:   r.Content,
		Approved:  r.Approved,
		CreatedAt: fromUnixNano(r.CreatedAt),
	}
}

var errCommentNotFound = notFoundError("Comment not found")

func (s *Store) selectComments(query string, args ...any) ([]Comment, error) {
	var rows []commentRow
	if err := s.db.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	comments := make([]Comment, 0, len(rows))
	for _, r := range rows {
		comments = append(comments, r.comment())
	}
	return comments, nil
}

// ListApprovedComments returns the approved comments of a post in insertion order.
func (s *Store) ListApprovedComments(postID int64) ([]Comment, error) {
	return s.selectComments(`SELECT id, post_id, author, content, approved, created_at
		FROM comments WHERE post_id = ? AND approved = 1 ORDER BY id`, postID)
}

// ListComments returns every comment in insertion order.
func (s *Store) ListComments() ([]Comment, error) {
	return s.selectComments(`SELECT id, post_id, author, content, approved, created_at
		FROM comments ORDER BY id`)
}

// CreateComment stores c. The post id is not checked against existing posts.
func (s *Store) CreateComment(c Comment) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`INSERT INTO comments (post_id, author, content, approved, created_at)
		VALUES (?, ?, ?, ?, ?)`, c.PostID, c.Author, c.Content, boolInt(c.Approved), unixNano(c.CreatedAt))
	if err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	c.CreatedAt = fromUnixNano(unixNano(c.CreatedAt))
	return c, nil
}

// ApproveComment marks a comment approved and returns it.
func (s *Store) ApproveComment(id int64) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE comments SET approved = 1 WHERE id = ?`, id)
	if err != nil {
		return Comment{}, fmt.Errorf("approve comment %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Comment{}, errCommentNotFound
	}
	var r commentRow
	if err := s.db.Get(&r, `SELECT id, post_id, author, content, approved, created_at
		FROM comments WHERE id = ?`, id); err != nil {
		return Comment{}, fmt.Errorf("get comment %d: %w", id, err)
	}
	return r.comment(), nil
}

// DeleteComment removes a comment.
func (s *Store) DeleteComment(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete comment %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errCommentNotFound
	}
	return nil
}

// CountApprovedComments returns the number of approved comments.
func (s *Store) CountApprovedComments() (int, error) {
	var n int
	err := s.db.Get(&n, `SELECT COUNT(*) FROM comments WHERE approved = 1`)
	return n, err
}

type subscriberRow struct {
	ID           int64  `db:"id"`
	Email        string `db:"email"`
	SubscribedAt int64  `db:"subscribed_at"`
}

var errAlreadySubscribed = conflictError("Email already subscribed")

// CreateSubscriber adds email to the newsletter list. It fails with a
// conflict if the address is already subscribed.
func (s *Store) CreateSubscriber(email string, at time.Time) (Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	if err := s.db.Get(&exists, `SELECT COUNT(*) FROM subscribers WHERE email = ?`, email); err != nil {
		return Subscriber{}, fmt.Errorf("check subscriber: %w", err)
	}
	if exists > 0 {
		return Subscriber{}, errAlreadySubscribed
	}
	res, err := s.db.Exec(`INSERT INTO subscribers (email, subscribed_at) VALUES (?, ?)`, email, unixNano(at))
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return Subscriber{}, errAlreadySubscribed
		}
		return Subscriber{}, fmt.Errorf("insert subscriber: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Subscriber{}, fmt.Errorf("insert subscriber: %w", err)
	}
	return Subscriber{ID: id, Email: email, SubscribedAt: fromUnixNano(unixNano(at))}, nil
}

// ListSubscribers returns every subscriber in insertion order.
func (s *Store) ListSubscribers() ([]Subscriber, error) {
	var rows []subscriberRow
	if err := s.db.Select(&rows, `SELECT id, email, subscribed_at FROM subscribers ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	subs := make([]Subscriber, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, Subscriber{ID: r.ID, Email: r.Email, SubscribedAt: fromUnixNano(r.SubscribedAt)})
	}
	return subs, nil
}

// CountSubscribers returns the number of subscribers.
func (s *Store) CountSubscribers() (int, error) {
	var n int
	err := s.db.Get(&n, `SELECT COUNT(*) FROM subscribers`)
	return n, err
}

type contactRow struct {
	ID      int64  `db:"id"`
	Name    string `db:"name"`
	Email   string `db:"email"`
	Subject string `db:"subject"`
	Message string `db:"message"`
	SentAt  int64  `db:"sent_at"`
	Read    bool   `db:"is_read"`
}

// CreateContact stores a contact message.
func (s *Store) CreateContact(c Contact) (Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`INSERT INTO contacts (name, email, subject, message, sent_at, is_read)
		VALUES (?, ?, ?, ?, ?, ?)`, c.Name, c.Email, c.Subject, c.Message, unixNano(c.SentAt), boolInt(c.Read))
	if err != nil {
		return Contact{}, fmt.Errorf("insert contact: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return Contact{}, fmt.Errorf("insert contact: %w", err)
	}
	c.SentAt = fromUnixNano(unixNano(c.SentAt))
	return c, nil
}

// ListContacts returns every contact message in insertion order.
func (s *Store) ListContacts() ([]Contact, error) {
	var rows []contactRow
	if err := s.db.Select(&rows, `SELECT id, name, email, subject, message, sent_at, is_read
		FROM contacts ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	contacts := make([]Contact, 0, len(rows))
	for _, r := range rows {
		contacts = append(contacts, Contact{
			ID:      r.ID,
			Name:    r.Name,
			Email:   r.Email,
			Subject: r.Subject,
			Message: r.Message,
			SentAt:  fromUnixNano(r.SentAt),
			Read:    r.Read,
		})
	}
	return contacts, nil
}

type imageRow struct {
	Filename     string `db:"filename"`
	OriginalName string `db:"original_name"`
	ContentType  string `db:"content_type"`
	Size         int64  `db:"size"`
	Width        int    `db:"width"`
	Height       int    `db:"height"`
	UploadedAt   int64  `db:"uploaded_at"`
}

// SaveImage records metadata for an uploaded image.
func (s *Store) SaveImage(img Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT OR REPLACE INTO images (filename, original_name, content_type, size, width, height, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		img.Filename, img.OriginalName, img.ContentType, img.Size, img.Width, img.Height, unixNano(img.UploadedAt))
	return err
}

// DeleteImage removes image metadata. Deleting unknown metadata is a no-op.
func (s *Store) DeleteImage(filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM images WHERE filename = ?`, filename)
	return err
}

// GetImage returns metadata for one image.
func (s *Store) GetImage(filename string) (Image, error) {
	var r imageRow
	err := s.db.Get(&r, `SELECT filename, original_name, content_type, size, width, height, uploaded_at
		FROM images WHERE filename = ?`, filename)
	if errors.Is(err, sql.ErrNoRows) {
		return Image{}, notFoundError("Image not found")
	}
	if err != nil {
		return Image{}, err
	}
	return r.image(), nil
}

// ListImages returns all image metadata, newest first.
func (s *Store) ListImages() ([]Image, error) {
	var rows []imageRow
	if err := s.db.Select(&rows, `SELECT filename, original_name, content_type, size, width, height, uploaded_at
		FROM images ORDER BY uploaded_at DESC, filename`); err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	images := make([]Image, 0, len(rows))
	for _, r := range rows {
		images = append(images, r.image())
	}
	return images, nil
}

func (r imageRow) image() Image {
	return Image{
		Filename:     r.Filename,
		Path:         uploadsPrefix + r.Filename,
		OriginalName: r.OriginalName,
		ContentType:  r.ContentType,
		Size:         r.Size,
		Width:        r.Width,
		Height:       r.Height,
		UploadedAt:   fromUnixNano(r.UploadedAt),
	}
}
