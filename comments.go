package blogapi

import (
	"strings"
	"time"
)

// CommentService handles comment submission and moderation.
type CommentService struct {
	store *Store
	now   func() time.Time
}

// NewCommentService wires a CommentService.
func NewCommentService(store *Store, now func() time.Time) *CommentService {
	return &CommentService{store: store, now: now}
}

// ListApprovedForPost returns the approved comments of a post.
func (s *CommentService) ListApprovedForPost(postID int64) ([]Comment, error) {
	return s.store.ListApprovedComments(postID)
}

// Submit stores a comment awaiting moderation. The post id is not checked
// against existing posts.
func (s *CommentService) Submit(postID int64, author, content string) (Comment, error) {
	author = strings.TrimSpace(author)
	content = strings.TrimSpace(content)
	if author == "" || content == "" {
		return Comment{}, validationError("Author and content are required")
	}
	return s.store.CreateComment(Comment{
		PostID:    postID,
		Author:    author,
		Content:   content,
		CreatedAt: s.now().UTC(),
	})
}

func (s *CommentService) ListAll() ([]Comment, error) {
	return s.store.ListComments()
}

func (s *CommentService) Approve(id int64) (Comment, error) {
	return s.store.ApproveComment(id)
}

func (s *CommentService) Delete(id int64) error {
	return s.store.DeleteComment(id)
}
