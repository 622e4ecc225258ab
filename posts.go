package blogapi

import (
	"context"
	"mime/multipart"
	"time"

	"github.com/labstack/echo/v4"
)

// PostInput carries the form fields of a post create or update. Boolean
// fields are raw strings and nil when the field was absent or empty.
type PostInput struct {
	Title           string
	Content         string
	Excerpt         string
	Category        string
	Tags            string
	CommentsEnabled *string
	Published       *string
}

// PostService implements post CRUD including the cover-image lifecycle.
type PostService struct {
	store  *Store
	cache  *PostCache
	images *ImageUploader
	now    func() time.Time
	log    echo.Logger
}

// NewPostService wires a PostService.
func NewPostService(store *Store, cache *PostCache, images *ImageUploader, now func() time.Time, log echo.Logger) *PostService {
	return &PostService{store: store, cache: cache, images: images, now: now, log: log}
}

// List returns posts newest first. Without includeDrafts only published
// posts are returned, from the cache.
func (s *PostService) List(includeDrafts bool) ([]Post, error) {
	if includeDrafts {
		return s.store.ListPosts(true)
	}
	return s.cache.ListPublished()
}

// Get returns a post by id, drafts included.
func (s *PostService) Get(id int64) (Post, error) {
	return s.store.GetPost(id)
}

// flag reads a boolean form value: anything but the literal "false" is true.
func flag(raw *string, fallback bool) bool {
	if raw == nil {
		return fallback
	}
	return *raw != "false"
}

// Create stores a new post. An optional cover image is uploaded first and
// removed again if the post cannot be stored.
func (s *PostService) Create(ctx context.Context, in PostInput, cover *multipart.FileHeader) (Post, error) {
	now := s.now().UTC()
	p := Post{
		Title:           in.Title,
		Content:         in.Content,
		Excerpt:         in.Excerpt,
		Category:        in.Category,
		Tags:            NormalizeTags(in.Tags),
		CommentsEnabled: flag(in.CommentsEnabled, true),
		Published:       flag(in.Published, true),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if cover != nil {
		img, err := s.images.Upload(ctx, cover)
		if err != nil {
			return Post{}, err
		}
		p.CoverImage = img.Path
	}

	created, err := s.store.CreatePost(p)
	if err != nil {
		s.discard(ctx, p.CoverImage)
		return Post{}, err
	}
	s.cache.Invalidate()
	return created, nil
}

// Update applies a sparse patch: empty or absent fields leave stored values
// unchanged, and a new cover image replaces the old one, whose file is
// deleted after the post is written.
func (s *PostService) Update(ctx context.Context, id int64, in PostInput, cover *multipart.FileHeader) (Post, error) {
	if _, err := s.store.GetPost(id); err != nil {
		return Post{}, err
	}

	var newImage string
	if cover != nil {
		img, err := s.images.Upload(ctx, cover)
		if err != nil {
			return Post{}, err
		}
		newImage = img.Path
	}

	var oldImage string
	updated, err := s.store.UpdatePost(id, func(p *Post) error {
		if in.Title != "" {
			p.Title = in.Title
		}
		if in.Content != "" {
			p.Content = in.Content
		}
		if in.Excerpt != "" {
			p.Excerpt = in.Excerpt
		}
		if in.Category != "" {
			p.Category = in.Category
		}
		if in.Tags != "" {
			p.Tags = NormalizeTags(in.Tags)
		}
		p.CommentsEnabled = flag(in.CommentsEnabled, p.CommentsEnabled)
		p.Published = flag(in.Published, p.Published)
		if newImage != "" {
			oldImage = p.CoverImage
			p.CoverImage = newImage
		}
		p.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		s.discard(ctx, newImage)
		return Post{}, err
	}
	// The old file goes only once the post no longer references it.
	if oldImage != "" {
		if err := s.images.Discard(ctx, oldImage); err != nil {
			s.log.Warnf("remove replaced image %s: %v", oldImage, err)
		}
	}
	s.cache.Invalidate()
	return updated, nil
}

// Delete removes the post's cover image file and then the post.
func (s *PostService) Delete(ctx context.Context, id int64) error {
	deleted, err := s.store.DeletePost(id, func(p Post) error {
		return s.images.RemoveFile(ctx, p.CoverImage)
	})
	if err != nil {
		return err
	}
	if deleted.CoverImage != "" {
		if err := s.images.Forget(deleted.CoverImage); err != nil {
			s.log.Warnf("forget image %s: %v", deleted.CoverImage, err)
		}
	}
	s.cache.Invalidate()
	return nil
}

// discard removes an image uploaded for a request that then failed.
func (s *PostService) discard(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := s.images.Discard(ctx, path); err != nil {
		s.log.Warnf("discard image %s: %v", path, err)
	}
}
