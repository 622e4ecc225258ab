package blogapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"slices"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/eringen/blogapi/storage"
)

const uploadsPrefix = "/uploads/"

// ImageUploader validates uploaded cover images and persists them.
type ImageUploader struct {
	storage storage.Storage
	store   *Store
	maxSize int64
	now     func() time.Time
}

// NewImageUploader creates an uploader that rejects files over maxSize bytes.
func NewImageUploader(s storage.Storage, store *Store, maxSize int64, now func() time.Time) *ImageUploader {
	return &ImageUploader{storage: s, store: store, maxSize: maxSize, now: now}
}

func (u *ImageUploader) tooLarge() error {
	return &Error{
		Kind:    KindPayloadTooLarge,
		Message: fmt.Sprintf("File too large. Maximum size is %dMB.", u.maxSize>>20),
	}
}

// Upload validates and stores fh, returning its metadata. Path is the
// public reference "/uploads/<name>".
func (u *ImageUploader) Upload(ctx context.Context, fh *multipart.FileHeader) (Image, error) {
	contentType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return Image{}, validationError("Only image files are allowed")
	}
	if fh.Size > u.maxSize {
		return Image{}, u.tooLarge()
	}

	src, err := fh.Open()
	if err != nil {
		return Image{}, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	// Read one byte past the limit so a wrong Size header cannot slip through.
	data, err := io.ReadAll(io.LimitReader(src, u.maxSize+1))
	if err != nil {
		return Image{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > u.maxSize {
		return Image{}, u.tooLarge()
	}

	img := Image{
		OriginalName: filepath.Base(fh.Filename),
		ContentType:  contentType,
		Size:         int64(len(data)),
		UploadedAt:   u.now().UTC(),
	}
	// Dimensions are informational; formats the decoders don't know
	// (e.g. SVG) are stored with zero width and height.
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		img.Width, img.Height = cfg.Width, cfg.Height
	}

	img.Filename, err = u.save(ctx, fh.Filename, data, contentType)
	if err != nil {
		return Image{}, err
	}
	img.Path = uploadsPrefix + img.Filename

	if err := u.store.SaveImage(img); err != nil {
		_ = u.storage.Remove(ctx, img.Filename)
		return Image{}, fmt.Errorf("save image metadata: %w", err)
	}
	return img, nil
}

// save writes data under a "<millis>-<slug><ext>" name, adding a counter
// when the name is already taken.
func (u *ImageUploader) save(ctx context.Context, originalName string, data []byte, contentType string) (string, error) {
	base := timestampedName(u.now(), originalName, contentType)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	candidate := base
	for counter := 2; counter < 100; counter++ {
		err := u.storage.Save(ctx, candidate, bytes.NewReader(data), contentType)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, storage.ErrExist) {
			return "", fmt.Errorf("store image: %w", err)
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, counter, ext)
	}
	return "", fmt.Errorf("store image: no free name for %q", base)
}

// RemoveFile deletes the stored bytes behind a public path. Paths outside
// /uploads/ are ignored. It does not touch the Store, so it is safe to call
// from Store hooks that run under the store lock.
func (u *ImageUploader) RemoveFile(ctx context.Context, path string) error {
	name, ok := imageName(path)
	if !ok {
		return nil
	}
	if err := u.storage.Remove(ctx, name); err != nil {
		return fmt.Errorf("remove image %s: %w", name, err)
	}
	return nil
}

// Forget drops the metadata row of a removed image.
func (u *ImageUploader) Forget(path string) error {
	name, ok := imageName(path)
	if !ok {
		return nil
	}
	return u.store.DeleteImage(name)
}

// Discard removes both the stored bytes and the metadata of an image.
func (u *ImageUploader) Discard(ctx context.Context, path string) error {
	if err := u.RemoveFile(ctx, path); err != nil {
		return err
	}
	return u.Forget(path)
}

func imageName(path string) (string, bool) {
	name, ok := strings.CutPrefix(path, uploadsPrefix)
	return name, ok && name != ""
}

// timestampedName builds "<unix-millis>-<slugified base><ext>". The
// extension must belong to contentType, since the file is served with the
// type its extension maps to: the client's own extension is kept when it
// matches, otherwise the first registered one for contentType is used.
func timestampedName(now time.Time, originalName, contentType string) string {
	originalName = filepath.Base(strings.ReplaceAll(originalName, `\`, "/"))
	slug := Slugify(strings.TrimSuffix(originalName, filepath.Ext(originalName)))
	if slug == "" {
		slug = "image"
	}
	return fmt.Sprintf("%d-%s%s", now.UnixMilli(), slug, imageExt(originalName, contentType))
}

func imageExt(originalName, contentType string) string {
	exts, err := mime.ExtensionsByType(contentType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	ext := strings.ToLower(filepath.Ext(originalName))
	if slices.Contains(exts, ext) {
		return ext
	}
	return exts[0]
}
