package blogapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct horse battery"

// fakeClock advances one second on every call so successive timestamps
// are strictly increasing.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testApp struct {
	*App
	t         *testing.T
	uploadDir string
	clock     *fakeClock
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	uploadDir := filepath.Join(t.TempDir(), "uploads")
	clock := newFakeClock()
	a := New(Config{
		UploadDir:     uploadDir,
		AdminPassword: testPassword,
		SessionSecret: "test-session-secret-0123456789abcdef",
		LogLevel:      "off",
	}, WithClock(clock.Now))
	require.NoError(t, a.Setup(context.Background()))
	t.Cleanup(func() { a.Close() })
	return &testApp{App: a, t: t, uploadDir: uploadDir, clock: clock}
}

func (ta *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ta.Echo.ServeHTTP(rec, req)
	return rec
}

func (ta *testApp) login() string {
	ta.t.Helper()
	rec := ta.do(jsonRequest(http.MethodPost, "/api/login", map[string]string{
		"username": "admin",
		"password": testPassword,
	}))
	require.Equal(ta.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp loginResponse
	require.NoError(ta.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(ta.t, resp.Token)
	return resp.Token
}

func jsonRequest(method, target string, body any) *http.Request {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func formRequest(method, target string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

type upload struct {
	filename    string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, file *upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="coverImage"; filename="%s"`, file.filename))
		h.Set("Content-Type", file.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func authed(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func uploadedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestCreateThenSparseUpdate(t *testing.T) {
	ta := newTestApp(t)
	token := ta.login()

	rec := ta.do(authed(formRequest(http.MethodPost, "/api/posts", url.Values{
		"title":    {"A"},
		"content":  {"B"},
		"category": {"tech"},
	}), token))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[Post](t, rec)
	assert.Equal(t, int64(3), created.ID)
	assert.True(t, created.Published)
	assert.True(t, created.CommentsEnabled)
	assert.Equal(t, []string{}, created.Tags)
	assert.Contains(t, rec.Body.String(), `"tags":[]`)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	rec = ta.do(authed(formRequest(http.MethodPut, "/api/posts/3", url.Values{"title": {"A2"}}), token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[Post](t, rec)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	rec = ta.do(httptest.NewRequest(http.MethodGet, "/api/posts/3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[Post](t, rec)
	assert.Equal(t, "A2", got.Title)
	assert.Equal(t, "B", got.Content)
	assert.Equal(t, "tech", got.Category)
	assert.Equal(t, []string{}, got.Tags)
	assert.Empty(t, got.CoverImage)
}

func TestCreatePostNormalizesTagsAndFlags(t *testing.T) {
	ta := newTestApp(t)
	token := ta.login()

	rec := ta.do(authed(formRequest(http.MethodPost, "/api/posts", url.Values{
		"title":           {"Draft"},
		"tags":            {" go , web,, api "},
		"published":       {"false"},
		"commentsEnabled": {"no"},
	}), token))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[Post](t, rec)
	assert.Equal(t, []string{"go", "web", "api"}, p.Tags)
	assert.False(t, p.Published)
	assert.True(t, p.CommentsEnabled, "only the literal \"false\" disables comments")
	assert.Zero(t, p.Views)
	assert.Zero(t, p.Comments)

	// Booleans change only when sent.
	rec = ta.do(authed(formRequest(http.MethodPut, fmt.Sprintf("/api/posts/%d", p.ID), url.Values{
		"commentsEnabled": {"false"},
		"tags":            {"rust"},
	}), token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p = decode[Post](t, rec)
	assert.False(t, p.CommentsEnabled)
	assert.False(t, p.Published)
	assert.Equal(t, []string{"rust"}, p.Tags)
}

func TestListPostsHidesDrafts(t *testing.T) {
	ta := newTestApp(t)
	token := ta.login()

	for _, published := range []string{"true", "false", "true"} {
		rec := ta.do(authed(formRequest(http.MethodPost, "/api/posts", url.Values{
			"title":     {"post " + published},
			"published": {published},
		}), token))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := ta.do(httptest.NewRequest(http.MethodGet, "/api/posts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	public := decode[PostList](t, rec)
	assert.Equal(t, 4, public.TotalPosts)
	assert.Equal(t, 1, public.CurrentPage)
	assert.Equal(t, 1, public.TotalPages)
	for _, p := range public.Posts {
		assert.True(t, p.Published, "draft %d in public list", p.ID)
	}

	rec = ta.do(httptest.NewRequest(http.MethodGet, "/api/posts?admin=1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ta.do(authed(httptest.NewRequest(http.MethodGet, "/api/posts?admin=1", nil), token))
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[PostList](t, rec)
	require.Equal(t, 5, all.TotalPosts)
	assert.Equal(t, int64(5), all.Posts[0].ID, "newest post first")
	for i := 1; i < len(all.Posts); i++ {
		assert.False(t, all.Posts[i].CreatedAt.After(all.Posts[i-1].CreatedAt))
	}
}

func TestGetPostNotFound(t *testing.T) {
	ta := newTestApp(t)
	token := ta.login()

	for _, target := range []string{"/api/posts/99", "/api/posts/abc"} {
		rec := ta.do(httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.JSONEq(t, `{"error":"Post not found"}`, rec.Body.String())
	}

	rec := ta.do(authed(formRequest(http.MethodPut, "/api/posts/99", url.Values{"title": {"x"}}), token))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ta.do(authed(httptest.NewRequest(http.MethodDelete, "/api/posts/99", nil), token))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPrivilegedEndpointsRequireAuth(t *testing.T) {
	ta := newTestApp(t)

	requests := []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/stats", nil),
		formRequest(http.MethodPost, "/api/posts", url.Values{"title": {"x"}}),
		formRequest(http.MethodPut, "/api/posts/1", url.Values{"title": {"x"}}),
		httptest.NewRequest(http.MethodDelete, "/api/posts/1", nil),
		httptest.NewRequest(http.MethodGet, "/api/comments", nil),
		httptest.NewRequest(http.MethodPut, "/api/comments/1/approve", nil),
		httptest.NewRequest(http.MethodDelete, "/api/comments/1", nil),
		httptest.NewRequest(http.MethodGet, "/api/subscribers", nil),
		httptest.NewRequest(http.MethodGet, "/api/contacts", nil),
		httptest.NewRequest(http.MethodGet, "/api/images", nil),
		authed(httptest.NewRequest(http.MethodGet, "/api/stats", nil), "forged-token"),
	}
	for _, req := range requests {
		rec := ta.do(req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", req.Method, req.URL.Path)
	}

	rec := ta.do(httptest.NewRequest(http.MethodGet, "/api/posts/1", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "seeded post still readable")
}

func TestLogin(t *testing.T) {
	ta := newTestApp(t)

	rec := ta.do(jsonRequest(http.MethodPost, "/api/login", map[string]string{
		"username": "admin", "password": "wrong",
	}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid credentials"}`, rec.Body.String())

	rec = ta.do(jsonRequest(http.MethodPost, "/api/login", map[string]string{
		"username": "admin", "password": testPassword,
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[loginResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, User{ID: 1, Username: "admin", Role: "admin"}, resp.User)

	rec = ta.do(authed(httptest.NewRequest(http.MethodGet, "/api/stats", nil), resp.Token))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginRateLimited(t *testing.T) {
	ta := newTestApp(t)

	for i := 0; i < 5; i++ {
		rec := ta.do(jsonRequest(http.MethodPost, "/api/login", map[string]string{"username": "admin", "password": "nope"}))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := ta.do(jsonRequest(http.MethodPost, "/api/login", map[string]string{"username": "admin", "password": testPassword}))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestSessionCookieRequiresCSRF(t *testing.T) {
	ta := newTestApp(t)

	rec := ta.do(jsonRequest(http.MethodPost, "/api/login", map[string]string{"username": "admin", "password": testPassword}))
	require.Equal(t, http.StatusOK, rec.Code)
	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionName {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie, "login should set the session cookie")

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.AddCookie(sessionCookie)
	rec = ta.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var csrfCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "_csrf" {
			csrfCookie = c
		}
	}
	require.NotNil(t, csrfCookie)

	req = httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	req.AddCookie(sessionCookie)
	rec = ta.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	req.AddCookie(sessionCookie)
	req.AddCookie(csrfCookie)
	req.Header.Set("X-CSRF-Token", csrfCookie.Value)
	rec = ta.do(req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestCoverImageLifecycle(t *testing.T) {
	ta := newTestApp(t)
	token := ta.login()

	rec := ta.do(authed(multipartRequest(t, http.MethodPost, "/api/posts",
		map[string]string{"title": "With image", "content": "c"},
		&upload{filename: "My Cat.PNG", contentType: "image/png", data: pngBytes(t, 4, 3)}), token))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[Post](t, rec)
	require.True(t, strings.HasPrefix(p.CoverImage, "/uploads/"), p.CoverImage)
	assert.True(t, strings.HasSuffix(p.CoverImage, "-my-cat.png"), p.CoverImage)
	first := strings.TrimPrefix(p.CoverImage, "/uploads/")
	assert.Equal(t, []string{first}, uploadedFiles(t, ta.uploadDir))

	rec = ta.do(httptest.NewRequest(http.MethodGet, p.CoverImage, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = ta.do(authed(httptest.NewRequest(http.MethodGet, "/api/images", nil), token))
	require.Equal(t, http.StatusOK, rec.Code)
	images := decode[[]Image](t, rec)
	require.Len(t, images, 1)
	assert.Equal(t, 4, images[0].Width)
	assert.Equal(t, 3, images[0].Height)

	// Replacing the image deletes the old file.
	rec = ta.do(authed(multipartRequest(t, http.MethodPut, fmt.Sprintf("/api/posts/%d", p.ID),
		nil, &upload{filename: "dog.png", contentType: "image/png", data: pngBytes(t, 2, 2)}), token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[Post](t, rec)
	assert.NotEqual(t, p.CoverImage, updated.CoverImage)
	assert.Equal(t, "With image", updated.Title)
	second := strings.TrimPrefix(updated.CoverImage, "/uploads/")
	assert.Equal(t, []string{second}, uploadedFiles(t, ta.uploadDir))

	rec = ta.do(httptest.NewRequest(http.MethodGet, p.CoverImage, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Deleting the post deletes its image.
	rec = ta.do(authed(httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/posts/%d", p.ID), nil), token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	assert.Empty(t, uploadedFiles(t, ta.uploadDir))

	rec = ta.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/posts/%d", p.ID), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	images, err := ta.Store.ListImages()
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestOversizedImageRejected(t *testing.T) {
	ta := newTestApp(t)
	token := ta.login()

	big := bytes.Repeat([]byte{0xff}, 6<<20)
	rec := ta.do(authed(multipartRequest(t, http.MethodPost, "/api/posts",
		map[string]string{"title": "Too big"},
		&upload{filename: "big.jpg", contentType: "image/jpeg", data: big}), token))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"File too large. Maximum size is 5MB."}`, rec.Body.String())

	posts, err := ta.Store.ListPosts(true)
	require.NoError(t, err)
	assert.Len(t, posts, 2, "no post should be created")
	assert.Empty(t, uploadedFiles(t, ta.uploadDir))
}

func TestNonImageRejected(t *testing.T) {
	ta := newTestApp(t)
	token := ta.login()

	rec := ta.do(authed(multipartRequest(t, http.MethodPost, "/api/posts",
		map[string]string{"title": "Script"},
		&upload{filename: "evil.sh", contentType: "text/x-shellscript", data: []byte("#!/bin/sh")}), token))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Only image files are allowed"}`, rec.Body.String())

	posts, _ := ta.Store.ListPosts(true)
	assert.Len(t, posts, 2)
}

func TestCommentModeration(t *testing.T) {
	ta := newTestApp(t)
	token := ta.login()

	rec := ta.do(jsonRequest(http.MethodPost, "/api/posts/1/comments", map[string]string{"author": "Ann"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Author and content are required"}`, rec.Body.String())

	rec = ta.do(jsonRequest(http.MethodPost, "/api/posts/1/comments", map[string]string{"author": "Ann", "content": "Nice post"}))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Comment submitted for moderation"}`, rec.Body.String())

	rec = ta.do(httptest.NewRequest(http.MethodGet, "/api/posts/1/comments", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]Comment](t, rec))

	rec = ta.do(authed(httptest.NewRequest(http.MethodGet, "/api/comments", nil), token))
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]Comment](t, rec)
	require.Len(t, all, 1)
	assert.False(t, all[0].Approved)

	rec = ta.do(authed(httptest.NewRequest(http.MethodPut, fmt.Sprintf("/api/comments/%d/approve", all[0].ID), nil), token))
	require.Equal(t, http.StatusOK, rec.Code)
	approved := decode[approveResponse](t, rec)
	assert.True(t, approved.Success)
	assert.True(t, approved.Comment.Approved)

	rec = ta.do(httptest.NewRequest(http.MethodGet, "/api/posts/1/comments", nil))
	visible := decode[[]Comment](t, rec)
	require.Len(t, visible, 1)
	assert.Equal(t, "Nice post", visible[0].Content)

	rec = ta.do(httptest.NewRequest(http.MethodGet, "/api/posts/2/comments", nil))
	assert.Empty(t, decode[[]Comment](t, rec))

	rec = ta.do(authed(httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/comments/%d", all[0].ID), nil), token))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = ta.do(authed(httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/comments/%d", all[0].ID), nil), token))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ta.do(authed(httptest.NewRequest(http.MethodPut, "/api/comments/42/approve", nil), token))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Comment not found"}`, rec.Body.String())
}

func TestSubscribe(t *testing.T) {
	ta := newTestApp(t)
	token := ta.login()

	rec := ta.do(jsonRequest(http.MethodPost, "/api/subscribe", map[string]string{"email": "not-an-email"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Valid email is required"}`, rec.Body.String())

	rec = ta.do(jsonRequest(http.MethodPost, "/api/subscribe", map[string]string{"email": "reader@example.com"}))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ta.do(jsonRequest(http.MethodPost, "/api/subscribe", map[string]string{"email": "reader@example.com"}))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"Email already subscribed"}`, rec.Body.String())

	rec = ta.do(authed(httptest.NewRequest(http.MethodGet, "/api/subscribers", nil), token))
	require.Equal(t, http.StatusOK, rec.Code)
	subs := decode[[]Subscriber](t, rec)
	require.Len(t, subs, 1)
	assert.Equal(t, "reader@example.com", subs[0].Email)
}

func TestContact(t *testing.T) {
	ta := newTestApp(t)
	token := ta.login()

	full := map[string]string{"name": "Ann", "email": "ann@example.com", "subject": "Hi", "message": "Hello"}
	for _, missing := range []string{"name", "email", "subject", "message"} {
		body := map[string]string{}
		for k, v := range full {
			if k != missing {
				body[k] = v
			}
		}
		rec := ta.do(jsonRequest(http.MethodPost, "/api/contact", body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "missing %s", missing)
	}

	rec := ta.do(authed(httptest.NewRequest(http.MethodGet, "/api/contacts", nil), token))
	assert.Empty(t, decode[[]Contact](t, rec))

	rec = ta.do(jsonRequest(http.MethodPost, "/api/contact", full))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Message sent successfully"}`, rec.Body.String())

	rec = ta.do(authed(httptest.NewRequest(http.MethodGet, "/api/contacts", nil), token))
	contacts := decode[[]Contact](t, rec)
	require.Len(t, contacts, 1)
	assert.False(t, contacts[0].Read)
	assert.Equal(t, "Hello", contacts[0].Message)
}

func TestStats(t *testing.T) {
	ta := newTestApp(t)
	token := ta.login()

	rec := ta.do(authed(httptest.NewRequest(http.MethodGet, "/api/stats", nil), token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Stats{TotalPosts: 2, TotalViews: 1250}, decode[Stats](t, rec))

	ta.do(authed(formRequest(http.MethodPost, "/api/posts", url.Values{"title": {"d"}, "published": {"false"}}), token))
	ta.do(jsonRequest(http.MethodPost, "/api/subscribe", map[string]string{"email": "a@b.c"}))
	c, err := ta.Comments.Submit(1, "x", "y")
	require.NoError(t, err)
	_, err = ta.Comments.Submit(1, "x", "pending")
	require.NoError(t, err)
	_, err = ta.Comments.Approve(c.ID)
	require.NoError(t, err)

	rec = ta.do(authed(httptest.NewRequest(http.MethodGet, "/api/stats", nil), token))
	assert.Equal(t, Stats{
		TotalPosts:       2,
		TotalDrafts:      1,
		TotalViews:       1250,
		TotalSubscribers: 1,
		TotalComments:    1,
	}, decode[Stats](t, rec))
}

func TestLiveStatsSumsViews(t *testing.T) {
	s := newTestStore(t)
	stats, err := NewStatsService(s, true).GetStats()
	require.NoError(t, err)
	assert.Equal(t, 150+89, stats.TotalViews)
}

func TestHealthAndUnknownRoute(t *testing.T) {
	ta := newTestApp(t)

	rec := ta.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = ta.do(httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}

func TestUpdateIgnoresEmptyBooleans(t *testing.T) {
	ta := newTestApp(t)
	token := ta.login()

	rec := ta.do(authed(formRequest(http.MethodPost, "/api/posts", url.Values{
		"title":           {"D"},
		"published":       {"false"},
		"commentsEnabled": {"false"},
	}), token))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[Post](t, rec)

	rec = ta.do(authed(formRequest(http.MethodPut, fmt.Sprintf("/api/posts/%d", p.ID), url.Values{
		"title":           {"D2"},
		"published":       {""},
		"commentsEnabled": {""},
	}), token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[Post](t, rec)
	assert.Equal(t, "D2", updated.Title)
	assert.False(t, updated.Published, "empty published must not publish a draft")
	assert.False(t, updated.CommentsEnabled)
}

func TestOversizedBodyReportsImageLimit(t *testing.T) {
	ta := newTestApp(t)
	token := ta.login()

	huge := bytes.Repeat([]byte{0xff}, 13<<20)
	for _, method := range []string{http.MethodPost, http.MethodPut} {
		target := "/api/posts"
		if method == http.MethodPut {
			target = "/api/posts/1"
		}
		rec := ta.do(authed(multipartRequest(t, method, target,
			map[string]string{"title": "Huge"},
			&upload{filename: "huge.jpg", contentType: "image/jpeg", data: huge}), token))
		assert.Equal(t, http.StatusBadRequest, rec.Code, method)
		assert.JSONEq(t, `{"error":"File too large. Maximum size is 5MB."}`, rec.Body.String())
	}

	posts, err := ta.Store.ListPosts(true)
	require.NoError(t, err)
	assert.Len(t, posts, 2)
	assert.Equal(t, "Getting Started with Web Development", posts[0].Title)
	assert.Empty(t, uploadedFiles(t, ta.uploadDir))
}

func TestFailedUpdateKeepsOldCover(t *testing.T) {
	ta := newTestApp(t)
	token := ta.login()

	rec := ta.do(authed(multipartRequest(t, http.MethodPost, "/api/posts",
		map[string]string{"title": "Covered"},
		&upload{filename: "old.png", contentType: "image/png", data: pngBytes(t, 2, 2)}), token))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[Post](t, rec)
	oldName := strings.TrimPrefix(p.CoverImage, "/uploads/")

	_, err := ta.Store.db.Exec(`CREATE TRIGGER reject_post_update BEFORE UPDATE ON posts
		BEGIN SELECT RAISE(ABORT, 'posts are read only'); END`)
	require.NoError(t, err)

	rec = ta.do(authed(multipartRequest(t, http.MethodPut, fmt.Sprintf("/api/posts/%d", p.ID),
		nil, &upload{filename: "new.png", contentType: "image/png", data: pngBytes(t, 3, 3)}), token))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	assert.Equal(t, []string{oldName}, uploadedFiles(t, ta.uploadDir), "old cover kept, new one discarded")
	rec = ta.do(httptest.NewRequest(http.MethodGet, p.CoverImage, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	images, err := ta.Store.ListImages()
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, oldName, images[0].Filename)
}
