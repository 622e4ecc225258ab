package blogapi

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/blogapi/storage"
)

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type commentRequest struct {
	Author  string `json:"author" form:"author"`
	Content string `json:"content" form:"content"`
}

type subscribeRequest struct {
	Email string `json:"email" form:"email"`
}

type contactRequest struct {
	Name    string `json:"name" form:"name"`
	Email   string `json:"email" form:"email"`
	Subject string `json:"subject" form:"subject"`
	Message string `json:"message" form:"message"`
}

func handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleListPosts(c echo.Context) error {
	includeDrafts := false
	switch c.QueryParam("admin") {
	case "1", "true":
		if !a.IsAdmin(c) {
			return &Error{Kind: KindUnauthorized, Message: "Authentication required"}
		}
		includeDrafts = true
	}
	posts, err := a.Posts.List(includeDrafts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, PostList{
		Posts:       posts,
		CurrentPage: 1,
		TotalPages:  1,
		TotalPosts:  len(posts),
	})
}

func postID(c echo.Context) (int64, error) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		return 0, errPostNotFound
	}
	return id, nil
}

func (a *App) handleGetPost(c echo.Context) error {
	id, err := postID(c)
	if err != nil {
		return err
	}
	post, err := a.Posts.Get(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

// postForm reads post fields from an urlencoded or multipart body.
func postForm(c echo.Context) (PostInput, *multipart.FileHeader, error) {
	form, err := c.FormParams()
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return PostInput{}, nil, err
		}
		return PostInput{}, nil, validationError("Invalid form data")
	}
	in := PostInput{
		Title:    strings.TrimSpace(form.Get("title")),
		Content:  form.Get("content"),
		Excerpt:  form.Get("excerpt"),
		Category: strings.TrimSpace(form.Get("category")),
		Tags:     form.Get("tags"),
	}
	if v := form.Get("commentsEnabled"); v != "" {
		in.CommentsEnabled = &v
	}
	if v := form.Get("published"); v != "" {
		in.Published = &v
	}

	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return in, nil, nil
	}
	fh, err := c.FormFile("coverImage")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil, nil
	}
	if err != nil {
		return PostInput{}, nil, validationError("Invalid cover image")
	}
	return in, fh, nil
}

func (a *App) handleCreatePost(c echo.Context) error {
	in, cover, err := postForm(c)
	if err != nil {
		return err
	}
	post, err := a.Posts.Create(c.Request().Context(), in, cover)
	if err != nil {
		return err
	}
	c.Logger().Infof("created post %d", post.ID)
	return c.JSON(http.StatusCreated, post)
}

func (a *App) handleUpdatePost(c echo.Context) error {
	id, err := postID(c)
	if err != nil {
		return err
	}
	in, cover, err := postForm(c)
	if err != nil {
		return err
	}
	post, err := a.Posts.Update(c.Request().Context(), id, in, cover)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

func (a *App) handleDeletePost(c echo.Context) error {
	id, err := postID(c)
	if err != nil {
		return err
	}
	if err := a.Posts.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	c.Logger().Infof("deleted post %d", id)
	return c.JSON(http.StatusOK, successResponse{Success: true})
}

func (a *App) handleListPostComments(c echo.Context) error {
	id, ok := parseID(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusOK, []Comment{})
	}
	comments, err := a.Comments.ListApprovedForPost(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, comments)
}

func (a *App) handleSubmitComment(c echo.Context) error {
	id, ok := parseID(c.Param("id"))
	if !ok {
		return validationError("Invalid post id")
	}
	var req commentRequest
	if err := c.Bind(&req); err != nil {
		return validationError("Invalid request body")
	}
	if _, err := a.Comments.Submit(id, req.Author, req.Content); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, successResponse{
		Success: true,
		Message: "Comment submitted for moderation",
	})
}

func (a *App) handleSubscribe(c echo.Context) error {
	var req subscribeRequest
	if err := c.Bind(&req); err != nil {
		return validationError("Invalid request body")
	}
	if _, err := a.Intake.Subscribe(req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, successResponse{
		Success: true,
		Message: "Successfully subscribed to newsletter",
	})
}

func (a *App) handleContact(c echo.Context) error {
	var req contactRequest
	if err := c.Bind(&req); err != nil {
		return validationError("Invalid request body")
	}
	if _, err := a.Intake.SubmitContact(req.Name, req.Email, req.Subject, req.Message); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, successResponse{
		Success: true,
		Message: "Message sent successfully",
	})
}

func (a *App) handleUpload(c echo.Context) error {
	rc, contentType, err := a.images.Open(c.Request().Context(), c.Param("name"))
	if errors.Is(err, storage.ErrNotExist) {
		return notFoundError("File not found")
	}
	if err != nil {
		return err
	}
	defer rc.Close()
	return c.Stream(http.StatusOK, contentType, rc)
}
