package blogapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	User    User   `json:"user"`
}

type approveResponse struct {
	Success bool    `json:"success"`
	Comment Comment `json:"comment"`
}

func (a *App) handleLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return &Error{Kind: KindTooManyRequests, Message: "Too many login attempts. Try again later."}
	}
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return validationError("Invalid request body")
	}
	if !a.auth.CheckCredentials(req.Username, req.Password) {
		a.loginLimiter.Record(ip)
		c.Logger().Warnf("failed admin login from %s", ip)
		return &Error{Kind: KindUnauthorized, Message: "Invalid credentials"}
	}
	a.loginLimiter.Reset(ip)

	token, err := a.auth.Issue()
	if err != nil {
		return err
	}
	if err := a.setAdminSession(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, loginResponse{
		Success: true,
		Token:   token,
		User:    a.auth.User(),
	})
}

func (a *App) handleLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, successResponse{Success: true})
}

func (a *App) handleStats(c echo.Context) error {
	stats, err := a.Stats.GetStats()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (a *App) handleListComments(c echo.Context) error {
	comments, err := a.Comments.ListAll()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, comments)
}

func commentID(c echo.Context) (int64, error) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		return 0, errCommentNotFound
	}
	return id, nil
}

func (a *App) handleApproveComment(c echo.Context) error {
	id, err := commentID(c)
	if err != nil {
		return err
	}
	comment, err := a.Comments.Approve(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, approveResponse{Success: true, Comment: comment})
}

func (a *App) handleDeleteComment(c echo.Context) error {
	id, err := commentID(c)
	if err != nil {
		return err
	}
	if err := a.Comments.Delete(id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, successResponse{Success: true})
}

func (a *App) handleListSubscribers(c echo.Context) error {
	subs, err := a.Intake.ListSubscribers()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, subs)
}

func (a *App) handleListContacts(c echo.Context) error {
	contacts, err := a.Intake.ListContacts()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, contacts)
}

func (a *App) handleListImages(c echo.Context) error {
	images, err := a.Store.ListImages()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, images)
}
