package blogapi

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

const (
	sessionName = "admin_session"
	tokenName   = "blogapi_token"
	roleAdmin   = "admin"
)

// Claims is the payload of a signed admin token.
type Claims struct {
	Subject  string `json:"sub"`
	Role     string `json:"role"`
	ID       string `json:"jti"`
	IssuedAt int64  `json:"iat"`
}

var errInvalidToken = &Error{Kind: KindUnauthorized, Message: "Invalid or expired token"}

// Authenticator checks admin credentials and issues signed bearer tokens.
type Authenticator struct {
	username string
	hash     []byte
	codec    *securecookie.SecureCookie
	ttl      time.Duration
	now      func() time.Time
}

// NewAuthenticator prepares the admin credential. A plain password is
// hashed once here so login always goes through bcrypt.
func NewAuthenticator(cfg Config, now func() time.Time) (*Authenticator, error) {
	hash := []byte(cfg.AdminPasswordHash)
	if len(hash) == 0 {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
	} else if _, err := bcrypt.Cost(hash); err != nil {
		return nil, fmt.Errorf("invalid AdminPasswordHash: %w", err)
	}

	codec := securecookie.New([]byte(cfg.SessionSecret), nil)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(cfg.TokenTTL / time.Second))

	return &Authenticator{
		username: cfg.AdminUsername,
		hash:     hash,
		codec:    codec,
		ttl:      cfg.TokenTTL,
		now:      now,
	}, nil
}

// CheckCredentials reports whether username and password match the admin.
func (au *Authenticator) CheckCredentials(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(au.username)) == 1
	passOK := bcrypt.CompareHashAndPassword(au.hash, []byte(password)) == nil
	return userOK && passOK
}

// Issue returns a signed token for the admin user.
func (au *Authenticator) Issue() (string, error) {
	claims := Claims{
		Subject:  au.username,
		Role:     roleAdmin,
		ID:       uuid.NewString(),
		IssuedAt: au.now().Unix(),
	}
	token, err := au.codec.Encode(tokenName, claims)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify checks a token's signature and age and returns its claims.
func (au *Authenticator) Verify(token string) (Claims, error) {
	var claims Claims
	if err := au.codec.Decode(tokenName, token, &claims); err != nil {
		return Claims{}, errInvalidToken
	}
	issued := time.Unix(claims.IssuedAt, 0)
	if au.now().Sub(issued) > au.ttl {
		return Claims{}, errInvalidToken
	}
	if claims.Role != roleAdmin || claims.Subject != au.username {
		return Claims{}, errInvalidToken
	}
	return claims, nil
}

// User returns the principal described by the admin credential.
func (au *Authenticator) User() User {
	return User{ID: 1, Username: au.username, Role: roleAdmin}
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
func bearerToken(c echo.Context) string {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// IsAdmin reports whether the request carries a valid bearer token or an
// authenticated admin session.
func (a *App) IsAdmin(c echo.Context) bool {
	if token := bearerToken(c); token != "" {
		_, err := a.auth.Verify(token)
		return err == nil
	}
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return false
	}
	auth, ok := sess.Values["authenticated"].(bool)
	return ok && auth
}

func (a *App) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !a.IsAdmin(c) {
			return &Error{Kind: KindUnauthorized, Message: "Authentication required"}
		}
		return next(c)
	}
}

func (a *App) setAdminSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values["authenticated"] = true
	return sess.Save(c.Request(), c.Response())
}

func clearAdminSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}

// hasSessionCookie reports whether the request authenticates by cookie
// rather than by bearer token. CSRF checks apply only to those requests.
func hasSessionCookie(c echo.Context) bool {
	if bearerToken(c) != "" {
		return false
	}
	_, err := c.Cookie(sessionName)
	return err == nil
}
