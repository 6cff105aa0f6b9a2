// Package middleware provides HTTP middleware for the API.
//
// Go Pattern: Middleware in Go is a function that wraps an HTTP handler.
// In Gin, middleware is a gin.HandlerFunc that calls c.Next() to continue
// the chain, or c.Abort() to stop processing. This is similar to Express.js
// middleware, but with explicit control flow.
package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/Shimizu-Technology/tubeboard-api/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions.
// Go Pattern: Use unexported types for context keys so other packages
// can't accidentally overwrite your values.
type contextKey string

const claimsContextKey contextKey = "claims"

// ErrInvalidPassword is returned by Login for a wrong password.
var ErrInvalidPassword = errors.New("invalid password")

// Auth guards the API behind a single operator password.
// An empty password hash disables auth entirely (local single-user runs).
type Auth struct {
	secret       string
	passwordHash string
	now          func() time.Time
}

// NewAuth creates the operator auth guard.
func NewAuth(jwtSecret, passwordHash string) *Auth {
	return &Auth{secret: jwtSecret, passwordHash: passwordHash, now: time.Now}
}

// Enabled reports whether requests must carry a token.
func (a *Auth) Enabled() bool {
	return a.passwordHash != ""
}

// Login checks the operator password and issues a session token.
func (a *Auth) Login(password string) (models.LoginResponse, error) {
	if !a.Enabled() {
		return models.LoginResponse{}, errors.New("operator auth is disabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)); err != nil {
		return models.LoginResponse{}, ErrInvalidPassword
	}
	token, expires, err := GenerateJWT(a.secret, a.now())
	if err != nil {
		return models.LoginResponse{}, err
	}
	return models.LoginResponse{Token: token, ExpiresAt: expires}, nil
}

// Require returns middleware that validates the operator token.
//
// How it works:
// 1. Read the Bearer token from the Authorization header
// 2. Validate signature and expiry
// 3. Store the claims in the request context
// 4. If invalid, return 401 Unauthorized
func (a *Auth) Require() gin.HandlerFunc {
	return a.require(false)
}

// RequireWebSocket is Require for WebSocket upgrades, which browsers cannot
// send headers on: the token may also come from the ?token= query parameter.
// Mount it only on upgrade routes so tokens stay out of ordinary URLs.
func (a *Auth) RequireWebSocket() gin.HandlerFunc {
	return a.require(true)
}

func (a *Auth) require(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() {
			c.Next()
			return
		}

		tokenString := bearerToken(c)
		if tokenString == "" && allowQuery {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			abortUnauthorized(c, "Missing or invalid Authorization header. Use 'Bearer <token>'")
			return
		}

		claims, err := ParseJWT(tokenString, a.secret)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		// Go Pattern: Gin uses its own context (different from context.Context).
		// c.Set() stores values that handlers can retrieve with c.Get().
		c.Set(string(claimsContextKey), claims)
		c.Next()
	}
}

// GetClaims retrieves the validated token claims from the request context.
func GetClaims(c *gin.Context) *JWTClaims {
	val, exists := c.Get(string(claimsContextKey))
	if !exists {
		return nil
	}
	// Go Pattern: Type assertion with the comma-ok idiom won't panic.
	claims, ok := val.(*JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// HashPassword returns the bcrypt hash to put in AUTH_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   "unauthorized",
		Message: message,
		Code:    http.StatusUnauthorized,
	})
}
