package middleware

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"evolv/internal/models"
)

const (
	UserIDKey = "user_id"
	UserKey   = "user"
)

var (
	errMissingHeader = errors.New("missing authorization header")
	errHeaderFormat  = errors.New("invalid authorization header format")
	errEmptyToken    = errors.New("empty token")
	errMissingSub    = errors.New("missing user id in token")
)

// AuthMiddleware requires a valid Supabase access token. The caller's id is
// stored under UserIDKey and their profile under UserKey.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := authenticate(c, jwtSecret)
		if err != nil {
			abortUnauthorized(c, err)
			return
		}
		setUser(c, user)
		c.Next()
	}
}

// OptionalAuth identifies the caller when a token is present and lets
// anonymous requests through. A token that is present but invalid is
// still rejected.
func OptionalAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		user, err := authenticate(c, jwtSecret)
		if err != nil {
			abortUnauthorized(c, err)
			return
		}
		setUser(c, user)
		c.Next()
	}
}

// CurrentUser returns the authenticated caller, if any.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}

func setUser(c *gin.Context, user *models.User) {
	c.Set(UserIDKey, user.ID)
	c.Set(UserKey, user)
}

func abortUnauthorized(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   "unauthorized",
		Message: err.Error(),
	})
}

func authenticate(c *gin.Context, jwtSecret string) (*models.User, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, errMissingHeader
	}

	// Extract token from "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, errHeaderFormat
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return nil, errEmptyToken
	}

	// Try URL decoding in case the token was URL-encoded
	if decoded, err := url.QueryUnescape(tokenString); err == nil {
		tokenString = decoded
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if jwtSecret == "" {
			return nil, jwt.ErrSignatureInvalid
		}
		// Supabase JWT secret is used directly as the signing key
		return []byte(jwtSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, describe(err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, errMissingSub
	}
	email, _ := claims["email"].(string)
	meta, _ := claims["user_metadata"].(map[string]interface{})

	user := models.UserFromMetadata(sub, email, meta)
	return &user, nil
}

func describe(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return errors.New("token has expired")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return errors.New("token signature is invalid")
	case errors.Is(err, jwt.ErrTokenMalformed):
		return errors.New("token is malformed")
	}
	return err
}
