package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopsense/core/internal/pkg/response"
)

const ContextKeySubject = "auth_subject"

var errTokenRequired = errors.New("token is required")

// Claims carried by admin tokens.
type Claims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// Auth returns a middleware enforcing a signed HS256 bearer token on
// admin routes. Token issuance happens out of band; there is no login
// flow in this service.
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := ValidateToken(secret, extractToken(c))
		if err != nil {
			response.Unauthorized(c)
			return
		}
		c.Set(ContextKeySubject, claims.Subject)
		c.Next()
	}
}

// ValidateToken parses and verifies an HS256 token.
func ValidateToken(secret, rawToken string) (*Claims, error) {
	token := NormalizeToken(rawToken)
	if token == "" {
		return nil, errTokenRequired
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// SignToken mints an HS256 token for the given subject.
func SignToken(secret, subject string, ttl time.Duration) (string, error) {
	claims := &Claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return NormalizeToken(auth)
	}
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips an optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
