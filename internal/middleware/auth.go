package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	MemberIDKey   = "member_id"
	MemberNameKey = "member_name"
)

// MemberClaims identify the chat member a token was minted for.
type MemberClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for member id with display name name.
func IssueToken(secret []byte, id int64, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := MemberClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken verifies tokenString and returns the member it names.
func ParseToken(secret []byte, tokenString string) (int64, string, error) {
	var claims MemberClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return 0, "", err
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, "", errors.New("token subject is not a member id")
	}
	return id, claims.Name, nil
}

// AuthMiddleware rejects requests without a valid bearer token and stores
// the caller under MemberIDKey and MemberNameKey.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		id, name, err := ParseToken(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(MemberIDKey, id)
		c.Set(MemberNameKey, name)
		c.Next()
	}
}

// MemberID returns the authenticated caller set by AuthMiddleware.
func MemberID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(MemberIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

func MemberName(c *gin.Context) string {
	return c.GetString(MemberNameKey)
}
