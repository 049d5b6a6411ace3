package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const (
	UserKey = "userID"
	RoleKey = "role"

	RoleAdmin = "admin"
)

var errInvalidToken = errors.New("invalid token")

// Identity resolves the caller from a bearer JWT signed with jwtSecret.
// With trustHeaders set, the X-User-ID and X-User-Role headers forwarded by
// an authenticating gateway take precedence; otherwise they are ignored.
// Anonymous requests pass through; only a bad bearer token is rejected.
func Identity(jwtSecret string, trustHeaders bool) gin.HandlerFunc {
	secret := []byte(jwtSecret)

	return func(c *gin.Context) {
		var userID, role string
		if trustHeaders {
			userID = strings.TrimSpace(c.GetHeader("X-User-ID"))
			role = strings.TrimSpace(c.GetHeader("X-User-Role"))
		}

		if userID == "" && len(secret) > 0 {
			if token := bearerToken(c.GetHeader("Authorization")); token != "" {
				sub, tokenRole, err := parseToken(token, secret)
				if err != nil {
					c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "invalid token"})
					return
				}
				userID, role = sub, tokenRole
			}
		}

		if userID != "" {
			c.Set(UserKey, userID)
			c.Set(RoleKey, role)
		}
		c.Next()
	}
}

// RequireIdentity rejects anonymous callers.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "authentication required"})
			return
		}
		c.Next()
	}
}

// AdminOnly rejects callers without the admin role.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "authentication required"})
			return
		}
		if !strings.EqualFold(GetRole(c), RoleAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "admin access required"})
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) string {
	return c.GetString(UserKey)
}

func GetRole(c *gin.Context) string {
	return c.GetString(RoleKey)
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func parseToken(tokenString string, secret []byte) (string, string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", "", errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", "", errInvalidToken
	}
	role, _ := claims["role"].(string)
	return sub, role, nil
}
