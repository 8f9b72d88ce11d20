package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// GuardianIDKey is the gin context key holding the authenticated guardian id (uint).
const GuardianIDKey = "guardian_id"

// Claims are issued by the account system for guardians.
type Claims struct {
	GuardianID uint   `json:"guardian_id"`
	Email      string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// GuardianAuth verifies an HS256 bearer token. Browsers cannot set headers
// on websocket upgrades, so ?token= is accepted as well.
func GuardianAuth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		claims, err := ParseToken(key, tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		c.Set(GuardianIDKey, claims.GuardianID)
		c.Next()
	}
}

// ParseToken validates the signature and expiry and requires a guardian_id claim.
func ParseToken(key []byte, tokenString string) (*Claims, error) {
	if len(key) == 0 {
		return nil, errors.New("token verification is not configured")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.GuardianID == 0 {
		return nil, errors.New("invalid token: missing guardian_id")
	}
	return claims, nil
}

// IssueToken signs a guardian token; the account system and tests use it.
func IssueToken(secret string, guardianID uint, claims jwt.RegisteredClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		GuardianID:       guardianID,
		RegisteredClaims: claims,
	})
	return token.SignedString([]byte(secret))
}

// GuardianID reads the id stored by GuardianAuth.
func GuardianID(c *gin.Context) (uint, bool) {
	value, exists := c.Get(GuardianIDKey)
	if !exists {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return c.Query("token")
}
