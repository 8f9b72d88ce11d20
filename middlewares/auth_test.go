package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", GuardianAuth(secret), func(c *gin.Context) {
		id, ok := GuardianID(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "ok": ok})
	})
	return r
}

func get(r *gin.Engine, path, header string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGuardianAuthAcceptsBearerAndQuery(t *testing.T) {
	r := authRouter("secret")
	signed, err := IssueToken("secret", 42, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	require.NoError(t, err)

	w := get(r, "/me", "Bearer "+signed)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id": 42, "ok": true}`, w.Body.String())

	w = get(r, "/me?token="+signed, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGuardianAuthRejects(t *testing.T) {
	r := authRouter("secret")

	expired, err := IssueToken("secret", 42, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))})
	require.NoError(t, err)
	wrongKey, err := IssueToken("other", 42, jwt.RegisteredClaims{})
	require.NoError(t, err)
	noGuardian, err := IssueToken("secret", 0, jwt.RegisteredClaims{})
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing":     "",
		"not bearer":  "Basic abc",
		"garbage":     "Bearer abc.def.ghi",
		"expired":     "Bearer " + expired,
		"wrong key":   "Bearer " + wrongKey,
		"no guardian": "Bearer " + noGuardian,
	} {
		w := get(r, "/me", header)
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
	}
}

func TestParseTokenRejectsOtherAlgorithms(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{GuardianID: 1})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ParseToken([]byte("secret"), signed)
	assert.Error(t, err)

	_, err = ParseToken(nil, signed)
	assert.Error(t, err)
}
