package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/hello-pdf-submission/internal/config"
	"github.com/stemsi/hello-pdf-submission/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuth() *service.AuthService {
	return service.NewAuthService(&config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour})
}

func mint(t *testing.T, auth *service.AuthService, tt service.TokenType, perms ...string) string {
	t.Helper()
	tok, err := auth.GenerateToken(tt, "user-1", "course-1", perms)
	require.NoError(t, err)
	return tok
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireLearnerJWT(t *testing.T) {
	auth := newAuth()
	r := gin.New()
	r.GET("/x", RequireLearnerJWT(auth), func(c *gin.Context) {
		c.String(http.StatusOK, GetClaims(c).Subject)
	})
	r.POST("/x", RequireLearnerJWT(auth), func(c *gin.Context) {
		c.String(http.StatusOK, GetToken(c))
	})

	t.Run("missing token", func(t *testing.T) {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "TOKEN_REQUIRED")
	})

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Authorization", "Bearer "+mint(t, auth, service.TokenTypeLearner))
		w := serve(r, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-1", w.Body.String())
	})

	t.Run("query fallback", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x?token="+mint(t, auth, service.TokenTypeLearner), nil)
		assert.Equal(t, http.StatusOK, serve(r, req).Code)
	})

	t.Run("query token ignored on POST", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/x?token="+mint(t, auth, service.TokenTypeLearner), nil)
		w := serve(r, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "TOKEN_REQUIRED")
	})

	t.Run("raw token exposed to handlers", func(t *testing.T) {
		tok := mint(t, auth, service.TokenTypeLearner)
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := serve(r, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tok, w.Body.String())
	})

	t.Run("author token rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Authorization", "Bearer "+mint(t, auth, service.TokenTypeAuthor))
		w := serve(r, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "LEARNER_ACCESS_ONLY")
	})

	t.Run("foreign secret", func(t *testing.T) {
		other := service.NewAuthService(&config.Config{JWTSecret: "other", JWTExpiry: time.Hour})
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Authorization", "Bearer "+mint(t, other, service.TokenTypeLearner))
		assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
	})
}

func TestRequireAuthorWithPermission(t *testing.T) {
	auth := newAuth()
	r := gin.New()
	r.GET("/x", RequireAuthorJWT(auth), RequirePermission("blocks:author"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+mint(t, auth, service.TokenTypeAuthor, "blocks:author"))
	assert.Equal(t, http.StatusNoContent, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+mint(t, auth, service.TokenTypeAuthor, "blocks:monitor"))
	w := serve(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "PERMISSION_DENIED")

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+mint(t, auth, service.TokenTypeLearner))
	w = serve(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "AUTHOR_ACCESS_ONLY")
}

func TestRequirePermissionWithoutClaims(t *testing.T) {
	r := gin.New()
	r.GET("/x", RequirePermission("blocks:author"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	assert.Equal(t, http.StatusUnauthorized, serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
}

func TestRequireAuthorWSAuth(t *testing.T) {
	auth := newAuth()
	r := gin.New()
	r.GET("/ws", RequireAuthorWSAuth(auth), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_REQUIRED")

	w = serve(r, httptest.NewRequest(http.MethodGet, "/ws?token=garbage", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/ws?token="+mint(t, auth, service.TokenTypeLearner), nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/ws?token="+mint(t, auth, service.TokenTypeAuthor), nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimiterRejectsBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 2, time.Minute)
	r := gin.New()
	r.POST("/x", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusNoContent, serve(r, httptest.NewRequest(http.MethodPost, "/x", nil)).Code)
	}
	w := serve(r, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")
}

func TestRateLimiterRefillsAndKeysBySubject(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 1, time.Minute)
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("learner:a"))
	assert.False(t, rl.allow("learner:a"))
	assert.True(t, rl.allow("learner:b"))

	now = now.Add(time.Minute)
	assert.True(t, rl.allow("learner:a"))

	now = now.Add(10 * time.Minute)
	rl.cleanup()
	assert.Empty(t, rl.visitors)
}

func TestNoStore(t *testing.T) {
	r := gin.New()
	r.GET("/x", NoStore(), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestBrotliCompressesLargeHTML(t *testing.T) {
	body := strings.Repeat("<p>hello</p>", 400)
	r := gin.New()
	r.Use(Brotli())
	r.GET("/big", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(body))
	})
	r.GET("/small", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte("<p>hi</p>"))
	})
	r.GET("/binary", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/pdf", []byte(body))
	})

	req := httptest.NewRequest(http.MethodGet, "/big", nil)
	req.Header.Set("Accept-Encoding", "gzip, br")
	w := serve(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "br", w.Header().Get("Content-Encoding"))
	plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	require.NoError(t, err)
	assert.Equal(t, body, string(plain))

	req = httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "br")
	w = serve(r, req)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, "<p>hi</p>", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/binary", nil)
	req.Header.Set("Accept-Encoding", "br")
	w = serve(r, req)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, body, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/big", nil)
	req.Header.Set("Accept-Encoding", "br;q=0")
	w = serve(r, req)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
}

func TestAccessLogOmitsQueryString(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(AccessLog(zerolog.New(&buf)))
	r.GET("/api/v1/blocks/:usage_id/student_view", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/blocks/b1/student_view?token=secret-jwt", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	line := buf.String()
	assert.Contains(t, line, `"path":"/api/v1/blocks/b1/student_view"`)
	assert.Contains(t, line, `"status":204`)
	assert.NotContains(t, line, "secret-jwt")
	assert.NotContains(t, line, "token=")
}
