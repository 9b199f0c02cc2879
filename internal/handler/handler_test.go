package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/hello-pdf-submission/internal/config"
	"github.com/stemsi/hello-pdf-submission/internal/middleware"
	"github.com/stemsi/hello-pdf-submission/internal/model"
	"github.com/stemsi/hello-pdf-submission/internal/renderclient"
	"github.com/stemsi/hello-pdf-submission/internal/response"
	"github.com/stemsi/hello-pdf-submission/internal/service"
	"github.com/stemsi/hello-pdf-submission/internal/validator"
	"github.com/stemsi/hello-pdf-submission/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUsageID = "block-v1:Org+CS101+2026+type@hello-pdf-submission+block@abc"

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

// ─── Fakes ──────────────────────────────────────────────────────────

type memStore struct {
	mu      sync.Mutex
	data    map[model.ScopeKey]model.Fields
	loadErr error
}

func (m *memStore) Load(_ context.Context, key model.ScopeKey) (model.Fields, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := model.Fields{}
	for k, v := range m.data[key] {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) Save(_ context.Context, key model.ScopeKey, fields model.Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[key] == nil {
		m.data[key] = model.Fields{}
	}
	for k, v := range fields {
		m.data[key][k] = v
	}
	return nil
}

type nopSink struct{}

func (nopSink) Publish(context.Context, model.GradeEvent) error { return nil }

// ─── Fixture ────────────────────────────────────────────────────────

type fixture struct {
	router *gin.Engine
	auth   *service.AuthService
	store  *memStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	views, err := view.NewRenderer()
	require.NoError(t, err)

	f := &fixture{
		auth:  service.NewAuthService(&config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour}),
		store: &memStore{data: map[model.ScopeKey]model.Fields{}},
	}
	svc := service.NewSubmissionService(
		f.store, nopSink{}, nil,
		renderclient.New(2*time.Second, zerolog.Nop()),
		views,
		model.BlockSettings{APIBase: config.DefaultAPIBase, Title: config.DefaultTitle},
		zerolog.Nop(),
	)
	h := NewBlockHandler(svc, zerolog.Nop())

	r := gin.New()
	r.Use(response.RequestIDMiddleware())
	learner := r.Group("/api/v1/blocks/:usage_id", middleware.RequireLearnerJWT(f.auth))
	learner.GET("/student_view", h.StudentView)
	learner.POST("/handler/reset_submission", h.ResetSubmission)
	learner.POST("/handler/submit_text", h.SubmitText)
	author := r.Group("/api/v1/blocks/:usage_id",
		middleware.RequireAuthorJWT(f.auth),
		middleware.RequirePermission(string(model.PermissionBlocksAuthor)),
	)
	author.GET("/studio_view", h.StudioView)
	author.POST("/handler/studio_submit", h.StudioSubmit)

	f.router = r
	return f
}

func (f *fixture) token(t *testing.T, tt service.TokenType) string {
	t.Helper()
	var perms []string
	if tt == service.TokenTypeAuthor {
		perms = []string{string(model.PermissionBlocksAuthor)}
	}
	tok, err := f.auth.GenerateToken(tt, "42", "course-v1:Org+CS101+2026", perms)
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(t *testing.T, method, path, body string, tt service.TokenType) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/api/v1/blocks/"+testUsageID+path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+f.token(t, tt))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) model.HandlerResult {
	t.Helper()
	var res model.HandlerResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

// ─── Views ──────────────────────────────────────────────────────────

func TestStudentViewRendersFormForNewLearner(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/student_view", "", service.TokenTypeLearner)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, htmlContentType, w.Header().Get("Content-Type"))

	doc, err := goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	title, _ := doc.Find("#hpdf-title").Attr("value")
	assert.Equal(t, config.DefaultTitle, title)
	base, _ := doc.Find(".hpdf").Attr("data-handler-base")
	assert.Equal(t, HandlerBase(testUsageID), base)

	assert.Empty(t, f.store.data, "rendering must not write learner state")
}

func TestViewsCarryCallerToken(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		path string
		tt   service.TokenType
	}{
		{"/student_view", service.TokenTypeLearner},
		{"/studio_view", service.TokenTypeAuthor},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			tok := f.token(t, tc.tt)
			req := httptest.NewRequest(http.MethodGet, "/api/v1/blocks/"+testUsageID+tc.path, nil)
			req.Header.Set("Authorization", "Bearer "+tok)
			w := httptest.NewRecorder()
			f.router.ServeHTTP(w, req)
			require.Equal(t, http.StatusOK, w.Code)

			doc, err := goquery.NewDocumentFromReader(w.Body)
			require.NoError(t, err)
			got, ok := doc.Find("[data-handler-base]").Attr("data-token")
			require.True(t, ok)
			assert.Equal(t, tok, got)
		})
	}
}

func TestStudioViewRequiresAuthor(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/studio_view", "", service.TokenTypeLearner)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodGet, "/studio_view", "", service.TokenTypeAuthor)
	require.Equal(t, http.StatusOK, w.Code)
	doc, err := goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	apiBase, _ := doc.Find("#api-base").Attr("value")
	assert.Equal(t, config.DefaultAPIBase, apiBase)
}

func TestStoreFailureIsInternalError(t *testing.T) {
	f := newFixture(t)
	f.store.loadErr = errors.New("db down")

	w := f.do(t, http.MethodGet, "/student_view", "", service.TokenTypeLearner)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), string(response.ErrInternal))
}

func TestInvalidUsageIDRejected(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/blocks/bad%20id/student_view", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, service.TokenTypeLearner))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), string(response.ErrInvalidUsage))
}

// ─── Handlers ───────────────────────────────────────────────────────

func TestStudioSubmitAcceptsEmptyBody(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/handler/studio_submit", "", service.TokenTypeAuthor)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestStudioSubmitKeepsPriorValuesForEmptyFields(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/handler/studio_submit", `{"api_base":"https://render.example.org","title":"Essay"}`, service.TokenTypeAuthor)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/handler/studio_submit", `{"api_base":"","title":"Lab report"}`, service.TokenTypeAuthor)
	require.Equal(t, http.StatusOK, w.Code)

	fields, err := f.store.Load(context.Background(), model.ContentKey(testUsageID))
	require.NoError(t, err)
	settings := model.DecodeSettings(fields, model.BlockSettings{})
	assert.Equal(t, model.BlockSettings{APIBase: "https://render.example.org", Title: "Lab report"}, settings)
}

func TestStudioSubmitAcceptsLongAndNonStringValues(t *testing.T) {
	f := newFixture(t)
	long := "https://render.example.org/" + strings.Repeat("p", 3000)

	w := f.do(t, http.MethodPost, "/handler/studio_submit", `{"api_base":"`+long+`","title":7}`, service.TokenTypeAuthor)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	w = f.do(t, http.MethodPost, "/handler/studio_submit", `{"title":{"nested":true}}`, service.TokenTypeAuthor)
	require.Equal(t, http.StatusOK, w.Code)

	fields, err := f.store.Load(context.Background(), model.ContentKey(testUsageID))
	require.NoError(t, err)
	settings := model.DecodeSettings(fields, model.BlockSettings{})
	assert.Equal(t, model.BlockSettings{APIBase: long, Title: "7"}, settings)
}

func TestStudioSubmitRejectsMalformedJSON(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/handler/studio_submit", `{"title":`, service.TokenTypeAuthor)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), string(response.ErrValidation))
}

func TestSubmitThenResetRoundTrip(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"download_url":"https://files.example.org/42.pdf"}`))
	}))
	defer srv.Close()

	w := f.do(t, http.MethodPost, "/handler/studio_submit", `{"api_base":"`+srv.URL+`/"}`, service.TokenTypeAuthor)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/handler/submit_text", `{"text":"Hello"}`, service.TokenTypeLearner)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.HandlerResult{OK: true, Message: service.MsgSubmitted, Reload: true}, decodeResult(t, w))

	w = f.do(t, http.MethodGet, "/student_view", "", service.TokenTypeLearner)
	doc, err := goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	href, _ := doc.Find("#hpdf-link").Attr("href")
	assert.Equal(t, "https://files.example.org/42.pdf", href)

	w = f.do(t, http.MethodPost, "/handler/reset_submission", "", service.TokenTypeLearner)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	w = f.do(t, http.MethodGet, "/student_view", "", service.TokenTypeLearner)
	doc, err = goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find("#hpdf-submit").Length())
	assert.Equal(t, 0, doc.Find("#hpdf-link").Length())
}

func TestSubmitTextServiceFailureIsOKFalse(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f.do(t, http.MethodPost, "/handler/studio_submit", `{"api_base":"`+srv.URL+`"}`, service.TokenTypeAuthor)

	w := f.do(t, http.MethodPost, "/handler/submit_text", `{"text":"Hello"}`, service.TokenTypeLearner)
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeResult(t, w)
	assert.False(t, res.OK)
	assert.True(t, strings.HasPrefix(res.Message, "Service error: "))
}

func TestHandlerBaseEscapesUsageID(t *testing.T) {
	assert.Equal(t, "/api/v1/blocks/a%2Fb/handler/", HandlerBase("a/b"))
	assert.Equal(t, "/api/v1/blocks/block-v1:X+Y@z/handler/", HandlerBase("block-v1:X+Y@z"))
}
