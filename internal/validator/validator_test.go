package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type payload struct {
	Title string `json:"title" binding:"omitempty,max=5"`
}

func init() {
	gin.SetMode(gin.TestMode)
	Setup()
}

func bindBody(t *testing.T, body string, optional bool) (payload, map[string]string) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var (
		p      payload
		fields map[string]string
	)
	if optional {
		fields = BindOptional(c, &p)
	} else {
		fields = Bind(c, &p)
	}
	return p, fields
}

func TestBindOptionalAcceptsEmptyBody(t *testing.T) {
	p, fields := bindBody(t, "", true)
	assert.Nil(t, fields)
	assert.Equal(t, payload{}, p)
}

func TestBindOptionalAcceptsNull(t *testing.T) {
	_, fields := bindBody(t, "null", true)
	assert.Nil(t, fields)
}

func TestBindRejectsEmptyBody(t *testing.T) {
	_, fields := bindBody(t, "", false)
	assert.Contains(t, fields, "detail")
}

func TestBindTranslatesValidationErrors(t *testing.T) {
	_, fields := bindBody(t, `{"title":"far too long"}`, true)
	assert.Contains(t, fields, "title")
}

func TestBindReportsSyntaxErrors(t *testing.T) {
	_, fields := bindBody(t, `{"title":`, true)
	assert.Contains(t, fields, "detail")
}
