package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStudioSubmitRequestAcceptsAnyFieldType(t *testing.T) {
	tests := []struct {
		name string
		body string
		want StudioSubmitRequest
	}{
		{"strings", `{"api_base":"http://r","title":"Essay"}`, StudioSubmitRequest{APIBase: "http://r", Title: "Essay"}},
		{"number title", `{"title":7}`, StudioSubmitRequest{Title: "7"}},
		{"null", `{"api_base":null,"title":null}`, StudioSubmitRequest{}},
		{"bool and object", `{"api_base":true,"title":{"x":1}}`, StudioSubmitRequest{}},
		{"array", `{"title":["a"]}`, StudioSubmitRequest{}},
		{"empty object", `{}`, StudioSubmitRequest{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got StudioSubmitRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStudioSubmitRequestKeepsLongValues(t *testing.T) {
	title := strings.Repeat("t", 5000)
	body, err := json.Marshal(map[string]string{"title": title})
	require.NoError(t, err)

	var got StudioSubmitRequest
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, title, got.Title)
}

func TestSubmitTextRequestAcceptsAnyFieldType(t *testing.T) {
	var got SubmitTextRequest
	require.NoError(t, json.Unmarshal([]byte(`{"title":false,"text":12.5}`), &got))
	assert.Equal(t, SubmitTextRequest{Text: "12.5"}, got)
}

func TestLooseStringRejectsBrokenJSON(t *testing.T) {
	var got SubmitTextRequest
	assert.Error(t, json.Unmarshal([]byte(`{"text":`), &got))
}
