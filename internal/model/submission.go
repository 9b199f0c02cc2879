package model

import (
	"bytes"
	"encoding/json"
)

// StudioSubmitRequest is the payload of the studio_submit handler.
// Empty values leave the stored setting untouched.
type StudioSubmitRequest struct {
	APIBase string `json:"api_base"`
	Title   string `json:"title"`
}

// UnmarshalJSON accepts any JSON type per field; see looseString.
func (r *StudioSubmitRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		APIBase json.RawMessage `json:"api_base"`
		Title   json.RawMessage `json:"title"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.APIBase = looseString(raw.APIBase)
	r.Title = looseString(raw.Title)
	return nil
}

// SubmitTextRequest is the payload of the submit_text handler.
type SubmitTextRequest struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// UnmarshalJSON accepts any JSON type per field; see looseString.
func (r *SubmitTextRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title json.RawMessage `json:"title"`
		Text  json.RawMessage `json:"text"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Title = looseString(raw.Title)
	r.Text = looseString(raw.Text)
	return nil
}

// looseString reads a handler field that hosts may send with the wrong type.
// Strings pass through and numbers keep their literal text. Anything else
// counts as missing.
func looseString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return string(raw)
	}
	return ""
}

// HandlerResult is the JSON body returned by every block handler.
type HandlerResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Reload  bool   `json:"reload,omitempty"`
}

// RenderTextRequest is posted to {api_base}/render/text.
type RenderTextRequest struct {
	Text      string `json:"text"`
	Title     string `json:"title"`
	LearnerID string `json:"learner_id"`
	CourseID  string `json:"course_id"`
	UnitID    string `json:"unit_id"`
}

// RenderTextResponse is the part of the rendering service reply the block uses.
type RenderTextResponse struct {
	DownloadURL string `json:"download_url"`
}
