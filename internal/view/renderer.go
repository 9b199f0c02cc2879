// Package view renders the learner and authoring fragments of the block.
// Rendering has no side effects: the output depends only on its input.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/stemsi/hello-pdf-submission/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	tmplStudentForm      = "student_form"
	tmplStudentSubmitted = "student_submitted"
	tmplStudio           = "studio"
)

// Endpoint tells the embedded script where to post handler calls and
// which bearer token to send with them.
type Endpoint struct {
	HandlerBase string
	Token       string
}

// StudentData is everything the learner view depends on.
type StudentData struct {
	HandlerBase string
	Token       string
	Settings    model.BlockSettings
	State       model.LearnerState
}

// StudioData is everything the authoring view depends on.
type StudioData struct {
	HandlerBase string
	Token       string
	Settings    model.BlockSettings
}

// Renderer holds the parsed block templates. It is safe for concurrent use.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("block").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse block templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// StudentTemplate names the learner template shown for state.
func StudentTemplate(state model.LearnerState) string {
	if state.Submitted {
		return tmplStudentSubmitted
	}
	return tmplStudentForm
}

// Student renders the input form, or the confirmation once submitted.
func (r *Renderer) Student(data StudentData) ([]byte, error) {
	return r.execute(StudentTemplate(data.State), data)
}

// Studio renders the authoring form.
func (r *Renderer) Studio(data StudioData) ([]byte, error) {
	return r.execute(tmplStudio, data)
}

func (r *Renderer) execute(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
