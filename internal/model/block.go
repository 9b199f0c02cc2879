package model

import "time"

// Field names, shared by storage, views and handlers.
const (
	FieldAPIBase     = "api_base"
	FieldTitle       = "title"
	FieldSubmitted   = "submitted"
	FieldArtifactURL = "artifact_url"
)

// BlockSettings is the author-configured state of a block usage.
type BlockSettings struct {
	APIBase string `json:"api_base"`
	Title   string `json:"title"`
}

// DecodeSettings reads settings from content fields, falling back to defaults.
func DecodeSettings(f Fields, defaults BlockSettings) BlockSettings {
	return BlockSettings{
		APIBase: f.String(FieldAPIBase, defaults.APIBase),
		Title:   f.String(FieldTitle, defaults.Title),
	}
}

// Fields encodes the settings for storage.
func (s BlockSettings) Fields() Fields {
	f := Fields{}
	f.Set(FieldAPIBase, s.APIBase)
	f.Set(FieldTitle, s.Title)
	return f
}

// Merge returns s with every non-empty value of update applied.
func (s BlockSettings) Merge(update StudioSubmitRequest) BlockSettings {
	if update.APIBase != "" {
		s.APIBase = update.APIBase
	}
	if update.Title != "" {
		s.Title = update.Title
	}
	return s
}

// LearnerState is one learner's submission state on a block usage.
// Submitted implies ArtifactURL is non-empty.
type LearnerState struct {
	Submitted   bool   `json:"submitted"`
	ArtifactURL string `json:"artifact_url"`
}

// DecodeLearnerState reads learner state from user_state fields.
func DecodeLearnerState(f Fields) LearnerState {
	return LearnerState{
		Submitted:   f.Bool(FieldSubmitted, false),
		ArtifactURL: f.String(FieldArtifactURL, ""),
	}
}

// Fields encodes both learner fields so they are always written together.
func (s LearnerState) Fields() Fields {
	f := Fields{}
	f.Set(FieldSubmitted, s.Submitted)
	f.Set(FieldArtifactURL, s.ArtifactURL)
	return f
}

// Identity is supplied by the host for every handler call and is read-only.
type Identity struct {
	LearnerID string `json:"learner_id"`
	CourseID  string `json:"course_id"`
	UnitID    string `json:"unit_id"`
}

// LearnerSubmission is one learner's stored state, as listed for monitors.
type LearnerSubmission struct {
	LearnerID string       `json:"learner_id"`
	State     LearnerState `json:"state"`
	UpdatedAt time.Time    `json:"updated_at"`
}
