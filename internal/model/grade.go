package model

import (
	"time"

	"github.com/google/uuid"
)

// GradeEvent is published to the grading channel after a successful submission.
type GradeEvent struct {
	ID          uuid.UUID `json:"id"`
	UsageID     string    `json:"usage_id"`
	CourseID    string    `json:"course_id"`
	LearnerID   string    `json:"learner_id"`
	Value       float64   `json:"value"`
	MaxValue    float64   `json:"max_value"`
	PublishedAt time.Time `json:"published_at"`
}

// NewFullCreditEvent builds the 1/1 grade sent when a learner submits.
func NewFullCreditEvent(id Identity, at time.Time) GradeEvent {
	return GradeEvent{
		ID:          uuid.New(),
		UsageID:     id.UnitID,
		CourseID:    id.CourseID,
		LearnerID:   id.LearnerID,
		Value:       1,
		MaxValue:    1,
		PublishedAt: at.UTC(),
	}
}

// SubmissionEventType enumerates submission feed events.
type SubmissionEventType string

const (
	SubmissionEventSubmitted SubmissionEventType = "submitted"
	SubmissionEventReset     SubmissionEventType = "reset"
)

// SubmissionEvent is broadcast on a block's submission feed.
type SubmissionEvent struct {
	Type        SubmissionEventType `json:"type"`
	UsageID     string              `json:"usage_id"`
	LearnerID   string              `json:"learner_id"`
	ArtifactURL string              `json:"artifact_url,omitempty"`
	At          time.Time           `json:"at"`
}
