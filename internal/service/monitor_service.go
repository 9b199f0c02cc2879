package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/stemsi/hello-pdf-submission/internal/model"
)

// FieldLister lists raw field rows of a block usage.
type FieldLister interface {
	ListRows(ctx context.Context, usageID string, scope model.Scope) ([]model.FieldRow, error)
}

// GradeLister lists recent grade events of a block usage.
type GradeLister interface {
	ListByUsage(ctx context.Context, usageID string, limit int) ([]model.GradeEvent, error)
}

// MonitorService builds the author-facing view of a block's submissions.
type MonitorService struct {
	fields FieldLister
	grades GradeLister
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(fields FieldLister, grades GradeLister) *MonitorService {
	return &MonitorService{fields: fields, grades: grades}
}

// MonitorSnapshot is sent to a monitor when it attaches.
type MonitorSnapshot struct {
	Submissions  []model.LearnerSubmission `json:"submissions"`
	RecentGrades []model.GradeEvent        `json:"recent_grades"`
}

// Snapshot loads learner states and recent grades concurrently.
func (s *MonitorService) Snapshot(ctx context.Context, usageID string, gradeLimit int) (*MonitorSnapshot, error) {
	var (
		subs      []model.LearnerSubmission
		grades    []model.GradeEvent
		subsErr   error
		gradesErr error
		wg        sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		subs, subsErr = s.ListSubmissions(ctx, usageID)
	}()
	go func() {
		defer wg.Done()
		grades, gradesErr = s.grades.ListByUsage(ctx, usageID, gradeLimit)
	}()
	wg.Wait()

	if subsErr != nil {
		return nil, subsErr
	}
	if gradesErr != nil {
		return nil, fmt.Errorf("list grades: %w", gradesErr)
	}
	if grades == nil {
		grades = []model.GradeEvent{}
	}
	return &MonitorSnapshot{Submissions: subs, RecentGrades: grades}, nil
}

// ListSubmissions groups the stored user_state rows of a block usage by
// learner, ordered by learner id.
func (s *MonitorService) ListSubmissions(ctx context.Context, usageID string) ([]model.LearnerSubmission, error) {
	rows, err := s.fields.ListRows(ctx, usageID, model.ScopeUserState)
	if err != nil {
		return nil, fmt.Errorf("list learner fields: %w", err)
	}

	byLearner := make(map[string]*model.LearnerSubmission)
	fields := make(map[string]model.Fields)
	for _, row := range rows {
		sub, ok := byLearner[row.LearnerID]
		if !ok {
			sub = &model.LearnerSubmission{LearnerID: row.LearnerID}
			byLearner[row.LearnerID] = sub
			fields[row.LearnerID] = model.Fields{}
		}
		fields[row.LearnerID][row.Name] = row.Value
		if row.UpdatedAt.After(sub.UpdatedAt) {
			sub.UpdatedAt = row.UpdatedAt
		}
	}

	out := make([]model.LearnerSubmission, 0, len(byLearner))
	for learnerID, sub := range byLearner {
		sub.State = model.DecodeLearnerState(fields[learnerID])
		out = append(out, *sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LearnerID < out[j].LearnerID })
	return out, nil
}
