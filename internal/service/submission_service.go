package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/hello-pdf-submission/internal/model"
	"github.com/stemsi/hello-pdf-submission/internal/view"
)

// Handler result messages shown to the learner.
const (
	MsgSubmitted          = "Submitted successfully."
	MsgMissingDownloadURL = "Service did not return download_url"
	msgServiceErrorPrefix = "Service error: "
)

// ErrMissingDownloadURL is logged when the rendering service answered 2xx
// without a usable download_url.
var ErrMissingDownloadURL = errors.New("render service did not return download_url")

// StateStore persists scoped block fields. Save must apply all given fields
// atomically.
type StateStore interface {
	Load(ctx context.Context, key model.ScopeKey) (model.Fields, error)
	Save(ctx context.Context, key model.ScopeKey, fields model.Fields) error
}

// EventSink receives grade notifications for the host's grading channel.
type EventSink interface {
	Publish(ctx context.Context, ev model.GradeEvent) error
}

// SubmissionNotifier broadcasts submission changes to live monitors.
type SubmissionNotifier interface {
	Publish(ctx context.Context, ev model.SubmissionEvent) error
}

// TextRenderer turns learner text into an artifact link.
type TextRenderer interface {
	RenderText(ctx context.Context, apiBase string, req model.RenderTextRequest) (*model.RenderTextResponse, error)
}

// SubmissionService implements the block's views and handlers on top of
// injected host capabilities.
type SubmissionService struct {
	store    StateStore
	grades   EventSink
	feed     SubmissionNotifier
	renderer TextRenderer
	views    *view.Renderer
	defaults model.BlockSettings
	log      zerolog.Logger
	now      func() time.Time
}

// NewSubmissionService creates a new SubmissionService. feed may be nil.
func NewSubmissionService(
	store StateStore,
	grades EventSink,
	feed SubmissionNotifier,
	renderer TextRenderer,
	views *view.Renderer,
	defaults model.BlockSettings,
	log zerolog.Logger,
) *SubmissionService {
	return &SubmissionService{
		store:    store,
		grades:   grades,
		feed:     feed,
		renderer: renderer,
		views:    views,
		defaults: defaults,
		log:      log.With().Str("component", "submission_service").Logger(),
		now:      time.Now,
	}
}

// Settings returns the content-scoped settings of a block usage.
func (s *SubmissionService) Settings(ctx context.Context, usageID string) (model.BlockSettings, error) {
	fields, err := s.store.Load(ctx, model.ContentKey(usageID))
	if err != nil {
		return model.BlockSettings{}, fmt.Errorf("load settings: %w", err)
	}
	return model.DecodeSettings(fields, s.defaults), nil
}

// LearnerState returns one learner's state. A learner who never submitted
// gets the defaults without anything being written.
func (s *SubmissionService) LearnerState(ctx context.Context, usageID, learnerID string) (model.LearnerState, error) {
	fields, err := s.store.Load(ctx, model.LearnerKey(usageID, learnerID))
	if err != nil {
		return model.LearnerState{}, fmt.Errorf("load learner state: %w", err)
	}
	return model.DecodeLearnerState(fields), nil
}

// StudentView renders the learner fragment for id.
func (s *SubmissionService) StudentView(ctx context.Context, id model.Identity, ep view.Endpoint) ([]byte, error) {
	settings, err := s.Settings(ctx, id.UnitID)
	if err != nil {
		return nil, err
	}
	state, err := s.LearnerState(ctx, id.UnitID, id.LearnerID)
	if err != nil {
		return nil, err
	}
	return s.views.Student(view.StudentData{
		HandlerBase: ep.HandlerBase,
		Token:       ep.Token,
		Settings:    settings,
		State:       state,
	})
}

// StudioView renders the authoring fragment of a block usage.
func (s *SubmissionService) StudioView(ctx context.Context, usageID string, ep view.Endpoint) ([]byte, error) {
	settings, err := s.Settings(ctx, usageID)
	if err != nil {
		return nil, err
	}
	return s.views.Studio(view.StudioData{HandlerBase: ep.HandlerBase, Token: ep.Token, Settings: settings})
}

// SaveSettings applies the non-empty values of req to the block settings.
func (s *SubmissionService) SaveSettings(ctx context.Context, usageID string, req model.StudioSubmitRequest) (model.HandlerResult, error) {
	current, err := s.Settings(ctx, usageID)
	if err != nil {
		return model.HandlerResult{}, err
	}

	updated := current.Merge(req)
	if err := s.store.Save(ctx, model.ContentKey(usageID), updated.Fields()); err != nil {
		return model.HandlerResult{}, fmt.Errorf("save settings: %w", err)
	}

	s.log.Info().
		Str("usage_id", usageID).
		Str("api_base", updated.APIBase).
		Msg("block settings saved")
	return model.HandlerResult{OK: true}, nil
}

// ResetSubmission returns the learner to the unsubmitted state.
func (s *SubmissionService) ResetSubmission(ctx context.Context, id model.Identity) (model.HandlerResult, error) {
	if err := s.store.Save(ctx, model.LearnerKey(id.UnitID, id.LearnerID), model.LearnerState{}.Fields()); err != nil {
		return model.HandlerResult{}, fmt.Errorf("reset learner state: %w", err)
	}

	s.notify(ctx, model.SubmissionEvent{
		Type:      model.SubmissionEventReset,
		UsageID:   id.UnitID,
		LearnerID: id.LearnerID,
		At:        s.now().UTC(),
	})
	return model.HandlerResult{OK: true}, nil
}

// SubmitText sends the learner's text to the rendering service and, on
// success, records the returned artifact link as the learner's submission.
// Service failures come back as a non-ok result and leave state untouched;
// only storage failures are returned as errors.
func (s *SubmissionService) SubmitText(ctx context.Context, id model.Identity, req model.SubmitTextRequest) (model.HandlerResult, error) {
	settings, err := s.Settings(ctx, id.UnitID)
	if err != nil {
		return model.HandlerResult{}, err
	}

	title := req.Title
	if title == "" {
		title = settings.Title
	}

	log := s.log.With().
		Str("usage_id", id.UnitID).
		Str("learner_id", id.LearnerID).
		Logger()

	resp, err := s.renderer.RenderText(ctx, settings.APIBase, model.RenderTextRequest{
		Text:      req.Text,
		Title:     title,
		LearnerID: id.LearnerID,
		CourseID:  id.CourseID,
		UnitID:    id.UnitID,
	})
	if err != nil {
		log.Warn().Err(err).Msg("render service call failed")
		return model.HandlerResult{OK: false, Message: msgServiceErrorPrefix + err.Error()}, nil
	}
	if resp == nil || resp.DownloadURL == "" {
		log.Warn().Err(ErrMissingDownloadURL).Msg("render service reply unusable")
		return model.HandlerResult{OK: false, Message: MsgMissingDownloadURL}, nil
	}

	state := model.LearnerState{Submitted: true, ArtifactURL: resp.DownloadURL}
	if err := s.store.Save(ctx, model.LearnerKey(id.UnitID, id.LearnerID), state.Fields()); err != nil {
		return model.HandlerResult{}, fmt.Errorf("save submission: %w", err)
	}

	// Grading is best-effort: the submission stands even if the grade is lost.
	if err := s.grades.Publish(ctx, model.NewFullCreditEvent(id, s.now())); err != nil {
		log.Warn().Err(err).Msg("grade publish failed")
	}

	s.notify(ctx, model.SubmissionEvent{
		Type:        model.SubmissionEventSubmitted,
		UsageID:     id.UnitID,
		LearnerID:   id.LearnerID,
		ArtifactURL: resp.DownloadURL,
		At:          s.now().UTC(),
	})

	log.Info().Str("artifact_url", resp.DownloadURL).Msg("submission recorded")
	return model.HandlerResult{OK: true, Message: MsgSubmitted, Reload: true}, nil
}

func (s *SubmissionService) notify(ctx context.Context, ev model.SubmissionEvent) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("usage_id", ev.UsageID).Msg("submission feed publish failed")
	}
}
