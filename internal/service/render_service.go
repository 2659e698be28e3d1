package service

import (
	"context"
	"fmt"
	"log"

	"github.com/shortreel/api/internal/client"
	"github.com/shortreel/api/internal/dispatch"
	"github.com/shortreel/api/internal/draft"
	"github.com/shortreel/api/internal/model"
)

// RenderService fronts render submission and job status for the working
// draft. Submission rules (preconditions, the single-active-job guard) live
// in the dispatcher; this layer adds manual refresh and captions.
type RenderService struct {
	store      *draft.Store
	dispatcher *dispatch.Dispatcher
	platform   client.RenderPlatform
}

func NewRenderService(store *draft.Store, dispatcher *dispatch.Dispatcher, platform client.RenderPlatform) *RenderService {
	return &RenderService{
		store:      store,
		dispatcher: dispatcher,
		platform:   platform,
	}
}

// StartPreview submits a preview render for the working draft.
func (s *RenderService) StartPreview(ctx context.Context) (model.RenderState, error) {
	return s.dispatcher.EnqueuePreview(ctx)
}

// StartFinal submits a final render for the working draft.
func (s *RenderService) StartFinal(ctx context.Context) (model.RenderState, error) {
	return s.dispatcher.EnqueueFinal(ctx)
}

// Status returns the draft's reconciled render state without touching the
// network. The watch keeps it current.
func (s *RenderService) Status() model.RenderState {
	return s.store.RenderState()
}

// Refresh pulls the job's status from the platform once and reconciles it
// into the draft. Used by clients that want a check right now instead of
// waiting for the next push or poll.
func (s *RenderService) Refresh(ctx context.Context) (model.RenderState, error) {
	d := s.store.Get()
	if d.Render.JobID == "" {
		return d.Render, nil
	}
	if !d.Promoted() {
		return d.Render, ErrNotPromoted
	}

	update, err := s.platform.GetRenderJobStatus(ctx, d.ProjectID, d.Render.JobID)
	if err != nil {
		return d.Render, fmt.Errorf("failed to refresh job status: %w", err)
	}

	state, applied := s.store.ApplyRender(*update)
	if !applied {
		log.Printf("[Render] job %s: refresh delta discarded as stale", d.Render.JobID)
	}
	return state, nil
}

// GenerateCaptions asks the platform for a subtitle track and installs it
// as the draft's new baseline.
func (s *RenderService) GenerateCaptions(ctx context.Context) (*model.CaptionsResult, error) {
	d := s.store.Get()
	if !d.Promoted() {
		return nil, ErrNotPromoted
	}

	result, err := s.platform.GenerateCaptions(ctx, d.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate captions: %w", err)
	}
	if result.SrtText != "" {
		s.store.AdoptSubtitles(result.SrtText)
	}
	return result, nil
}
