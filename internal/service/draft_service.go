package service

import (
	"context"
	"errors"
	"log"

	"github.com/shortreel/api/internal/dispatch"
	"github.com/shortreel/api/internal/draft"
	"github.com/shortreel/api/internal/model"
	"github.com/shortreel/api/internal/worker"
)

// ErrNotPromoted is returned by operations that need a durable project
// record while the draft is still local-only.
var ErrNotPromoted = errors.New("draft has not been promoted to a project")

// DraftService owns draft lifecycle and editing. Edits are local and
// synchronous; for promoted drafts a background sync task pushes the change
// to the project record afterwards.
type DraftService struct {
	store      *draft.Store
	cache      *draft.Cache
	dispatcher *dispatch.Dispatcher
	tasks      dispatch.TaskEnqueuer
}

func NewDraftService(store *draft.Store, cache *draft.Cache, dispatcher *dispatch.Dispatcher, tasks dispatch.TaskEnqueuer) *DraftService {
	return &DraftService{
		store:      store,
		cache:      cache,
		dispatcher: dispatcher,
		tasks:      tasks,
	}
}

// Start discards the working draft and begins a fresh one.
func (s *DraftService) Start(ctx context.Context, req *model.DraftStartRequest) model.Draft {
	s.dispatcher.Stop()

	d := s.store.Start()
	if req != nil && req.Type != "" {
		t := req.Type
		d = s.store.Update(draft.Patch{Type: &t})
	}
	s.saveSnapshot(ctx)
	return d
}

// Get returns the current working draft.
func (s *DraftService) Get() model.Draft {
	return s.store.Get()
}

// Resume replaces the working draft with a saved snapshot.
func (s *DraftService) Resume(ctx context.Context, draftID string) (model.Draft, error) {
	snapshot, err := s.cache.LoadSnapshot(ctx, draftID)
	if err != nil {
		return model.Draft{}, err
	}
	s.dispatcher.Stop()
	return s.store.Restore(*snapshot), nil
}

// Update applies a partial edit to the working draft.
func (s *DraftService) Update(ctx context.Context, req *model.DraftUpdateRequest) model.Draft {
	d := s.store.Update(draft.Patch{
		Type:               req.Type,
		Title:              req.Title,
		ScriptLines:        req.ScriptLines,
		ScriptInput:        req.ScriptInput,
		BackgroundID:       req.BackgroundID,
		TextOverlays:       req.TextOverlays,
		ImageOverlays:      req.ImageOverlays,
		SubtitleText:       req.SubtitleText,
		Subtitle:           req.Subtitle,
		CharacterSizes:     req.CharacterSizes,
		CharacterPositions: req.CharacterPositions,
		PlaybackRate:       req.PlaybackRate,
		DurationSec:        req.DurationSec,
	})
	s.saveSnapshot(ctx)
	s.scheduleSync(ctx, d)
	return d
}

// SetCharacters replaces the draft's character selections. At most two
// slots exist; the handler validates the cap before calling.
func (s *DraftService) SetCharacters(ctx context.Context, selected []model.CharacterSelection) model.Draft {
	d := s.store.SetCharacters(selected)
	s.saveSnapshot(ctx)
	s.scheduleSync(ctx, d)
	return d
}

// Clear discards the working draft, its snapshot, and any active watch.
func (s *DraftService) Clear(ctx context.Context) model.Draft {
	s.dispatcher.Stop()

	old := s.store.Get()
	if s.cache != nil {
		if err := s.cache.DeleteSnapshot(ctx, old.ID); err != nil {
			log.Printf("[Draft] failed to delete snapshot for %s: %v", old.ID, err)
		}
	}
	return s.store.Start()
}

// Finish hands the draft off: a last settings sync goes to the project
// record, the watch stops, and the working draft resets. Returns the id of
// the finished project.
func (s *DraftService) Finish(ctx context.Context) (string, error) {
	d := s.store.Get()
	if !d.Promoted() {
		return "", ErrNotPromoted
	}

	s.scheduleSync(ctx, d)
	s.dispatcher.Stop()

	if s.cache != nil {
		if err := s.cache.DeleteSnapshot(ctx, d.ID); err != nil {
			log.Printf("[Draft] failed to delete snapshot for %s: %v", d.ID, err)
		}
	}
	s.store.Start()
	return d.ProjectID, nil
}

// scheduleSync pushes the edit to the durable project record when one
// exists. Sync failures never fail the local edit; the worker retries.
func (s *DraftService) scheduleSync(ctx context.Context, d model.Draft) {
	if !d.Promoted() || s.tasks == nil {
		return
	}
	payload := worker.SyncPayload{
		DraftID:   d.ID,
		ProjectID: d.ProjectID,
		Draft:     d,
	}
	if err := s.tasks.Enqueue(ctx, worker.TaskTypeProjectSync, payload); err != nil {
		log.Printf("[Draft] failed to enqueue project sync for %s: %v", d.ID, err)
	}
}

func (s *DraftService) saveSnapshot(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SaveSnapshot(ctx, s.store.Get()); err != nil {
		log.Printf("[Draft] failed to save snapshot: %v", err)
	}
}
