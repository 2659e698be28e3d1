package service

import (
	"context"
	"log"

	"github.com/shortreel/api/internal/client"
	"github.com/shortreel/api/internal/dispatch"
	"github.com/shortreel/api/internal/draft"
	"github.com/shortreel/api/internal/model"
)

// ProjectService exposes the durable project record behind the working
// draft.
type ProjectService struct {
	store      *draft.Store
	cache      *draft.Cache
	dispatcher *dispatch.Dispatcher
	platform   client.RenderPlatform
}

func NewProjectService(store *draft.Store, cache *draft.Cache, dispatcher *dispatch.Dispatcher, platform client.RenderPlatform) *ProjectService {
	return &ProjectService{
		store:      store,
		cache:      cache,
		dispatcher: dispatcher,
		platform:   platform,
	}
}

// Get fetches the project record the working draft was promoted into.
func (s *ProjectService) Get(ctx context.Context) (*model.ProjectRecord, error) {
	d := s.store.Get()
	if !d.Promoted() {
		return nil, ErrNotPromoted
	}
	return s.platform.GetProject(ctx, d.ProjectID)
}

// Delete removes the durable project and resets the working draft. The
// active watch, snapshot, and draft→project mapping all go with it.
func (s *ProjectService) Delete(ctx context.Context) error {
	d := s.store.Get()
	if !d.Promoted() {
		return ErrNotPromoted
	}

	if err := s.platform.DeleteProject(ctx, d.ProjectID); err != nil {
		return err
	}

	s.dispatcher.Stop()
	if s.cache != nil {
		if err := s.cache.DeleteSnapshot(ctx, d.ID); err != nil {
			log.Printf("[Project] failed to delete snapshot for %s: %v", d.ID, err)
		}
	}
	s.store.Start()
	return nil
}
