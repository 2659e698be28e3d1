package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/shortreel/api/internal/client"
	"github.com/shortreel/api/internal/draft"
	"github.com/shortreel/api/internal/model"
	"github.com/shortreel/api/internal/script"
)

// Notifier pushes soft notices to UI subscribers of a draft.
type Notifier interface {
	BroadcastNotice(draftID, level, code, message string)
}

// PromoteWorker runs the terminal-status side effects: making sure the
// durable project exists, attaching the draft's content to it, and
// persisting the render result. Running here, with asynq's retry and the
// draft's idempotency key, keeps the channel callback side-effect-light.
type PromoteWorker struct {
	platform client.RenderPlatform
	cache    *draft.Cache
	hub      Notifier
}

func NewPromoteWorker(platform client.RenderPlatform, cache *draft.Cache, hub Notifier) *PromoteWorker {
	return &PromoteWorker{platform: platform, cache: cache, hub: hub}
}

// ProcessTask handles project:promote.
func (w *PromoteWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload PromotePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal promote payload: %w", err)
	}

	log.Printf("[Promote] draft %s: promoting (job %s)", payload.DraftID, payload.JobID)

	projectID, created, err := w.ensureProject(ctx, &payload)
	if err != nil {
		w.notifyLocalOnly(payload.DraftID)
		return err
	}

	if created {
		if err := w.attachCharacters(ctx, projectID, payload.Draft); err != nil {
			w.notifyLocalOnly(payload.DraftID)
			return err
		}
	}

	if err := w.upsertScript(ctx, projectID, payload.Draft); err != nil {
		w.notifyLocalOnly(payload.DraftID)
		return err
	}

	if err := w.persistResult(ctx, projectID, payload); err != nil {
		w.notifyLocalOnly(payload.DraftID)
		return err
	}

	log.Printf("[Promote] draft %s: promoted to project %s", payload.DraftID, projectID)
	return nil
}

// ensureProject resolves or creates the durable project record. The cached
// draft→project mapping and the idempotency key together make this safe to
// retry.
func (w *PromoteWorker) ensureProject(ctx context.Context, payload *PromotePayload) (string, bool, error) {
	if payload.ProjectID != "" {
		return payload.ProjectID, false, nil
	}

	if w.cache != nil {
		if id, err := w.cache.ProjectID(ctx, payload.DraftID); err == nil && id != "" {
			return id, false, nil
		}
	}

	record, err := w.platform.CreateProject(ctx, &client.CreateProjectRequest{
		Title:          payload.Draft.Title,
		Type:           payload.Draft.Type,
		BackgroundID:   payload.Draft.BackgroundID,
		IdempotencyKey: payload.Draft.IdempotencyKey,
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to create project: %w", err)
	}

	if w.cache != nil {
		if err := w.cache.SaveProjectID(ctx, payload.DraftID, record.ID); err != nil {
			log.Printf("[Promote] draft %s: failed to cache project id: %v", payload.DraftID, err)
		}
	}
	return record.ID, true, nil
}

func (w *PromoteWorker) attachCharacters(ctx context.Context, projectID string, d model.Draft) error {
	for _, sel := range []*model.CharacterSelection{d.CharacterA, d.CharacterB} {
		if sel == nil {
			continue
		}
		_, err := w.platform.CreateCharacter(ctx, projectID, &model.ProjectCharacter{
			Name:      sel.Name,
			VoiceID:   sel.VoiceID,
			AvatarURL: sel.AvatarURL,
			Slot:      sel.Slot,
		})
		if err != nil {
			return fmt.Errorf("failed to attach character %s: %w", sel.Name, err)
		}
	}
	return nil
}

func (w *PromoteWorker) upsertScript(ctx context.Context, projectID string, d model.Draft) error {
	lines := d.ScriptLines
	if len(lines) == 0 {
		lines = script.Parse(d.ScriptInput)
	}
	if len(lines) == 0 {
		return nil
	}
	if err := w.platform.BulkUpsertScriptSegments(ctx, projectID, script.Segments(lines)); err != nil {
		return fmt.Errorf("failed to upsert script segments: %w", err)
	}
	return nil
}

func (w *PromoteWorker) persistResult(ctx context.Context, projectID string, payload PromotePayload) error {
	patch := &model.ProjectPatch{}
	if payload.Result.PreviewURL != "" {
		url := payload.Result.PreviewURL
		patch.PreviewURL = &url
	}
	if payload.Result.FinalURL != "" {
		url := payload.Result.FinalURL
		patch.FinalURL = &url
	}
	if payload.Result.DurationSec > 0 {
		dur := payload.Result.DurationSec
		patch.DurationSec = &dur
	}
	if _, err := w.platform.UpdateProject(ctx, projectID, patch); err != nil {
		return fmt.Errorf("failed to persist render result: %w", err)
	}

	_, err := client.MergeMetadata(ctx, w.platform, projectID, func(m *model.ProjectMetadata) {
		*m = mergeBag(*m, model.MetadataFromDraft(payload.Draft))
	})
	if err != nil {
		return fmt.Errorf("failed to merge project metadata: %w", err)
	}
	return nil
}

func (w *PromoteWorker) notifyLocalOnly(draftID string) {
	if w.hub == nil {
		return
	}
	w.hub.BroadcastNotice(draftID, model.NoticeLevelWarn, "project.local_only",
		"Saved locally only — cloud sync will retry")
}

// SyncWorker pushes post-promotion settings changes into the project's
// metadata bag.
type SyncWorker struct {
	platform client.RenderPlatform
	hub      Notifier
}

func NewSyncWorker(platform client.RenderPlatform, hub Notifier) *SyncWorker {
	return &SyncWorker{platform: platform, hub: hub}
}

// ProcessTask handles project:sync.
func (w *SyncWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload SyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal sync payload: %w", err)
	}

	title := payload.Draft.Title
	background := payload.Draft.BackgroundID
	if _, err := w.platform.UpdateProject(ctx, payload.ProjectID, &model.ProjectPatch{
		Title:        &title,
		BackgroundID: &background,
	}); err != nil {
		return fmt.Errorf("failed to sync project fields: %w", err)
	}

	_, err := client.MergeMetadata(ctx, w.platform, payload.ProjectID, func(m *model.ProjectMetadata) {
		*m = mergeBag(*m, model.MetadataFromDraft(payload.Draft))
	})
	if errors.Is(err, client.ErrConflict) {
		// Another session updated the bag in between; retrying re-reads it.
		log.Printf("[Sync] project %s: metadata revision conflict, will retry", payload.ProjectID)
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to merge project metadata: %w", err)
	}
	return nil
}

// mergeBag overlays the draft-derived bag onto the server's, keeping the
// server revision so MergeMetadata can bump it.
func mergeBag(current, incoming model.ProjectMetadata) model.ProjectMetadata {
	incoming.Revision = current.Revision
	return incoming
}
