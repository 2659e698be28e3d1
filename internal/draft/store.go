// Package draft holds the single in-progress draft. The store is a pure
// in-memory container: every mutation goes through an explicit entrypoint
// and no entrypoint performs network I/O.
package draft

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shortreel/api/internal/model"
	"github.com/shortreel/api/internal/reconcile"
)

// MaxCharacters is the number of character slots on a draft.
const MaxCharacters = 2

// Store owns the working draft. Construct one per app (or per test) and
// inject it; there is no package-level instance.
type Store struct {
	mu    sync.RWMutex
	draft model.Draft

	// Dirty-since-submission flags. Set when the user edits a field while a
	// job is in flight, cleared on the next submission. The reconciler skips
	// job metadata for dirty fields.
	subtitleDirty bool
	durationDirty bool
}

func NewStore() *Store {
	s := &Store{}
	s.draft = freshDraft()
	return s
}

func freshDraft() model.Draft {
	now := time.Now()
	return model.Draft{
		ID:             uuid.New().String(),
		Type:           model.DraftTypeDialogue,
		IdempotencyKey: uuid.New().String(),
		PlaybackRate:   1.0,
		Subtitle: model.SubtitleSettings{
			Enabled:  true,
			Style:    model.SubtitleStyleClassic,
			Position: model.SubtitlePositionBottom,
			FontSize: 24,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Start resets the store to a fresh empty draft and returns it.
func (s *Store) Start() model.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = freshDraft()
	s.subtitleDirty = false
	s.durationDirty = false
	return cloneDraft(s.draft)
}

// Clear resets to a fresh draft, discarding all local edits.
func (s *Store) Clear() {
	s.Start()
}

// Get returns a copy of the current draft.
func (s *Store) Get() model.Draft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneDraft(s.draft)
}

// Patch is a partial draft update. Nil fields mean "leave unchanged"; no
// field is ever silently reset by omission.
type Patch struct {
	Type               *model.DraftType
	Title              *string
	ScriptLines        *[]model.ScriptLine
	ScriptInput        *string
	BackgroundID       *string
	TextOverlays       *[]model.TextOverlay
	ImageOverlays      *[]model.ImageOverlay
	SubtitleText       *string
	Subtitle           *model.SubtitleSettings
	CharacterSizes     *map[string]float64
	CharacterPositions *map[string]model.Position
	PlaybackRate       *float64
	DurationSec        *float64
}

// Update shallow-merges the patch into the draft and stamps UpdatedAt.
func (s *Store) Update(p Patch) model.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := &s.draft
	if p.Type != nil {
		d.Type = *p.Type
	}
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.ScriptLines != nil {
		d.ScriptLines = *p.ScriptLines
	}
	if p.ScriptInput != nil {
		d.ScriptInput = *p.ScriptInput
	}
	if p.BackgroundID != nil {
		d.BackgroundID = *p.BackgroundID
	}
	if p.TextOverlays != nil {
		d.TextOverlays = *p.TextOverlays
	}
	if p.ImageOverlays != nil {
		d.ImageOverlays = *p.ImageOverlays
	}
	if p.SubtitleText != nil {
		d.SubtitleText = *p.SubtitleText
		s.subtitleDirty = true
	}
	if p.Subtitle != nil {
		d.Subtitle = *p.Subtitle
	}
	if p.CharacterSizes != nil {
		d.CharacterSizes = *p.CharacterSizes
	}
	if p.CharacterPositions != nil {
		d.CharacterPositions = *p.CharacterPositions
	}
	if p.PlaybackRate != nil {
		d.PlaybackRate = *p.PlaybackRate
	}
	if p.DurationSec != nil {
		d.Render.DurationSec = *p.DurationSec
		s.durationDirty = true
	}
	d.UpdatedAt = time.Now()
	return cloneDraft(s.draft)
}

// SetCharacters assigns the A/B character slots in order. Selections past
// the second slot are dropped; callers enforce the cap before calling.
func (s *Store) SetCharacters(selected []model.CharacterSelection) model.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := &s.draft
	d.CharacterA = nil
	d.CharacterB = nil
	for i, sel := range selected {
		if i >= MaxCharacters {
			break
		}
		c := sel
		switch i {
		case 0:
			c.Slot = model.CharacterSlotA
			d.CharacterA = &c
		case 1:
			c.Slot = model.CharacterSlotB
			d.CharacterB = &c
		}
	}
	d.UpdatedAt = time.Now()
	return cloneDraft(s.draft)
}

// SetProjectID records the durable project id after promotion. It never
// unsets an existing id.
func (s *Store) SetProjectID(projectID string) {
	if projectID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.ProjectID = projectID
	s.draft.UpdatedAt = time.Now()
}

// MarkSubmitted records a freshly accepted job and synchronously moves the
// draft to QUEUED. Dirty flags reset: from here on, user edits count as
// "edited since submission".
func (s *Store) MarkSubmitted(jobID string, jobType model.JobType, queuePos, waitSec int) model.RenderState {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.draft.Render
	s.draft.Render = model.RenderState{
		JobID:             jobID,
		JobType:           jobType,
		Status:            model.RenderStatusQueued,
		QueuePosition:     queuePos,
		EstimatedWaitTime: waitSec,
		PreviewURL:        prev.PreviewURL,
		FinalURL:          prev.FinalURL,
		DurationSec:       prev.DurationSec,
	}
	s.subtitleDirty = false
	s.durationDirty = false
	s.draft.UpdatedAt = time.Now()
	return s.draft.Render
}

// Restore replaces the working draft with a previously saved snapshot,
// discarding the current one. Dirty flags reset: the snapshot is the new
// baseline.
func (s *Store) Restore(d model.Draft) model.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = cloneDraft(d)
	s.subtitleDirty = false
	s.durationDirty = false
	return cloneDraft(s.draft)
}

// AdoptSubtitles installs a server-generated subtitle track as both the
// editable text and the reset baseline. Unlike a user edit through Update,
// this does not mark the subtitle dirty.
func (s *Store) AdoptSubtitles(text string) model.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.SubtitleText = text
	s.draft.OriginalSubtitleText = text
	s.subtitleDirty = false
	s.draft.UpdatedAt = time.Now()
	return cloneDraft(s.draft)
}

// ApplyRender reconciles one job delta into the draft. The delta is dropped
// unless it belongs to the job currently tracked by the draft, so a stale
// watcher can never stomp a since-replaced draft.
func (s *Store) ApplyRender(u model.JobUpdate) (model.RenderState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draft.Render.JobID == "" || (u.JobID != "" && u.JobID != s.draft.Render.JobID) {
		return s.draft.Render, false
	}

	res := reconcile.Apply(s.draft.Render, u, reconcile.Guard{
		SubtitleDirty: s.subtitleDirty,
		DurationDirty: s.durationDirty,
	})
	if !res.Applied {
		return s.draft.Render, false
	}

	s.draft.Render = res.State
	if res.SubtitleSet {
		s.draft.SubtitleText = res.SubtitleText
		s.draft.OriginalSubtitleText = res.SubtitleText
	}
	s.draft.UpdatedAt = time.Now()
	return s.draft.Render, true
}

// RenderState returns a copy of the current render-derived fields.
func (s *Store) RenderState() model.RenderState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draft.Render
}

func cloneDraft(d model.Draft) model.Draft {
	out := d
	if d.CharacterA != nil {
		a := *d.CharacterA
		out.CharacterA = &a
	}
	if d.CharacterB != nil {
		b := *d.CharacterB
		out.CharacterB = &b
	}
	out.ScriptLines = append([]model.ScriptLine(nil), d.ScriptLines...)
	out.TextOverlays = append([]model.TextOverlay(nil), d.TextOverlays...)
	out.ImageOverlays = append([]model.ImageOverlay(nil), d.ImageOverlays...)
	if d.CharacterSizes != nil {
		out.CharacterSizes = make(map[string]float64, len(d.CharacterSizes))
		for k, v := range d.CharacterSizes {
			out.CharacterSizes[k] = v
		}
	}
	if d.CharacterPositions != nil {
		out.CharacterPositions = make(map[string]model.Position, len(d.CharacterPositions))
		for k, v := range d.CharacterPositions {
			out.CharacterPositions[k] = v
		}
	}
	return out
}
