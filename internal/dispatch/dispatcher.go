// Package dispatch validates and submits render jobs and owns the per-job
// status watch that feeds reconciled updates back into the draft store.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shortreel/api/internal/channel"
	"github.com/shortreel/api/internal/client"
	"github.com/shortreel/api/internal/config"
	"github.com/shortreel/api/internal/draft"
	"github.com/shortreel/api/internal/model"
	"github.com/shortreel/api/internal/poller"
	"github.com/shortreel/api/internal/script"
	"github.com/shortreel/api/internal/worker"
)

// ErrRenderInProgress rejects a second submission while a job is active.
var ErrRenderInProgress = errors.New("render already in progress")

// PreconditionError reports a draft that is not ready to render. It is
// raised before any network call is made.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed: %s", e.Reason)
}

// JobStream is the push-channel side of the watch.
type JobStream interface {
	IsConfigured() bool
	Subscribe(ctx context.Context, jobID string) (*channel.Subscription, error)
}

// TaskEnqueuer hands terminal side effects (project promotion, result
// persistence) to the background queue instead of running them inline in
// the watch callback.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, taskType string, payload interface{}) error
}

// Notifier pushes reconciled state and one-off notices to the UI.
type Notifier interface {
	BroadcastRender(draftID string, state model.RenderState)
	BroadcastNotice(draftID, level, code, message string)
}

// Dispatcher submits render jobs for the working draft. At most one job per
// draft is in flight at a time; the guard lives here, not in the UI.
type Dispatcher struct {
	store    *draft.Store
	cache    *draft.Cache
	platform client.RenderPlatform
	stream   JobStream
	poller   *poller.Poller
	tasks    TaskEnqueuer
	notifier Notifier
	watchCfg config.WatchConfig

	mu          sync.Mutex
	watchCancel context.CancelFunc
	watchJobID  string
}

func New(
	store *draft.Store,
	cache *draft.Cache,
	platform client.RenderPlatform,
	stream JobStream,
	p *poller.Poller,
	tasks TaskEnqueuer,
	notifier Notifier,
	watchCfg config.WatchConfig,
) *Dispatcher {
	if watchCfg.ChannelGrace <= 0 {
		watchCfg.ChannelGrace = 5 * time.Second
	}
	return &Dispatcher{
		store:    store,
		cache:    cache,
		platform: platform,
		stream:   stream,
		poller:   p,
		tasks:    tasks,
		notifier: notifier,
		watchCfg: watchCfg,
	}
}

// EnqueuePreview submits a preview render for the working draft.
func (d *Dispatcher) EnqueuePreview(ctx context.Context) (model.RenderState, error) {
	return d.enqueue(ctx, model.JobTypePreview)
}

// EnqueueFinal submits a final render for the working draft.
func (d *Dispatcher) EnqueueFinal(ctx context.Context) (model.RenderState, error) {
	return d.enqueue(ctx, model.JobTypeFinal)
}

func (d *Dispatcher) enqueue(ctx context.Context, jobType model.JobType) (model.RenderState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	snapshot := d.store.Get()

	if err := checkPreconditions(snapshot); err != nil {
		return d.store.RenderState(), err
	}
	if d.watchCancel != nil {
		return d.store.RenderState(), ErrRenderInProgress
	}

	projectID, err := d.ensureProject(ctx, snapshot)
	if err != nil {
		return d.store.RenderState(), err
	}

	customizations := model.MetadataFromDraft(snapshot)
	resp, err := d.platform.SubmitRenderJob(ctx, projectID, jobType, &customizations)
	if err != nil {
		return d.store.RenderState(), fmt.Errorf("failed to submit render job: %w", err)
	}

	// The QUEUED write happens before we return: the caller's next read must
	// already see the submitted job.
	state := d.store.MarkSubmitted(resp.JobID, jobType, resp.QueuePosition, resp.EstimatedWaitTime)
	d.notifier.BroadcastRender(snapshot.ID, state)
	d.saveSnapshot(ctx)

	watchCtx, cancel := context.WithCancel(context.Background())
	d.watchCancel = cancel
	d.watchJobID = resp.JobID
	go d.watch(watchCtx, snapshot.ID, projectID, resp.JobID)

	log.Printf("[Dispatch] draft %s: submitted %s job %s (queue %d)",
		snapshot.ID, jobType, resp.JobID, resp.QueuePosition)
	return state, nil
}

func checkPreconditions(d model.Draft) error {
	lines := d.ScriptLines
	if len(lines) == 0 {
		lines = script.Parse(d.ScriptInput)
	}
	if len(lines) == 0 {
		return &PreconditionError{Reason: "script is empty"}
	}
	switch d.Type {
	case model.DraftTypeDialogue:
		if d.CharacterA == nil || d.CharacterB == nil {
			return &PreconditionError{Reason: "both character slots must be filled"}
		}
	case model.DraftTypeNarrator:
		if d.BackgroundID == "" {
			return &PreconditionError{Reason: "a background must be selected"}
		}
	}
	return nil
}

// ensureProject returns the durable project id for the draft, creating the
// record when none is known. The draft's idempotency key makes concurrent
// creation collapse server-side; the cached draft→project mapping is the
// local fast path.
func (d *Dispatcher) ensureProject(ctx context.Context, snapshot model.Draft) (string, error) {
	if snapshot.ProjectID != "" {
		return snapshot.ProjectID, nil
	}

	if d.cache != nil {
		if id, err := d.cache.ProjectID(ctx, snapshot.ID); err == nil && id != "" {
			d.store.SetProjectID(id)
			return id, nil
		}
	}

	record, err := d.platform.CreateProject(ctx, &client.CreateProjectRequest{
		Title:          snapshot.Title,
		Type:           snapshot.Type,
		BackgroundID:   snapshot.BackgroundID,
		IdempotencyKey: snapshot.IdempotencyKey,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create project: %w", err)
	}

	d.store.SetProjectID(record.ID)
	if d.cache != nil {
		if err := d.cache.SaveProjectID(ctx, snapshot.ID, record.ID); err != nil {
			log.Printf("[Dispatch] draft %s: failed to cache project id: %v", snapshot.ID, err)
		}
	}
	return record.ID, nil
}

// Stop tears down the current watch. Called when the consuming view goes
// away or the draft is cleared; without it a leaked watcher could apply a
// stale update to a since-replaced draft.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.watchCancel != nil {
		d.watchCancel()
		d.watchCancel = nil
		d.watchJobID = ""
	}
}

func (d *Dispatcher) clearWatch(jobID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.watchJobID == jobID && d.watchCancel != nil {
		d.watchCancel()
		d.watchCancel = nil
		d.watchJobID = ""
	}
}

// watch races the push channel against an immediate one-shot pull, falling
// back to bounded polling when the channel never confirms.
func (d *Dispatcher) watch(ctx context.Context, draftID, projectID, jobID string) {
	defer d.clearWatch(jobID)

	var sub *channel.Subscription
	if d.stream != nil && d.stream.IsConfigured() {
		s, err := d.stream.Subscribe(ctx, jobID)
		if err != nil {
			// Not user-facing on its own: polling covers for the channel.
			log.Printf("[Dispatch] job %s: push channel unavailable: %v", jobID, err)
		} else {
			sub = s
			defer sub.Close()
		}
	}

	// One-shot immediate check: the job may have finished before the
	// subscription was live.
	if u, err := d.poller.CheckOnce(ctx, projectID, jobID); err == nil {
		if d.handleUpdate(ctx, draftID, projectID, *u) {
			return
		}
	} else {
		log.Printf("[Dispatch] job %s: one-shot status check failed: %v", jobID, err)
	}

	var updates <-chan model.JobUpdate
	var confirmed <-chan struct{}
	if sub != nil {
		updates = sub.Updates()
		confirmed = sub.Confirmed()
	}

	grace := time.NewTimer(d.watchCfg.ChannelGrace)
	defer grace.Stop()

	pollDone := make(chan struct{})
	pollStarted := false
	startPolling := func() {
		if pollStarted {
			return
		}
		pollStarted = true
		go func() {
			defer close(pollDone)
			d.poller.Run(ctx, projectID, jobID, func(u model.JobUpdate) bool {
				return d.handleUpdate(ctx, draftID, projectID, u)
			})
		}()
	}

	// No live subscription means pull is the only delivery path; start it
	// now rather than waiting out a grace period for a channel that does
	// not exist.
	if sub == nil {
		startPolling()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-confirmed:
			confirmed = nil
			grace.Stop()

		case <-grace.C:
			if confirmed != nil {
				// The channel never confirmed within the grace period.
				startPolling()
			}

		case u, ok := <-updates:
			if !ok {
				// Stream dropped without a terminal delta; keep watching by
				// pull so the job cannot silently strand.
				updates = nil
				startPolling()
				continue
			}
			if d.handleUpdate(ctx, draftID, projectID, u) {
				return
			}

		case <-pollDone:
			return
		}
	}
}

// handleUpdate reconciles one delta into the store and runs terminal-status
// side effects. Returns true when the watch should stop.
func (d *Dispatcher) handleUpdate(ctx context.Context, draftID, projectID string, u model.JobUpdate) bool {
	state, applied := d.store.ApplyRender(u)
	if !applied {
		// Stale or foreign delta. If it is terminal for the job we watch,
		// the terminal state was already processed; stop either way.
		return u.Terminal() && u.JobID == state.JobID && state.Terminal()
	}

	d.notifier.BroadcastRender(draftID, state)

	if !state.Terminal() {
		return false
	}

	// Terminal side effects run in the background queue, not inline here.
	d.enqueuePromotion(ctx, draftID, projectID, state)

	switch state.Status {
	case model.RenderStatusReady:
		d.notifier.BroadcastNotice(draftID, model.NoticeLevelInfo, "render.ready", "Your video is ready")
	case model.RenderStatusFailed:
		msg := state.ErrorMessage
		if msg == "" {
			msg = "Render failed"
		}
		d.notifier.BroadcastNotice(draftID, model.NoticeLevelError, "render.failed", msg)
	}
	d.saveSnapshot(ctx)
	return true
}

func (d *Dispatcher) enqueuePromotion(ctx context.Context, draftID, projectID string, state model.RenderState) {
	if d.tasks == nil || state.Status != model.RenderStatusReady {
		return
	}
	payload := worker.PromotePayload{
		DraftID:   draftID,
		ProjectID: projectID,
		JobID:     state.JobID,
		Draft:     d.store.Get(),
		Result:    state,
	}
	if err := d.tasks.Enqueue(ctx, worker.TaskTypeProjectPromote, payload); err != nil {
		// The draft itself is intact; promotion can be retried. Soft notice.
		log.Printf("[Dispatch] draft %s: failed to enqueue promotion: %v", draftID, err)
		d.notifier.BroadcastNotice(draftID, model.NoticeLevelWarn, "project.local_only",
			"Saved locally only — cloud sync will retry")
	}
}

func (d *Dispatcher) saveSnapshot(ctx context.Context) {
	if d.cache == nil {
		return
	}
	if err := d.cache.SaveSnapshot(ctx, d.store.Get()); err != nil {
		log.Printf("[Dispatch] failed to save draft snapshot: %v", err)
	}
}
