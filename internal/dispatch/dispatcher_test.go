package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shortreel/api/internal/client"
	"github.com/shortreel/api/internal/config"
	"github.com/shortreel/api/internal/draft"
	"github.com/shortreel/api/internal/model"
	"github.com/shortreel/api/internal/poller"
	"github.com/shortreel/api/internal/worker"
)

// fakePlatform scripts the remote side of a dispatch test.
type fakePlatform struct {
	mu          sync.Mutex
	createCalls int
	lastCreate  *client.CreateProjectRequest
	submitCalls int
	lastSubmit  model.JobType
	submitResp  model.SubmitJobResponse
	status      model.JobUpdate
}

func (f *fakePlatform) CreateProject(ctx context.Context, req *client.CreateProjectRequest) (*model.ProjectRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.lastCreate = req
	return &model.ProjectRecord{ID: "p1", Title: req.Title}, nil
}

func (f *fakePlatform) GetProject(ctx context.Context, id string) (*model.ProjectRecord, error) {
	return &model.ProjectRecord{ID: id}, nil
}

func (f *fakePlatform) UpdateProject(ctx context.Context, id string, patch *model.ProjectPatch) (*model.ProjectRecord, error) {
	return &model.ProjectRecord{ID: id}, nil
}

func (f *fakePlatform) DeleteProject(ctx context.Context, id string) error { return nil }

func (f *fakePlatform) CreateCharacter(ctx context.Context, id string, c *model.ProjectCharacter) (*model.ProjectCharacter, error) {
	return c, nil
}

func (f *fakePlatform) BulkUpsertScriptSegments(ctx context.Context, id string, segments []model.ScriptSegment) error {
	return nil
}

func (f *fakePlatform) SubmitRenderJob(ctx context.Context, id string, jobType model.JobType, c *model.ProjectMetadata) (*model.SubmitJobResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	f.lastSubmit = jobType
	return &f.submitResp, nil
}

func (f *fakePlatform) GetRenderJobStatus(ctx context.Context, projectID, jobID string) (*model.JobUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.status
	return &u, nil
}

func (f *fakePlatform) GenerateCaptions(ctx context.Context, id string) (*model.CaptionsResult, error) {
	return &model.CaptionsResult{SrtText: "srt", SegmentsCount: 1}, nil
}

func (f *fakePlatform) counts() (creates, submits int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls, f.submitCalls
}

func (f *fakePlatform) setStatus(u model.JobUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = u
}

type fakeNotifier struct {
	mu      sync.Mutex
	renders []model.RenderState
	notices []string
}

func (f *fakeNotifier) BroadcastRender(draftID string, state model.RenderState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renders = append(f.renders, state)
}

func (f *fakeNotifier) BroadcastNotice(draftID, level, code, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, code)
}

func (f *fakeNotifier) noticeCodes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.notices...)
}

type fakeTasks struct {
	mu    sync.Mutex
	types []string
	err   error
}

func (f *fakeTasks) Enqueue(ctx context.Context, taskType string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.types = append(f.types, taskType)
	return nil
}

func (f *fakeTasks) enqueued() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.types...)
}

func readyDraftStore() *draft.Store {
	s := draft.NewStore()
	input := "Mia: one\nLeo: two\nMia: three"
	s.Update(draft.Patch{ScriptInput: &input})
	s.SetCharacters([]model.CharacterSelection{
		{ID: "c1", Name: "Mia", VoiceID: "v1"},
		{ID: "c2", Name: "Leo", VoiceID: "v2"},
	})
	return s
}

func newTestDispatcher(store *draft.Store, platform *fakePlatform, tasks *fakeTasks, notifier *fakeNotifier) *Dispatcher {
	p := poller.New(platform, 10*time.Millisecond, 200*time.Millisecond)
	return New(store, nil, platform, nil, p, tasks, notifier, config.WatchConfig{
		PollInterval: 10 * time.Millisecond,
		PollCap:      200 * time.Millisecond,
		ChannelGrace: 10 * time.Millisecond,
	})
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestEnqueuePreview_SynchronousQueuedWrite(t *testing.T) {
	store := readyDraftStore()
	platform := &fakePlatform{
		submitResp: model.SubmitJobResponse{JobID: "j1", QueuePosition: 1, EstimatedWaitTime: 30},
		status:     model.JobUpdate{JobID: "j1", Status: model.JobStatusPending},
	}
	d := newTestDispatcher(store, platform, &fakeTasks{}, &fakeNotifier{})
	defer d.Stop()

	state, err := d.EnqueuePreview(context.Background())
	if err != nil {
		t.Fatalf("EnqueuePreview: %v", err)
	}

	// The caller's next read must already see the submitted job.
	if state.Status != model.RenderStatusQueued || state.QueuePosition != 1 || state.EstimatedWaitTime != 30 {
		t.Errorf("returned state = %+v", state)
	}
	got := store.Get()
	if got.Render.JobID != "j1" || got.Render.Status != model.RenderStatusQueued {
		t.Errorf("store state = %+v", got.Render)
	}
	if got.ProjectID != "p1" {
		t.Errorf("projectId = %q, want p1", got.ProjectID)
	}
	if platform.lastCreate.IdempotencyKey != got.IdempotencyKey {
		t.Errorf("create sent key %q, draft has %q", platform.lastCreate.IdempotencyKey, got.IdempotencyKey)
	}
}

func TestEnqueue_PreconditionEmptyScript(t *testing.T) {
	store := draft.NewStore()
	store.SetCharacters([]model.CharacterSelection{{ID: "c1"}, {ID: "c2"}})
	platform := &fakePlatform{}
	d := newTestDispatcher(store, platform, &fakeTasks{}, &fakeNotifier{})

	_, err := d.EnqueuePreview(context.Background())

	var pre *PreconditionError
	if !errors.As(err, &pre) {
		t.Fatalf("err = %v, want PreconditionError", err)
	}
	if creates, submits := platform.counts(); creates != 0 || submits != 0 {
		t.Errorf("precondition failure must not touch the network (creates=%d submits=%d)", creates, submits)
	}
}

func TestEnqueue_PreconditionMissingCharacter(t *testing.T) {
	store := draft.NewStore()
	input := "Mia: hello"
	store.Update(draft.Patch{ScriptInput: &input})
	store.SetCharacters([]model.CharacterSelection{{ID: "c1", Name: "Mia"}})
	d := newTestDispatcher(store, &fakePlatform{}, &fakeTasks{}, &fakeNotifier{})

	var pre *PreconditionError
	if _, err := d.EnqueuePreview(context.Background()); !errors.As(err, &pre) {
		t.Fatalf("err = %v, want PreconditionError", err)
	}
}

func TestEnqueue_PreconditionNarratorNeedsBackground(t *testing.T) {
	store := draft.NewStore()
	narrator := model.DraftTypeNarrator
	input := "Once upon a time"
	store.Update(draft.Patch{Type: &narrator, ScriptInput: &input})
	d := newTestDispatcher(store, &fakePlatform{}, &fakeTasks{}, &fakeNotifier{})

	var pre *PreconditionError
	if _, err := d.EnqueuePreview(context.Background()); !errors.As(err, &pre) {
		t.Fatalf("err = %v, want PreconditionError", err)
	}

	bg := "bg-7"
	store.Update(draft.Patch{BackgroundID: &bg})
	platform := &fakePlatform{
		submitResp: model.SubmitJobResponse{JobID: "j1"},
		status:     model.JobUpdate{JobID: "j1", Status: model.JobStatusPending},
	}
	d2 := newTestDispatcher(store, platform, &fakeTasks{}, &fakeNotifier{})
	defer d2.Stop()
	if _, err := d2.EnqueuePreview(context.Background()); err != nil {
		t.Fatalf("expected success with background set, got %v", err)
	}
}

func TestEnqueue_RejectsWhileJobActive(t *testing.T) {
	store := readyDraftStore()
	platform := &fakePlatform{
		submitResp: model.SubmitJobResponse{JobID: "j1", QueuePosition: 1},
		status:     model.JobUpdate{JobID: "j1", Status: model.JobStatusProcessing, Progress: 10},
	}
	d := newTestDispatcher(store, platform, &fakeTasks{}, &fakeNotifier{})
	defer d.Stop()

	if _, err := d.EnqueuePreview(context.Background()); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}

	_, err := d.EnqueueFinal(context.Background())
	if !errors.Is(err, ErrRenderInProgress) {
		t.Fatalf("err = %v, want ErrRenderInProgress", err)
	}
	if _, submits := platform.counts(); submits != 1 {
		t.Errorf("second enqueue reached the server (submits=%d)", submits)
	}
}

func TestWatch_TerminalViaPollPromotesAndNotifiesOnce(t *testing.T) {
	store := readyDraftStore()
	platform := &fakePlatform{
		submitResp: model.SubmitJobResponse{JobID: "j1", QueuePosition: 1},
		status: model.JobUpdate{
			JobID:     "j1",
			Status:    model.JobStatusCompleted,
			ResultURL: "https://x/v1.mp4",
			Metadata:  &model.JobMetadata{DurationSec: 12},
		},
	}
	tasks := &fakeTasks{}
	notifier := &fakeNotifier{}
	d := newTestDispatcher(store, platform, tasks, notifier)

	if _, err := d.EnqueuePreview(context.Background()); err != nil {
		t.Fatalf("EnqueuePreview: %v", err)
	}

	waitFor(t, func() bool {
		return store.RenderState().Status == model.RenderStatusReady
	}, "job never reached READY")

	state := store.RenderState()
	if state.PreviewURL != "https://x/v1.mp4" || state.DurationSec != 12 {
		t.Errorf("state = %+v", state)
	}

	waitFor(t, func() bool { return len(tasks.enqueued()) == 1 }, "promotion task not enqueued")
	if tasks.enqueued()[0] != worker.TaskTypeProjectPromote {
		t.Errorf("task = %q", tasks.enqueued()[0])
	}

	waitFor(t, func() bool { return len(notifier.noticeCodes()) == 1 }, "terminal notice missing")
	if codes := notifier.noticeCodes(); codes[0] != "render.ready" {
		t.Errorf("notices = %v", codes)
	}
}

func TestWatch_FailedJobNotifiesAndAllowsRetry(t *testing.T) {
	store := readyDraftStore()
	platform := &fakePlatform{
		submitResp: model.SubmitJobResponse{JobID: "j1"},
		status: model.JobUpdate{
			JobID:        "j1",
			Status:       model.JobStatusFailed,
			ErrorMessage: "voice unavailable",
		},
	}
	tasks := &fakeTasks{}
	notifier := &fakeNotifier{}
	d := newTestDispatcher(store, platform, tasks, notifier)

	if _, err := d.EnqueuePreview(context.Background()); err != nil {
		t.Fatalf("EnqueuePreview: %v", err)
	}

	waitFor(t, func() bool {
		return store.RenderState().Status == model.RenderStatusFailed
	}, "job never reached FAILED")

	waitFor(t, func() bool { return len(notifier.noticeCodes()) == 1 }, "terminal notice missing")
	if codes := notifier.noticeCodes(); codes[0] != "render.failed" {
		t.Errorf("notices = %v", codes)
	}
	if len(tasks.enqueued()) != 0 {
		t.Error("failed jobs must not enqueue promotion")
	}

	// No automatic retry: the user re-invokes enqueue, minting a new job.
	platform.setStatus(model.JobUpdate{JobID: "j2", Status: model.JobStatusPending})
	platform.mu.Lock()
	platform.submitResp = model.SubmitJobResponse{JobID: "j2"}
	platform.mu.Unlock()

	waitFor(t, func() bool {
		_, err := d.EnqueuePreview(context.Background())
		return err == nil
	}, "retry after failure never accepted")
	d.Stop()
}

func TestWatch_NoPushChannelPollsToTerminal(t *testing.T) {
	store := readyDraftStore()
	platform := &fakePlatform{
		submitResp: model.SubmitJobResponse{JobID: "j1", QueuePosition: 2},
		status:     model.JobUpdate{JobID: "j1", Status: model.JobStatusPending},
	}
	tasks := &fakeTasks{}
	notifier := &fakeNotifier{}
	p := poller.New(platform, 10*time.Millisecond, 5*time.Second)
	d := New(store, nil, platform, nil, p, tasks, notifier, config.WatchConfig{
		PollInterval: 10 * time.Millisecond,
		PollCap:      5 * time.Second,
		ChannelGrace: 10 * time.Millisecond,
	})

	if _, err := d.EnqueuePreview(context.Background()); err != nil {
		t.Fatalf("EnqueuePreview: %v", err)
	}

	// The immediate one-shot check sees PENDING, so only the fallback poll
	// loop can deliver the progress and the terminal state.
	platform.setStatus(model.JobUpdate{JobID: "j1", Status: model.JobStatusProcessing, Progress: 40})
	waitFor(t, func() bool {
		return store.RenderState().Status == model.RenderStatusRendering
	}, "polling never delivered RENDERING without a push channel")

	platform.setStatus(model.JobUpdate{
		JobID:     "j1",
		Status:    model.JobStatusCompleted,
		ResultURL: "https://x/v1.mp4",
	})
	waitFor(t, func() bool {
		return store.RenderState().Status == model.RenderStatusReady
	}, "polling never delivered READY without a push channel")

	// Terminal via poll releases the guard for the next submission.
	platform.mu.Lock()
	platform.submitResp = model.SubmitJobResponse{JobID: "j2"}
	platform.mu.Unlock()
	platform.setStatus(model.JobUpdate{JobID: "j2", Status: model.JobStatusPending})
	waitFor(t, func() bool {
		_, err := d.EnqueueFinal(context.Background())
		return err == nil
	}, "guard never released after poll-delivered terminal")
	d.Stop()
}

func TestWatch_PollCapLeavesLastStatus(t *testing.T) {
	store := readyDraftStore()
	platform := &fakePlatform{
		submitResp: model.SubmitJobResponse{JobID: "j1", QueuePosition: 4},
		status:     model.JobUpdate{JobID: "j1", Status: model.JobStatusPending},
	}
	d := newTestDispatcher(store, platform, &fakeTasks{}, &fakeNotifier{})

	if _, err := d.EnqueuePreview(context.Background()); err != nil {
		t.Fatalf("EnqueuePreview: %v", err)
	}

	// The watch must give up at the cap and release the guard so the user
	// can retry manually; the draft keeps its last observed status.
	waitFor(t, func() bool {
		_, err := d.EnqueuePreview(context.Background())
		return err == nil
	}, "guard never released after poll cap")

	if got := store.RenderState().Status; got != model.RenderStatusQueued {
		t.Errorf("status = %s, want QUEUED preserved", got)
	}
	d.Stop()
}

func TestEnqueue_ReusesKnownProject(t *testing.T) {
	store := readyDraftStore()
	store.SetProjectID("p-existing")
	platform := &fakePlatform{
		submitResp: model.SubmitJobResponse{JobID: "j1"},
		status:     model.JobUpdate{JobID: "j1", Status: model.JobStatusPending},
	}
	d := newTestDispatcher(store, platform, &fakeTasks{}, &fakeNotifier{})
	defer d.Stop()

	if _, err := d.EnqueuePreview(context.Background()); err != nil {
		t.Fatalf("EnqueuePreview: %v", err)
	}
	if creates, _ := platform.counts(); creates != 0 {
		t.Errorf("known project must not be re-created (creates=%d)", creates)
	}
}
