package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/shortreel/api/internal/client"
	"github.com/shortreel/api/internal/config"
	"github.com/shortreel/api/internal/dispatch"
	"github.com/shortreel/api/internal/draft"
	"github.com/shortreel/api/internal/handler"
	"github.com/shortreel/api/internal/poller"
	"github.com/shortreel/api/internal/service"
	ws "github.com/shortreel/api/internal/websocket"
)

// platformStub is an in-memory render platform behind a real HTTP server,
// so tests exercise the actual client wire path.
type platformStub struct {
	mu        sync.Mutex
	projects  map[string]map[string]interface{}
	idemKeys  map[string]string
	jobStatus string
	jobSeq    int
}

func newPlatformStub() *platformStub {
	return &platformStub{
		projects:  make(map[string]map[string]interface{}),
		idemKeys:  make(map[string]string),
		jobStatus: "PENDING",
	}
}

func (p *platformStub) setJobStatus(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobStatus = status
}

func (p *platformStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v1/projects")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case path == "" && r.Method == http.MethodPost:
		key := r.Header.Get("Idempotency-Key")
		if id, ok := p.idemKeys[key]; ok && key != "" {
			json.NewEncoder(w).Encode(p.projects[id])
			return
		}
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		id := fmt.Sprintf("proj-%d", len(p.projects)+1)
		record := map[string]interface{}{
			"id":       id,
			"title":    body["title"],
			"type":     body["type"],
			"metadata": map[string]interface{}{"revision": 0},
		}
		p.projects[id] = record
		if key != "" {
			p.idemKeys[key] = id
		}
		json.NewEncoder(w).Encode(record)

	case strings.Contains(path, "/jobs/") && r.Method == http.MethodGet:
		parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
		jobID := parts[len(parts)-1]
		update := map[string]interface{}{
			"jobId":    jobID,
			"status":   p.jobStatus,
			"progress": 10,
		}
		switch p.jobStatus {
		case "COMPLETED":
			update["progress"] = 100
			update["resultUrl"] = "https://cdn.example.com/out.mp4"
			update["metadata"] = map[string]interface{}{"durationSec": 21.5}
		case "FAILED":
			update["errorMessage"] = "render crashed"
		}
		json.NewEncoder(w).Encode(update)

	case strings.HasSuffix(path, "/render") && r.Method == http.MethodPost:
		p.jobSeq++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jobId":             fmt.Sprintf("job-%d", p.jobSeq),
			"queuePosition":     3,
			"estimatedWaitTime": 45,
		})

	case strings.HasSuffix(path, "/captions") && r.Method == http.MethodPost:
		json.NewEncoder(w).Encode(map[string]interface{}{
			"srtText":       "1\n00:00:00,000 --> 00:00:02,000\nhello\n",
			"segmentsCount": 1,
		})

	case r.Method == http.MethodGet:
		id := strings.TrimPrefix(path, "/")
		record, ok := p.projects[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(record)

	case r.Method == http.MethodPatch:
		id := strings.TrimPrefix(path, "/")
		record, ok := p.projects[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(record)

	case r.Method == http.MethodDelete:
		id := strings.TrimPrefix(path, "/")
		if _, ok := p.projects[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(p.projects, id)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type testApp struct {
	app      *fiber.App
	platform *platformStub
}

// setupApp builds a Fiber app wired like main.go, against a stub platform
// and without Redis (cache, tasks, and push channel disabled).
func setupApp(t *testing.T) *testApp {
	t.Helper()

	stub := newPlatformStub()
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)

	validate := validator.New()

	hub := ws.NewHub()
	go hub.Run()

	platformClient := client.NewPlatformClient(&config.PlatformConfig{
		BaseURL: server.URL,
		Token:   "test-token",
	})
	statusPoller := poller.New(platformClient, 10*time.Millisecond, 300*time.Millisecond)

	store := draft.NewStore()
	dispatcher := dispatch.New(store, nil, platformClient, nil, statusPoller, nil, hub, config.WatchConfig{
		PollInterval: 10 * time.Millisecond,
		PollCap:      300 * time.Millisecond,
		ChannelGrace: 10 * time.Millisecond,
	})

	draftService := service.NewDraftService(store, nil, dispatcher, nil)
	renderService := service.NewRenderService(store, dispatcher, platformClient)
	projectService := service.NewProjectService(store, nil, dispatcher, platformClient)

	draftHandler := handler.NewDraftHandler(draftService, validate)
	renderHandler := handler.NewRenderHandler(renderService)
	projectHandler := handler.NewProjectHandler(projectService)

	app := fiber.New()

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	draftGroup := api.Group("/draft")
	draftGroup.Post("/start", draftHandler.Start)
	draftGroup.Get("/", draftHandler.Get)
	draftGroup.Patch("/", draftHandler.Update)
	draftGroup.Put("/characters", draftHandler.SetCharacters)
	draftGroup.Post("/finish", draftHandler.Finish)
	draftGroup.Delete("/", draftHandler.Clear)

	render := api.Group("/render")
	render.Post("/preview", renderHandler.Preview)
	render.Post("/final", renderHandler.Final)
	render.Get("/status", renderHandler.Status)
	render.Post("/refresh", renderHandler.Refresh)
	render.Post("/captions", renderHandler.Captions)

	api.Get("/project", projectHandler.Get)
	api.Delete("/project", projectHandler.Delete)

	t.Cleanup(dispatcher.Stop)

	return &testApp{app: app, platform: stub}
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return app.Test(req, -1)
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// readyDraftBody fills the draft enough to pass render preconditions.
func makeDraftReady(t *testing.T, ta *testApp) {
	t.Helper()

	resp, err := doRequest(ta.app, http.MethodPatch, "/api/draft/",
		`{"title": "My Short", "scriptInput": "ALEX: hey\nSAM: hi there"}`)
	if err != nil {
		t.Fatalf("update request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp, err = doRequest(ta.app, http.MethodPut, "/api/draft/characters", `{
		"characters": [
			{"id": "c1", "name": "Alex", "voiceId": "v1", "avatarUrl": "https://cdn/a.png"},
			{"id": "c2", "name": "Sam", "voiceId": "v2", "avatarUrl": "https://cdn/b.png"}
		]
	}`)
	if err != nil {
		t.Fatalf("characters request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}
