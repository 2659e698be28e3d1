package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shortreel/api/internal/config"
	"github.com/shortreel/api/internal/model"
)

// Sentinel errors surfaced to callers
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrJobNotFound     = errors.New("job not found")
	ErrConflict        = errors.New("metadata revision conflict")
)

// RenderPlatform is the remote persistence and render service the
// orchestrator talks to.
type RenderPlatform interface {
	CreateProject(ctx context.Context, req *CreateProjectRequest) (*model.ProjectRecord, error)
	GetProject(ctx context.Context, projectID string) (*model.ProjectRecord, error)
	UpdateProject(ctx context.Context, projectID string, patch *model.ProjectPatch) (*model.ProjectRecord, error)
	DeleteProject(ctx context.Context, projectID string) error
	CreateCharacter(ctx context.Context, projectID string, character *model.ProjectCharacter) (*model.ProjectCharacter, error)
	BulkUpsertScriptSegments(ctx context.Context, projectID string, segments []model.ScriptSegment) error
	SubmitRenderJob(ctx context.Context, projectID string, jobType model.JobType, customizations *model.ProjectMetadata) (*model.SubmitJobResponse, error)
	GetRenderJobStatus(ctx context.Context, projectID, jobID string) (*model.JobUpdate, error)
	GenerateCaptions(ctx context.Context, projectID string) (*model.CaptionsResult, error)
}

// CreateProjectRequest creates a durable project record. IdempotencyKey is
// generated client-side at draft creation; the platform enforces uniqueness
// on it, so duplicate-creation races collapse into one record.
type CreateProjectRequest struct {
	Title          string          `json:"title"`
	Type           model.DraftType `json:"type"`
	BackgroundID   string          `json:"backgroundId,omitempty"`
	IdempotencyKey string          `json:"-"`
}

type submitJobRequest struct {
	Type           model.JobType          `json:"type"`
	Customizations *model.ProjectMetadata `json:"customizations,omitempty"`
}

// PlatformClient is the HTTP implementation of RenderPlatform.
type PlatformClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewPlatformClient(cfg *config.PlatformConfig) *PlatformClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &PlatformClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
	}
}

// IsConfigured returns true if the client has a base URL to talk to.
func (c *PlatformClient) IsConfigured() bool {
	return c.baseURL != ""
}

// CreateProject creates the durable project record for a draft.
func (c *PlatformClient) CreateProject(ctx context.Context, req *CreateProjectRequest) (*model.ProjectRecord, error) {
	var record model.ProjectRecord
	headers := map[string]string{}
	if req.IdempotencyKey != "" {
		headers["Idempotency-Key"] = req.IdempotencyKey
	}
	if err := c.do(ctx, http.MethodPost, "/v1/projects", req, &record, headers); err != nil {
		return nil, err
	}
	if record.ID == "" {
		return nil, fmt.Errorf("platform returned project without id")
	}
	return &record, nil
}

func (c *PlatformClient) GetProject(ctx context.Context, projectID string) (*model.ProjectRecord, error) {
	var record model.ProjectRecord
	if err := c.do(ctx, http.MethodGet, "/v1/projects/"+projectID, nil, &record, nil); err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateProject applies a partial update. The merge of first-class fields
// happens server-side; nil patch fields are left untouched.
func (c *PlatformClient) UpdateProject(ctx context.Context, projectID string, patch *model.ProjectPatch) (*model.ProjectRecord, error) {
	var record model.ProjectRecord
	if err := c.do(ctx, http.MethodPatch, "/v1/projects/"+projectID, patch, &record, nil); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *PlatformClient) DeleteProject(ctx context.Context, projectID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/projects/"+projectID, nil, nil, nil)
}

func (c *PlatformClient) CreateCharacter(ctx context.Context, projectID string, character *model.ProjectCharacter) (*model.ProjectCharacter, error) {
	var created model.ProjectCharacter
	endpoint := fmt.Sprintf("/v1/projects/%s/characters", projectID)
	if err := c.do(ctx, http.MethodPost, endpoint, character, &created, nil); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *PlatformClient) BulkUpsertScriptSegments(ctx context.Context, projectID string, segments []model.ScriptSegment) error {
	endpoint := fmt.Sprintf("/v1/projects/%s/script-segments/bulk", projectID)
	body := map[string][]model.ScriptSegment{"segments": segments}
	return c.do(ctx, http.MethodPut, endpoint, body, nil, nil)
}

// SubmitRenderJob asks the platform to render the project. The response
// arrives immediately; the render itself is asynchronous.
func (c *PlatformClient) SubmitRenderJob(ctx context.Context, projectID string, jobType model.JobType, customizations *model.ProjectMetadata) (*model.SubmitJobResponse, error) {
	var resp model.SubmitJobResponse
	endpoint := fmt.Sprintf("/v1/projects/%s/render", projectID)
	req := submitJobRequest{Type: jobType, Customizations: customizations}
	if err := c.do(ctx, http.MethodPost, endpoint, req, &resp, nil); err != nil {
		return nil, err
	}
	if resp.JobID == "" {
		return nil, fmt.Errorf("platform accepted render but returned no job id")
	}
	return &resp, nil
}

func (c *PlatformClient) GetRenderJobStatus(ctx context.Context, projectID, jobID string) (*model.JobUpdate, error) {
	var update model.JobUpdate
	endpoint := fmt.Sprintf("/v1/projects/%s/jobs/%s", projectID, jobID)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &update, nil); err != nil {
		return nil, err
	}
	if update.JobID == "" {
		update.JobID = jobID
	}
	if update.Status == "" {
		return nil, fmt.Errorf("platform returned job %s without a status", jobID)
	}
	return &update, nil
}

func (c *PlatformClient) GenerateCaptions(ctx context.Context, projectID string) (*model.CaptionsResult, error) {
	var result model.CaptionsResult
	endpoint := fmt.Sprintf("/v1/projects/%s/captions", projectID)
	if err := c.do(ctx, http.MethodPost, endpoint, nil, &result, nil); err != nil {
		return nil, err
	}
	return &result, nil
}

// do executes one request and decodes the JSON response into result.
func (c *PlatformClient) do(ctx context.Context, method, endpoint string, body, result interface{}, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Platform API] ✗ %s %s — request failed: %v", method, endpoint, err)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		if method == http.MethodGet && strings.Contains(endpoint, "/jobs/") {
			return ErrJobNotFound
		}
		return ErrProjectNotFound
	case resp.StatusCode == http.StatusConflict:
		return ErrConflict
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("platform API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// MergeMetadata performs the documented read-modify-write of the metadata
// bag: fetch the record, merge locally, write the full bag back with a
// bumped revision. A stale revision surfaces as ErrConflict.
func MergeMetadata(ctx context.Context, platform RenderPlatform, projectID string, apply func(*model.ProjectMetadata)) (*model.ProjectRecord, error) {
	record, err := platform.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	merged := record.Metadata
	apply(&merged)
	merged.Revision = record.Metadata.Revision + 1

	return platform.UpdateProject(ctx, projectID, &model.ProjectPatch{Metadata: &merged})
}
