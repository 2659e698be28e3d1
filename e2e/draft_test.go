package e2e

import (
	"net/http"
	"testing"
)

func TestDraftStart(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/draft/start", `{"type": "narrator"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusCreated)

	result := parseJSON(t, resp)
	if result["id"] == nil || result["id"] == "" {
		t.Error("expected 'id' in response")
	}
	if result["type"] != "narrator" {
		t.Errorf("expected type 'narrator', got %v", result["type"])
	}
	if result["idempotencyKey"] == nil || result["idempotencyKey"] == "" {
		t.Error("expected 'idempotencyKey' in response")
	}
}

func TestDraftStart_InvalidType(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/draft/start", `{"type": "duet"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestDraftUpdate(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPatch, "/api/draft/",
		`{"title": "First cut", "playbackRate": 1.5}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["title"] != "First cut" {
		t.Errorf("expected title 'First cut', got %v", result["title"])
	}
	if result["playbackRate"] != 1.5 {
		t.Errorf("expected playbackRate 1.5, got %v", result["playbackRate"])
	}
}

func TestDraftUpdate_OmittedFieldsUnchanged(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPatch, "/api/draft/", `{"title": "Keep me"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	// A second patch touching another field must not reset the title.
	resp, err = doRequest(ta.app, http.MethodPatch, "/api/draft/", `{"scriptInput": "N: hello"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["title"] != "Keep me" {
		t.Errorf("expected title 'Keep me' to survive, got %v", result["title"])
	}
	if result["scriptInput"] != "N: hello" {
		t.Errorf("expected scriptInput to update, got %v", result["scriptInput"])
	}
}

func TestDraftUpdate_InvalidPlaybackRate(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPatch, "/api/draft/", `{"playbackRate": -1}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)

	result := parseJSON(t, resp)
	errObj := result["error"].(map[string]interface{})
	if errObj["code"] != "VALIDATION_ERROR" {
		t.Errorf("expected error code VALIDATION_ERROR, got %v", errObj["code"])
	}
}

func TestDraftCharacters_CapEnforced(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPut, "/api/draft/characters", `{
		"characters": [
			{"id": "c1", "name": "A", "voiceId": "v1", "avatarUrl": ""},
			{"id": "c2", "name": "B", "voiceId": "v2", "avatarUrl": ""},
			{"id": "c3", "name": "C", "voiceId": "v3", "avatarUrl": ""}
		]
	}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)

	result := parseJSON(t, resp)
	errObj := result["error"].(map[string]interface{})
	if errObj["code"] != "VALIDATION_ERROR" {
		t.Errorf("expected error code VALIDATION_ERROR, got %v", errObj["code"])
	}
}

func TestDraftCharacters_AssignsSlots(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPut, "/api/draft/characters", `{
		"characters": [
			{"id": "c1", "name": "Alex", "voiceId": "v1", "avatarUrl": ""},
			{"id": "c2", "name": "Sam", "voiceId": "v2", "avatarUrl": ""}
		]
	}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	charA := result["characterA"].(map[string]interface{})
	charB := result["characterB"].(map[string]interface{})
	if charA["slot"] != "A" || charA["name"] != "Alex" {
		t.Errorf("unexpected slot A: %v", charA)
	}
	if charB["slot"] != "B" || charB["name"] != "Sam" {
		t.Errorf("unexpected slot B: %v", charB)
	}
}

func TestDraftClear_FreshDraft(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/draft/", "")
	if err != nil {
		t.Fatalf("get request failed: %v", err)
	}
	before := parseJSON(t, resp)

	resp, err = doRequest(ta.app, http.MethodPatch, "/api/draft/", `{"title": "Doomed"}`)
	if err != nil {
		t.Fatalf("update request failed: %v", err)
	}
	resp.Body.Close()

	resp, err = doRequest(ta.app, http.MethodDelete, "/api/draft/", "")
	if err != nil {
		t.Fatalf("clear request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	after := parseJSON(t, resp)
	if after["id"] == before["id"] {
		t.Error("expected a new draft id after clear")
	}
	if after["title"] != "" {
		t.Errorf("expected empty title after clear, got %v", after["title"])
	}
}
