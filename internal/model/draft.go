package model

import "time"

// Draft is the local, mutable working copy of a video before it is
// promoted to a durable project on the render platform.
type Draft struct {
	ID   string    `json:"id"`
	Type DraftType `json:"type"`

	Title        string              `json:"title"`
	CharacterA   *CharacterSelection `json:"characterA,omitempty"`
	CharacterB   *CharacterSelection `json:"characterB,omitempty"`
	ScriptLines  []ScriptLine        `json:"scriptLines"`
	ScriptInput  string              `json:"scriptInput"`
	BackgroundID string              `json:"backgroundId"`

	TextOverlays  []TextOverlay  `json:"textOverlays"`
	ImageOverlays []ImageOverlay `json:"imageOverlays"`

	// SubtitleText is the editable subtitle track; OriginalSubtitleText is
	// the last server-generated baseline it can be reset to.
	SubtitleText         string           `json:"subtitleText"`
	OriginalSubtitleText string           `json:"originalSubtitleText"`
	Subtitle             SubtitleSettings `json:"subtitle"`

	CharacterSizes     map[string]float64  `json:"characterSizes,omitempty"`
	CharacterPositions map[string]Position `json:"characterPositions,omitempty"`
	PlaybackRate       float64             `json:"playbackRate"`

	// IdempotencyKey is generated once at draft creation and sent with the
	// first project create call so duplicate-creation races collapse
	// server-side.
	IdempotencyKey string `json:"idempotencyKey"`

	// ProjectID is empty until the draft has been promoted.
	ProjectID string `json:"projectId,omitempty"`

	Render RenderState `json:"render"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Promoted reports whether a durable project record exists for this draft.
func (d *Draft) Promoted() bool {
	return d.ProjectID != ""
}

// RenderState holds the render-derived fields of a draft. Only the
// reconciler writes these.
type RenderState struct {
	JobID             string       `json:"jobId,omitempty"`
	JobType           JobType      `json:"jobType,omitempty"`
	Status            RenderStatus `json:"status"`
	Progress          int          `json:"progress"`
	PreviewURL        string       `json:"previewUrl,omitempty"`
	FinalURL          string       `json:"finalUrl,omitempty"`
	DurationSec       float64      `json:"durationSec,omitempty"`
	QueuePosition     int          `json:"queuePosition,omitempty"`
	EstimatedWaitTime int          `json:"estimatedWaitTime,omitempty"`
	ErrorMessage      string       `json:"errorMessage,omitempty"`
}

// Terminal reports whether the state's job reached READY or FAILED.
func (s RenderState) Terminal() bool {
	return s.Status == RenderStatusReady || s.Status == RenderStatusFailed
}

// Active reports whether a job is still queued or rendering.
func (s RenderState) Active() bool {
	return s.Status == RenderStatusQueued || s.Status == RenderStatusRendering
}

// CharacterSelection is one of the draft's two character slots.
type CharacterSelection struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	VoiceID   string        `json:"voiceId"`
	AvatarURL string        `json:"avatarUrl"`
	Slot      CharacterSlot `json:"slot"`
}

// ScriptLine is a single speaker/text pair of the script.
type ScriptLine struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// SubtitleSettings holds subtitle styling for a draft.
type SubtitleSettings struct {
	Enabled    bool             `json:"enabled"`
	Style      SubtitleStyle    `json:"style"`
	Position   SubtitlePosition `json:"position"`
	FontSize   int              `json:"fontSize"`
	SingleLine bool             `json:"singleLine"`
	SingleWord bool             `json:"singleWord"`
}

// Position is a normalized screen coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TextOverlay is a timed text element composited over the video.
type TextOverlay struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Position Position `json:"position"`
	FontSize int      `json:"fontSize"`
	Color    string   `json:"color"`
	StartSec float64  `json:"startSec"`
	EndSec   float64  `json:"endSec"`
}

// ImageOverlay is a timed image element composited over the video.
type ImageOverlay struct {
	ID       string   `json:"id"`
	URL      string   `json:"url"`
	Position Position `json:"position"`
	Width    float64  `json:"width"`
	Height   float64  `json:"height"`
	StartSec float64  `json:"startSec"`
	EndSec   float64  `json:"endSec"`
}
