package model

import "time"

// ProjectRecord is the durable, server-of-record version of a draft.
type ProjectRecord struct {
	ID           string          `json:"id"`
	UserID       string          `json:"userId,omitempty"`
	Title        string          `json:"title"`
	Type         DraftType       `json:"type"`
	BackgroundID string          `json:"backgroundId"`
	PreviewURL   string          `json:"previewUrl,omitempty"`
	FinalURL     string          `json:"finalUrl,omitempty"`
	DurationSec  float64         `json:"durationSec,omitempty"`
	Metadata     ProjectMetadata `json:"metadata"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// ProjectMetadata is the bag of settings that have no first-class column on
// the project record. Revision is bumped on every merge; the platform
// rejects writes carrying a stale revision.
type ProjectMetadata struct {
	Revision           int                 `json:"revision"`
	Type               DraftType           `json:"type,omitempty"`
	SubtitleStyle      SubtitleStyle       `json:"subtitleStyle,omitempty"`
	SubtitlePosition   SubtitlePosition    `json:"subtitlePosition,omitempty"`
	SubtitleFontSize   int                 `json:"subtitleFontSize,omitempty"`
	SubtitleSingleLine bool                `json:"subtitleSingleLine,omitempty"`
	SubtitleSingleWord bool                `json:"subtitleSingleWord,omitempty"`
	SubtitleEnabled    bool                `json:"subtitleEnabled,omitempty"`
	PlaybackRate       float64             `json:"playbackRate,omitempty"`
	CharacterSizes     map[string]float64  `json:"characterSizes,omitempty"`
	CharacterPositions map[string]Position `json:"characterPositions,omitempty"`
	ScriptInput        string              `json:"scriptInput,omitempty"`
}

// MetadataFromDraft builds the metadata bag a draft's settings map onto.
// Revision is left at zero; merges stamp it.
func MetadataFromDraft(d Draft) ProjectMetadata {
	return ProjectMetadata{
		Type:               d.Type,
		SubtitleStyle:      d.Subtitle.Style,
		SubtitlePosition:   d.Subtitle.Position,
		SubtitleFontSize:   d.Subtitle.FontSize,
		SubtitleSingleLine: d.Subtitle.SingleLine,
		SubtitleSingleWord: d.Subtitle.SingleWord,
		SubtitleEnabled:    d.Subtitle.Enabled,
		PlaybackRate:       d.PlaybackRate,
		CharacterSizes:     d.CharacterSizes,
		CharacterPositions: d.CharacterPositions,
		ScriptInput:        d.ScriptInput,
	}
}

// ProjectCharacter is a character attached to a project.
type ProjectCharacter struct {
	ID        string        `json:"id,omitempty"`
	ProjectID string        `json:"projectId,omitempty"`
	Name      string        `json:"name"`
	VoiceID   string        `json:"voiceId"`
	AvatarURL string        `json:"avatarUrl"`
	Slot      CharacterSlot `json:"slot"`
}

// ScriptSegment is one ordered speaker/text pair attached to a project.
type ScriptSegment struct {
	Index   int    `json:"index"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// ProjectPatch is the set of first-class fields updateProject can change.
// Nil fields are left untouched by the platform.
type ProjectPatch struct {
	Title        *string          `json:"title,omitempty"`
	BackgroundID *string          `json:"backgroundId,omitempty"`
	PreviewURL   *string          `json:"previewUrl,omitempty"`
	FinalURL     *string          `json:"finalUrl,omitempty"`
	DurationSec  *float64         `json:"durationSec,omitempty"`
	Metadata     *ProjectMetadata `json:"metadata,omitempty"`
}
