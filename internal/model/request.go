package model

// DraftStartRequest optionally seeds the fresh draft's type.
type DraftStartRequest struct {
	Type DraftType `json:"type" validate:"omitempty,oneof=dialogue narrator"`
}

// DraftUpdateRequest is a partial draft update. Nil fields mean "leave
// unchanged".
type DraftUpdateRequest struct {
	Type               *DraftType           `json:"type" validate:"omitempty,oneof=dialogue narrator"`
	Title              *string              `json:"title" validate:"omitempty,max=200"`
	ScriptLines        *[]ScriptLine        `json:"scriptLines"`
	ScriptInput        *string              `json:"scriptInput"`
	BackgroundID       *string              `json:"backgroundId"`
	TextOverlays       *[]TextOverlay       `json:"textOverlays"`
	ImageOverlays      *[]ImageOverlay      `json:"imageOverlays"`
	SubtitleText       *string              `json:"subtitleText"`
	Subtitle           *SubtitleSettings    `json:"subtitle"`
	CharacterSizes     *map[string]float64  `json:"characterSizes"`
	CharacterPositions *map[string]Position `json:"characterPositions"`
	PlaybackRate       *float64             `json:"playbackRate" validate:"omitempty,gt=0,lte=3"`
	DurationSec        *float64             `json:"durationSec" validate:"omitempty,gte=0"`
}

// SetCharactersRequest replaces the draft's character selections. A draft
// has exactly two slots, so more than two selections is a caller error.
type SetCharactersRequest struct {
	Characters []CharacterSelection `json:"characters" validate:"max=2,dive"`
}
