package model

// WebSocket message types pushed to UI subscribers
const (
	WSMessageTypeRender = "render"
	WSMessageTypeNotice = "notice"
	WSMessageTypePing   = "ping"
	WSMessageTypePong   = "pong"
)

// Notice levels
const (
	NoticeLevelInfo  = "info"
	NoticeLevelWarn  = "warn"
	NoticeLevelError = "error"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSRenderMessage carries a reconciled render-state snapshot for a draft.
type WSRenderMessage struct {
	Type    string      `json:"type"`
	DraftID string      `json:"draftId"`
	Render  RenderState `json:"render"`
}

// WSNoticeMessage is a one-off user-facing notification. Exactly one is
// emitted per terminal render state.
type WSNoticeMessage struct {
	Type    string `json:"type"`
	DraftID string `json:"draftId"`
	Level   string `json:"level"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
