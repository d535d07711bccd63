// Package protocol defines the JSON wire frames exchanged with renderer
// clients over the /client-ws stream.
//
// Every frame carries a "type" discriminator. Outbound frames implement the
// Frame interface; inbound traffic is decoded into ClientMessage, a union of
// all fields clients may send, and dispatched on its Type.
package protocol

// Outbound frame type discriminators.
const (
	TypeAudio           = "audio"
	TypeMotionCommand   = "motion-command"
	TypeExpressionAck   = "expression-ack"
	TypeMotionAck       = "motion-ack"
	TypeBackendModeSet  = "backend-mode-set"
	TypeTextChunk       = "text-generation-chunk"
	TypeTextResponse    = "text-generation-response"
	TypeTranscription   = "user-input-transcription"
	TypeAutonomousChat  = "autonomous-chat"
	TypeFullText        = "full-text"
	TypePartialText     = "partial-text"
	TypeError           = "error"
	TypeSetModelAndConf = "set-model-and-conf"
	TypeControl         = "control"
)

// Inbound message types.
const (
	TypeExpressionCommand     = "expression-command"
	TypeMotionCommandRequest  = "motion-command"
	TypeTextInput             = "text-input"
	TypeTextGenerationRequest = "text-generation-request"
	TypeSetBackendMode        = "set-backend-mode"
	TypeGetBackendMode        = "get-backend-mode"
	TypeMicAudioData          = "mic-audio-data"
	TypeMicAudioEnd           = "mic-audio-end"
	TypeInterruptSignal       = "interrupt-signal"
)

// Frame is any outbound wire message.
type Frame interface {
	// Kind returns the frame's "type" discriminator.
	Kind() string
}

// DisplayText is the text block shown alongside speech.
type DisplayText struct {
	Text   string `json:"text"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Actions carries the expression IDs applied with a speech event.
type Actions struct {
	Expressions []int `json:"expressions"`
}

// AudioFrame delivers one utterance (or an expression-only event when Audio
// is nil) to the renderer.
type AudioFrame struct {
	Type        string      `json:"type"`
	Audio       *string     `json:"audio"` // base64 WAV, null for expression-only
	Format      string      `json:"format,omitempty"`
	Volumes     []float64   `json:"volumes"`
	SliceLength int         `json:"slice_length"`
	DisplayText DisplayText `json:"display_text"`
	Actions     *Actions    `json:"actions,omitempty"`
	Forwarded   bool        `json:"forwarded"`
}

func (f *AudioFrame) Kind() string { return TypeAudio }

// MotionFrame instructs the renderer to play one motion.
type MotionFrame struct {
	Type        string `json:"type"`
	MotionGroup string `json:"motion_group"`
	MotionIndex int    `json:"motion_index"`
	Loop        bool   `json:"loop"`
	Priority    int    `json:"priority"`
}

func (f *MotionFrame) Kind() string { return TypeMotionCommand }

// NewMotionFrame builds a MotionFrame with its type discriminator set.
func NewMotionFrame(group string, index int, loop bool, priority int) *MotionFrame {
	return &MotionFrame{
		Type:        TypeMotionCommand,
		MotionGroup: group,
		MotionIndex: index,
		Loop:        loop,
		Priority:    priority,
	}
}

// ExpressionAck acknowledges an expression-command.
type ExpressionAck struct {
	Type         string `json:"type"`
	Status       string `json:"status"`
	ExpressionID int    `json:"expression_id"`
	Duration     int    `json:"duration,omitempty"`
	Priority     int    `json:"priority,omitempty"`
	Error        string `json:"error,omitempty"`
}

func (f *ExpressionAck) Kind() string { return TypeExpressionAck }

// MotionAck acknowledges a motion-command.
type MotionAck struct {
	Type        string `json:"type"`
	Status      string `json:"status"`
	MotionGroup string `json:"motion_group"`
	MotionIndex int    `json:"motion_index"`
	Loop        bool   `json:"loop"`
	Priority    int    `json:"priority,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (f *MotionAck) Kind() string { return TypeMotionAck }

// BackendModeFrame reports the session's backend mode, either as the reply
// to get-backend-mode or as confirmation of set-backend-mode.
type BackendModeFrame struct {
	Type   string `json:"type"`
	Mode   string `json:"mode"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (f *BackendModeFrame) Kind() string { return TypeBackendModeSet }

// TextChunkFrame streams one agent output chunk.
type TextChunkFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (f *TextChunkFrame) Kind() string { return TypeTextChunk }

// TextResponseFrame terminates a text-generation stream with the full text
// or an error.
type TextResponseFrame struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

func (f *TextResponseFrame) Kind() string { return TypeTextResponse }

// TranscriptionFrame echoes the ASR transcription of the user's mic input.
type TranscriptionFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (f *TranscriptionFrame) Kind() string { return TypeTranscription }

// AutonomousChatFrame carries autonomous speech text to overlay clients.
type AutonomousChatFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (f *AutonomousChatFrame) Kind() string { return TypeAutonomousChat }

// TextFrame is a plain text frame, either full-text or partial-text.
type TextFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (f *TextFrame) Kind() string { return f.Type }

// FullText builds a full-text frame.
func FullText(text string) *TextFrame {
	return &TextFrame{Type: TypeFullText, Text: text}
}

// PartialText builds a partial-text frame.
func PartialText(text string) *TextFrame {
	return &TextFrame{Type: TypePartialText, Text: text}
}

// ErrorFrame reports a non-fatal session-level error to the client.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (f *ErrorFrame) Kind() string { return TypeError }

// NewErrorFrame builds an ErrorFrame.
func NewErrorFrame(message string) *ErrorFrame {
	return &ErrorFrame{Type: TypeError, Message: message}
}

// ModelInfo is the model descriptor block of a set-model-and-conf frame.
type ModelInfo struct {
	URL          string           `json:"url,omitempty"`
	EmotionMap   map[string]int   `json:"emotionMap"`
	MotionGroups map[string][]int `json:"motionGroups,omitempty"`
}

// SetModelAndConfFrame delivers the active model and character configuration
// to a freshly connected client.
type SetModelAndConfFrame struct {
	Type      string    `json:"type"`
	ModelInfo ModelInfo `json:"model_info"`
	ConfName  string    `json:"conf_name"`
	ConfUID   string    `json:"conf_uid,omitempty"`
	ClientUID string    `json:"client_uid"`
}

func (f *SetModelAndConfFrame) Kind() string { return TypeSetModelAndConf }

// ControlFrame carries renderer control signals such as
// "conversation-chain-start" and "conversation-chain-end".
type ControlFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (f *ControlFrame) Kind() string { return TypeControl }

// NewControlFrame builds a ControlFrame.
func NewControlFrame(text string) *ControlFrame {
	return &ControlFrame{Type: TypeControl, Text: text}
}

// ClientMessage is the union of all inbound message shapes. Type selects
// which fields are meaningful; unused fields stay at their zero values.
type ClientMessage struct {
	Type string `json:"type"`

	// expression-command
	ExpressionID *int `json:"expression_id,omitempty"`
	Duration     int  `json:"duration,omitempty"`

	// motion-command
	MotionGroup string `json:"motion_group,omitempty"`
	MotionIndex int    `json:"motion_index,omitempty"`
	Loop        bool   `json:"loop,omitempty"`

	// shared by expression/motion commands
	Priority int `json:"priority,omitempty"`

	// text-input / text-generation-request
	Text   string `json:"text,omitempty"`
	Prompt string `json:"prompt,omitempty"`

	// set-backend-mode
	Mode string `json:"mode,omitempty"`

	// mic-audio-data
	Audio []float32 `json:"audio,omitempty"`
}
