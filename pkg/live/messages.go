package live

import "encoding/json"

// Outbound envelopes use the snake_case field names of the bidirectional
// generate-content WebSocket API; inbound frames arrive camelCase. The two
// halves are kept as separate types so neither bends the other's tags.

// clientMessage is the union of everything the client sends. Exactly one
// field is set per frame.
type clientMessage struct {
	Setup         *setupPayload         `json:"setup,omitempty"`
	RealtimeInput *realtimeInput        `json:"realtime_input,omitempty"`
	ToolResponse  *toolResponsePayload  `json:"tool_response,omitempty"`
	ClientContent *clientContentPayload `json:"client_content,omitempty"`
}

type setupPayload struct {
	Model             string            `json:"model"`
	GenerationConfig  *generationConfig `json:"generation_config,omitempty"`
	SystemInstruction *content          `json:"system_instruction,omitempty"`
	Tools             []Tool            `json:"tools,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"response_modalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speech_config,omitempty"`
}

type speechConfig struct {
	VoiceConfig *voiceConfig `json:"voice_config,omitempty"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig *prebuiltVoiceConfig `json:"prebuilt_voice_config,omitempty"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voice_name"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text,omitempty"`
}

type realtimeInput struct {
	MediaChunks []mediaChunk `json:"media_chunks"`
}

type mediaChunk struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type toolResponsePayload struct {
	FunctionResponses []functionResponse `json:"function_responses"`
}

type functionResponse struct {
	Name     string         `json:"name"`
	ID       string         `json:"id,omitempty"`
	Response map[string]any `json:"response"`
}

type clientContentPayload struct {
	Turns        []content `json:"turns"`
	TurnComplete bool      `json:"turn_complete"`
}

// serverMessage is the union of inbound frames.
type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
	ToolCall      *ToolCall      `json:"toolCall,omitempty"`
}

type serverContent struct {
	TurnComplete bool       `json:"turnComplete,omitempty"`
	Interrupted  bool       `json:"interrupted,omitempty"`
	ModelTurn    *modelTurn `json:"modelTurn,omitempty"`
}

type modelTurn struct {
	Parts []serverPart `json:"parts"`
}

type serverPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// ToolCall is a batch of function invocations requested by the model. Every
// call in the batch must be answered in one tool response.
type ToolCall struct {
	FunctionCalls []FunctionCall `json:"functionCalls"`
}

// FunctionCall is one requested invocation. Args arrives as the raw JSON
// object the model produced.
type FunctionCall struct {
	ID   string          `json:"id,omitempty"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// AudioChunk is decoded model audio handed to the OnAudio callback.
type AudioChunk struct {
	MimeType string
	Data     string // base64 16-bit little-endian PCM
}
