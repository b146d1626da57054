package bridge

import (
	"encoding/json"

	"github.com/agentplexus/voicebridge/transfer"
)

// Twilio Media Streams message shapes. One JSON object per WebSocket
// message; audio payloads stay base64-opaque end to end.

type telephonyMessage struct {
	Event     string        `json:"event"`
	StreamSID string        `json:"streamSid,omitempty"`
	Start     *startPayload `json:"start,omitempty"`
	Media     *mediaPayload `json:"media,omitempty"`
	Mark      *markPayload  `json:"mark,omitempty"`
}

type startPayload struct {
	StreamSID    string            `json:"streamSid"`
	AccountSID   string            `json:"accountSid"`
	CallSID      string            `json:"callSid"`
	Tracks       []string          `json:"tracks"`
	CustomParams map[string]string `json:"customParameters"`
}

type mediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

type markPayload struct {
	Name string `json:"name"`
}

// userAudioChunk is the inbound-audio frame the agent service expects.
type userAudioChunk struct {
	UserAudioChunk string `json:"user_audio_chunk"`
}

// Conversational agent message shapes. Correlation ids are kept as raw JSON
// so they echo back byte-for-byte whether the service sends strings or
// numbers.

type agentMessage struct {
	Type           string          `json:"type"`
	AudioEvent     *audioEvent     `json:"audio_event,omitempty"`
	PingEvent      *pingEvent      `json:"ping_event,omitempty"`
	ToolRequest    *toolRequest    `json:"tool_request,omitempty"`
	ClientToolCall *clientToolCall `json:"client_tool_call,omitempty"`
}

type audioEvent struct {
	AudioBase64 string `json:"audio_base_64"`
}

type pingEvent struct {
	EventID json.RawMessage `json:"event_id"`
}

type toolRequest struct {
	ToolName string          `json:"tool_name"`
	Params   map[string]any  `json:"params"`
	EventID  json.RawMessage `json:"event_id"`
}

type clientToolCall struct {
	ToolName   string         `json:"tool_name"`
	Parameters map[string]any `json:"parameters"`
	ToolCallID string         `json:"tool_call_id"`
}

type pongMessage struct {
	Type    string          `json:"type"`
	EventID json.RawMessage `json:"event_id"`
}

type toolResponseMessage struct {
	Type     string          `json:"type"`
	EventID  json.RawMessage `json:"event_id"`
	ToolName string          `json:"tool_name"`
	Result   transfer.Result `json:"result"`
}

type clientToolResponseMessage struct {
	Type       string          `json:"type"`
	ToolCallID string          `json:"tool_call_id"`
	Data       transfer.Result `json:"data"`
}

// toolShape selects the response encoding for a tool invocation. The two
// wire variants are semantically identical and normalized at the decode
// boundary; the shape survives only to pick the serialization on the way
// back.
type toolShape int

const (
	shapeToolRequest toolShape = iota
	shapeClientToolCall
)

// toolInvocation is the normalized "the agent asked us to do something"
// value: tool name, parameters, correlation id, response shape.
type toolInvocation struct {
	Name       string
	Params     map[string]any
	EventID    json.RawMessage
	ToolCallID string
	Shape      toolShape
}

// decodeToolInvocation normalizes both tool-invocation wire variants.
func decodeToolInvocation(msg *agentMessage) (toolInvocation, bool) {
	switch msg.Type {
	case "tool_request":
		if msg.ToolRequest == nil {
			return toolInvocation{}, false
		}
		return toolInvocation{
			Name:    msg.ToolRequest.ToolName,
			Params:  msg.ToolRequest.Params,
			EventID: msg.ToolRequest.EventID,
			Shape:   shapeToolRequest,
		}, true
	case "client_tool_call":
		if msg.ClientToolCall == nil {
			return toolInvocation{}, false
		}
		return toolInvocation{
			Name:       msg.ClientToolCall.ToolName,
			Params:     msg.ClientToolCall.Parameters,
			ToolCallID: msg.ClientToolCall.ToolCallID,
			Shape:      shapeClientToolCall,
		}, true
	}
	return toolInvocation{}, false
}

// operatorNumber extracts the target number from the tool parameters,
// checking the configured keys in order and falling back to the default.
func (inv toolInvocation) operatorNumber(keys []string, fallback string) string {
	for _, key := range keys {
		if v, ok := inv.Params[key].(string); ok && v != "" {
			return v
		}
	}
	return fallback
}

// response builds the outbound message matching the invocation's wire shape.
func (inv toolInvocation) response(result transfer.Result) any {
	if inv.Shape == shapeClientToolCall {
		return clientToolResponseMessage{
			Type:       "client_tool_response",
			ToolCallID: inv.ToolCallID,
			Data:       result,
		}
	}
	return toolResponseMessage{
		Type:     "tool_response",
		EventID:  inv.EventID,
		ToolName: inv.Name,
		Result:   result,
	}
}

// truncate trims raw frame data for log excerpts.
func truncate(data []byte, limit int) string {
	if len(data) <= limit {
		return string(data)
	}
	return string(data[:limit]) + "..."
}
