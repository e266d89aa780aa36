// Package voice handles the voice assistant's server webhook: tool calls
// become dialogue turns, final transcripts drive the reservation flow with
// state kept per call, and end-of-call reports are stored.
package voice

import (
	"encoding/json"
	"strings"
	"time"
)

// Webhook message types.
const (
	TypeFunctionCall       = "function-call"
	TypeToolCalls          = "tool-calls"
	TypeConversationUpdate = "conversation-update"
	TypeTranscript         = "transcript"
	TypeStatusUpdate       = "status-update"
	TypeEndOfCallReport    = "end-of-call-report"
	TypeHang               = "hang"
)

// Tool names the assistant is configured with.
const (
	ToolMakeReservation   = "makeReservation"
	ToolGetRestaurantInfo = "getRestaurantInfo"
)

// Envelope is the outer webhook body.
type Envelope struct {
	Message *Message `json:"message"`
}

// Message is the union of every webhook message shape we read.
type Message struct {
	Type string `json:"type"`
	Call *Call  `json:"call,omitempty"`

	FunctionCall    *FunctionCall `json:"functionCall,omitempty"`
	FunctionCallAlt *FunctionCall `json:"function_call,omitempty"`
	ToolCalls       []ToolCall    `json:"toolCalls,omitempty"`
	ToolCallList    []ToolCall    `json:"toolCallList,omitempty"`

	Role           string `json:"role,omitempty"`
	TranscriptType string `json:"transcriptType,omitempty"`
	Transcript     string `json:"transcript,omitempty"`

	Status string `json:"status,omitempty"`

	EndedReason     string     `json:"endedReason,omitempty"`
	Summary         string     `json:"summary,omitempty"`
	RecordingURL    string     `json:"recordingUrl,omitempty"`
	DurationSeconds float64    `json:"durationSeconds,omitempty"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	Customer        *Customer  `json:"customer,omitempty"`
	Analysis        *Analysis  `json:"analysis,omitempty"`
	Artifact        *Artifact  `json:"artifact,omitempty"`
}

type Call struct {
	ID       string    `json:"id"`
	Status   string    `json:"status,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	Customer *Customer `json:"customer,omitempty"`
}

type Customer struct {
	Number string `json:"number,omitempty"`
}

type Analysis struct {
	Summary string `json:"summary,omitempty"`
}

type Artifact struct {
	Transcript   string `json:"transcript,omitempty"`
	RecordingURL string `json:"recordingUrl,omitempty"`
}

// FunctionCall is the legacy single-function shape. Parameters is usually a
// JSON-encoded string but newer payloads send an object.
type FunctionCall struct {
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters"`
}

type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type,omitempty"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (m *Message) callID() string {
	if m.Call == nil {
		return ""
	}
	return m.Call.ID
}

// decodeArguments accepts either a JSON object or a string holding one.
func decodeArguments(raw json.RawMessage, dst any) error {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		trimmed = "{}"
	}
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
			return err
		}
		trimmed = inner
	}
	return json.Unmarshal([]byte(trimmed), dst)
}
