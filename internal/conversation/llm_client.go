// Package conversation runs one chat turn: it classifies the utterance, routes
// it through the reservation dialogue or the knowledge-backed answerer, and
// returns the reply together with the state the client must send back.
package conversation

import (
	"context"
	"strings"
)

// LLMClient produces one completion. Bedrock, Gemini and the fallback
// wrapper implement it.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// Roles carried by chat history. System lines are folded into the prompt by
// each provider client.
const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one line of chat history as the widget sends it.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// spoken reports whether the line came from the guest or the bot and has text.
func (m ChatMessage) spoken() bool {
	if strings.TrimSpace(m.Content) == "" {
		return false
	}
	return m.Role == ChatRoleUser || m.Role == ChatRoleAssistant
}

// recentHistory keeps the last MaxHistoryMessages spoken lines, oldest first.
func recentHistory(history []ChatMessage) []ChatMessage {
	kept := make([]ChatMessage, 0, MaxHistoryMessages+1)
	for _, m := range history {
		if m.spoken() {
			kept = append(kept, m)
		}
	}
	if n := len(kept) - MaxHistoryMessages; n > 0 {
		kept = kept[n:]
	}
	return kept
}

// LLMRequest asks a provider for one answer. A negative Temperature leaves
// the provider default in place; zero values elsewhere mean unset.
type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

func (r LLMRequest) systemText() string {
	blocks := make([]string, 0, len(r.System))
	for _, b := range r.System {
		if b = strings.TrimSpace(b); b != "" {
			blocks = append(blocks, b)
		}
	}
	return strings.Join(blocks, "\n\n")
}

type LLMResponse struct {
	Text       string
	StopReason string
	Usage      TokenUsage
}

// TokenUsage is logged per answer; providers that omit the total get it
// summed.
type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

func (u TokenUsage) withTotal() TokenUsage {
	if u.TotalTokens == 0 {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}
	return u
}
