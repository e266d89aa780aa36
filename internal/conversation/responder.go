package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/restaurant-concierge/internal/knowledge"
	"github.com/wolfman30/restaurant-concierge/pkg/logging"
)

// MaxHistoryMessages bounds the chat history forwarded to the model.
const MaxHistoryMessages = 10

const msgAnswerUnavailable = "I'm sorry, I'm having trouble looking that up right now. Please try again in a moment, or ask me to book a table."

// SnippetRetriever finds knowledge relevant to a question.
type SnippetRetriever interface {
	Retrieve(ctx context.Context, query string) []knowledge.Snippet
}

// Answerer handles information questions.
type Answerer interface {
	Answer(ctx context.Context, question string, history []ChatMessage) string
}

type ResponderConfig struct {
	Model           string
	RestaurantName  string
	FallbackContext string
	MaxTokens       int32
	Temperature     float32
	Logger          *logging.Logger
}

// Responder answers questions from retrieved snippets. When retrieval finds
// nothing it answers from the configured fallback context instead.
type Responder struct {
	llm       LLMClient
	retriever SnippetRetriever
	cfg       ResponderConfig
	logger    *logging.Logger
}

var _ Answerer = (*Responder)(nil)

// NewResponder panics without an LLM client. retriever may be nil, in which
// case every answer uses the fallback context.
func NewResponder(llm LLMClient, retriever SnippetRetriever, cfg ResponderConfig) *Responder {
	if llm == nil {
		panic("conversation: llm client cannot be nil")
	}
	if cfg.RestaurantName == "" {
		cfg.RestaurantName = "our restaurant"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Responder{llm: llm, retriever: retriever, cfg: cfg, logger: cfg.Logger}
}

func (r *Responder) Answer(ctx context.Context, question string, history []ChatMessage) string {
	var snippets []knowledge.Snippet
	if r.retriever != nil {
		snippets = r.retriever.Retrieve(ctx, question)
	}
	contextText := r.cfg.FallbackContext
	if len(snippets) > 0 {
		texts := make([]string, len(snippets))
		for i, s := range snippets {
			texts[i] = s.Text
		}
		contextText = strings.Join(texts, "\n\n")
	} else {
		r.logger.Debug("conversation: no knowledge matched, using fallback context")
	}

	messages := append(recentHistory(history), ChatMessage{Role: ChatRoleUser, Content: question})
	resp, err := r.llm.Complete(ctx, LLMRequest{
		Model:       r.cfg.Model,
		System:      []string{SystemPrompt(r.cfg.RestaurantName, contextText)},
		Messages:    messages,
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
	})
	if err != nil {
		r.logger.Error("conversation: answer generation failed", "error", err)
		return msgAnswerUnavailable
	}
	if strings.TrimSpace(resp.Text) == "" {
		return msgAnswerUnavailable
	}
	return resp.Text
}

// SystemPrompt frames the model as the restaurant's assistant and limits it
// to the supplied information.
func SystemPrompt(restaurant, info string) string {
	if strings.TrimSpace(info) == "" {
		info = "(no information available)"
	}
	return fmt.Sprintf(`You are a helpful restaurant assistant for %q.
You're friendly, helpful, and concise in your responses.

RESTAURANT INFORMATION:
%s

Use ONLY the information above to answer the customer's question. If it does not contain the answer, politely say you don't have that specific information and offer to help with something else, such as making a reservation.

Guidelines:
1. Give concise but complete answers.
2. Use the conversation history to keep context.
3. For dishes, mention the name and the price.
4. For hours, give the full schedule for the days asked about.`, restaurant, info)
}

// StubAnswerer is used when no language model is configured. It replies with
// the fallback context verbatim.
type StubAnswerer struct {
	text string
}

var _ Answerer = (*StubAnswerer)(nil)

func NewStubAnswerer(fallbackContext string) *StubAnswerer {
	return &StubAnswerer{text: strings.TrimSpace(fallbackContext)}
}

func (s *StubAnswerer) Answer(context.Context, string, []ChatMessage) string {
	if s.text == "" {
		return msgAnswerUnavailable
	}
	return s.text
}
