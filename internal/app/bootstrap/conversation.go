package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/restaurant-concierge/internal/booking"
	appconfig "github.com/wolfman30/restaurant-concierge/internal/config"
	"github.com/wolfman30/restaurant-concierge/internal/conversation"
	"github.com/wolfman30/restaurant-concierge/internal/knowledge"
	"github.com/wolfman30/restaurant-concierge/internal/observability/metrics"
	"github.com/wolfman30/restaurant-concierge/pkg/logging"
)

// BuildLLMClient picks the answer model from config. Bedrock is the default
// provider with Gemini as fallback when a key is present; LLM_PROVIDER=gemini
// uses Gemini alone. A nil client with a nil error means no model is
// configured.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, converse conversation.ConverseAPI, logger *logging.Logger) (conversation.LLMClient, string, error) {
	if cfg == nil {
		return nil, "", fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var bedrock conversation.LLMClient
	if converse != nil && strings.TrimSpace(cfg.BedrockModelID) != "" {
		bedrock = conversation.NewBedrockLLMClient(converse)
	}
	var gemini conversation.LLMClient
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		client, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, "", fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		gemini = client
	}

	// Gemini ignores the request model, so it can back up Bedrock but not
	// the other way round.
	primary, fallback, model := bedrock, gemini, cfg.BedrockModelID
	if cfg.LLMProvider == "gemini" || bedrock == nil {
		primary, fallback, model = gemini, nil, cfg.GeminiModelID
	}
	switch {
	case primary == nil:
		return nil, "", nil
	case fallback == nil:
		logger.Info("using LLM", "provider", cfg.LLMProvider, "model", model)
		return primary, model, nil
	default:
		logger.Info("using LLM with fallback", "provider", cfg.LLMProvider, "model", model)
		return conversation.NewFallbackLLMClient(primary, fallback, logger), model, nil
	}
}

// BuildAnswerer returns the retrieval-backed responder, or a stub that reads
// out the fallback context when no model is configured.
func BuildAnswerer(cfg *appconfig.Config, llm conversation.LLMClient, model string, retriever *knowledge.Retriever, logger *logging.Logger) conversation.Answerer {
	if llm == nil {
		loggerOrDefault(logger).Warn("no LLM configured; using stub answerer")
		return conversation.NewStubAnswerer(cfg.FallbackContext)
	}
	var snippets conversation.SnippetRetriever
	if retriever != nil {
		snippets = retriever
	}
	return conversation.NewResponder(llm, snippets, conversation.ResponderConfig{
		Model:           model,
		RestaurantName:  cfg.RestaurantName,
		FallbackContext: cfg.FallbackContext,
		MaxTokens:       int32(cfg.LLMMaxTokens),
		Temperature:     float32(cfg.LLMTemperature),
		Logger:          logger,
	})
}

// BuildMachine assembles the reservation dialogue for the configured flow.
func BuildMachine(cfg *appconfig.Config, finalizer booking.Finalizer, logger *logging.Logger) *booking.Machine {
	flow := booking.SplitFlow()
	if cfg.MergeDateTimeStep {
		flow = booking.MergedFlow()
	}
	return booking.NewMachine(flow, booking.NewNormalizer(cfg.Location()), finalizer, logger)
}

// BuildConversationService wires the turn router.
func BuildConversationService(cfg *appconfig.Config, machine *booking.Machine, answerer conversation.Answerer, m *metrics.ChatMetrics, logger *logging.Logger) *conversation.Service {
	return conversation.NewService(conversation.ServiceConfig{
		Machine:  machine,
		Answerer: answerer,
		StateTTL: cfg.BookingStateTTL,
		Metrics:  m,
		Logger:   logger,
	})
}
