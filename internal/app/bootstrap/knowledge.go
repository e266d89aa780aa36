package bootstrap

import (
	"fmt"

	appconfig "github.com/wolfman30/restaurant-concierge/internal/config"
	"github.com/wolfman30/restaurant-concierge/internal/knowledge"
	"github.com/wolfman30/restaurant-concierge/internal/observability/metrics"
	"github.com/wolfman30/restaurant-concierge/pkg/logging"
)

// BuildKnowledgeStore opens the persisted vector store with the Bedrock
// embedder. It returns nil when no embedding client is available.
func BuildKnowledgeStore(cfg *appconfig.Config, embedAPI knowledge.InvokeModelAPI, logger *logging.Logger) (*knowledge.Store, error) {
	logger = loggerOrDefault(logger)
	if embedAPI == nil {
		logger.Warn("no embedding client; knowledge retrieval disabled")
		return nil, nil
	}
	store, err := knowledge.OpenStore(cfg.VectorStorePath, knowledge.NewBedrockEmbedder(embedAPI, cfg.BedrockEmbeddingModelID))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open knowledge store: %w", err)
	}
	logger.Info("knowledge store opened",
		"path", cfg.VectorStorePath,
		knowledge.NamespaceRestaurant, store.Count(knowledge.NamespaceRestaurant),
		knowledge.NamespaceMenu, store.Count(knowledge.NamespaceMenu),
	)
	return store, nil
}

// BuildRetriever returns nil when there is no store, which makes the
// responder answer from the fallback context.
func BuildRetriever(cfg *appconfig.Config, store *knowledge.Store, m *metrics.ChatMetrics, logger *logging.Logger) *knowledge.Retriever {
	if store == nil {
		return nil
	}
	rc := knowledge.RetrieverConfig{
		TopK:     cfg.RetrievalTopK,
		MinScore: float32(cfg.RetrievalMinScore),
		Logger:   logger,
	}
	if m != nil {
		rc.Observer = m
	}
	return knowledge.NewRetriever(store, rc)
}
