package knowledge

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/restaurant-concierge/pkg/logging"
)

const (
	DefaultTopK     = 3
	DefaultMinScore = 0.3
)

// RetrievalObserver receives per-namespace timings. The metrics package
// implements it.
type RetrievalObserver interface {
	ObserveRetrieval(namespace string, elapsed time.Duration, err error)
}

type RetrieverConfig struct {
	TopK       int
	MinScore   float32
	Namespaces []string
	Observer   RetrievalObserver
	Logger     *logging.Logger
}

// Retriever queries every namespace concurrently and merges the hits.
type Retriever struct {
	searcher   Searcher
	topK       int
	minScore   float32
	namespaces []string
	observer   RetrievalObserver
	logger     *logging.Logger
}

func NewRetriever(searcher Searcher, cfg RetrieverConfig) *Retriever {
	if searcher == nil {
		panic("knowledge: searcher cannot be nil")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MinScore == 0 {
		cfg.MinScore = DefaultMinScore
	}
	if len(cfg.Namespaces) == 0 {
		cfg.Namespaces = []string{NamespaceRestaurant, NamespaceMenu}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Retriever{
		searcher:   searcher,
		topK:       cfg.TopK,
		minScore:   cfg.MinScore,
		namespaces: cfg.Namespaces,
		observer:   cfg.Observer,
		logger:     cfg.Logger,
	}
}

// Retrieve returns at most topK snippets scoring at least the threshold,
// best first. A failing namespace contributes nothing; Retrieve itself
// never fails.
func (r *Retriever) Retrieve(ctx context.Context, query string) []Snippet {
	perNamespace := make([][]Snippet, len(r.namespaces))
	var g errgroup.Group
	for i, ns := range r.namespaces {
		g.Go(func() error {
			started := time.Now()
			hits, err := r.searcher.Search(ctx, ns, query, r.topK)
			if r.observer != nil {
				r.observer.ObserveRetrieval(ns, time.Since(started), err)
			}
			if err != nil {
				r.logger.Warn("knowledge: namespace search failed", "namespace", ns, "error", err)
				return nil
			}
			perNamespace[i] = hits
			return nil
		})
	}
	_ = g.Wait()

	var merged []Snippet
	for _, hits := range perNamespace {
		for _, h := range hits {
			if h.Score >= r.minScore {
				merged = append(merged, h)
			}
		}
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > r.topK {
		merged = merged[:r.topK]
	}
	return merged
}
