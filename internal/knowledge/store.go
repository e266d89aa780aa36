package knowledge

import (
	"context"
	"fmt"
	"runtime"

	chromem "github.com/philippgille/chromem-go"
)

// Namespaces searched for every question.
const (
	NamespaceRestaurant = "restaurant"
	NamespaceMenu       = "menu"
)

// Document is one chunk ready to be indexed.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Snippet is a search hit. Score is cosine similarity in [-1, 1].
type Snippet struct {
	ID        string
	Namespace string
	Text      string
	Score     float32
}

// Searcher answers similarity queries against one namespace.
type Searcher interface {
	Search(ctx context.Context, namespace, query string, topK int) ([]Snippet, error)
}

// Store keeps one chromem collection per namespace.
type Store struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection
}

var _ Searcher = (*Store)(nil)

// OpenStore opens the vector store. An empty path keeps everything in memory;
// otherwise collections are persisted under path.
func OpenStore(path string, embedder Embedder, namespaces ...string) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("knowledge: embedder required")
	}
	if len(namespaces) == 0 {
		namespaces = []string{NamespaceRestaurant, NamespaceMenu}
	}

	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("knowledge: open persistent db: %w", err)
		}
	}

	embed := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}
	s := &Store{db: db, collections: make(map[string]*chromem.Collection, len(namespaces))}
	for _, ns := range namespaces {
		col, err := db.GetOrCreateCollection(ns, nil, embed)
		if err != nil {
			return nil, fmt.Errorf("knowledge: collection %s: %w", ns, err)
		}
		s.collections[ns] = col
	}
	return s, nil
}

func (s *Store) collection(namespace string) (*chromem.Collection, error) {
	col, ok := s.collections[namespace]
	if !ok {
		return nil, fmt.Errorf("knowledge: unknown namespace %q", namespace)
	}
	return col, nil
}

// Upsert embeds and stores docs. Documents with an existing id are replaced.
func (s *Store) Upsert(ctx context.Context, namespace string, docs []Document) error {
	col, err := s.collection(namespace)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	batch := make([]chromem.Document, 0, len(docs))
	for _, d := range docs {
		batch = append(batch, chromem.Document{ID: d.ID, Content: d.Text, Metadata: d.Metadata})
	}
	if err := col.AddDocuments(ctx, batch, runtime.NumCPU()); err != nil {
		return fmt.Errorf("knowledge: upsert %s: %w", namespace, err)
	}
	return nil
}

// Count returns the number of chunks in a namespace.
func (s *Store) Count(namespace string) int {
	col, err := s.collection(namespace)
	if err != nil {
		return 0
	}
	return col.Count()
}

// Search returns up to topK hits ordered by similarity.
func (s *Store) Search(ctx context.Context, namespace, query string, topK int) ([]Snippet, error) {
	col, err := s.collection(namespace)
	if err != nil {
		return nil, err
	}
	if topK > col.Count() {
		topK = col.Count()
	}
	if topK <= 0 || query == "" {
		return nil, nil
	}

	results, err := col.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("knowledge: query %s: %w", namespace, err)
	}
	out := make([]Snippet, 0, len(results))
	for _, r := range results {
		out = append(out, Snippet{ID: r.ID, Namespace: namespace, Text: r.Content, Score: r.Similarity})
	}
	return out, nil
}
