package knowledge

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wolfman30/restaurant-concierge/pkg/logging"
)

// DefaultChunkWords approximates a 500-token chunk.
const DefaultChunkWords = 500

// SourceFile is one markdown document to ingest.
type SourceFile struct {
	Name    string
	Content string
}

// Namespace picks the collection a file belongs to: menu files go to the
// menu namespace, everything else describes the restaurant.
func (f SourceFile) Namespace() string {
	if strings.Contains(strings.ToLower(path.Base(f.Name)), "menu") {
		return NamespaceMenu
	}
	return NamespaceRestaurant
}

// Chunk splits text into runs of at most words whitespace-separated words.
// Chunk ids are "<name>-<n>" so re-ingesting a file replaces its chunks.
func Chunk(name, text string, words int) []Document {
	if words <= 0 {
		words = DefaultChunkWords
	}
	fields := strings.Fields(text)
	var docs []Document
	for i, n := 0, 0; i < len(fields); i, n = i+words, n+1 {
		end := min(i+words, len(fields))
		docs = append(docs, Document{
			ID:       fmt.Sprintf("%s-%d", name, n),
			Text:     strings.Join(fields[i:end], " "),
			Metadata: map[string]string{"file": name},
		})
	}
	return docs
}

// LoadDir reads every markdown file directly under dir.
func LoadDir(dir string) ([]SourceFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("knowledge: read dir: %w", err)
	}
	var files []SourceFile
	for _, e := range entries {
		if e.IsDir() || !isMarkdown(e.Name()) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("knowledge: read %s: %w", e.Name(), err)
		}
		files = append(files, SourceFile{Name: e.Name(), Content: string(raw)})
	}
	return files, nil
}

// S3API is the subset of the S3 client used by LoadS3.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// LoadS3 reads every markdown object under prefix.
func LoadS3(ctx context.Context, client S3API, bucket, prefix string) ([]SourceFile, error) {
	if client == nil || bucket == "" {
		return nil, fmt.Errorf("knowledge: s3 bucket not configured")
	}
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("knowledge: list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			if key := aws.ToString(obj.Key); isMarkdown(key) {
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)

	files := make([]SourceFile, 0, len(keys))
	for _, key := range keys {
		out, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
		if err != nil {
			return nil, fmt.Errorf("knowledge: s3 get %s: %w", key, err)
		}
		raw, err := io.ReadAll(out.Body)
		out.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("knowledge: read s3 object %s: %w", key, err)
		}
		files = append(files, SourceFile{Name: path.Base(key), Content: string(raw)})
	}
	return files, nil
}

func isMarkdown(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".md" || ext == ".markdown"
}

// Indexer is where ingested chunks land.
type Indexer interface {
	Upsert(ctx context.Context, namespace string, docs []Document) error
}

// Ingest chunks each file and upserts it into its namespace. It returns the
// number of chunks written.
func Ingest(ctx context.Context, idx Indexer, files []SourceFile, chunkWords int, logger *logging.Logger) (int, error) {
	if logger == nil {
		logger = logging.Default()
	}
	total := 0
	for _, f := range files {
		docs := Chunk(f.Name, f.Content, chunkWords)
		if len(docs) == 0 {
			logger.Warn("knowledge: skipping empty file", "file", f.Name)
			continue
		}
		ns := f.Namespace()
		if err := idx.Upsert(ctx, ns, docs); err != nil {
			return total, err
		}
		total += len(docs)
		logger.Info("knowledge: ingested file", "file", f.Name, "namespace", ns, "chunks", len(docs))
	}
	return total, nil
}
