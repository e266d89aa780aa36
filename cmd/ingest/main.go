// Command ingest chunks the restaurant's markdown knowledge files and writes
// their embeddings into the persisted vector store used by the API.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/restaurant-concierge/cmd/mainconfig"
	appconfig "github.com/wolfman30/restaurant-concierge/internal/config"
	"github.com/wolfman30/restaurant-concierge/internal/knowledge"
	"github.com/wolfman30/restaurant-concierge/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	dir := flag.String("dir", cfg.KnowledgeDir, "local directory of markdown files")
	bucket := flag.String("bucket", cfg.KnowledgeS3Bucket, "S3 bucket to read instead of -dir")
	prefix := flag.String("prefix", cfg.KnowledgeS3Prefix, "key prefix inside -bucket")
	flag.Parse()

	logger := logging.New(cfg.LogLevel)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	clients := mainconfig.NewClients(awsCfg, cfg)

	files, err := loadFiles(ctx, source{dir: *dir, bucket: *bucket, prefix: *prefix}, clients.S3)
	if err != nil {
		logger.Error("failed to load knowledge files", "error", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		logger.Warn("no knowledge files found", "dir", *dir, "bucket", *bucket)
		return
	}

	store, err := knowledge.OpenStore(cfg.VectorStorePath,
		knowledge.NewBedrockEmbedder(clients.Bedrock, cfg.BedrockEmbeddingModelID))
	if err != nil {
		logger.Error("failed to open vector store", "path", cfg.VectorStorePath, "error", err)
		os.Exit(1)
	}

	chunks, err := knowledge.Ingest(ctx, store, files, cfg.KnowledgeChunkWords, logger)
	if err != nil {
		logger.Error("ingest failed", "chunks_written", chunks, "error", err)
		os.Exit(1)
	}
	logger.Info("ingest complete",
		"files", len(files),
		"chunks", chunks,
		knowledge.NamespaceRestaurant, store.Count(knowledge.NamespaceRestaurant),
		knowledge.NamespaceMenu, store.Count(knowledge.NamespaceMenu),
	)
}

type source struct {
	dir    string
	bucket string
	prefix string
}

// loadFiles reads from S3 when a bucket is given, otherwise from the local
// directory.
func loadFiles(ctx context.Context, src source, s3Client knowledge.S3API) ([]knowledge.SourceFile, error) {
	if bucket := strings.TrimSpace(src.bucket); bucket != "" {
		if s3Client == nil {
			return nil, errors.New("ingest: s3 client required for bucket source")
		}
		return knowledge.LoadS3(ctx, s3Client, bucket, strings.TrimSpace(src.prefix))
	}
	if strings.TrimSpace(src.dir) == "" {
		return nil, errors.New("ingest: no knowledge source configured")
	}
	return knowledge.LoadDir(src.dir)
}
