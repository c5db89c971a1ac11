// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	docfind "github.com/poiesic/docfind"
	"github.com/poiesic/docfind/ai"
	"github.com/poiesic/docfind/ai/openai"
	"github.com/poiesic/docfind/core"
	"github.com/poiesic/docfind/reindex"
	"github.com/poiesic/docfind/storage"
	storagebadger "github.com/poiesic/docfind/storage/badger"
	storageminio "github.com/poiesic/docfind/storage/minio"
	"github.com/urfave/cli/v2"
)

func main() {
	commonFlags := []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to BadgerDB database directory",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Number of chunks to embed per provider call",
			Value: 32,
		},
		&cli.Float64Flag{
			Name:  "rate-limit",
			Usage: "Embedding requests per second (0 disables limiting)",
			Value: 5,
		},
		&cli.StringFlag{
			Name:  "s3-endpoint",
			Usage: "Optional S3-compatible endpoint for snapshots (snapshots stay in BadgerDB if unset)",
		},
		&cli.StringFlag{
			Name:  "s3-bucket",
			Usage: "Bucket for snapshots",
			Value: "docfind-snapshots",
		},
		&cli.StringFlag{
			Name:    "s3-access-key",
			Usage:   "Access key for the snapshot bucket",
			EnvVars: []string{"DOCFIND_S3_ACCESS_KEY"},
		},
		&cli.StringFlag{
			Name:    "s3-secret-key",
			Usage:   "Secret key for the snapshot bucket",
			EnvVars: []string{"DOCFIND_S3_SECRET_KEY"},
		},
		&cli.BoolFlag{
			Name:  "s3-ssl",
			Usage: "Use TLS for the snapshot endpoint",
		},
	}

	app := &cli.App{
		Name:  "docfind",
		Usage: "Semantic search over document collections",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest files into the search index",
				ArgsUsage: "FILE [FILE...]",
				Action:    ingestCommand,
				Flags:     commonFlags,
			},
			{
				Name:      "search",
				Usage:     "Search the index",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Maximum number of results",
						Value:   5,
					},
				}, commonFlags...),
			},
			{
				Name:   "list",
				Usage:  "List ingested documents",
				Action: listCommand,
				Flags:  commonFlags,
			},
			{
				Name:      "remove",
				Usage:     "Remove a document from the index by name",
				ArgsUsage: "NAME",
				Action:    removeCommand,
				Flags:     commonFlags,
			},
			{
				Name:   "snapshot",
				Usage:  "Persist the current index snapshot immediately",
				Action: snapshotCommand,
				Flags:  commonFlags,
			},
			{
				Name:   "restore",
				Usage:  "Restore the index from the latest snapshot and report its contents",
				Action: restoreCommand,
				Flags:  commonFlags,
			},
			{
				Name:   "reindex",
				Usage:  "Re-embed every indexed chunk with the configured model",
				Action: reindexCommand,
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
				}, commonFlags...),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openService assembles a service from CLI flags, restores the latest
// snapshot, and returns a cleanup that persists state and closes stores.
func openService(ctx context.Context, c *cli.Context) (*docfind.Service, func(), error) {
	backend, err := storagebadger.OpenBackend(c.String("db"), false)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	docRepo, err := storagebadger.NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, nil, fmt.Errorf("failed to create document repository: %w", err)
	}

	var snapStore storage.SnapshotStore
	if endpoint := c.String("s3-endpoint"); endpoint != "" {
		snapStore, err = storageminio.NewSnapshotStore(ctx, storageminio.Config{
			Endpoint:  endpoint,
			AccessKey: c.String("s3-access-key"),
			SecretKey: c.String("s3-secret-key"),
			Bucket:    c.String("s3-bucket"),
			UseSSL:    c.Bool("s3-ssl"),
		})
	} else {
		snapStore, err = storagebadger.NewSnapshotStore(backend)
	}
	if err != nil {
		docRepo.Close()
		backend.Close()
		return nil, nil, fmt.Errorf("failed to create snapshot store: %w", err)
	}

	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithMaxBatchSize(c.Int("batch-size")),
		ai.WithRequestsPerSecond(c.Float64("rate-limit")),
	)
	if err := aiConfig.Validate(); err != nil {
		snapStore.Close()
		docRepo.Close()
		backend.Close()
		return nil, nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	inner, err := openai.NewEmbedder(aiConfig)
	if err != nil {
		snapStore.Close()
		docRepo.Close()
		backend.Close()
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	embedder, err := ai.FromConfig(inner, aiConfig)
	if err != nil {
		snapStore.Close()
		docRepo.Close()
		backend.Close()
		return nil, nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	service, err := docfind.NewService(embedder,
		docfind.WithDocumentRepository(docRepo),
		docfind.WithSnapshotStore(snapStore))
	if err != nil {
		snapStore.Close()
		docRepo.Close()
		backend.Close()
		return nil, nil, err
	}

	if err := service.Start(ctx); err != nil {
		service.Close()
		snapStore.Close()
		docRepo.Close()
		backend.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := service.Close(); err != nil {
			slog.Warn("error closing service", "err", err)
		}
		snapStore.Close()
		docRepo.Close()
		backend.Close()
	}
	return service, cleanup, nil
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file is required")
	}

	ctx := context.Background()
	service, cleanup, err := openService(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	for _, path := range c.Args().Slice() {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		name := filepath.Base(path)
		result, err := service.Ingest(ctx, core.Document{
			Name:        name,
			SourceURI:   "file://" + path,
			ContentType: core.DetectContentType(name),
		}, raw)
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", path, err)
		}

		fmt.Printf("%s: %s (%d chunks", name, result.State, result.ChunksIndexed)
		if len(result.FailedChunks) > 0 {
			fmt.Printf(", %d failed", len(result.FailedChunks))
		}
		fmt.Println(")")
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("a query is required")
	}

	ctx := context.Background()
	service, cleanup, err := openService(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	results, err := service.Search(ctx, query, c.Int("top-k"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}

	for _, result := range results {
		fmt.Printf("%d. [%.3f] %s\n", result.Rank, result.Score, result.Metadata.Filename)
		fmt.Printf("   %s\n", summarize(result.Text))
	}
	return nil
}

func listCommand(c *cli.Context) error {
	ctx := context.Background()
	service, cleanup, err := openService(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	docs, err := service.Documents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if len(docs) == 0 {
		fmt.Println("No documents.")
		return nil
	}

	for _, doc := range docs {
		fmt.Printf("%-40s %6s %5d chunks  updated %s\n",
			doc.Name, doc.ContentType, doc.ChunkCount, doc.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func removeCommand(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("a document name is required")
	}

	ctx := context.Background()
	service, cleanup, err := openService(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	removed, err := service.Remove(ctx, core.IDFromContent(name))
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}
	fmt.Printf("%s: removed %d chunks\n", name, removed)
	return nil
}

func snapshotCommand(c *cli.Context) error {
	ctx := context.Background()
	service, cleanup, err := openService(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := service.Snapshot(ctx); err != nil {
		return fmt.Errorf("snapshot failed: %w", err)
	}
	fmt.Printf("snapshot stored (%d chunks)\n", service.Index().Len())
	return nil
}

func restoreCommand(c *cli.Context) error {
	ctx := context.Background()
	service, cleanup, err := openService(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	idx := service.Index()
	fmt.Printf("restored %d chunks across %d documents\n", idx.Len(), idx.Documents())
	return nil
}

func reindexCommand(c *cli.Context) error {
	ctx := context.Background()
	service, cleanup, err := openService(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	inner, err := openai.NewEmbedder(ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
	))
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	embedder, err := ai.NewBatchingEmbedder(inner, ai.WithMaxBatch(c.Int("batch-size")))
	if err != nil {
		return fmt.Errorf("failed to create embedding client: %w", err)
	}

	reindexer := reindex.NewReindexer(service.Index(), embedder, &reindex.Config{
		ReportInterval: c.Int("report-interval"),
	}, os.Stderr)

	stats, err := reindexer.Run(ctx)
	if err != nil {
		return fmt.Errorf("reindexing failed: %w", err)
	}
	if len(stats.FailedDocuments) > 0 {
		fmt.Fprintf(os.Stderr, "%d documents kept previous vectors\n", len(stats.FailedDocuments))
	}
	return nil
}

// summarize trims a chunk to one display line.
func summarize(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > 160 {
		return string(runes[:160]) + "..."
	}
	return text
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
