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


// Package docfind assembles the document search service: an in-memory
// vector index fed by the ingestion pipeline, queried through the
// cumulative-relevance ranker, and persisted through snapshot stores.
package docfind

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/docfind/core"
	"github.com/poiesic/docfind/index"
	"github.com/poiesic/docfind/ingestion"
	"github.com/poiesic/docfind/search"
	"github.com/poiesic/docfind/storage"
)

const defaultSnapshotName = "primary"

// Embedder is the embedding client surface the service needs: batch
// embedding for ingestion and single-query embedding for search.
// *ai.BatchingEmbedder satisfies it.
type Embedder interface {
	ingestion.BatchEmbedder
	search.QueryEmbedder
}

// Service ties the index, pipeline, and ranker together behind one
// lifecycle. Snapshot persistence is advisory: a failed snapshot is
// logged and surfaced, but the live index keeps serving.
type Service struct {
	index     *index.Index
	pipeline  *ingestion.Pipeline
	ranker    *search.Ranker
	snapshots storage.SnapshotStore
	documents storage.DocumentRepository

	snapshotName     string
	snapshotInterval time.Duration

	ready       atomic.Bool
	loopStarted atomic.Bool
	logger      *slog.Logger
	stop        chan struct{}
	loopDone    chan struct{}
	closeOnce   sync.Once
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	snapshots        storage.SnapshotStore
	documents        storage.DocumentRepository
	snapshotName     string
	snapshotInterval time.Duration
	logger           *slog.Logger
	pipelineOpts     []ingestion.Option
	rankerOpts       []search.Option
}

// WithSnapshotStore enables snapshot persistence. Without a store the
// index lives only in memory.
func WithSnapshotStore(store storage.SnapshotStore) ServiceOption {
	return func(c *serviceConfig) {
		c.snapshots = store
	}
}

// WithDocumentRepository enables the document registry.
func WithDocumentRepository(repo storage.DocumentRepository) ServiceOption {
	return func(c *serviceConfig) {
		c.documents = repo
	}
}

// WithSnapshotName sets the name snapshots are stored under.
// Default is "primary".
func WithSnapshotName(name string) ServiceOption {
	return func(c *serviceConfig) {
		c.snapshotName = name
	}
}

// WithSnapshotInterval enables periodic background snapshots.
// Zero, the default, disables them.
func WithSnapshotInterval(interval time.Duration) ServiceOption {
	return func(c *serviceConfig) {
		c.snapshotInterval = interval
	}
}

// WithServiceLogger sets a custom logger.
// Default is slog.Default().
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(c *serviceConfig) {
		c.logger = logger
	}
}

// WithPipelineOptions forwards options to the ingestion pipeline.
func WithPipelineOptions(opts ...ingestion.Option) ServiceOption {
	return func(c *serviceConfig) {
		c.pipelineOpts = append(c.pipelineOpts, opts...)
	}
}

// WithRankerOptions forwards options to the search ranker.
func WithRankerOptions(opts ...search.Option) ServiceOption {
	return func(c *serviceConfig) {
		c.rankerOpts = append(c.rankerOpts, opts...)
	}
}

// NewService creates a service around a fresh index.
func NewService(embedder Embedder, opts ...ServiceOption) (*Service, error) {
	if embedder == nil {
		return nil, ingestion.ErrEmbedderRequired
	}

	cfg := &serviceConfig{
		snapshotName: defaultSnapshotName,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	idx := index.New()

	pipeline, err := ingestion.NewPipeline(idx, embedder, cfg.documents, cfg.pipelineOpts...)
	if err != nil {
		return nil, err
	}

	ranker, err := search.NewRanker(idx, embedder, cfg.rankerOpts...)
	if err != nil {
		pipeline.Release()
		return nil, err
	}

	return &Service{
		index:            idx,
		pipeline:         pipeline,
		ranker:           ranker,
		snapshots:        cfg.snapshots,
		documents:        cfg.documents,
		snapshotName:     cfg.snapshotName,
		snapshotInterval: cfg.snapshotInterval,
		logger:           cfg.logger.With("component", "docfind"),
		stop:             make(chan struct{}),
		loopDone:         make(chan struct{}),
	}, nil
}

// Start restores the index from the latest snapshot, if one exists, and
// launches the periodic snapshot loop when configured. The service
// reports ready once the restore attempt has completed, whether or not a
// snapshot was found; a corrupt snapshot is logged and the service comes
// up empty rather than not at all.
func (s *Service) Start(ctx context.Context) error {
	if s.snapshots != nil {
		if err := s.restore(ctx); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				s.logger.Info("no snapshot found, starting with empty index")
			} else {
				s.logger.Error("snapshot restore failed, starting with empty index", "err", err)
			}
		}
	}
	s.ready.Store(true)

	if s.snapshots != nil && s.snapshotInterval > 0 {
		s.loopStarted.Store(true)
		go s.snapshotLoop()
	}
	return nil
}

// IsReady reports whether startup, including the initial restore
// attempt, has completed.
func (s *Service) IsReady() bool {
	return s.ready.Load()
}

// Ingest processes one document synchronously.
func (s *Service) Ingest(ctx context.Context, doc core.Document, raw []byte) (*core.IngestResult, error) {
	return s.pipeline.Ingest(ctx, doc, raw)
}

// IngestAsync submits a document for background ingestion.
func (s *Service) IngestAsync(doc core.Document, raw []byte, callback func(*core.IngestResult, error)) error {
	return s.pipeline.IngestAsync(doc, raw, callback)
}

// Remove deletes a document from the index and registry.
func (s *Service) Remove(ctx context.Context, documentID core.ID) (int, error) {
	return s.pipeline.Remove(ctx, documentID)
}

// Search answers a query with ranked results.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]*core.SearchResult, error) {
	return s.ranker.Search(ctx, query, topK)
}

// Documents lists the registry's document records. Returns an empty list
// when no registry is configured.
func (s *Service) Documents(ctx context.Context) ([]*core.Document, error) {
	if s.documents == nil {
		return []*core.Document{}, nil
	}
	return s.documents.ListDocuments(ctx)
}

// Index exposes the underlying index for maintenance operations such as
// reindexing.
func (s *Service) Index() *index.Index {
	return s.index
}

// Snapshot persists the current index state. The returned error is
// informational; the live index is unaffected by a failed snapshot.
func (s *Service) Snapshot(ctx context.Context) error {
	if s.snapshots == nil {
		return fmt.Errorf("%w: no snapshot store configured", core.ErrPersistence)
	}
	data := s.index.Snapshot()
	if err := s.snapshots.PutSnapshot(ctx, s.snapshotName, data); err != nil {
		s.logger.Warn("snapshot failed, index unaffected", "err", err)
		return err
	}
	s.logger.Info("snapshot stored", "name", s.snapshotName, "bytes", len(data), "chunks", s.index.Len())
	return nil
}

// restore loads the named snapshot into the index.
func (s *Service) restore(ctx context.Context) error {
	data, err := s.snapshots.GetSnapshot(ctx, s.snapshotName)
	if err != nil {
		return err
	}
	return s.index.Restore(data)
}

// snapshotLoop persists the index at the configured interval until Close.
func (s *Service) snapshotLoop() {
	defer close(s.loopDone)
	ticker := time.NewTicker(s.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if err := s.Snapshot(context.Background()); err != nil {
				s.logger.Warn("periodic snapshot failed", "err", err)
			}
		}
	}
}

// Close stops the snapshot loop, takes a final snapshot when a store is
// configured, and releases the pipeline. The storage backends passed in
// at construction remain the caller's to close.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		if s.loopStarted.Load() {
			<-s.loopDone
		}

		if s.snapshots != nil && s.ready.Load() {
			err = s.Snapshot(context.Background())
		}
		s.pipeline.Release()
		s.ready.Store(false)
	})
	return err
}
