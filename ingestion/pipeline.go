package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docfind/ai"
	"github.com/poiesic/docfind/chunker"
	"github.com/poiesic/docfind/core"
	"github.com/poiesic/docfind/index"
	"github.com/poiesic/docfind/storage"
)

// defaultMaxDocumentSize caps raw document bytes accepted for ingestion.
const defaultMaxDocumentSize = 10 * 1024 * 1024

// BatchEmbedder is the slice of the embedding client the pipeline needs.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) (*ai.BatchResult, error)
}

// PDFExtractor extracts plain text from PDF bytes. The pipeline treats it
// as an injected collaborator; deployments without PDF support simply
// leave it unset and reject PDF documents.
type PDFExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// Pipeline orchestrates document ingestion: extraction, chunking,
// embedding, and atomic index replacement. Ingestions of distinct
// documents run concurrently; ingestions of the same document are
// serialized so the last writer wins cleanly.
type Pipeline struct {
	index     *index.Index
	embedder  BatchEmbedder
	chunker   *chunker.Chunker
	documents storage.DocumentRepository
	extractor PDFExtractor
	pool      *ants.Pool
	maxSize   int
	logger    *slog.Logger

	mu       sync.Mutex
	docLocks map[core.ID]*sync.Mutex
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for async ingestion.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithChunker sets a custom chunker.
// Default is chunker defaults (1000 rune windows, 200 rune overlap).
func WithChunker(c *chunker.Chunker) Option {
	return func(p *Pipeline) error {
		if c == nil {
			return fmt.Errorf("chunker cannot be nil")
		}
		p.chunker = c
		return nil
	}
}

// WithPDFExtractor enables PDF ingestion using the given extractor.
func WithPDFExtractor(e PDFExtractor) Option {
	return func(p *Pipeline) error {
		p.extractor = e
		return nil
	}
}

// WithMaxDocumentSize sets the raw byte limit per document.
// Default is 10 MiB.
func WithMaxDocumentSize(limit int) Option {
	return func(p *Pipeline) error {
		if limit <= 0 {
			return fmt.Errorf("document size limit must be greater than 0")
		}
		p.maxSize = limit
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline. The document repository
// is optional; without one, ingested documents are simply not tracked
// across restarts.
func NewPipeline(
	idx *index.Index,
	embedder BatchEmbedder,
	documents storage.DocumentRepository,
	opts ...Option,
) (*Pipeline, error) {
	if idx == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	defaultChunker, err := chunker.NewChunker()
	if err != nil {
		pool.Release()
		return nil, err
	}

	p := &Pipeline{
		index:     idx,
		embedder:  embedder,
		chunker:   defaultChunker,
		documents: documents,
		pool:      pool,
		maxSize:   defaultMaxDocumentSize,
		logger:    slog.Default().With("component", "ingestion"),
		docLocks:  make(map[core.ID]*sync.Mutex),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Ingest processes one document synchronously: extract text, chunk,
// embed, and atomically replace the document's chunks in the index.
// Chunks whose embedding fails after retries are skipped and reported in
// the result; the rest are indexed. Re-ingesting an existing document
// replaces its previous chunks rather than accumulating them.
func (p *Pipeline) Ingest(ctx context.Context, doc core.Document, raw []byte) (*core.IngestResult, error) {
	if err := core.ValidateDocument(&doc); err != nil {
		return nil, err
	}
	if doc.Id == 0 {
		doc.Id = core.IDFromContent(doc.Name)
	}
	if len(raw) > p.maxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrDocumentTooLarge, len(raw), p.maxSize)
	}

	lock := p.lockFor(doc.Id)
	lock.Lock()
	defer lock.Unlock()

	text, err := p.extractText(ctx, &doc, raw)
	if err != nil {
		return nil, err
	}

	passages, err := p.chunker.Chunk(text, doc.ContentType)
	if err != nil {
		return &core.IngestResult{
			DocumentID: doc.Id,
			State:      core.IngestStateFailed,
		}, err
	}
	if len(passages) == 0 {
		p.logger.Info("document produced no chunks", "document", doc.Name)
		return &core.IngestResult{
			DocumentID: doc.Id,
			State:      core.IngestStateNoOp,
		}, nil
	}

	texts := make([]string, len(passages))
	for i, passage := range passages {
		texts[i] = passage.Text
	}

	batch, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return &core.IngestResult{
			DocumentID: doc.Id,
			State:      core.IngestStateFailed,
		}, fmt.Errorf("embedding document %q: %w", doc.Name, err)
	}

	entries := make([]index.Entry, 0, len(passages))
	for i, passage := range passages {
		if batch.Vectors[i] == nil {
			continue
		}
		entries = append(entries, index.Entry{
			ChunkID: core.ChunkIDFrom(doc.Id, passage.Offset, passage.Length),
			Vector:  batch.Vectors[i],
			Meta: core.ChunkMeta{
				DocumentID: doc.Id,
				Text:       passage.Text,
				Filename:   doc.Name,
				SourceURI:  doc.SourceURI,
			},
		})
	}

	result := &core.IngestResult{
		DocumentID:    doc.Id,
		ChunksIndexed: len(entries),
		FailedChunks:  batch.Failed,
	}

	if len(entries) == 0 {
		// Every chunk failed; keep whatever version the index already has.
		result.State = core.IngestStateFailed
		return result, fmt.Errorf("%w: all %d chunks failed for document %q", core.ErrEmbeddingTransient, len(passages), doc.Name)
	}

	if err := p.index.ReplaceDocument(doc.Id, entries); err != nil {
		result.State = core.IngestStateFailed
		result.ChunksIndexed = 0
		return result, err
	}

	if len(batch.Failed) > 0 {
		result.State = core.IngestStatePartiallyIndexed
		p.logger.Warn("document partially indexed",
			"document", doc.Name, "indexed", len(entries), "failed", len(batch.Failed))
	} else {
		result.State = core.IngestStateIndexed
	}

	p.recordDocument(ctx, &doc, len(entries))
	return result, nil
}

// IngestAsync submits an ingestion to the worker pool. The callback, if
// non-nil, receives the result when the ingestion finishes. The pool's
// context is detached from the caller's.
func (p *Pipeline) IngestAsync(doc core.Document, raw []byte, callback func(*core.IngestResult, error)) error {
	return p.pool.Submit(func() {
		result, err := p.Ingest(context.Background(), doc, raw)
		if err != nil {
			p.logger.Error("async ingestion failed", "document", doc.Name, "err", err)
		}
		if callback != nil {
			callback(result, err)
		}
	})
}

// Remove deletes a document's chunks from the index and its registry
// record. Returns the number of chunks removed.
func (p *Pipeline) Remove(ctx context.Context, documentID core.ID) (int, error) {
	lock := p.lockFor(documentID)
	lock.Lock()
	defer lock.Unlock()

	removed := p.index.RemoveDocument(documentID)
	if p.documents != nil {
		if err := p.documents.DeleteDocument(ctx, documentID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return removed, fmt.Errorf("%w: deleting document record: %w", core.ErrPersistence, err)
		}
	}
	return removed, nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// extractText converts raw document bytes into the text to chunk.
func (p *Pipeline) extractText(ctx context.Context, doc *core.Document, raw []byte) (string, error) {
	if doc.ContentType != core.ContentTypePDF {
		return string(raw), nil
	}
	if p.extractor == nil {
		return "", fmt.Errorf("%w: document %q", ErrExtractorRequired, doc.Name)
	}
	text, err := p.extractor.ExtractText(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("%w: extracting %q: %w", core.ErrChunking, doc.Name, err)
	}
	return text, nil
}

// recordDocument updates the document registry. Registry failures are
// logged, not returned: the live index already holds the chunks.
func (p *Pipeline) recordDocument(ctx context.Context, doc *core.Document, chunkCount int) {
	if p.documents == nil {
		return
	}
	doc.ChunkCount = chunkCount
	if err := p.documents.PutDocument(ctx, doc); err != nil {
		p.logger.Warn("failed to record document", "document", doc.Name, "err", err)
	}
}

// lockFor returns the mutex serializing ingestion of one document.
func (p *Pipeline) lockFor(documentID core.ID) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.docLocks[documentID]
	if !ok {
		lock = &sync.Mutex{}
		p.docLocks[documentID] = lock
	}
	return lock
}
