// Package ingestion turns raw documents into indexed chunks.
//
// The pipeline extracts text (delegating PDFs to an injected extractor),
// chunks it according to content type, embeds the chunks in batches, and
// atomically replaces the document's chunk set in the index. Embedding
// failures that survive retries degrade the ingestion to a partial index
// of the document instead of failing it outright.
package ingestion
