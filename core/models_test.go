package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFromContent(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		a := IDFromContent("manual.pdf")
		b := IDFromContent("manual.pdf")
		assert.Equal(t, a, b)
	})

	t.Run("distinct content distinct IDs", func(t *testing.T) {
		a := IDFromContent("manual.pdf")
		b := IDFromContent("handbook.pdf")
		assert.NotEqual(t, a, b)
	})
}

func TestChunkIDFrom(t *testing.T) {
	doc := IDFromContent("manual.pdf")

	t.Run("deterministic", func(t *testing.T) {
		a := ChunkIDFrom(doc, 0, 1000)
		b := ChunkIDFrom(doc, 0, 1000)
		assert.Equal(t, a, b)
	})

	t.Run("position sensitive", func(t *testing.T) {
		a := ChunkIDFrom(doc, 0, 1000)
		b := ChunkIDFrom(doc, 800, 1000)
		c := ChunkIDFrom(doc, 0, 999)
		assert.NotEqual(t, a, b)
		assert.NotEqual(t, a, c)
	})

	t.Run("document sensitive", func(t *testing.T) {
		other := IDFromContent("handbook.pdf")
		assert.NotEqual(t, ChunkIDFrom(doc, 0, 1000), ChunkIDFrom(other, 0, 1000))
	})
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, ContentTypePDF, DetectContentType("report.PDF"))
	assert.Equal(t, ContentTypeCode, DetectContentType("main.go"))
	assert.Equal(t, ContentTypeText, DetectContentType("notes.md"))
	assert.Equal(t, ContentTypeOther, DetectContentType("archive.bin"))
}

func TestDocumentMUSRoundTrip(t *testing.T) {
	doc := Document{
		Id:          IDFromContent("manual.pdf"),
		Name:        "manual.pdf",
		SourceURI:   "gs://bucket/documents/manual.pdf",
		ContentType: ContentTypePDF,
		ChunkCount:  12,
		InsertedAt:  time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC),
	}

	buf := make([]byte, DocumentMUS.Size(doc))
	n := DocumentMUS.Marshal(doc, buf)
	require.Equal(t, len(buf), n)

	decoded, n, err := DocumentMUS.Unmarshal(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	assert.Equal(t, doc, decoded)
}

func TestChunkMetaMUSRoundTrip(t *testing.T) {
	meta := ChunkMeta{
		DocumentID: IDFromContent("manual.pdf"),
		Text:       "Press the reset button for five seconds.",
		Filename:   "manual.pdf",
		SourceURI:  "gs://bucket/documents/manual.pdf",
	}

	buf := make([]byte, ChunkMetaMUS.Size(meta))
	ChunkMetaMUS.Marshal(meta, buf)

	decoded, _, err := ChunkMetaMUS.Unmarshal(buf)
	require.NoError(t, err)
	assert.Equal(t, meta, decoded)
}
