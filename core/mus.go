package core

import (
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the types that cross the persistence boundary:
// documents in the registry and index snapshot entries. Timestamps are
// stored as Unix microseconds.

// IDMUS serializes ID values as varints.
var IDMUS = idMUS{}

// VectorMUS serializes embedding vectors.
var VectorMUS = ord.NewSliceSer[float32](raw.Float32)

// DocumentMUS serializes Document records.
var DocumentMUS = documentMUS{}

// ChunkMetaMUS serializes ChunkMeta records.
var ChunkMetaMUS = chunkMetaMUS{}

var (
	_ mus.Serializer[ID]        = IDMUS
	_ mus.Serializer[Document]  = DocumentMUS
	_ mus.Serializer[ChunkMeta] = ChunkMetaMUS
)

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	num, n, err := varint.Uint64.Unmarshal(bs)
	return ID(num), n, err
}

func (idMUS) Size(v ID) int {
	return varint.Uint64.Size(uint64(v))
}

func (idMUS) Skip(bs []byte) (int, error) {
	return varint.Uint64.Skip(bs)
}

type documentMUS struct{}

func (s documentMUS) Marshal(d Document, bs []byte) (n int) {
	n = IDMUS.Marshal(d.Id, bs)
	n += ord.String.Marshal(d.Name, bs[n:])
	n += ord.String.Marshal(d.SourceURI, bs[n:])
	n += varint.Int.Marshal(int(d.ContentType), bs[n:])
	n += varint.Int.Marshal(d.ChunkCount, bs[n:])
	n += varint.Int64.Marshal(d.InsertedAt.UnixMicro(), bs[n:])
	n += varint.Int64.Marshal(d.UpdatedAt.UnixMicro(), bs[n:])
	return n
}

func (s documentMUS) Unmarshal(bs []byte) (d Document, n int, err error) {
	var n1 int
	d.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	d.Name, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.SourceURI, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var ct int
	ct, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.ContentType = ContentType(ct)
	d.ChunkCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var micros int64
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.InsertedAt = time.UnixMicro(micros).UTC()
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.UpdatedAt = time.UnixMicro(micros).UTC()
	return
}

func (s documentMUS) Size(d Document) (size int) {
	size = IDMUS.Size(d.Id)
	size += ord.String.Size(d.Name)
	size += ord.String.Size(d.SourceURI)
	size += varint.Int.Size(int(d.ContentType))
	size += varint.Int.Size(d.ChunkCount)
	size += varint.Int64.Size(d.InsertedAt.UnixMicro())
	size += varint.Int64.Size(d.UpdatedAt.UnixMicro())
	return size
}

func (s documentMUS) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}

type chunkMetaMUS struct{}

func (s chunkMetaMUS) Marshal(m ChunkMeta, bs []byte) (n int) {
	n = IDMUS.Marshal(m.DocumentID, bs)
	n += ord.String.Marshal(m.Text, bs[n:])
	n += ord.String.Marshal(m.Filename, bs[n:])
	n += ord.String.Marshal(m.SourceURI, bs[n:])
	return n
}

func (s chunkMetaMUS) Unmarshal(bs []byte) (m ChunkMeta, n int, err error) {
	var n1 int
	m.DocumentID, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	m.Text, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	m.Filename, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	m.SourceURI, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (s chunkMetaMUS) Size(m ChunkMeta) (size int) {
	size = IDMUS.Size(m.DocumentID)
	size += ord.String.Size(m.Text)
	size += ord.String.Size(m.Filename)
	size += ord.String.Size(m.SourceURI)
	return size
}

func (s chunkMetaMUS) Skip(bs []byte) (int, error) {
	_, n, err := s.Unmarshal(bs)
	return n, err
}
