package opc

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"github.com/zeebo/blake3"
)

// Function variables for testing injection.
var readAll = io.ReadAll

// Part is a named byte stream inside the package. Its bytes are
// decompressed on first use, at most once, and cached for the lifetime of
// the Document; concurrent first reads are safe.
type Part struct {
	name           string
	contentType    string
	hasContentType bool
	size           uint64 // declared uncompressed size
	compressedSize uint64
	method         uint16

	open        func() (io.ReadCloser, error)
	unavailable error
	graph       *graph

	once sync.Once
	data []byte
	err  error

	digestOnce sync.Once
	digest     [32]byte
}

// Name returns the normalised Part name, always starting with '/'.
func (p *Part) Name() string { return p.name }

// ContentType returns the resolved media type. ok is false when neither an
// Override nor a Default rule matched.
func (p *Part) ContentType() (contentType string, ok bool) {
	return p.contentType, p.hasContentType
}

// Size returns the uncompressed size declared by the archive.
func (p *Part) Size() uint64 { return p.size }

// CompressedSize returns the stored size declared by the archive.
func (p *Part) CompressedSize() uint64 { return p.compressedSize }

// Method returns the zip compression method of the entry.
func (p *Part) Method() uint16 { return p.method }

// Available reports whether the stream may be read. A Part whose entry
// broke a resource limit at ingestion is present but unavailable.
func (p *Part) Available() bool { return p.unavailable == nil }

// Bytes returns the decompressed content. The returned slice is shared;
// callers must not modify it.
func (p *Part) Bytes() ([]byte, error) {
	p.once.Do(p.materialize)
	return p.data, p.err
}

// Stream returns a reader over the decompressed content.
func (p *Part) Stream() (io.Reader, error) {
	data, err := p.Bytes()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// Digest returns the BLAKE3-256 digest of the decompressed content.
func (p *Part) Digest() ([32]byte, error) {
	data, err := p.Bytes()
	if err != nil {
		return [32]byte{}, err
	}
	p.digestOnce.Do(func() { p.digest = blake3.Sum256(data) })
	return p.digest, nil
}

// RelationshipsOut returns the Relationships declared by this Part's
// manifest, in declaration order.
func (p *Part) RelationshipsOut() []*Relationship {
	if p.graph == nil {
		return nil
	}
	return p.graph.outgoing(p.name)
}

// RelationshipsIn returns the Relationships whose resolved target is this Part.
func (p *Part) RelationshipsIn() []*Relationship {
	if p.graph == nil {
		return nil
	}
	return p.graph.incoming(p.name)
}

func (p *Part) materialize() {
	if p.unavailable != nil {
		p.err = p.unavailable
		return
	}
	rc, err := p.open()
	if err != nil {
		p.err = fmt.Errorf("%w: %s: %v", ErrStreamUnavailable, p.name, err)
		return
	}
	defer rc.Close()
	// Reading one byte past the declared size catches entries whose
	// central directory understates what the compressed data expands to.
	b, err := readAll(io.LimitReader(rc, int64(p.size)+1))
	if err != nil {
		p.err = fmt.Errorf("%w: %s: %v", ErrStreamUnavailable, p.name, err)
		return
	}
	if uint64(len(b)) > p.size {
		p.err = fmt.Errorf("%w: %w: %s expands beyond its declared size %d", ErrStreamUnavailable, ErrLimitExceeded, p.name, p.size)
		return
	}
	p.data = b
}

// Export implements Exporter.
func (p *Part) Export() map[string]any {
	m := map[string]any{
		"name":            p.name,
		"content_type":    nil,
		"size":            p.size,
		"compressed_size": p.compressedSize,
		"method":          p.method,
		"available":       p.Available(),
	}
	if p.hasContentType {
		m["content_type"] = p.contentType
	}
	out := p.RelationshipsOut()
	ids := make([]any, 0, len(out))
	for _, r := range out {
		ids = append(ids, r.id)
	}
	m["relationships_out"] = ids
	return m
}

func (p *Part) exportDigest() (string, bool) {
	d, err := p.Digest()
	if err != nil {
		return "", false
	}
	return hex.EncodeToString(d[:]), true
}
