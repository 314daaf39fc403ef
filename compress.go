package opc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how a report payload is compressed.
type Compression uint8

const (
	CompNone Compression = 0x0
	CompZSTD Compression = 0x1
	CompLZ4  Compression = 0x2
	CompBR   Compression = 0x3
)

// codec compresses a report body into w and inflates it back, never
// producing more than limit bytes.
type codec struct {
	name       string
	compress   func(w io.Writer, raw []byte) error
	decompress func(in []byte, limit uint64) ([]byte, error)
}

var codecs = map[Compression]codec{
	CompZSTD: {name: "zstd", compress: zstdCompress, decompress: zstdDecompress},
	CompLZ4:  {name: "lz4", compress: lz4Compress, decompress: lz4Decompress},
	CompBR:   {name: "br", compress: brotliCompress, decompress: brotliDecompress},
}

func (c Compression) String() string {
	if c == CompNone {
		return "none"
	}
	if cd, ok := codecs[c]; ok {
		return cd.name
	}
	return fmt.Sprintf("unknown(%d)", uint8(c))
}

// ParseCompression parses the names produced by Compression.String.
// "brotli" is accepted for CompBR and the empty string for CompNone.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none", "":
		return CompNone, nil
	case "brotli":
		return CompBR, nil
	}
	for c, cd := range codecs {
		if cd.name == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown compression %q", name)
}

// Function variables for testing injection.
var (
	newZstdWriter = func() (*zstd.Encoder, error) { return zstd.NewWriter(nil) }
	newZstdReader = func() (*zstd.Decoder, error) { return zstd.NewReader(nil, zstd.WithDecoderLowmem(true)) }
	lz4Close      = func(w *lz4.Writer) error { return w.Close() }
	brotliClose   = func(w *brotli.Writer) error { return w.Close() }
	brotliWrite   = func(w *brotli.Writer, p []byte) (int, error) { return w.Write(p) }
)

// compressPayload compresses raw with comp. Compressed payloads carry an
// 8-byte little-endian uncompressed length prefix so readers can enforce
// a ceiling before inflating anything.
func compressPayload(comp Compression, raw []byte) ([]byte, error) {
	if comp == CompNone {
		return raw, nil
	}
	cd, ok := codecs[comp]
	if !ok {
		return nil, fmt.Errorf("%w: unknown compression %d", ErrInvalidReport, comp)
	}
	var buf bytes.Buffer
	var prefix [8]byte
	binary.LittleEndian.PutUint64(prefix[:], uint64(len(raw)))
	buf.Write(prefix[:])
	if err := cd.compress(&buf, raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decompressPayload reverses compressPayload, refusing payloads that
// declare or expand to more than maxUncompressed bytes.
func decompressPayload(comp Compression, payload []byte, maxUncompressed uint64) ([]byte, error) {
	if comp == CompNone {
		if uint64(len(payload)) > maxUncompressed {
			return nil, fmt.Errorf("%w: report of %d bytes exceeds limit", ErrLimitExceeded, len(payload))
		}
		return payload, nil
	}
	cd, ok := codecs[comp]
	if !ok {
		return nil, fmt.Errorf("%w: unknown compression %d", ErrInvalidReport, comp)
	}
	if len(payload) < 8 {
		return nil, fmt.Errorf("%w: payload too short for uncompressed length", ErrInvalidReport)
	}
	declared := binary.LittleEndian.Uint64(payload[:8])
	if declared > maxUncompressed {
		return nil, fmt.Errorf("%w: uncompressed length %d exceeds limit", ErrLimitExceeded, declared)
	}
	out, err := cd.decompress(payload[8:], declared)
	if err != nil {
		return nil, err
	}
	if uint64(len(out)) != declared {
		return nil, fmt.Errorf("%w: %s payload is %d bytes, header says %d", ErrInvalidReport, cd.name, len(out), declared)
	}
	return out, nil
}

func zstdCompress(w io.Writer, raw []byte) error {
	enc, err := newZstdWriter()
	if err != nil {
		return err
	}
	defer enc.Close()
	_, err = w.Write(enc.EncodeAll(raw, nil))
	return err
}

func zstdDecompress(in []byte, limit uint64) ([]byte, error) {
	dec, err := newZstdReader()
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	out, err := dec.DecodeAll(in, make([]byte, 0, limit))
	if err != nil {
		return nil, err
	}
	if uint64(len(out)) > limit {
		return nil, fmt.Errorf("%w: zstd payload expands past %d bytes", ErrInvalidReport, limit)
	}
	return out, nil
}

func lz4Compress(w io.Writer, raw []byte) error {
	zw := lz4.NewWriter(w)
	if _, err := zw.Write(raw); err != nil {
		_ = lz4Close(zw)
		return err
	}
	return lz4Close(zw)
}

func lz4Decompress(in []byte, limit uint64) ([]byte, error) {
	return readBounded("lz4", lz4.NewReader(bytes.NewReader(in)), limit)
}

func brotliCompress(w io.Writer, raw []byte) error {
	bw := brotli.NewWriter(w)
	if _, err := brotliWrite(bw, raw); err != nil {
		_ = brotliClose(bw)
		return err
	}
	return brotliClose(bw)
}

func brotliDecompress(in []byte, limit uint64) ([]byte, error) {
	return readBounded("br", brotli.NewReader(bytes.NewReader(in)), limit)
}

// readBounded reads at most one byte past limit so overruns are caught
// without inflating the rest of the stream.
func readBounded(name string, r io.Reader, limit uint64) ([]byte, error) {
	b, err := readAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, err
	}
	if uint64(len(b)) > limit {
		return nil, fmt.Errorf("%w: %s payload expands past %d bytes", ErrInvalidReport, name, limit)
	}
	return b, nil
}
