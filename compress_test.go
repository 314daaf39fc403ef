package opc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

func TestCompressPayloadRoundTrip(t *testing.T) {
	in := bytes.Repeat([]byte(`{"name":"/word/document.xml"}`), 50)
	for _, comp := range []Compression{CompNone, CompZSTD, CompLZ4, CompBR} {
		payload, err := compressPayload(comp, in)
		if err != nil {
			t.Fatalf("%v: %v", comp, err)
		}
		if comp != CompNone && binary.LittleEndian.Uint64(payload[:8]) != uint64(len(in)) {
			t.Fatalf("%v: length prefix", comp)
		}
		out, err := decompressPayload(comp, payload, uint64(len(in)))
		if err != nil {
			t.Fatalf("%v: %v", comp, err)
		}
		if !bytes.Equal(in, out) {
			t.Fatalf("%v: mismatch", comp)
		}
	}
}

func TestDecompressionExpansionGuards(t *testing.T) {
	in := []byte("hello world")
	for comp, cd := range codecs {
		var buf bytes.Buffer
		if err := cd.compress(&buf, in); err != nil {
			t.Fatalf("%v: %v", comp, err)
		}
		if _, err := cd.decompress(buf.Bytes(), 1); !errors.Is(err, ErrInvalidReport) {
			t.Fatalf("%v: expected ErrInvalidReport, got %v", comp, err)
		}
	}
}

func TestCompressionWrappers_ReturnErrors(t *testing.T) {
	origLZ4Close := lz4Close
	lz4Close = func(_ *lz4.Writer) error { return io.ErrClosedPipe }
	_, err := compressPayload(CompLZ4, []byte("x"))
	lz4Close = origLZ4Close
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("expected injected error, got %v", err)
	}

	origBrotliClose := brotliClose
	brotliClose = func(_ *brotli.Writer) error { return io.ErrClosedPipe }
	_, err = compressPayload(CompBR, []byte("x"))
	brotliClose = origBrotliClose
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("expected injected error, got %v", err)
	}

	origBrotliWrite := brotliWrite
	brotliWrite = func(_ *brotli.Writer, _ []byte) (int, error) { return 0, io.ErrClosedPipe }
	_, err = compressPayload(CompBR, []byte("x"))
	brotliWrite = origBrotliWrite
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("expected injected error, got %v", err)
	}

	if err := zstdCompress(&failingWriter{}, []byte("x")); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("expected write error, got %v", err)
	}
}

func TestZstdConstructorInjection(t *testing.T) {
	origW := newZstdWriter
	newZstdWriter = func() (*zstd.Encoder, error) { return nil, io.ErrClosedPipe }
	_, err := compressPayload(CompZSTD, []byte("x"))
	newZstdWriter = origW
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("expected injected error, got %v", err)
	}

	payload, err := compressPayload(CompZSTD, []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	origR := newZstdReader
	newZstdReader = func() (*zstd.Decoder, error) { return nil, io.ErrClosedPipe }
	_, err = decompressPayload(CompZSTD, payload, 10)
	newZstdReader = origR
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("expected injected error, got %v", err)
	}
}

func TestReadAllInjection(t *testing.T) {
	payload, err := compressPayload(CompBR, []byte("abc"))
	if err != nil {
		t.Fatal(err)
	}
	orig := readAll
	readAll = func(io.Reader) ([]byte, error) { return nil, io.ErrUnexpectedEOF }
	_, err = decompressPayload(CompBR, payload, 10)
	readAll = orig
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected injected error, got %v", err)
	}
}

func TestDecompressionCorruptStreams(t *testing.T) {
	if _, err := zstdDecompress([]byte("notzstd"), 100); err == nil {
		t.Fatal("expected error")
	}
	if _, err := lz4Decompress([]byte("notlz4"), 100); err == nil {
		t.Fatal("expected error")
	}
	if _, err := brotliDecompress([]byte("notbr"), 100); err == nil {
		t.Fatal("expected error")
	}
}

func TestDecompressPayloadLengthMismatch(t *testing.T) {
	payload, err := compressPayload(CompZSTD, []byte("abc"))
	if err != nil {
		t.Fatal(err)
	}
	binary.LittleEndian.PutUint64(payload[:8], 10)
	if _, err := decompressPayload(CompZSTD, payload, 100); !errors.Is(err, ErrInvalidReport) {
		t.Fatalf("expected ErrInvalidReport, got %v", err)
	}
}

func TestDecompressPayloadBadEnvelope(t *testing.T) {
	if _, err := decompressPayload(CompZSTD, []byte{1, 2, 3}, 10); !errors.Is(err, ErrInvalidReport) {
		t.Fatalf("expected ErrInvalidReport, got %v", err)
	}
	if _, err := decompressPayload(Compression(9), make([]byte, 9), 10); !errors.Is(err, ErrInvalidReport) {
		t.Fatalf("expected ErrInvalidReport, got %v", err)
	}
	if _, err := compressPayload(Compression(9), []byte("x")); !errors.Is(err, ErrInvalidReport) {
		t.Fatalf("expected ErrInvalidReport, got %v", err)
	}
	var big [8]byte
	binary.LittleEndian.PutUint64(big[:], 1<<40)
	if _, err := decompressPayload(CompLZ4, big[:], 10); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
	if _, err := decompressPayload(CompNone, []byte("0123456789ab"), 10); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
}
