package opc

import (
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/zeebo/blake3"
)

func countingPart(content string, opens *int32) *Part {
	return &Part{
		name: "/word/document.xml",
		size: uint64(len(content)),
		open: func() (io.ReadCloser, error) {
			atomic.AddInt32(opens, 1)
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func TestPart_BytesDecompressesOnce(t *testing.T) {
	var opens int32
	p := countingPart("hello", &opens)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := p.Bytes()
			if err != nil || string(b) != "hello" {
				t.Errorf("got %q, %v", b, err)
			}
		}()
	}
	wg.Wait()
	if opens != 1 {
		t.Fatalf("stream opened %d times", opens)
	}
}

func TestPart_StreamAndDigest(t *testing.T) {
	var opens int32
	p := countingPart("hello", &opens)
	r, err := p.Stream()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := io.ReadAll(r)
	if string(b) != "hello" {
		t.Fatalf("stream %q", b)
	}
	d, err := p.Digest()
	if err != nil {
		t.Fatal(err)
	}
	if d != blake3.Sum256([]byte("hello")) {
		t.Fatal("digest mismatch")
	}
	if opens != 1 {
		t.Fatalf("stream opened %d times", opens)
	}
}

func TestPart_Errors(t *testing.T) {
	p := &Part{name: "/x.bin", size: 3, open: func() (io.ReadCloser, error) { return nil, io.ErrUnexpectedEOF }}
	if _, err := p.Bytes(); !errors.Is(err, ErrStreamUnavailable) {
		t.Fatalf("expected ErrStreamUnavailable, got %v", err)
	}
	if _, err := p.Stream(); err == nil {
		t.Fatal("expected error")
	}
	if _, err := p.Digest(); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := p.exportDigest(); ok {
		t.Fatal("digest exported for an unreadable part")
	}

	long := &Part{name: "/y.bin", size: 2, open: func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("abc")), nil
	}}
	_, err := long.Bytes()
	if !errors.Is(err, ErrStreamUnavailable) || !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected expansion error, got %v", err)
	}

	orig := readAll
	readAll = func(io.Reader) ([]byte, error) { return nil, io.ErrClosedPipe }
	defer func() { readAll = orig }()
	var opens int32
	if _, err := countingPart("abc", &opens).Bytes(); !errors.Is(err, ErrStreamUnavailable) {
		t.Fatalf("expected ErrStreamUnavailable, got %v", err)
	}
}

func TestPart_Export(t *testing.T) {
	doc := sampleDocument(t)
	p, _ := doc.Part("/word/document.xml")
	m := p.Export()
	if m["name"] != "/word/document.xml" || m["content_type"] != ctMainDocument || m["available"] != true {
		t.Fatalf("export %v", m)
	}
	ids := m["relationships_out"].([]any)
	if len(ids) != 2 || ids[0] != "rId1" {
		t.Fatalf("relationships_out %v", ids)
	}
	if p.CompressedSize() == 0 || p.Size() == 0 {
		t.Fatalf("sizes %d/%d", p.CompressedSize(), p.Size())
	}

	orphan := &Part{name: "/lonely.bin"}
	if orphan.RelationshipsOut() != nil || orphan.RelationshipsIn() != nil {
		t.Fatal("relationships on a detached part")
	}
	if orphan.Export()["content_type"] != nil {
		t.Fatal("content type exported for an unresolved part")
	}
}

func TestWarning(t *testing.T) {
	w := Warning{Kind: ErrUnsafePath, Part: "/a.xml", Message: "bad"}
	if !errors.Is(w, ErrUnsafePath) || errors.Is(w, ErrLimitExceeded) {
		t.Fatal("warning kind not matched")
	}
	if w.Error() != "opc: unsafe entry path: /a.xml: bad" {
		t.Fatalf("error %q", w.Error())
	}
	if (Warning{Kind: ErrLimitExceeded, Message: "x"}).Error() != "opc: limit exceeded: x" {
		t.Fatal("error without part")
	}
	exp := w.Export()
	if exp["kind"] != "unsafe_path" || exp["part"] != "/a.xml" {
		t.Fatalf("export %v", exp)
	}
	if _, ok := (Warning{Kind: ErrLimitExceeded}).Export()["part"]; ok {
		t.Fatal("empty part exported")
	}
}

func TestKindName(t *testing.T) {
	cases := map[error]string{
		ErrInvalidArchive:      "invalid_archive",
		ErrLimitExceeded:       "resource_limit_exceeded",
		ErrMalformedManifest:   "malformed_manifest",
		ErrUnresolvedReference: "unresolved_reference",
		ErrUnsafePath:          "unsafe_path",
		ErrSuspiciousContainer: "suspicious_container",
		ErrStreamUnavailable:   "stream_unavailable",
		io.EOF:                 "unknown",
	}
	for err, want := range cases {
		if got := kindName(err); got != want {
			t.Fatalf("kindName(%v) = %q, want %q", err, got, want)
		}
	}
}
