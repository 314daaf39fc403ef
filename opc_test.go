package opc

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

const (
	ctMainDocument = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	ctStyles       = "application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"
	ctAppProps     = "application/vnd.openxmlformats-officedocument.extended-properties+xml"
)

const sampleContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/word/document.xml" ContentType="` + ctMainDocument + `"/>
  <Override PartName="/word/styles.xml" ContentType="` + ctStyles + `"/>
  <Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>
  <Override PartName="/docProps/app.xml" ContentType="` + ctAppProps + `"/>
</Types>`

const sampleRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="` + RelTypeOfficeDocument + `" Target="word/document.xml"/>
  <Relationship Id="rId2" Type="` + RelTypeCoreProperties + `" Target="docProps/core.xml"/>
  <Relationship Id="rId3" Type="` + RelTypeExtendedProperties + `" Target="docProps/app.xml"/>
</Relationships>`

const sampleDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
  <Relationship Id="rId2" Type="` + RelTypeHyperlink + `" Target="https://example.com/" TargetMode="External"/>
</Relationships>`

const sampleCore = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
  <dc:title>Quarterly report</dc:title>
  <dc:creator>alice</dc:creator>
  <cp:lastModifiedBy>bob</cp:lastModifiedBy>
  <cp:revision>3</cp:revision>
  <dcterms:created xsi:type="dcterms:W3CDTF">2024-01-02T03:04:05Z</dcterms:created>
  <dcterms:modified xsi:type="dcterms:W3CDTF">not a date</dcterms:modified>
  <cp:lastPrinted>2024-03</cp:lastPrinted>
</cp:coreProperties>`

const sampleApp = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties">
  <Template>Normal.dotm</Template>
  <TotalTime>12</TotalTime>
  <Pages>2</Pages>
  <Application>Microsoft Office Word</Application>
  <Company>Example Corp</Company>
</Properties>`

// zipEntry is one member of a test archive. Entries are written in slice
// order so tests can create duplicates and hostile names.
type zipEntry struct {
	name   string
	data   string
	method uint16
	flags  uint16
	mode   fs.FileMode
}

func sampleEntries() []zipEntry {
	return []zipEntry{
		{name: "[Content_Types].xml", data: sampleContentTypes},
		{name: "_rels/.rels", data: sampleRootRels},
		{name: "word/"},
		{name: "word/document.xml", data: `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"/>`},
		{name: "word/_rels/document.xml.rels", data: sampleDocumentRels},
		{name: "word/styles.xml", data: `<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"/>`},
		{name: "docProps/core.xml", data: sampleCore},
		{name: "docProps/app.xml", data: sampleApp},
	}
}

func buildZip(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())
	for _, e := range entries {
		if strings.HasSuffix(e.name, "/") {
			if _, err := zw.Create(e.name); err != nil {
				t.Fatal(err)
			}
			continue
		}
		method := e.method
		if method == 0 {
			method = zip.Deflate
		}
		h := &zip.FileHeader{Name: e.name, Method: method, Flags: e.flags}
		if e.mode != 0 {
			h.SetMode(e.mode)
		}
		w, err := zw.CreateHeader(h)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(w, e.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func openEntries(t *testing.T, entries []zipEntry, opts ...OpenOption) *Document {
	t.Helper()
	doc, err := Open(buildZip(t, entries...), opts...)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return doc
}

func sampleDocument(t *testing.T) *Document {
	t.Helper()
	return openEntries(t, sampleEntries())
}

// withEntry returns entries with name replaced by (or extended with) e.
func withEntry(entries []zipEntry, e zipEntry) []zipEntry {
	out := make([]zipEntry, 0, len(entries)+1)
	replaced := false
	for _, x := range entries {
		if x.name == e.name {
			out = append(out, e)
			replaced = true
			continue
		}
		out = append(out, x)
	}
	if !replaced {
		out = append(out, e)
	}
	return out
}

func withoutEntry(entries []zipEntry, name string) []zipEntry {
	out := make([]zipEntry, 0, len(entries))
	for _, x := range entries {
		if x.name != name {
			out = append(out, x)
		}
	}
	return out
}

func relsXML(rels ...string) string {
	return `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		strings.Join(rels, "") + `</Relationships>`
}

func rel(id, relType, target string) string {
	return `<Relationship Id="` + id + `" Type="` + relType + `" Target="` + target + `"/>`
}

func extRel(id, relType, target string) string {
	return `<Relationship Id="` + id + `" Type="` + relType + `" Target="` + target + `" TargetMode="External"/>`
}

func warningsOf(doc *Document, kind error) []Warning {
	var out []Warning
	for _, w := range doc.Warnings() {
		if errors.Is(w, kind) {
			out = append(out, w)
		}
	}
	return out
}

func partNames(parts []*Part) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, p.Name())
	}
	return out
}

type failingWriter struct {
	n int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.n <= 0 {
		return 0, io.ErrClosedPipe
	}
	if len(p) > w.n {
		p = p[:w.n]
	}
	w.n -= len(p)
	return len(p), nil
}
