package opc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Exporter is implemented by every model type. Export returns a tree of
// maps, slices and scalars carrying enough structure (names, types,
// targets, Ids) for a serializer to write the model without loss.
type Exporter interface {
	Export() map[string]any
}

var (
	_ Exporter = (*Document)(nil)
	_ Exporter = (*Part)(nil)
	_ Exporter = (*Relationship)(nil)
	_ Exporter = Rule{}
	_ Exporter = Warning{}
	_ Exporter = Feature{}
	_ Exporter = CoreProperties{}
	_ Exporter = AppProperties{}
)

// Export implements Exporter for the whole model.
func (d *Document) Export() map[string]any {
	m := map[string]any{
		"version":       Version,
		"parts":         exportAll(d.Parts()),
		"relationships": exportAll(d.Relationships()),
		"content_types": exportAll(d.contentTypes.Rules()),
		"features":      exportAll(d.Features()),
		"warnings":      exportAll(d.Warnings()),
		"main_part":     nil,
	}
	if main, err := d.MainPart(); err == nil {
		m["main_part"] = main.name
	} else {
		m["main_part_error"] = err.Error()
	}
	if core, err := d.CoreProperties(); err == nil {
		m["core_properties"] = core.Export()
	} else {
		m["core_properties_error"] = err.Error()
	}
	if app, err := d.AppProperties(); err == nil {
		m["app_properties"] = app.Export()
	} else {
		m["app_properties_error"] = err.Error()
	}
	return m
}

func exportAll[T Exporter](items []T) []any {
	out := make([]any, 0, len(items))
	for _, it := range items {
		out = append(out, it.Export())
	}
	return out
}

// Format selects the report encoding.
type Format uint8

const (
	FormatJSON Format = 0x1
	FormatCBOR Format = 0x2
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatCBOR:
		return "cbor"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(f))
	}
}

// ParseFormat parses the names produced by Format.String.
func ParseFormat(name string) (Format, error) {
	switch name {
	case "json", "":
		return FormatJSON, nil
	case "cbor":
		return FormatCBOR, nil
	default:
		return 0, fmt.Errorf("unknown report format %q", name)
	}
}

// ReportOptions controls WriteReport.
type ReportOptions struct {
	Format      Format
	Compression Compression
	// Digests adds the BLAKE3 digest of every available Part. This
	// decompresses every Part.
	Digests bool
}

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	var err error
	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339
	cborEncMode, err = encOptions.EncMode()
	if err != nil {
		panic("opc: CBOR encoder initialization failed: " + err.Error())
	}
	cborDecMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("opc: CBOR decoder initialization failed: " + err.Error())
	}
}

// BuildReport returns doc's export tree, extended per opts.
func BuildReport(doc *Document, opts ReportOptions) map[string]any {
	tree := doc.Export()
	if !opts.Digests {
		return tree
	}
	for i, p := range doc.Parts() {
		if !p.Available() {
			continue
		}
		if digest, ok := p.exportDigest(); ok {
			tree["parts"].([]any)[i].(map[string]any)["blake3"] = digest
		}
	}
	return tree
}

// WriteReport encodes doc's export tree behind a small fixed header that
// records the format and compression.
func WriteReport(w io.Writer, doc *Document, opts ReportOptions) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidReport)
	}
	if opts.Format == 0 {
		opts.Format = FormatJSON
	}
	raw, err := encodeTree(opts.Format, BuildReport(doc, opts))
	if err != nil {
		return err
	}
	payload, err := compressPayload(opts.Compression, raw)
	if err != nil {
		return err
	}
	h := reportHeader{Magic: reportMagic, Version: Version, Format: opts.Format, Compression: opts.Compression}
	if err := writeReportHeader(w, h); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// ReadReport decodes a report written by WriteReport. maxSize bounds the
// decoded payload; zero means MaxManifestSize's default.
func ReadReport(r io.Reader, maxSize uint64) (map[string]any, error) {
	if maxSize == 0 {
		maxSize = DefaultLimits().MaxManifestSize
	}
	h, err := readReportHeader(r)
	if err != nil {
		return nil, err
	}
	if h.Magic != reportMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidReport)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidReport, h.Version)
	}
	payload, err := readAll(io.LimitReader(r, int64(maxSize)+8+1))
	if err != nil {
		return nil, err
	}
	raw, err := decompressPayload(h.Compression, payload, maxSize)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	switch h.Format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		err = dec.Decode(&tree)
	case FormatCBOR:
		err = cborDecMode.Unmarshal(raw, &tree)
	default:
		return nil, fmt.Errorf("%w: unknown format %d", ErrInvalidReport, h.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	return tree, nil
}

func encodeTree(f Format, tree map[string]any) ([]byte, error) {
	switch f {
	case FormatJSON:
		return json.Marshal(tree)
	case FormatCBOR:
		return cborEncMode.Marshal(tree)
	default:
		return nil, fmt.Errorf("%w: unknown format %d", ErrInvalidReport, f)
	}
}
