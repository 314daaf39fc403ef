package opc

import (
	"fmt"
	"io"
	"os"
)

// Open builds a Document from the raw bytes of a package.
//
// Construction runs strictly in order:
//  1. The Container Reader enumerates the archive, enforcing entry-count
//     and decompressed-size ceilings before anything is inflated
//  2. The Part Store normalises names and drops directory entries
//  3. The Content-Types manifest is parsed into a registry and every Part
//     gets its media type
//  4. Every .rels manifest is parsed into the Relationship graph
//
// Only an unreadable container is fatal: Open then returns an error
// wrapping ErrInvalidArchive (or ErrLimitExceeded when the archive itself
// is too large) and no Document. Every other anomaly is recorded in
// Document.Warnings and the model is built from whatever is usable.
//
// The returned Document is immutable and safe for concurrent use.
func Open(data []byte, opts ...OpenOption) (*Document, error) {
	cfg := newOpenConfig(opts)
	if uint64(len(data)) > cfg.limits.MaxArchiveSize {
		return nil, fmt.Errorf("%w: archive is %d bytes, limit %d", ErrLimitExceeded, len(data), cfg.limits.MaxArchiveSize)
	}
	return build(data, cfg)
}

// OpenFile reads the package at path and builds a Document from it.
func OpenFile(path string, opts ...OpenOption) (*Document, error) {
	cfg := newOpenConfig(opts)
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidArchive, path)
	}
	if uint64(fi.Size()) > cfg.limits.MaxArchiveSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrLimitExceeded, path, fi.Size(), cfg.limits.MaxArchiveSize)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decode(f, cfg)
}

// Decode reads a package from r, up to Limits.MaxArchiveSize bytes, and
// builds a Document from it.
func Decode(r io.Reader, opts ...OpenOption) (*Document, error) {
	return decode(r, newOpenConfig(opts))
}

func decode(r io.Reader, cfg openConfig) (*Document, error) {
	data, err := readAll(io.LimitReader(r, int64(cfg.limits.MaxArchiveSize)+1))
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) > cfg.limits.MaxArchiveSize {
		return nil, fmt.Errorf("%w: archive exceeds %d bytes", ErrLimitExceeded, cfg.limits.MaxArchiveSize)
	}
	return build(data, cfg)
}

func build(data []byte, cfg openConfig) (*Document, error) {
	entries, warns, err := readContainer(data, cfg.limits)
	if err != nil {
		cfg.logger.Debug("package rejected", "error", err)
		return nil, err
	}
	store, w := buildPartStore(entries)
	warns = append(warns, w...)

	ct, w := loadContentTypes(store, cfg.limits)
	warns = append(warns, w...)
	warns = append(warns, store.assignContentTypes(ct)...)

	g, w := buildGraph(store, cfg.limits)
	warns = append(warns, w...)
	for _, p := range store.sorted {
		p.graph = g
	}
	if store.manifest != nil {
		store.manifest.graph = g
	}

	doc := &Document{
		store:        store,
		contentTypes: ct,
		graph:        g,
		warnings:     warns,
		limits:       cfg.limits,
	}
	for _, w := range warns {
		cfg.logger.Warn("package anomaly", "kind", kindName(w.Kind), "part", w.Part, "detail", w.Message)
	}
	cfg.logger.Debug("package opened",
		"parts", len(store.sorted),
		"relationships", len(g.rels),
		"content_type_rules", len(ct.rules),
		"warnings", len(warns))
	return doc, nil
}

// loadContentTypes builds the registry from the manifest Part. A missing,
// oversized or malformed manifest leaves the registry empty.
func loadContentTypes(store *partStore, limits Limits) (*ContentTypes, []Warning) {
	if store.manifest == nil {
		return newContentTypes(), []Warning{{Kind: ErrMalformedManifest, Part: ContentTypesPartName,
			Message: "content types manifest is missing; every part is unresolved"}}
	}
	data, err := readManifest(store.manifest, limits)
	if err != nil {
		return newContentTypes(), []Warning{{Kind: manifestErrKind(err), Part: store.manifest.name, Message: err.Error()}}
	}
	ct, warns, err := parseContentTypes(data)
	if err != nil {
		warns = append(warns, Warning{Kind: ErrMalformedManifest, Part: store.manifest.name, Message: err.Error()})
	}
	return ct, warns
}
