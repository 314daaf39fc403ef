package opc

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// Function variables for testing injection.
var (
	zipNewReader = zip.NewReader
	zipOpen      = func(zf *zip.File) (io.ReadCloser, error) { return zf.Open() }
)

const flagEncrypted = 0x1

// entry is one archive member as seen by the Container Reader, before it
// becomes a Part. unavailable is set when a resource ceiling forbids
// decompressing it.
type entry struct {
	rawName        string
	name           string
	dir            bool
	size           uint64
	compressedSize uint64
	method         uint16
	open           func() (io.ReadCloser, error)
	unavailable    error
}

// readContainer enumerates the archive. It fails only when the central
// directory cannot be parsed; everything else is reported as a warning.
// Size ceilings are checked against the declared sizes here, before any
// byte is decompressed, and enforced again while reading.
func readContainer(data []byte, limits Limits) ([]entry, []Warning, error) {
	info, err := inspectContainer(data)
	if err != nil {
		return nil, nil, err
	}
	zr, err := zipNewReader(bytes.NewReader(data), int64(len(data)))
	if zr == nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	var warns []Warning
	if err != nil {
		warns = append(warns, Warning{Kind: ErrSuspiciousContainer, Message: err.Error()})
	}
	zr.RegisterDecompressor(zip.Deflate, flate.NewReader)
	zr.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())
	zr.RegisterDecompressor(zstd.ZipMethodPKWare, zstd.ZipDecompressor())

	if info.prependedSize > 0 {
		warns = append(warns, Warning{Kind: ErrSuspiciousContainer,
			Message: fmt.Sprintf("%d bytes prepended to the archive", info.prependedSize)})
	} else if info.leadingJunk {
		warns = append(warns, Warning{Kind: ErrSuspiciousContainer,
			Message: "archive does not start with a local file header"})
	}
	if info.hasEOCD && info.eocd.CommentLen > 0 {
		warns = append(warns, Warning{Kind: ErrSuspiciousContainer,
			Message: fmt.Sprintf("archive carries a %d byte comment", info.eocd.CommentLen)})
	}

	if info.hasEOCD && info.eocd.TotalEntries != uint64(len(zr.File)) {
		warns = append(warns, Warning{Kind: ErrSuspiciousContainer,
			Message: fmt.Sprintf("trailer declares %d entries, central directory holds %d", info.eocd.TotalEntries, len(zr.File))})
	}

	files := zr.File
	if len(files) > limits.MaxEntries {
		warns = append(warns, Warning{Kind: ErrLimitExceeded,
			Message: fmt.Sprintf("archive has %d entries, only the first %d are ingested", len(files), limits.MaxEntries)})
		files = files[:limits.MaxEntries]
	}

	var total uint64
	entries := make([]entry, 0, len(files))
	for _, zf := range files {
		e := entry{
			rawName:        zf.Name,
			dir:            strings.HasSuffix(zf.Name, "/"),
			size:           zf.UncompressedSize64,
			compressedSize: zf.CompressedSize64,
			method:         zf.Method,
		}
		// Only the name decides what is a directory. The mode bits come
		// from the producer and can hide a real entry.
		if e.dir {
			if e.size > 0 {
				warns = append(warns, Warning{Kind: ErrSuspiciousContainer, Part: zf.Name,
					Message: fmt.Sprintf("directory entry declares %d bytes of data", e.size)})
			}
			entries = append(entries, e)
			continue
		}
		name, changed, err := normalizeEntryName(zf.Name)
		if err != nil {
			warns = append(warns, Warning{Kind: ErrUnsafePath, Part: zf.Name, Message: "entry skipped: " + err.Error()})
			continue
		}
		if changed {
			warns = append(warns, Warning{Kind: ErrUnsafePath, Part: name,
				Message: fmt.Sprintf("entry name %q normalised", zf.Name)})
		}
		e.name = name
		if zf.FileInfo().IsDir() {
			warns = append(warns, Warning{Kind: ErrSuspiciousContainer, Part: name,
				Message: "entry is marked as a directory but its name has no trailing slash"})
		}
		zf := zf
		e.open = func() (io.ReadCloser, error) { return zipOpen(zf) }

		switch zf.Method {
		case zip.Store, zip.Deflate:
		case zstd.ZipMethodWinZip, zstd.ZipMethodPKWare:
			warns = append(warns, Warning{Kind: ErrSuspiciousContainer, Part: name,
				Message: fmt.Sprintf("non-standard compression method %d (zstd)", zf.Method)})
		default:
			warns = append(warns, Warning{Kind: ErrSuspiciousContainer, Part: name,
				Message: fmt.Sprintf("unsupported compression method %d", zf.Method)})
		}
		if zf.Flags&flagEncrypted != 0 {
			warns = append(warns, Warning{Kind: ErrSuspiciousContainer, Part: name, Message: "entry is encrypted"})
		}

		var exceeded string
		switch {
		case e.size > limits.MaxEntrySize:
			exceeded = fmt.Sprintf("declares %d bytes, per-entry limit is %d", e.size, limits.MaxEntrySize)
		case total+e.size > limits.MaxTotalSize || total+e.size < total:
			exceeded = fmt.Sprintf("declares %d bytes, total decompressed limit %d reached", e.size, limits.MaxTotalSize)
		default:
			total += e.size
		}
		if exceeded != "" {
			e.unavailable = fmt.Errorf("%w: %w: %s %s", ErrStreamUnavailable, ErrLimitExceeded, name, exceeded)
			warns = append(warns, Warning{Kind: ErrLimitExceeded, Part: name, Message: exceeded})
		}
		entries = append(entries, e)
	}
	return entries, warns, nil
}
