package opc

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArchive      = errors.New("opc: invalid archive")
	ErrLimitExceeded       = errors.New("opc: limit exceeded")
	ErrMalformedManifest   = errors.New("opc: malformed manifest")
	ErrUnresolvedReference = errors.New("opc: unresolved reference")
	ErrUnsafePath          = errors.New("opc: unsafe entry path")
	ErrSuspiciousContainer = errors.New("opc: suspicious container structure")
	ErrNoMainPart          = errors.New("opc: no main part")
	ErrAmbiguousMainPart   = errors.New("opc: ambiguous main part")
	ErrStreamUnavailable   = errors.New("opc: part stream unavailable")
	ErrInvalidReport       = errors.New("opc: invalid report")
)

// Warning records a non-fatal anomaly found while building a Document.
// Kind is one of the package's sentinel errors, so callers can classify
// warnings with errors.Is.
type Warning struct {
	Kind    error
	Part    string
	Message string
}

func (w Warning) Error() string {
	if w.Part == "" {
		return fmt.Sprintf("%v: %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("%v: %s: %s", w.Kind, w.Part, w.Message)
}

func (w Warning) Unwrap() error { return w.Kind }

// Export implements Exporter.
func (w Warning) Export() map[string]any {
	m := map[string]any{
		"kind":    kindName(w.Kind),
		"message": w.Message,
	}
	if w.Part != "" {
		m["part"] = w.Part
	}
	return m
}

// kindName maps a sentinel to the short, stable name used in reports and logs.
func kindName(err error) string {
	switch {
	case errors.Is(err, ErrInvalidArchive):
		return "invalid_archive"
	case errors.Is(err, ErrLimitExceeded):
		return "resource_limit_exceeded"
	case errors.Is(err, ErrMalformedManifest):
		return "malformed_manifest"
	case errors.Is(err, ErrUnresolvedReference):
		return "unresolved_reference"
	case errors.Is(err, ErrUnsafePath):
		return "unsafe_path"
	case errors.Is(err, ErrSuspiciousContainer):
		return "suspicious_container"
	case errors.Is(err, ErrStreamUnavailable):
		return "stream_unavailable"
	default:
		return "unknown"
	}
}
