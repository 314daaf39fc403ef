package opc

import (
	"fmt"
	"regexp"
	"sort"
)

// MainPart returns the Part the package root designates as the document's
// primary content through the officeDocument relationship. It returns an
// error wrapping ErrNoMainPart when there is no such relationship or its
// target does not exist, and ErrAmbiguousMainPart when the root names
// more than one distinct target; it never guesses.
func (d *Document) MainPart() (*Part, error) {
	var targets []string
	seen := make(map[string]struct{})
	for _, r := range d.graph.out[PackageRoot] {
		if r.relType != RelTypeOfficeDocument && r.relType != RelTypeOfficeDocumentStrict {
			continue
		}
		if r.External() {
			continue
		}
		if _, dup := seen[r.targetName]; dup {
			continue
		}
		seen[r.targetName] = struct{}{}
		targets = append(targets, r.targetName)
	}
	switch len(targets) {
	case 0:
		return nil, ErrNoMainPart
	case 1:
	default:
		sort.Strings(targets)
		return nil, fmt.Errorf("%w: %d candidates %v", ErrAmbiguousMainPart, len(targets), targets)
	}
	if targets[0] == "" {
		return nil, fmt.Errorf("%w: %w: officeDocument target leaves the package", ErrNoMainPart, ErrUnresolvedReference)
	}
	p, ok := d.store.lookup(targets[0])
	if !ok {
		return nil, fmt.Errorf("%w: %w: %s does not exist", ErrNoMainPart, ErrUnresolvedReference, targets[0])
	}
	return p, nil
}

// FeatureScope restricts which Relationship sources count for a feature.
type FeatureScope uint8

const (
	// ScopeMainPart accepts sources reachable from the main Part, and the
	// main Part itself.
	ScopeMainPart FeatureScope = iota
	// ScopeAnywhere accepts any source.
	ScopeAnywhere
	// ScopeRoot accepts only the package-level manifest.
	ScopeRoot
)

// TargetMatch selects which relationship targets a feature inspects.
type TargetMatch uint8

const (
	MatchInternal TargetMatch = iota
	MatchExternal
	MatchBoth
)

// FeatureDef declares a feature as a predicate over the graph: a Part (or
// external target) is evidence for the feature when a Relationship of one
// of RelationshipTypes from an in-scope source points at it and, for
// Parts, its media type matches ContentType (any type when nil).
type FeatureDef struct {
	Name              string
	Description       string
	RelationshipTypes []string
	ContentType       *regexp.Regexp
	Scope             FeatureScope
	Targets           TargetMatch
}

// Feature is the outcome of evaluating a FeatureDef.
type Feature struct {
	Name     string
	Present  bool
	Parts    []string // internal evidence, sorted
	External []string // external targets, in graph order
}

// Export implements Exporter.
func (f Feature) Export() map[string]any {
	parts := make([]any, 0, len(f.Parts))
	for _, p := range f.Parts {
		parts = append(parts, p)
	}
	ext := make([]any, 0, len(f.External))
	for _, e := range f.External {
		ext = append(ext, e)
	}
	return map[string]any{"name": f.Name, "present": f.Present, "parts": parts, "external": ext}
}

// BuiltinFeatures are the features Features evaluates.
var BuiltinFeatures = []FeatureDef{
	{
		Name:              "macros",
		Description:       "VBA project",
		RelationshipTypes: []string{RelTypeVBAProject},
		ContentType:       regexp.MustCompile(`^application/vnd\.ms-office\.vbaProject$`),
	},
	{
		Name:              "macrosheets",
		Description:       "Excel 4.0 macro sheets",
		RelationshipTypes: []string{RelTypeXLMacrosheet, RelTypeXLIntlMacrosheet},
	},
	{
		Name:              "ole_objects",
		Description:       "embedded OLE objects",
		RelationshipTypes: []string{RelTypeOLEObject},
		Scope:             ScopeAnywhere,
	},
	{
		Name:              "external_ole_links",
		Description:       "OLE objects linked to an external resource",
		RelationshipTypes: []string{RelTypeOLEObject},
		Scope:             ScopeAnywhere,
		Targets:           MatchExternal,
	},
	{
		Name:              "embedded_packages",
		Description:       "embedded OOXML packages",
		RelationshipTypes: []string{RelTypePackage},
		Scope:             ScopeAnywhere,
	},
	{
		Name:              "activex",
		Description:       "ActiveX controls",
		RelationshipTypes: []string{RelTypeControl, RelTypeActiveXBinary},
		Scope:             ScopeAnywhere,
	},
	{
		Name:              "video",
		Description:       "embedded video",
		RelationshipTypes: []string{RelTypeVideo, RelTypeMedia},
		ContentType:       regexp.MustCompile(`^video/`),
		Scope:             ScopeAnywhere,
	},
	{
		Name:              "audio",
		Description:       "embedded audio",
		RelationshipTypes: []string{RelTypeAudio, RelTypeMedia},
		ContentType:       regexp.MustCompile(`^audio/`),
		Scope:             ScopeAnywhere,
	},
	{
		Name:              "external_template",
		Description:       "attached template loaded from outside the package",
		RelationshipTypes: []string{RelTypeAttachedTemplate},
		Targets:           MatchExternal,
	},
	{
		Name:              "external_frames",
		Description:       "frames loaded from outside the package",
		RelationshipTypes: []string{RelTypeFrame},
		Targets:           MatchExternal,
	},
	{
		Name:              "digital_signature",
		Description:       "package digital signature",
		RelationshipTypes: []string{RelTypeDigitalSignature},
		Scope:             ScopeRoot,
	},
}

// Features evaluates every built-in feature.
func (d *Document) Features() []Feature {
	out := make([]Feature, 0, len(BuiltinFeatures))
	for _, def := range BuiltinFeatures {
		out = append(out, d.EvaluateFeature(def))
	}
	return out
}

// HasFeature reports whether the named built-in feature is present.
func (d *Document) HasFeature(name string) bool {
	for _, def := range BuiltinFeatures {
		if def.Name == name {
			return d.EvaluateFeature(def).Present
		}
	}
	return false
}

// EvaluateFeature evaluates def against the graph. A ScopeMainPart
// feature is absent when the package has no usable main Part.
func (d *Document) EvaluateFeature(def FeatureDef) Feature {
	f := Feature{Name: def.Name}
	inScope, ok := d.scopeFilter(def.Scope)
	if !ok {
		return f
	}
	seen := make(map[string]struct{})
	for _, relType := range def.RelationshipTypes {
		for _, r := range d.graph.byType[relType] {
			if !inScope(r.source) {
				continue
			}
			if r.External() {
				if def.Targets != MatchInternal {
					f.External = append(f.External, r.target)
				}
				continue
			}
			if def.Targets == MatchExternal || r.dangling {
				continue
			}
			p, ok := d.store.lookup(r.targetName)
			if !ok {
				continue
			}
			if def.ContentType != nil && (!p.hasContentType || !def.ContentType.MatchString(p.contentType)) {
				continue
			}
			if _, dup := seen[p.name]; dup {
				continue
			}
			seen[p.name] = struct{}{}
			f.Parts = append(f.Parts, p.name)
		}
	}
	sort.Strings(f.Parts)
	f.Present = len(f.Parts) > 0 || len(f.External) > 0
	return f
}

func (d *Document) scopeFilter(scope FeatureScope) (func(string) bool, bool) {
	switch scope {
	case ScopeAnywhere:
		return func(string) bool { return true }, true
	case ScopeRoot:
		return func(src string) bool { return src == PackageRoot }, true
	default:
		main, err := d.MainPart()
		if err != nil {
			return nil, false
		}
		reach := d.graph.reachable(main.name, nil)
		reach[main.name] = struct{}{}
		return func(src string) bool {
			_, ok := reach[src]
			return ok
		}, true
	}
}
