package opc

import (
	"fmt"
	"regexp"
	"sort"
)

// Document is the structural model of one package: its Parts, their
// Content-Types and the Relationship graph. It is fully built before Open
// returns and never changes afterwards.
type Document struct {
	store        *partStore
	contentTypes *ContentTypes
	graph        *graph
	warnings     []Warning
	limits       Limits
}

// Parts returns every Part except the Content-Types manifest, sorted by
// name. Callers must not rely on any particular order.
func (d *Document) Parts() []*Part { return d.store.all() }

// Part looks a Part up by name. A name without the leading '/' or with
// redundant segments is normalised first.
func (d *Document) Part(name string) (*Part, bool) {
	if p, ok := d.store.lookup(name); ok {
		return p, true
	}
	norm, _, err := normalizeEntryName(name)
	if err != nil {
		return nil, false
	}
	return d.store.lookup(norm)
}

// ContentTypesPart returns the Content-Types manifest Part, which is
// consumed during construction and not listed by Parts.
func (d *Document) ContentTypesPart() (*Part, bool) {
	return d.store.manifest, d.store.manifest != nil
}

// ContentTypes returns the registry built from the manifest.
func (d *Document) ContentTypes() *ContentTypes { return d.contentTypes }

// Limits returns the effective resource ceilings the Document was built with.
func (d *Document) Limits() Limits { return d.limits }

// Warnings returns every non-fatal anomaly recorded during construction.
func (d *Document) Warnings() []Warning {
	return append([]Warning(nil), d.warnings...)
}

// Relationships returns every Relationship, grouped by manifest in name
// order and in declaration order within a manifest.
func (d *Document) Relationships() []*Relationship {
	return append([]*Relationship(nil), d.graph.rels...)
}

// Outgoing returns the Relationships owned by source (PackageRoot for the
// package-level manifest) in declaration order.
func (d *Document) Outgoing(source string) []*Relationship { return d.graph.outgoing(source) }

// Incoming returns the Relationships whose resolved target is name.
func (d *Document) Incoming(name string) []*Relationship { return d.graph.incoming(name) }

// RelationshipsByType returns every Relationship of the exact type URI.
func (d *Document) RelationshipsByType(relType string) []*Relationship {
	return d.graph.ofType(relType)
}

// PartsByContentType returns the Parts whose resolved media type is ct.
func (d *Document) PartsByContentType(ct string) []*Part {
	return d.store.withContentType(ct)
}

// PartsByContentTypePattern returns the Parts whose media type matches
// the regular expression pattern (Go RE2 syntax, unanchored).
func (d *Document) PartsByContentTypePattern(pattern string) ([]*Part, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("content type pattern: %w", err)
	}
	return d.store.matchingContentType(re), nil
}

// PartsByRelationshipType returns the distinct existing Parts targeted by
// at least one internal Relationship of relType, sorted by name.
func (d *Document) PartsByRelationshipType(relType string) []*Part {
	return d.targetParts(d.graph.byType[relType])
}

// Reachable returns the Parts reachable from root through internal
// Relationships whose type is one of types (any type when none are
// given). Cycles and self-references are followed once.
func (d *Document) Reachable(root string, types ...string) []*Part {
	var out []*Part
	for _, name := range sortedNames(d.graph.reachable(root, types)) {
		if p, ok := d.store.lookup(name); ok {
			out = append(out, p)
		}
	}
	return out
}

// IsReachable reports whether target can be reached from root through
// Relationships whose type is one of types (any type when none are given).
func (d *Document) IsReachable(root, target string, types ...string) bool {
	_, ok := d.graph.reachable(root, types)[target]
	return ok
}

func (d *Document) targetParts(rels []*Relationship) []*Part {
	seen := make(map[string]struct{})
	var out []*Part
	for _, r := range rels {
		if r.dangling || r.targetName == "" {
			continue
		}
		if _, dup := seen[r.targetName]; dup {
			continue
		}
		seen[r.targetName] = struct{}{}
		if p, ok := d.store.lookup(r.targetName); ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
