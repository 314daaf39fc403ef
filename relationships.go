package opc

import (
	"encoding/xml"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Relationship is a typed edge from a source Part (or the package root)
// to a target Part or an external resource. Its identity is the pair
// (Source, ID); IDs are unique only within one manifest.
type Relationship struct {
	source     string
	manifest   string
	id         string
	relType    string
	target     string
	mode       TargetMode
	targetName string
	dangling   bool
}

// Source returns the name of the owning Part, or PackageRoot.
func (r *Relationship) Source() string { return r.source }

// Manifest returns the name of the .rels Part that declared r.
func (r *Relationship) Manifest() string { return r.manifest }

// ID returns the Id attribute, unique within its manifest.
func (r *Relationship) ID() string { return r.id }

// Type returns the relationship type URI.
func (r *Relationship) Type() string { return r.relType }

// Target returns the Target attribute exactly as written.
func (r *Relationship) Target() string { return r.target }

// TargetMode returns whether the target is inside the package.
func (r *Relationship) TargetMode() TargetMode { return r.mode }

// External reports whether the target lies outside the package.
func (r *Relationship) External() bool { return r.mode == TargetExternal }

// TargetName returns the absolute Part name an internal target resolves
// to. It is empty for external targets and for targets that would leave
// the package root.
func (r *Relationship) TargetName() string { return r.targetName }

// Dangling reports whether an internal target has no matching Part.
func (r *Relationship) Dangling() bool { return r.dangling }

// Export implements Exporter.
func (r *Relationship) Export() map[string]any {
	m := map[string]any{
		"source":      r.source,
		"id":          r.id,
		"type":        r.relType,
		"target":      r.target,
		"target_mode": r.mode.String(),
	}
	if r.mode == TargetInternal {
		m["target_name"] = r.targetName
		m["dangling"] = r.dangling
	}
	return m
}

// graph holds every Relationship plus the outgoing, incoming and by-type
// indexes. It is built once and only read afterwards.
type graph struct {
	rels   []*Relationship
	out    map[string][]*Relationship
	in     map[string][]*Relationship
	byType map[string][]*Relationship
}

type xmlRelationships struct {
	XMLName       xml.Name          `xml:"Relationships"`
	Relationships []xmlRelationship `xml:"Relationship"`
}

type xmlRelationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

var errTooManyRelationships = errors.New("relationship limit reached")

// buildGraph parses every .rels Part in the store. Manifests that cannot
// be read or parsed contribute nothing; bad elements are skipped.
func buildGraph(store *partStore, limits Limits) (*graph, []Warning) {
	g := &graph{
		out:    make(map[string][]*Relationship),
		in:     make(map[string][]*Relationship),
		byType: make(map[string][]*Relationship),
	}
	var warns []Warning
	for _, p := range store.sorted {
		source, ok := relsSourceName(p.name)
		if !ok {
			continue
		}
		if source != PackageRoot {
			if _, exists := store.lookup(source); !exists {
				warns = append(warns, Warning{Kind: ErrUnresolvedReference, Part: p.name,
					Message: fmt.Sprintf("relationships manifest describes missing part %s", source)})
			}
		}
		data, err := readManifest(p, limits)
		if err != nil {
			warns = append(warns, Warning{Kind: manifestErrKind(err), Part: p.name, Message: err.Error()})
			continue
		}
		w, err := g.addManifest(store, p.name, source, data, limits)
		warns = append(warns, w...)
		if errors.Is(err, errTooManyRelationships) {
			warns = append(warns, Warning{Kind: ErrLimitExceeded, Part: p.name,
				Message: fmt.Sprintf("more than %d relationships, remaining manifests ignored", limits.MaxRelationships)})
			break
		}
		if err != nil {
			warns = append(warns, Warning{Kind: ErrMalformedManifest, Part: p.name, Message: err.Error()})
		}
	}
	return g, warns
}

func (g *graph) addManifest(store *partStore, manifest, source string, data []byte, limits Limits) ([]Warning, error) {
	var doc xmlRelationships
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("not a relationships document: %v", err)
	}
	var warns []Warning
	if doc.XMLName.Space != "" && doc.XMLName.Space != NamespaceRelationships {
		warns = append(warns, Warning{Kind: ErrMalformedManifest, Part: manifest,
			Message: fmt.Sprintf("unexpected namespace %q", doc.XMLName.Space)})
	}
	seen := make(map[string]struct{}, len(doc.Relationships))
	for i, x := range doc.Relationships {
		if len(g.rels) >= limits.MaxRelationships {
			return warns, errTooManyRelationships
		}
		id := strings.TrimSpace(x.ID)
		if id == "" || strings.TrimSpace(x.Type) == "" || x.Target == "" {
			warns = append(warns, Warning{Kind: ErrMalformedManifest, Part: manifest,
				Message: fmt.Sprintf("relationship #%d lacks Id, Type or Target", i+1)})
			continue
		}
		if _, dup := seen[id]; dup {
			warns = append(warns, Warning{Kind: ErrMalformedManifest, Part: manifest,
				Message: fmt.Sprintf("duplicate relationship Id %q, keeping the first", id)})
			continue
		}
		r := &Relationship{source: source, manifest: manifest, id: id, relType: x.Type, target: x.Target}
		switch x.TargetMode {
		case "", "Internal":
			r.mode = TargetInternal
		case "External":
			r.mode = TargetExternal
		default:
			warns = append(warns, Warning{Kind: ErrMalformedManifest, Part: manifest,
				Message: fmt.Sprintf("relationship %q has unknown TargetMode %q", id, x.TargetMode)})
			continue
		}
		seen[id] = struct{}{}
		if r.mode == TargetInternal {
			if w, ok := g.resolve(store, r); !ok {
				warns = append(warns, w)
			}
		}
		g.add(r)
	}
	return warns, nil
}

// resolve fills in the target Part name. It returns false with a warning
// when the relationship ends up dangling.
func (g *graph) resolve(store *partStore, r *Relationship) (Warning, bool) {
	name, err := resolveTarget(r.source, r.target)
	if err != nil {
		r.dangling = true
		kind := ErrUnresolvedReference
		if errors.Is(err, ErrUnsafePath) {
			kind = ErrUnsafePath
		}
		return Warning{Kind: kind, Part: r.manifest,
			Message: fmt.Sprintf("relationship %q target %q: %v", r.id, r.target, err)}, false
	}
	if escaped, err := resolveEscapedTarget(r.source, r.target); err == nil && escaped != name {
		if _, ok := store.lookup(escaped); ok {
			name = escaped
		}
	}
	r.targetName = name
	if _, ok := store.lookup(name); ok {
		return Warning{}, true
	}
	if store.manifest != nil && store.manifest.name == name {
		return Warning{}, true
	}
	r.dangling = true
	return Warning{Kind: ErrUnresolvedReference, Part: r.manifest,
		Message: fmt.Sprintf("relationship %q target %s does not exist", r.id, name)}, false
}

func (g *graph) add(r *Relationship) {
	g.rels = append(g.rels, r)
	g.out[r.source] = append(g.out[r.source], r)
	if r.targetName != "" {
		g.in[r.targetName] = append(g.in[r.targetName], r)
	}
	g.byType[r.relType] = append(g.byType[r.relType], r)
}

func (g *graph) outgoing(source string) []*Relationship {
	return append([]*Relationship(nil), g.out[source]...)
}

func (g *graph) incoming(target string) []*Relationship {
	return append([]*Relationship(nil), g.in[target]...)
}

func (g *graph) ofType(relType string) []*Relationship {
	return append([]*Relationship(nil), g.byType[relType]...)
}

// reachable returns every Part name reachable from root by following
// internal relationships whose type is in types (any type when types is
// empty). The root itself is included only if a cycle leads back to it.
// A visited set bounds the walk to one visit per name.
func (g *graph) reachable(root string, types []string) map[string]struct{} {
	allow := typeSet(types)
	visited := make(map[string]struct{})
	queue := []string{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, r := range g.out[cur] {
			if r.targetName == "" {
				continue
			}
			if allow != nil {
				if _, ok := allow[r.relType]; !ok {
					continue
				}
			}
			if _, seen := visited[r.targetName]; seen {
				continue
			}
			visited[r.targetName] = struct{}{}
			queue = append(queue, r.targetName)
		}
	}
	return visited
}

func typeSet(types []string) map[string]struct{} {
	if len(types) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set
}

func sortedNames(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// readManifest returns the bytes of an XML manifest Part, refusing Parts
// larger than MaxManifestSize.
func readManifest(p *Part, limits Limits) ([]byte, error) {
	if p.size > limits.MaxManifestSize {
		return nil, fmt.Errorf("%w: manifest declares %d bytes, limit %d", ErrLimitExceeded, p.size, limits.MaxManifestSize)
	}
	return p.Bytes()
}

func manifestErrKind(err error) error {
	if errors.Is(err, ErrLimitExceeded) {
		return ErrLimitExceeded
	}
	return ErrStreamUnavailable
}
