package opc

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// partStore is the authoritative Part set of one Document.
type partStore struct {
	parts         map[string]*Part
	sorted        []*Part
	manifest      *Part
	byContentType map[string][]*Part
}

// buildPartStore turns container entries into Parts. Directory entries
// are dropped and the Content-Types manifest is kept aside. Duplicate
// names keep the last entry seen.
func buildPartStore(entries []entry) (*partStore, []Warning) {
	s := &partStore{parts: make(map[string]*Part, len(entries))}
	var warns []Warning
	for _, e := range entries {
		if e.dir {
			continue
		}
		p := &Part{
			name:           e.name,
			size:           e.size,
			compressedSize: e.compressedSize,
			method:         e.method,
			open:           e.open,
			unavailable:    e.unavailable,
		}
		if strings.EqualFold(e.name, ContentTypesPartName) {
			if s.manifest != nil {
				warns = append(warns, Warning{Kind: ErrSuspiciousContainer, Part: e.name,
					Message: "duplicate content types manifest, keeping the last"})
			}
			s.manifest = p
			continue
		}
		if _, dup := s.parts[e.name]; dup {
			warns = append(warns, Warning{Kind: ErrSuspiciousContainer, Part: e.name,
				Message: fmt.Sprintf("duplicate entry %q, keeping the last", e.rawName)})
		}
		s.parts[e.name] = p
	}
	s.sorted = make([]*Part, 0, len(s.parts))
	for _, p := range s.parts {
		s.sorted = append(s.sorted, p)
	}
	sort.Slice(s.sorted, func(i, j int) bool { return s.sorted[i].name < s.sorted[j].name })
	return s, warns
}

// assignContentTypes resolves every Part against ct and builds the
// by-Content-Type index. It runs once, before the store is shared.
func (s *partStore) assignContentTypes(ct *ContentTypes) []Warning {
	var warns []Warning
	s.byContentType = make(map[string][]*Part)
	for _, p := range s.sorted {
		p.contentType, p.hasContentType = ct.Resolve(p.name)
		if !p.hasContentType {
			if !ct.Empty() {
				warns = append(warns, Warning{Kind: ErrUnresolvedReference, Part: p.name,
					Message: "no content type rule matches"})
			}
			continue
		}
		s.byContentType[p.contentType] = append(s.byContentType[p.contentType], p)
	}
	if s.manifest != nil {
		s.manifest.contentType, s.manifest.hasContentType = ct.Resolve(s.manifest.name)
	}
	return warns
}

func (s *partStore) lookup(name string) (*Part, bool) {
	p, ok := s.parts[name]
	return p, ok
}

func (s *partStore) all() []*Part {
	return append([]*Part(nil), s.sorted...)
}

func (s *partStore) withContentType(ct string) []*Part {
	return append([]*Part(nil), s.byContentType[ct]...)
}

func (s *partStore) matchingContentType(re *regexp.Regexp) []*Part {
	var out []*Part
	for _, p := range s.sorted {
		if p.hasContentType && re.MatchString(p.contentType) {
			out = append(out, p)
		}
	}
	return out
}
