package opc

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
)

// RuleKind distinguishes the two Content-Type rule forms.
type RuleKind uint8

const (
	RuleDefault  RuleKind = iota // extension -> media type
	RuleOverride                 // exact Part name -> media type
)

func (k RuleKind) String() string {
	if k == RuleOverride {
		return "Override"
	}
	return "Default"
}

// Rule is one Default or Override entry of the Content-Types manifest.
// Key is the lower-cased extension for Defaults and the normalised Part
// name for Overrides.
type Rule struct {
	Kind        RuleKind
	Key         string
	ContentType string
}

// Export implements Exporter.
func (r Rule) Export() map[string]any {
	m := map[string]any{"kind": r.Kind.String(), "content_type": r.ContentType}
	if r.Kind == RuleOverride {
		m["part_name"] = r.Key
	} else {
		m["extension"] = r.Key
	}
	return m
}

// ContentTypes resolves Part names to media types. It is immutable once
// built; a missing or malformed manifest yields an empty registry.
type ContentTypes struct {
	defaults  map[string]string // lower-cased extension
	overrides map[string]string // exact normalised name
	folded    map[string]string // case-folded name, for tolerant lookup
	rules     []Rule
}

type xmlTypes struct {
	XMLName   xml.Name      `xml:"Types"`
	Defaults  []xmlDefault  `xml:"Default"`
	Overrides []xmlOverride `xml:"Override"`
}

type xmlDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type xmlOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

func newContentTypes() *ContentTypes {
	return &ContentTypes{
		defaults:  make(map[string]string),
		overrides: make(map[string]string),
		folded:    make(map[string]string),
	}
}

// parseContentTypes builds a registry from manifest XML. A document that
// is not well-formed, or whose root is not <Types>, yields an empty
// registry and a single error; individual bad rules are skipped and
// reported in warns.
func parseContentTypes(data []byte) (ct *ContentTypes, warns []Warning, err error) {
	ct = newContentTypes()
	var doc xmlTypes
	if err := xml.Unmarshal(data, &doc); err != nil {
		return ct, nil, fmt.Errorf("%w: content types: %v", ErrMalformedManifest, err)
	}
	if doc.XMLName.Space != "" && doc.XMLName.Space != NamespaceContentTypes {
		warns = append(warns, Warning{Kind: ErrMalformedManifest, Part: ContentTypesPartName,
			Message: fmt.Sprintf("unexpected namespace %q", doc.XMLName.Space)})
	}
	for _, d := range doc.Defaults {
		ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d.Extension), "."))
		if ext == "" || strings.TrimSpace(d.ContentType) == "" {
			warns = append(warns, Warning{Kind: ErrMalformedManifest, Part: ContentTypesPartName,
				Message: fmt.Sprintf("Default rule missing Extension or ContentType (%q, %q)", d.Extension, d.ContentType)})
			continue
		}
		if prev, dup := ct.defaults[ext]; dup && prev != d.ContentType {
			warns = append(warns, Warning{Kind: ErrMalformedManifest, Part: ContentTypesPartName,
				Message: fmt.Sprintf("conflicting Default rules for extension %q", ext)})
		}
		ct.defaults[ext] = d.ContentType
		ct.rules = append(ct.rules, Rule{Kind: RuleDefault, Key: ext, ContentType: d.ContentType})
	}
	for _, o := range doc.Overrides {
		if strings.TrimSpace(o.ContentType) == "" {
			warns = append(warns, Warning{Kind: ErrMalformedManifest, Part: ContentTypesPartName,
				Message: fmt.Sprintf("Override rule for %q has no ContentType", o.PartName)})
			continue
		}
		name, _, err := normalizeEntryName(o.PartName)
		if err != nil {
			warns = append(warns, Warning{Kind: ErrMalformedManifest, Part: ContentTypesPartName,
				Message: fmt.Sprintf("Override rule has invalid PartName %q", o.PartName)})
			continue
		}
		if prev, dup := ct.overrides[name]; dup && prev != o.ContentType {
			warns = append(warns, Warning{Kind: ErrMalformedManifest, Part: ContentTypesPartName,
				Message: fmt.Sprintf("conflicting Override rules for %q", name)})
		}
		ct.overrides[name] = o.ContentType
		ct.folded[strings.ToLower(name)] = o.ContentType
		ct.rules = append(ct.rules, Rule{Kind: RuleOverride, Key: name, ContentType: o.ContentType})
	}
	return ct, warns, nil
}

// Resolve returns the media type for a Part name: an Override for the
// exact name wins, then a case-insensitive Override match (Part names are
// case-insensitive in OPC), then the Default for the name's extension.
func (ct *ContentTypes) Resolve(name string) (string, bool) {
	if v, ok := ct.overrides[name]; ok {
		return v, true
	}
	if v, ok := ct.folded[strings.ToLower(name)]; ok {
		return v, true
	}
	if ext := extension(name); ext != "" {
		if v, ok := ct.defaults[ext]; ok {
			return v, true
		}
	}
	return "", false
}

// Rules returns every accepted rule in manifest order.
func (ct *ContentTypes) Rules() []Rule {
	return append([]Rule(nil), ct.rules...)
}

// Extensions returns the extensions that have a Default rule, sorted.
func (ct *ContentTypes) Extensions() []string {
	out := make([]string, 0, len(ct.defaults))
	for ext := range ct.defaults {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Empty reports whether the registry holds no rules at all.
func (ct *ContentTypes) Empty() bool { return len(ct.rules) == 0 }
