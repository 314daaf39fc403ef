package opc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// CoreProperties is the package's Dublin Core metadata. Raw holds every
// recognised property as written; the typed fields are filled from it.
// A date that is not valid W3CDTF stays zero and is kept only in Raw.
type CoreProperties struct {
	Title          string
	Subject        string
	Creator        string
	Keywords       string
	Description    string
	LastModifiedBy string
	Revision       string
	Category       string
	ContentStatus  string
	Language       string
	Identifier     string
	Version        string
	Created        time.Time
	Modified       time.Time
	LastPrinted    time.Time

	Raw map[string]string
}

var corePropertyNames = map[string]struct{}{
	"title": {}, "subject": {}, "creator": {}, "keywords": {}, "description": {},
	"lastModifiedBy": {}, "revision": {}, "category": {}, "contentStatus": {},
	"language": {}, "identifier": {}, "version": {},
	"created": {}, "modified": {}, "lastPrinted": {},
}

var w3cdtfLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
}

func parseW3CDTF(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range w3cdtfLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func newCoreProperties(raw map[string]string) CoreProperties {
	c := CoreProperties{
		Title:          raw["title"],
		Subject:        raw["subject"],
		Creator:        raw["creator"],
		Keywords:       raw["keywords"],
		Description:    raw["description"],
		LastModifiedBy: raw["lastModifiedBy"],
		Revision:       raw["revision"],
		Category:       raw["category"],
		ContentStatus:  raw["contentStatus"],
		Language:       raw["language"],
		Identifier:     raw["identifier"],
		Version:        raw["version"],
		Raw:            raw,
	}
	c.Created, _ = parseW3CDTF(raw["created"])
	c.Modified, _ = parseW3CDTF(raw["modified"])
	c.LastPrinted, _ = parseW3CDTF(raw["lastPrinted"])
	return c
}

// Map returns the properties present in the package. Dates that parsed
// are time.Time values; everything else is a string.
func (c CoreProperties) Map() map[string]any {
	m := make(map[string]any, len(c.Raw))
	for k, v := range c.Raw {
		m[k] = v
	}
	for k, t := range map[string]time.Time{"created": c.Created, "modified": c.Modified, "lastPrinted": c.LastPrinted} {
		if !t.IsZero() {
			m[k] = t
		}
	}
	return m
}

// Export implements Exporter. Dates are rendered as RFC 3339 strings.
func (c CoreProperties) Export() map[string]any {
	m := c.Map()
	for k, v := range m {
		if t, ok := v.(time.Time); ok {
			m[k] = t.UTC().Format(time.RFC3339)
		}
	}
	return m
}

// AppProperties is the subset of extended (application) properties that
// matters for triage. Template names the template the document was
// created from, which attackers point at remote locations.
type AppProperties struct {
	Application string
	AppVersion  string
	Company     string
	Manager     string
	Template    string
	TotalTime   string
	Pages       string
	Words       string
	DocSecurity string

	Raw map[string]string
}

var appPropertyNames = map[string]struct{}{
	"Application": {}, "AppVersion": {}, "Company": {}, "Manager": {}, "Template": {},
	"TotalTime": {}, "Pages": {}, "Words": {}, "Characters": {}, "Lines": {},
	"Paragraphs": {}, "Slides": {}, "DocSecurity": {}, "HyperlinkBase": {},
}

// Export implements Exporter.
func (a AppProperties) Export() map[string]any {
	m := make(map[string]any, len(a.Raw))
	for k, v := range a.Raw {
		m[k] = v
	}
	return m
}

// CoreProperties parses the core-properties Part referenced from the
// package root. A package without one yields empty properties and no
// error; an unreadable or malformed Part yields empty properties and an
// error wrapping ErrMalformedManifest or ErrStreamUnavailable.
func (d *Document) CoreProperties() (CoreProperties, error) {
	raw, err := d.flatProperties(corePropertyNames, RelTypeCoreProperties, RelTypeCorePropertiesStrict)
	if err != nil {
		return CoreProperties{Raw: map[string]string{}}, err
	}
	return newCoreProperties(raw), nil
}

// AppProperties parses the extended-properties Part referenced from the
// package root, with the same absent/malformed policy as CoreProperties.
func (d *Document) AppProperties() (AppProperties, error) {
	raw, err := d.flatProperties(appPropertyNames, RelTypeExtendedProperties, RelTypeExtendedPropsStrict)
	if err != nil {
		return AppProperties{Raw: map[string]string{}}, err
	}
	return AppProperties{
		Application: raw["Application"],
		AppVersion:  raw["AppVersion"],
		Company:     raw["Company"],
		Manager:     raw["Manager"],
		Template:    raw["Template"],
		TotalTime:   raw["TotalTime"],
		Pages:       raw["Pages"],
		Words:       raw["Words"],
		DocSecurity: raw["DocSecurity"],
		Raw:         raw,
	}, nil
}

// rootPart returns the first existing target of a root relationship of
// one of types, in declaration order.
func (d *Document) rootPart(types ...string) (*Part, bool) {
	allow := typeSet(types)
	for _, r := range d.graph.out[PackageRoot] {
		if _, ok := allow[r.relType]; !ok || r.External() || r.dangling {
			continue
		}
		if p, ok := d.store.lookup(r.targetName); ok {
			return p, true
		}
	}
	return nil, false
}

func (d *Document) flatProperties(names map[string]struct{}, types ...string) (map[string]string, error) {
	p, ok := d.rootPart(types...)
	if !ok {
		return map[string]string{}, nil
	}
	data, err := readManifest(p, d.limits)
	if err != nil {
		return nil, err
	}
	raw, err := parseFlatProperties(data, names)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedManifest, p.name, err)
	}
	return raw, nil
}

// parseFlatProperties collects the text of the root element's direct
// children whose local names are in names. Nested markup inside a
// property is ignored; only its character data is kept.
func parseFlatProperties(data []byte, names map[string]struct{}) (map[string]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	out := make(map[string]string)
	var (
		depth   int
		current string
		text    strings.Builder
		sawRoot bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				sawRoot = true
			}
			if depth == 2 {
				current = ""
				if _, ok := names[t.Name.Local]; ok {
					current = t.Name.Local
					text.Reset()
				}
			}
		case xml.CharData:
			if depth >= 2 && current != "" {
				text.Write(t)
			}
		case xml.EndElement:
			if depth == 2 && current != "" {
				out[current] = strings.TrimSpace(text.String())
				current = ""
			}
			depth--
		}
	}
	if !sawRoot {
		return nil, errors.New("no root element")
	}
	return out, nil
}
