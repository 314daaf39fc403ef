package opc

import (
	"errors"
	"testing"
	"time"
)

func TestCoreProperties(t *testing.T) {
	doc := sampleDocument(t)
	core, err := doc.CoreProperties()
	if err != nil {
		t.Fatal(err)
	}
	if core.Title != "Quarterly report" || core.Creator != "alice" || core.LastModifiedBy != "bob" || core.Revision != "3" {
		t.Fatalf("core %+v", core)
	}
	if want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC); !core.Created.Equal(want) {
		t.Fatalf("created %v", core.Created)
	}
	if !core.Modified.IsZero() {
		t.Fatalf("invalid date parsed as %v", core.Modified)
	}
	if core.Raw["modified"] != "not a date" {
		t.Fatalf("raw modified %q", core.Raw["modified"])
	}
	if want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC); !core.LastPrinted.Equal(want) {
		t.Fatalf("lastPrinted %v", core.LastPrinted)
	}

	m := core.Map()
	if _, ok := m["created"].(time.Time); !ok {
		t.Fatalf("created not a time in Map: %T", m["created"])
	}
	if m["modified"] != "not a date" {
		t.Fatalf("modified %v", m["modified"])
	}
	exp := core.Export()
	if exp["created"] != "2024-01-02T03:04:05Z" {
		t.Fatalf("export created %v", exp["created"])
	}
}

func TestParseW3CDTF(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-01-02T03:04:05Z", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), true},
		{"2024-01-02T03:04:05.25+02:00", time.Date(2024, 1, 2, 1, 4, 5, 250_000_000, time.UTC), true},
		{"2024-01-02T03:04Z", time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC), true},
		{"2024-01-02", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"2024", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{" 2024-05 ", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), true},
		{"yesterday", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, c := range cases {
		got, ok := parseW3CDTF(c.in)
		if ok != c.ok || !got.Equal(c.want) {
			t.Fatalf("parseW3CDTF(%q) = %v, %v", c.in, got, ok)
		}
	}
}

func TestAppProperties(t *testing.T) {
	app, err := sampleDocument(t).AppProperties()
	if err != nil {
		t.Fatal(err)
	}
	if app.Template != "Normal.dotm" || app.Application != "Microsoft Office Word" || app.Company != "Example Corp" || app.Pages != "2" {
		t.Fatalf("app %+v", app)
	}
	if app.Export()["TotalTime"] != "12" {
		t.Fatalf("export %v", app.Export())
	}
}

func TestProperties_Absent(t *testing.T) {
	entries := withEntry(sampleEntries(), zipEntry{name: "_rels/.rels", data: relsXML(rel("rId1", RelTypeOfficeDocument, "word/document.xml"))})
	doc := openEntries(t, entries)
	core, err := doc.CoreProperties()
	if err != nil {
		t.Fatal(err)
	}
	if len(core.Raw) != 0 || core.Title != "" {
		t.Fatalf("core %+v", core)
	}
	app, err := doc.AppProperties()
	if err != nil || len(app.Raw) != 0 {
		t.Fatalf("app %+v %v", app, err)
	}
}

func TestProperties_Malformed(t *testing.T) {
	entries := withEntry(sampleEntries(), zipEntry{name: "docProps/core.xml", data: `<cp:coreProperties><dc:title>x</cp:coreProperties>`})
	entries = withEntry(entries, zipEntry{name: "docProps/app.xml", data: ``})
	doc := openEntries(t, entries)
	core, err := doc.CoreProperties()
	if !errors.Is(err, ErrMalformedManifest) {
		t.Fatalf("expected ErrMalformedManifest, got %v", err)
	}
	if core.Raw == nil || len(core.Raw) != 0 {
		t.Fatalf("core %+v", core)
	}
	if _, err := doc.AppProperties(); !errors.Is(err, ErrMalformedManifest) {
		t.Fatalf("expected ErrMalformedManifest, got %v", err)
	}
	// The Document itself is still usable.
	exp := doc.Export()
	if _, ok := exp["core_properties_error"]; !ok {
		t.Fatalf("export %v", exp)
	}
}

func TestProperties_NestedMarkupKeepsText(t *testing.T) {
	raw, err := parseFlatProperties([]byte(`<Properties><Company><b>Acme</b> Ltd</Company><Unknown>x</Unknown></Properties>`), appPropertyNames)
	if err != nil {
		t.Fatal(err)
	}
	if raw["Company"] != "Acme Ltd" {
		t.Fatalf("company %q", raw["Company"])
	}
	if _, ok := raw["Unknown"]; ok {
		t.Fatal("unknown property kept")
	}
}
