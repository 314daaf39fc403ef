package opc

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Limits bounds the resources a single Document may consume. A zero field
// selects the documented default, so Limits{} is always safe.
type Limits struct {
	MaxArchiveSize   uint64 // raw archive bytes accepted by OpenFile and Decode
	MaxEntries       int    // archive entries ingested; the rest are dropped with a warning
	MaxEntrySize     uint64 // decompressed bytes per entry
	MaxTotalSize     uint64 // decompressed bytes across all entries
	MaxManifestSize  uint64 // XML parts parsed into memory (content types, rels, properties)
	MaxRelationships int    // relationships kept across all manifests
}

// DefaultLimits returns the ceilings used when a field is left at zero.
func DefaultLimits() Limits {
	return Limits{
		MaxArchiveSize:   1 << 30,   // 1 GiB
		MaxEntries:       10_000,
		MaxEntrySize:     256 << 20, // 256 MiB
		MaxTotalSize:     2 << 30,   // 2 GiB
		MaxManifestSize:  16 << 20,  // 16 MiB
		MaxRelationships: 100_000,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxArchiveSize == 0 {
		l.MaxArchiveSize = d.MaxArchiveSize
	}
	if l.MaxEntries == 0 {
		l.MaxEntries = d.MaxEntries
	}
	if l.MaxEntrySize == 0 {
		l.MaxEntrySize = d.MaxEntrySize
	}
	if l.MaxTotalSize == 0 {
		l.MaxTotalSize = d.MaxTotalSize
	}
	if l.MaxManifestSize == 0 {
		l.MaxManifestSize = d.MaxManifestSize
	}
	if l.MaxRelationships == 0 {
		l.MaxRelationships = d.MaxRelationships
	}
	return l
}

type limitsFile struct {
	MaxArchiveSize   byteSize `yaml:"max_archive_size"`
	MaxEntries       int      `yaml:"max_entries"`
	MaxEntrySize     byteSize `yaml:"max_entry_size"`
	MaxTotalSize     byteSize `yaml:"max_total_size"`
	MaxManifestSize  byteSize `yaml:"max_manifest_size"`
	MaxRelationships int      `yaml:"max_relationships"`
}

// ParseLimits reads Limits from a YAML document such as:
//
//	max_entries: 5000
//	max_entry_size: 64MiB
//	max_total_size: 1GB
//
// Unknown keys are rejected. Omitted keys keep their defaults.
func ParseLimits(data []byte) (Limits, error) {
	var f limitsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if strings.TrimSpace(string(data)) == "" {
			return DefaultLimits(), nil
		}
		return Limits{}, fmt.Errorf("parse limits: %w", err)
	}
	if f.MaxEntries < 0 || f.MaxRelationships < 0 {
		return Limits{}, fmt.Errorf("parse limits: counts must not be negative")
	}
	l := Limits{
		MaxArchiveSize:   uint64(f.MaxArchiveSize),
		MaxEntries:       f.MaxEntries,
		MaxEntrySize:     uint64(f.MaxEntrySize),
		MaxTotalSize:     uint64(f.MaxTotalSize),
		MaxManifestSize:  uint64(f.MaxManifestSize),
		MaxRelationships: f.MaxRelationships,
	}
	return l.withDefaults(), nil
}

type byteSize uint64

var sizeUnits = []struct {
	suffix string
	mult   uint64
}{
	{"KiB", 1 << 10},
	{"MiB", 1 << 20},
	{"GiB", 1 << 30},
	{"KB", 1000},
	{"MB", 1000 * 1000},
	{"GB", 1000 * 1000 * 1000},
	{"B", 1},
}

func (s *byteSize) UnmarshalYAML(node *yaml.Node) error {
	v, err := parseByteSize(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*s = byteSize(v)
	return nil
}

func parseByteSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	mult := uint64(1)
	for _, u := range sizeUnits {
		if strings.HasSuffix(s, u.suffix) {
			mult = u.mult
			s = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			break
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	if n != 0 && n > ^uint64(0)/mult {
		return 0, fmt.Errorf("size %q overflows", s)
	}
	return n * mult, nil
}
