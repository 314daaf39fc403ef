package opc

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// normalizeEntryName turns a raw archive entry name into a Part name:
// forward slashes, a single leading '/', no '.' or '..' segments. Names
// that climb above the archive root are rejected with ErrUnsafePath.
// changed reports whether the stored name differed from its normal form,
// which legitimate producers never do.
func normalizeEntryName(raw string) (name string, changed bool, err error) {
	s := strings.ReplaceAll(raw, "\\", "/")
	if len(s) > 1 && s[1] == ':' {
		s = s[2:]
	}
	if strings.HasPrefix(s, "/") {
		s = strings.TrimLeft(s, "/")
	}
	segs, err := cleanSegments(nil, s)
	if err != nil {
		return "", true, err
	}
	if len(segs) == 0 {
		return "", true, fmt.Errorf("%w: empty entry name %q", ErrUnsafePath, raw)
	}
	name = "/" + strings.Join(segs, "/")
	return name, name[1:] != raw, nil
}

// cleanSegments appends the segments of p to stack, applying '.' and '..'
// without ever popping past the bottom of stack's root.
func cleanSegments(stack []string, p string) ([]string, error) {
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: %q escapes the package root", ErrUnsafePath, p)
			}
			stack = stack[:len(stack)-1]
		default:
			stack = append(stack, seg)
		}
	}
	return stack, nil
}

// resolveTarget resolves an internal relationship target against the
// directory of its source Part and returns the percent-decoded absolute
// Part name. Root escapes are checked on this decoded form, so encoded
// dot segments cannot climb out either.
func resolveTarget(source, target string) (string, error) {
	return resolveTargetForm(source, target, true)
}

// resolveEscapedTarget resolves target as written. Part names are URIs and
// may be stored still percent-encoded ("a%20b.png"), which only this form
// matches.
func resolveEscapedTarget(source, target string) (string, error) {
	return resolveTargetForm(source, target, false)
}

func resolveTargetForm(source, target string, unescape bool) (string, error) {
	t := target
	if i := strings.IndexAny(t, "#?"); i >= 0 {
		t = t[:i]
	}
	if unescape {
		if u, err := url.PathUnescape(t); err == nil {
			t = u
		}
	}
	t = strings.ReplaceAll(t, "\\", "/")
	if strings.TrimSpace(t) == "" {
		return "", fmt.Errorf("%w: empty target", ErrUnresolvedReference)
	}
	var base []string
	if !strings.HasPrefix(t, "/") {
		base, _ = cleanSegments(nil, partDir(source))
	}
	segs, err := cleanSegments(base, t)
	if err != nil {
		return "", err
	}
	if len(segs) == 0 {
		return "", fmt.Errorf("%w: target %q resolves to the package root", ErrUnresolvedReference, target)
	}
	return "/" + strings.Join(segs, "/"), nil
}

// partDir returns the directory holding name ("/" for top-level Parts and
// for the package root itself).
func partDir(name string) string {
	if name == PackageRoot {
		return PackageRoot
	}
	return path.Dir(name)
}

// relsSourceName maps a relationships manifest name to the Part it
// describes: /dir/_rels/base.rels describes /dir/base and /_rels/.rels
// describes the package root. ok is false for names not following the
// convention.
func relsSourceName(name string) (source string, ok bool) {
	dir, file := path.Split(name)
	if !strings.EqualFold(path.Ext(file), relsSuffix) {
		return "", false
	}
	dir = strings.TrimSuffix(dir, "/")
	if !strings.EqualFold(path.Base(dir), relsDir) {
		return "", false
	}
	parent := path.Dir(dir)
	base := file[:len(file)-len(relsSuffix)]
	if base == "" {
		if parent != "/" {
			return "", false
		}
		return PackageRoot, true
	}
	return path.Join(parent, base), true
}

// extension returns the lower-cased text after the last '.' of the final
// name segment, or "" when there is none.
func extension(name string) string {
	base := path.Base(name)
	i := strings.LastIndexByte(base, '.')
	if i < 0 || i == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[i+1:])
}
