// Package manifest implements Hull's declared-capability record: the
// four-array structure an app declares once at load time, and the
// extraction and promise-derivation steps that turn it into sandbox
// primitives (§3, §4.3).
package manifest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// MaxEntries is the per-array cap on a manifest (§3: "each ≤32 entries").
const MaxEntries = 32

var (
	// ErrAlreadyDeclared is returned when the scripted declaration API is
	// called more than once for the same app load.
	ErrAlreadyDeclared = errors.New("manifest: already declared")
	// ErrTooManyEntries is returned when an array exceeds MaxEntries.
	ErrTooManyEntries = errors.New("manifest: array exceeds 32 entries")
	// ErrInvalidEntry is returned for a malformed fs path or host label.
	ErrInvalidEntry = errors.New("manifest: invalid entry")
)

// Manifest is a declared-capability record. A nil *Manifest represents
// "absent": default deny at the capability layer, no sandbox application
// (§3).
type Manifest struct {
	FSRead  []string
	FSWrite []string
	Env     []string
	Hosts   []string
}

// Declaration mirrors the scripted declaration API's argument shape:
// manifest({fs: {read, write}, env, hosts}).
type Declaration struct {
	FS struct {
		Read  []string
		Write []string
	}
	Env   []string
	Hosts []string
}

// New validates a Declaration and constructs a Manifest from it. Every
// array is capped at MaxEntries; filesystem entries are normalized to
// slash-form relative paths, and host entries are lowercased, rejecting
// anything but a DNS-label-form host or the "*" wildcard sentinel.
func New(decl Declaration) (*Manifest, error) {
	fsRead, err := normalizeFSPaths(decl.FS.Read)
	if err != nil {
		return nil, err
	}
	fsWrite, err := normalizeFSPaths(decl.FS.Write)
	if err != nil {
		return nil, err
	}
	env, err := capEntries(decl.Env)
	if err != nil {
		return nil, err
	}
	hosts, err := normalizeHosts(decl.Hosts)
	if err != nil {
		return nil, err
	}

	return &Manifest{
		FSRead:  fsRead,
		FSWrite: fsWrite,
		Env:     env,
		Hosts:   hosts,
	}, nil
}

func capEntries(entries []string) ([]string, error) {
	if len(entries) > MaxEntries {
		return nil, fmt.Errorf("%w: got %d", ErrTooManyEntries, len(entries))
	}
	out := make([]string, len(entries))
	copy(out, entries)
	return out, nil
}

// normalizeFSPaths rejects absolute paths and ".." segments — a manifest
// entry is a relative path within the app base directory, the same
// containment rule the FS capability primitive enforces at call time.
func normalizeFSPaths(paths []string) ([]string, error) {
	capped, err := capEntries(paths)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(capped))
	for _, p := range capped {
		clean := filepath.ToSlash(filepath.Clean(p))
		if filepath.IsAbs(clean) {
			return nil, fmt.Errorf("%w: absolute fs path %q", ErrInvalidEntry, p)
		}
		for _, seg := range strings.Split(clean, "/") {
			if seg == ".." {
				return nil, fmt.Errorf("%w: traversal segment in %q", ErrInvalidEntry, p)
			}
		}
		out = append(out, clean)
	}
	return out, nil
}

// normalizeHosts lowercases each host entry and rejects anything that is
// neither a DNS-label-form host nor the opt-in "*" sentinel.
func normalizeHosts(hosts []string) ([]string, error) {
	capped, err := capEntries(hosts)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(capped))
	for _, h := range capped {
		lower := strings.ToLower(h)
		if lower != "*" && !isDNSLabelForm(lower) {
			return nil, fmt.Errorf("%w: host %q is not DNS-label form", ErrInvalidEntry, h)
		}
		out = append(out, lower)
	}
	return out, nil
}

func isDNSLabelForm(host string) bool {
	if host == "" || len(host) > 253 {
		return false
	}
	labels := strings.Split(host, ".")
	for _, label := range labels {
		if label == "" || len(label) > 63 {
			return false
		}
		for i, r := range label {
			switch {
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			case r == '-' && i != 0 && i != len(label)-1:
			default:
				return false
			}
		}
	}
	return true
}

// IsAbsent reports whether m represents "no manifest declared" — the
// default-deny state.
func IsAbsent(m *Manifest) bool { return m == nil }
