// Package permission defines the capability model for RepoWarden agents.
// Every agent class maps to exactly one capability set; write access is
// checked path-by-path with disallow entries taking precedence.
package permission

import (
	"path"
	"strings"
)

// Class categorizes an agent by the capabilities it needs.
type Class string

const (
	ClassReadOnlyScan      Class = "READ_ONLY_SCAN"
	ClassPlanningSynthesis Class = "PLANNING_SYNTHESIS"
	ClassRegistryState     Class = "REGISTRY_STATE"
	ClassWriteGated        Class = "WRITE_GATED"
	ClassControlPlane      Class = "CONTROL_PLANE"
)

// Classes returns all known agent classes.
func Classes() []Class {
	return []Class{
		ClassReadOnlyScan,
		ClassPlanningSynthesis,
		ClassRegistryState,
		ClassWriteGated,
		ClassControlPlane,
	}
}

// IsValid returns true if c is one of the five known classes.
func (c Class) IsValid() bool {
	switch c {
	case ClassReadOnlyScan, ClassPlanningSynthesis, ClassRegistryState,
		ClassWriteGated, ClassControlPlane:
		return true
	}
	return false
}

// Permissions is the capability set derived from an agent class.
type Permissions struct {
	CanRead           bool     `json:"can_read"`
	CanWrite          bool     `json:"can_write"`
	CanNetwork        bool     `json:"can_network"`
	AllowedWritePaths []string `json:"allowed_write_paths,omitempty"`
	DisallowedPaths   []string `json:"disallowed_paths,omitempty"`
}

// Internal storage prefixes owned by RepoWarden inside a governed repository.
const (
	StatePrefix  = ".warden/state/"
	LedgerPrefix = ".warden/ledger/"
	CachePrefix  = ".warden/cache/"
	AgentsPrefix = ".warden/agents/"
)

// Derive maps an agent class to its capability set. It is total: an
// unrecognized class resolves to the most restrictive set rather than
// an error, so new classes fail closed.
func Derive(class Class) Permissions {
	switch class {
	case ClassReadOnlyScan, ClassPlanningSynthesis:
		return Permissions{CanRead: true}
	case ClassRegistryState:
		return Permissions{
			CanRead:           true,
			CanWrite:          true,
			AllowedWritePaths: []string{StatePrefix, LedgerPrefix},
		}
	case ClassWriteGated:
		return Permissions{
			CanRead:           true,
			CanWrite:          true,
			AllowedWritePaths: []string{"content/", "artifacts/", CachePrefix},
			DisallowedPaths: []string{
				"src/", "internal/", "cmd/", "lib/",
				"config/", "docs/", "test/", "tests/",
				"scripts/", "assets/",
			},
		}
	case ClassControlPlane:
		return Permissions{
			CanRead:           true,
			CanWrite:          true,
			AllowedWritePaths: []string{".warden/", AgentsPrefix},
		}
	default:
		return Permissions{CanRead: true}
	}
}

// CheckWrite reports whether a write to the given repository-relative
// path is permitted. A write is allowed iff CanWrite is set, the path
// prefix-matches at least one allowed entry, and matches no disallowed
// entry. Disallow always wins when both match.
func (p Permissions) CheckWrite(target string) bool {
	if !p.CanWrite {
		return false
	}
	norm := normalize(target)
	for _, deny := range p.DisallowedPaths {
		if matchPrefix(deny, norm) {
			return false
		}
	}
	for _, allow := range p.AllowedWritePaths {
		if matchPrefix(allow, norm) {
			return true
		}
	}
	return false
}

// normalize cleans a path to slash-separated, repository-relative form.
func normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

// matchPrefix checks whether target falls under the given prefix entry.
// A trailing slash marks a directory prefix; a bare entry matches the
// exact path or anything beneath it.
func matchPrefix(prefix, target string) bool {
	prefix = normalize(prefix)
	if prefix == "" {
		return false
	}
	if target == prefix {
		return true
	}
	return strings.HasPrefix(target, prefix+"/")
}
