// Package registry loads a directory of agent-definition documents
// into an immutable, name-indexed registry. Construction is the only
// mutation: once built, a Registry is safe for concurrent readers
// without locking, and refreshing means building a new one.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/Strob0t/RepoWarden/internal/domain/agentdef"
	"github.com/Strob0t/RepoWarden/internal/domain/permission"
)

// ParseWarning records one skipped document. Invalid documents never
// fail the registry as a whole.
type ParseWarning struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Registry is the read-only index of loaded agent definitions.
type Registry struct {
	defs    map[string]*agentdef.Definition
	names   []string // sorted
	skipped []ParseWarning
}

// Get returns the definition for name, or nil if unknown.
func (r *Registry) Get(name string) *agentdef.Definition {
	return r.defs[name]
}

// ListAll returns every loaded definition, ordered by name.
func (r *Registry) ListAll() []*agentdef.Definition {
	out := make([]*agentdef.Definition, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.defs[n])
	}
	return out
}

// ListByClass returns the definitions of the given class, ordered by
// name.
func (r *Registry) ListByClass(class permission.Class) []*agentdef.Definition {
	var out []*agentdef.Definition
	for _, n := range r.names {
		if r.defs[n].Class == class {
			out = append(out, r.defs[n])
		}
	}
	return out
}

// Names returns the sorted agent names.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Skipped returns the documents that failed to parse, for diagnostics.
func (r *Registry) Skipped() []ParseWarning {
	out := make([]ParseWarning, len(r.skipped))
	copy(out, r.skipped)
	return out
}

// Loader builds registries. It keeps an in-process cache of parsed
// definitions keyed by content hash, so reloading an unchanged
// directory skips reparsing.
type Loader struct {
	cache *ristretto.Cache[string, *agentdef.Definition]
}

// NewLoader creates a Loader with a bounded parse cache.
func NewLoader() (*Loader, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, *agentdef.Definition]{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("parse cache: %w", err)
	}
	return &Loader{cache: cache}, nil
}

// Close releases the parse cache.
func (l *Loader) Close() {
	l.cache.Close()
}

// Load reads every definition document under dir. Result is
// independent of filesystem iteration order: documents are processed
// in sorted name order and indexed by agent name. A missing directory
// is an error; an invalid document is skipped with a warning.
func (l *Loader) Load(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read agents directory %s: %w", dir, err)
	}

	reg := &Registry{defs: map[string]*agentdef.Definition{}}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".md" && ext != ".txt" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		def, err := l.loadOne(path)
		if err != nil {
			reg.skipped = append(reg.skipped, ParseWarning{Path: path, Reason: err.Error()})
			continue
		}
		if _, dup := reg.defs[def.Name]; dup {
			reg.skipped = append(reg.skipped, ParseWarning{
				Path:   path,
				Reason: fmt.Sprintf("duplicate agent name %q", def.Name),
			})
			continue
		}
		reg.defs[def.Name] = def
	}

	reg.names = make([]string, 0, len(reg.defs))
	for n := range reg.defs {
		reg.names = append(reg.names, n)
	}
	sort.Strings(reg.names)

	// Make buffered cache writes visible to the next load cycle.
	l.cache.Wait()

	return reg, nil
}

// loadOne parses a single document, consulting the parse cache by
// content hash first. Cache entries are immutable definitions; only
// the source path is refreshed on a hit.
func (l *Loader) loadOne(path string) (*agentdef.Definition, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the configured agents dir
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	hash := agentdef.Hash(data)
	if cached, ok := l.cache.Get(hash); ok {
		def := *cached
		def.SourcePath = path
		return &def, nil
	}

	def, err := agentdef.Parse(data, path)
	if err != nil {
		return nil, err
	}
	l.cache.Set(hash, def, 1)
	return def, nil
}

// LoadOnce builds a registry without a shared loader. Convenience for
// callers that load a single time.
func LoadOnce(dir string) (*Registry, error) {
	l, err := NewLoader()
	if err != nil {
		return nil, err
	}
	defer l.Close()
	return l.Load(dir)
}
