// Package registry holds the static table of known external APIs and
// the lookup functions the rest of the pipeline depends on: entry
// lookup, URL-to-API identification, and the known field-rename and
// endpoint-migration tables.
//
// The registry is immutable after construction. Components receive it
// by injection so tests can substitute a fake table.
package registry

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/isyncso/apidiag/internal/types"
)

// Registry is the immutable configuration for all known external APIs.
type Registry struct {
	entries    []types.APIRegistryEntry
	byID       map[string]types.APIRegistryEntry
	urlPattern map[string]*regexp.Regexp

	// Static knowledge about upstream changes, keyed by API id.
	// These survive even when no live specification is available.
	fieldRenames       map[string]map[string]string
	endpointMigrations map[string]map[string]string
}

// New builds the registry from the compiled-in API table.
func New() *Registry {
	return build(builtinEntries, builtinFieldRenames, builtinEndpointMigrations)
}

// registryFile is the YAML override format. It mirrors the built-in
// tables so deployments can extend or replace them without a rebuild.
type registryFile struct {
	APIs               []types.APIRegistryEntry     `yaml:"apis"`
	FieldRenames       map[string]map[string]string `yaml:"field_renames"`
	EndpointMigrations map[string]map[string]string `yaml:"endpoint_migrations"`
}

// Load reads a YAML registry file and builds a registry from it.
// The file replaces the built-in table entirely.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry file: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing registry file: %w", err)
	}
	if len(file.APIs) == 0 {
		return nil, fmt.Errorf("registry file %s declares no APIs", path)
	}

	return build(file.APIs, file.FieldRenames, file.EndpointMigrations), nil
}

// NewFromEntries builds a registry from explicit tables. Used by tests
// and by callers that assemble configuration programmatically.
func NewFromEntries(entries []types.APIRegistryEntry, renames, migrations map[string]map[string]string) *Registry {
	return build(entries, renames, migrations)
}

func build(entries []types.APIRegistryEntry, renames, migrations map[string]map[string]string) *Registry {
	r := &Registry{
		entries:            make([]types.APIRegistryEntry, 0, len(entries)),
		byID:               make(map[string]types.APIRegistryEntry, len(entries)),
		urlPattern:         make(map[string]*regexp.Regexp, len(entries)),
		fieldRenames:       make(map[string]map[string]string),
		endpointMigrations: make(map[string]map[string]string),
	}

	for _, e := range entries {
		r.entries = append(r.entries, e)
		r.byID[e.ID] = e
		r.urlPattern[e.ID] = hostPattern(e.BaseURLs)
	}

	for apiID, m := range renames {
		r.fieldRenames[apiID] = m
	}
	for apiID, m := range migrations {
		normalized := make(map[string]string, len(m))
		for from, to := range m {
			normalized[types.NormalizePath(from)] = to
		}
		r.endpointMigrations[apiID] = normalized
	}

	return r
}

// hostPattern compiles a regexp matching any of the entry's base URLs
// by host, tolerating scheme and path differences.
func hostPattern(baseURLs []string) *regexp.Regexp {
	var hosts []string
	for _, u := range baseURLs {
		h := strings.TrimPrefix(strings.TrimPrefix(u, "https://"), "http://")
		if i := strings.IndexByte(h, '/'); i >= 0 {
			h = h[:i]
		}
		if h != "" {
			hosts = append(hosts, regexp.QuoteMeta(h))
		}
	}
	if len(hosts) == 0 {
		// Match nothing rather than everything.
		return regexp.MustCompile(`\A\z`)
	}
	return regexp.MustCompile(`(?i)^https?://(` + strings.Join(hosts, "|") + `)(/|$)`)
}

// Entry returns the registry entry for an API id.
func (r *Registry) Entry(id string) (types.APIRegistryEntry, bool) {
	e, ok := r.byID[id]
	return e, ok
}

// ActiveEntries returns all entries marked active, in declaration order.
func (r *Registry) ActiveEntries() []types.APIRegistryEntry {
	var active []types.APIRegistryEntry
	for _, e := range r.entries {
		if e.Active {
			active = append(active, e)
		}
	}
	return active
}

// AllEntries returns every registered entry, in declaration order.
func (r *Registry) AllEntries() []types.APIRegistryEntry {
	out := make([]types.APIRegistryEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// IdentifyAPI matches a full URL against the per-API host patterns and
// returns the owning API id, if any.
func (r *Registry) IdentifyAPI(url string) (string, bool) {
	for _, e := range r.entries {
		if p := r.urlPattern[e.ID]; p != nil && p.MatchString(url) {
			return e.ID, true
		}
	}
	return "", false
}

// FieldRename returns the known successor name for a field, if the
// static rename table has one.
func (r *Registry) FieldRename(apiID, field string) (string, bool) {
	renamed, ok := r.fieldRenames[apiID][field]
	return renamed, ok
}

// EndpointMigration returns the known successor path for an endpoint,
// if the static migration table has one. The lookup normalizes the
// input path.
func (r *Registry) EndpointMigration(apiID, path string) (string, bool) {
	to, ok := r.endpointMigrations[apiID][types.NormalizePath(path)]
	return to, ok
}
