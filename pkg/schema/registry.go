package schema

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/vango-dev/burp/pkg/atom"
)

// Registry errors.
var (
	ErrInvalidSchema = errors.New("schema: invalid schema")
	ErrDuplicate     = errors.New("schema: schema already registered")
	ErrFrozen        = errors.New("schema: registry is frozen")
	ErrNoSchema      = errors.New("schema: no schema for tag")
)

// Registry maps atom tags to payload schemas. A tag may carry several
// layouts keyed by the protocol version they were introduced in.
//
// A registry is populated once at startup by atom definition packages and
// then frozen; after Freeze it is read-only and may be shared by any number
// of sessions.
type Registry struct {
	mu      sync.RWMutex
	schemas map[atom.Tag][]*Schema // ascending by Version
	frozen  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		schemas: make(map[atom.Tag][]*Schema),
	}
}

// Register validates and adds a schema.
func (r *Registry) Register(s Schema) error {
	if err := s.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrFrozen
	}
	versions := r.schemas[s.Tag]
	for _, existing := range versions {
		if existing.Version == s.Version {
			return fmt.Errorf("%w: %s", ErrDuplicate, &s)
		}
	}
	versions = append(versions, &s)
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version.Compare(versions[j].Version) < 0
	})
	r.schemas[s.Tag] = versions
	return nil
}

// MustRegister registers every schema and panics on the first error.
func (r *Registry) MustRegister(schemas ...Schema) {
	for _, s := range schemas {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Lookup returns the newest schema for a tag.
func (r *Registry) Lookup(tag atom.Tag) (*Schema, bool) {
	return r.LookupVersion(tag, ProtocolVersion{})
}

// LookupVersion returns the newest schema for tag whose Version is not after
// v. The zero version selects the newest schema.
func (r *Registry) LookupVersion(tag atom.Tag, v ProtocolVersion) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.schemas[tag]
	for i := len(versions) - 1; i >= 0; i-- {
		if v.IsZero() || versions[i].Version.Compare(v) <= 0 {
			return versions[i], true
		}
	}
	return nil, false
}

// Tags returns every registered tag, sorted.
func (r *Registry) Tags() []atom.Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]atom.Tag, 0, len(r.schemas))
	for t := range r.schemas {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].String() < tags[j].String() })
	return tags
}

// Len returns the number of registered tags.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.schemas)
}

// Decode decodes an atom with the newest schema for its tag.
func (r *Registry) Decode(a atom.Atom) (*Record, error) {
	return r.View(ProtocolVersion{}).Decode(a)
}

// View returns the registry as seen by a session that negotiated v.
func (r *Registry) View(v ProtocolVersion) *View {
	return &View{reg: r, version: v}
}

// View is a version-bound, read-only projection of a registry. A session
// selects its view once and keeps it for its lifetime.
type View struct {
	reg     *Registry
	version ProtocolVersion
}

// Version returns the protocol version the view is bound to.
func (v *View) Version() ProtocolVersion {
	return v.version
}

// Registry returns the underlying registry.
func (v *View) Registry() *Registry {
	return v.reg
}

// Lookup returns the schema for tag at the view's version.
func (v *View) Lookup(tag atom.Tag) (*Schema, bool) {
	return v.reg.LookupVersion(tag, v.version)
}

// Decode interprets an atom. For unregistered tags it returns an opaque
// record holding the payload together with an UnknownType error; callers
// should treat that error as a warning.
func (v *View) Decode(a atom.Atom) (*Record, error) {
	s, ok := v.Lookup(a.Tag)
	if !ok {
		return &Record{Tag: a.Tag, Payload: a.Payload, Opaque: true}, atom.UnknownType(a.Tag)
	}
	return s.Decode(a)
}

// Encode builds an atom for tag from field values.
func (v *View) Encode(tag atom.Tag, fields map[string]Value, elements []Element) (atom.Atom, error) {
	s, ok := v.Lookup(tag)
	if !ok {
		return atom.Atom{}, fmt.Errorf("%w: %s", ErrNoSchema, tag)
	}
	return s.Encode(fields, elements)
}
