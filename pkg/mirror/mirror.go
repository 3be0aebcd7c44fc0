package mirror

import (
	"slices"
	"sync"

	"github.com/vango-dev/burp/pkg/atom"
	"github.com/vango-dev/burp/pkg/schema"
)

// FieldChange is one field transition within a ChangeEvent.
type FieldChange struct {
	Name string       `json:"name"`
	Old  schema.Value `json:"old"`
	New  schema.Value `json:"new"`
	Had  bool         `json:"had"` // False when the field had no prior value
}

// ChangeEvent describes the fields of one entity changed by one atom. Fields
// of a group arrive together in a single event; ungrouped fields get one
// event each.
type ChangeEvent struct {
	Key        Key           `json:"key"`
	Tag        atom.Tag      `json:"tag"`
	Group      string        `json:"group,omitempty"`
	Fields     []FieldChange `json:"fields"`
	Seq        uint64        `json:"seq"`
	Generation uint64        `json:"generation"`
}

// Field returns the change for name.
func (e ChangeEvent) Field(name string) (FieldChange, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldChange{}, false
}

type entity struct {
	fields map[string]schema.Value
	stale  bool
}

// Mirror is the local copy of switcher state, keyed by entity.
//
// Apply must be called by a single writer in delivery order. Readers may call
// Snapshot, Keys and Export concurrently and always receive copies.
type Mirror struct {
	mu         sync.RWMutex
	entities   map[Key]*entity
	seq        uint64
	generation uint64
}

// New creates an empty mirror.
func New() *Mirror {
	return &Mirror{entities: make(map[Key]*entity)}
}

// Apply merges a decoded record and returns the resulting change events.
// Only fields present in the record are written; fields it does not carry
// keep their previous values. Opaque records and commands are ignored.
func (m *Mirror) Apply(rec *schema.Record) []ChangeEvent {
	if rec == nil || rec.Opaque || rec.Schema == nil || rec.Schema.Command {
		return nil
	}
	s := rec.Schema

	m.mu.Lock()
	defer m.mu.Unlock()

	var events []ChangeEvent

	topKey := make([]schema.Value, 0, 2)
	for _, f := range s.KeyFields() {
		topKey = append(topKey, rec.Fields[f.Name])
	}

	skip := func(f schema.Field) bool {
		if !f.Significant() || f.Key || f.Name == s.MaskField {
			return true
		}
		return s.Array != nil && f.Name == s.Array.CountField
	}

	if hasData(s.Fields, rec.Fields, skip) {
		key := Key{Kind: s.EntityKind(), ID: keyID(topKey)}
		events = m.merge(events, key, rec.Tag, s.Fields, rec.Fields, skip)
	}

	if s.Array != nil {
		kind := s.ElementEntityKind()
		elemKeys := s.ElementKeyFields()
		for i, el := range rec.Elements {
			parts := slices.Clone(topKey)
			for _, f := range elemKeys {
				parts = append(parts, el[f.Name])
			}
			if len(elemKeys) == 0 {
				parts = append(parts, schema.U16(uint16(i)))
			}
			key := Key{Kind: kind, ID: keyID(parts)}
			events = m.merge(events, key, rec.Tag, s.Array.Element, el, func(f schema.Field) bool {
				return !f.Significant() || f.Key
			})
		}
	}

	return events
}

func hasData(fields []schema.Field, values map[string]schema.Value, skip func(schema.Field) bool) bool {
	for _, f := range fields {
		if skip(f) {
			continue
		}
		if _, ok := values[f.Name]; ok {
			return true
		}
	}
	return false
}

// merge writes values into the entity at key and appends events for the
// fields that changed. Caller holds m.mu.
func (m *Mirror) merge(events []ChangeEvent, key Key, tag atom.Tag, fields []schema.Field, values map[string]schema.Value, skip func(schema.Field) bool) []ChangeEvent {
	ent, ok := m.entities[key]
	if !ok {
		ent = &entity{fields: make(map[string]schema.Value, len(fields))}
		m.entities[key] = ent
	}
	ent.stale = false

	var grouped map[string]int // group name to index in events
	for _, f := range fields {
		if skip(f) {
			continue
		}
		v, present := values[f.Name]
		if !present {
			continue
		}
		old, had := ent.fields[f.Name]
		if had && old == v {
			continue
		}
		ent.fields[f.Name] = v
		change := FieldChange{Name: f.Name, Old: old, New: v, Had: had}

		if f.Group != "" {
			if idx, ok := grouped[f.Group]; ok {
				events[idx].Fields = append(events[idx].Fields, change)
				continue
			}
			if grouped == nil {
				grouped = make(map[string]int)
			}
			grouped[f.Group] = len(events)
		}
		m.seq++
		events = append(events, ChangeEvent{
			Key:        key,
			Tag:        tag,
			Group:      f.Group,
			Fields:     []FieldChange{change},
			Seq:        m.seq,
			Generation: m.generation,
		})
	}
	return events
}

// Snapshot returns a copy of the fields known for key.
func (m *Mirror) Snapshot(key Key) (map[string]schema.Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ent, ok := m.entities[key]
	if !ok {
		return nil, false
	}
	out := make(map[string]schema.Value, len(ent.fields))
	for k, v := range ent.fields {
		out[k] = v
	}
	return out, true
}

// Stale reports whether the entity at key was seeded or retained across a
// reset and has not been confirmed by the switcher since.
func (m *Mirror) Stale(key Key) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ent, ok := m.entities[key]
	return ok && ent.stale
}

// Keys returns every known key in order.
func (m *Mirror) Keys() []Key {
	m.mu.RLock()
	keys := make([]Key, 0, len(m.entities))
	for k := range m.entities {
		keys = append(keys, k)
	}
	m.mu.RUnlock()

	slices.SortFunc(keys, func(a, b Key) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	return keys
}

// Len returns the number of entities.
func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entities)
}

// Generation returns the number of resets so far.
func (m *Mirror) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

// Reset discards every entity and starts a new generation.
func (m *Mirror) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entities)
	m.generation++
}

// MarkStale keeps every entity but flags it as unconfirmed and starts a new
// generation. Entities are confirmed again as atoms for them arrive.
func (m *Mirror) MarkStale() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ent := range m.entities {
		ent.stale = true
	}
	m.generation++
}
