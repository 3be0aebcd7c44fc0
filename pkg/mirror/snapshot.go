package mirror

import (
	"time"

	"github.com/vango-dev/burp/pkg/schema"
)

// Entry is one entity in an exported snapshot.
type Entry struct {
	Key    Key                     `json:"key"`
	Fields map[string]schema.Value `json:"fields"`
	Stale  bool                    `json:"stale,omitempty"`
}

// Snapshot is a serializable copy of the whole mirror, used to seed a
// warm reconnect.
type Snapshot struct {
	Version    string    `json:"version,omitempty"` // Protocol version the values were read under
	Generation uint64    `json:"generation"`
	TakenAt    time.Time `json:"taken_at"`
	Entries    []Entry   `json:"entries"`
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	return len(s.Entries)
}

// Export copies the mirror.
func (m *Mirror) Export() *Snapshot {
	keys := m.Keys()

	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := &Snapshot{
		Generation: m.generation,
		TakenAt:    time.Now().UTC(),
		Entries:    make([]Entry, 0, len(keys)),
	}
	for _, k := range keys {
		ent, ok := m.entities[k]
		if !ok {
			continue
		}
		fields := make(map[string]schema.Value, len(ent.fields))
		for name, v := range ent.fields {
			fields[name] = v
		}
		snap.Entries = append(snap.Entries, Entry{Key: k, Fields: fields, Stale: ent.stale})
	}
	return snap
}

// Seed loads entries the mirror does not know yet. Seeded entities are
// marked stale: they are a hint until the switcher confirms them, never a
// source of truth. Seed emits no events and returns the number of entities
// added.
func (m *Mirror) Seed(snap *Snapshot) int {
	if snap == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, e := range snap.Entries {
		if _, ok := m.entities[e.Key]; ok {
			continue
		}
		fields := make(map[string]schema.Value, len(e.Fields))
		for name, v := range e.Fields {
			fields[name] = v
		}
		m.entities[e.Key] = &entity{fields: fields, stale: true}
		n++
	}
	return n
}
