package mirror

import (
	"fmt"
	"strings"

	"github.com/vango-dev/burp/pkg/schema"
)

// Key identifies one entity in the mirror.
type Key struct {
	Kind string `json:"kind"`
	ID   string `json:"id,omitempty"` // Empty for singletons
}

// String returns "kind" or "kind/id".
func (k Key) String() string {
	if k.ID == "" {
		return k.Kind
	}
	return k.Kind + "/" + k.ID
}

// ParseKey parses the String form of a key.
func ParseKey(s string) (Key, error) {
	if s == "" {
		return Key{}, fmt.Errorf("mirror: empty key")
	}
	kind, id, _ := strings.Cut(s, "/")
	if kind == "" {
		return Key{}, fmt.Errorf("mirror: key %q has no kind", s)
	}
	return Key{Kind: kind, ID: id}, nil
}

// Less orders keys by kind, then id.
func (k Key) Less(o Key) bool {
	if k.Kind != o.Kind {
		return k.Kind < o.Kind
	}
	return k.ID < o.ID
}

// keyID joins key field values with "/".
func keyID(parts []schema.Value) string {
	if len(parts) == 0 {
		return ""
	}
	var b strings.Builder
	for i, v := range parts {
		if i > 0 {
			b.WriteByte('/')
		}
		if v.Kind() == schema.KindString {
			b.WriteString(v.Text())
		} else {
			b.WriteString(v.String())
		}
	}
	return b.String()
}
