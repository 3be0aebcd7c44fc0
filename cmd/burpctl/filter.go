package main

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	burperrors "github.com/vango-dev/burp/internal/errors"
	"github.com/vango-dev/burp/pkg/mirror"
	"github.com/vango-dev/burp/pkg/schema"
)

// eventFilter selects change events with an expr-lang expression over
//
//	key     "kind" or "kind/id"
//	kind    entity kind
//	id      entity id, empty for singletons
//	tag     atom tag, e.g. "PrgI"
//	group   field group, if any
//	fields  new values by field name
//	old     previous values of fields that had one
//
// for example `kind == "me" && fields.program == 4`.
type eventFilter struct {
	program *vm.Program
}

func filterEnv(ev mirror.ChangeEvent) map[string]any {
	fields := make(map[string]any, len(ev.Fields))
	old := make(map[string]any, len(ev.Fields))
	for _, f := range ev.Fields {
		fields[f.Name] = nativeValue(f.New)
		if f.Had {
			old[f.Name] = nativeValue(f.Old)
		}
	}
	return map[string]any{
		"key":    ev.Key.String(),
		"kind":   ev.Key.Kind,
		"id":     ev.Key.ID,
		"tag":    ev.Tag.String(),
		"group":  ev.Group,
		"fields": fields,
		"old":    old,
	}
}

// newEventFilter compiles src. An empty src matches everything.
func newEventFilter(src string) (*eventFilter, error) {
	if src == "" {
		return &eventFilter{}, nil
	}
	program, err := expr.Compile(src, expr.Env(filterEnv(mirror.ChangeEvent{})), expr.AsBool())
	if err != nil {
		return nil, burperrors.New("B302").WithDetail(err.Error()).Wrap(err)
	}
	return &eventFilter{program: program}, nil
}

// Match reports whether ev passes the filter. A runtime error, such as a
// comparison against a field the event does not carry, is a mismatch.
func (f *eventFilter) Match(ev mirror.ChangeEvent) bool {
	if f.program == nil {
		return true
	}
	out, err := expr.Run(f.program, filterEnv(ev))
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

// nativeValue converts a field value to the Go type expressions compare
// against.
func nativeValue(v schema.Value) any {
	k := v.Kind()
	switch {
	case k.Unsigned():
		return int(v.Uint())
	case k.Signed():
		return int(v.Int())
	case k == schema.KindBool:
		return v.Bool()
	case k == schema.KindString:
		return v.Text()
	case k == schema.KindBytes:
		return v.RawBytes()
	default:
		return nil
	}
}
