package packet

import (
	"fmt"

	"github.com/vango-dev/burp/pkg/atom"
)

// Batch groups atoms into runs that each fit in one packet payload of at
// most maxPayload bytes, preserving order. A maxPayload of zero or above
// MaxPayloadSize is clamped to MaxPayloadSize.
func Batch(atoms []atom.Atom, maxPayload int) ([][]atom.Atom, error) {
	if maxPayload <= 0 || maxPayload > MaxPayloadSize {
		maxPayload = MaxPayloadSize
	}

	var batches [][]atom.Atom
	var cur []atom.Atom
	size := 0
	for _, a := range atoms {
		n := a.Len()
		if n > maxPayload {
			return nil, fmt.Errorf("%w: %s is %d bytes, packet room is %d", atom.ErrAtomTooLarge, a.Tag, n, maxPayload)
		}
		if size+n > maxPayload {
			batches = append(batches, cur)
			cur = nil
			size = 0
		}
		cur = append(cur, a)
		size += n
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches, nil
}
