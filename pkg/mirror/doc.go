// Package mirror keeps the local copy of switcher state.
//
// Decoded records are merged field by field: a record only overwrites the
// fields it carries, padding is never written, and a merge that changes
// nothing produces no events. Records must be applied in the order the
// reliability layer releases them, since later records for the same entity
// win.
//
// Entities are keyed by the schema's entity kind plus the values of its key
// fields, so several atom types (program input, preview input, transition
// position) can contribute fields to one mix-effect entity.
package mirror
