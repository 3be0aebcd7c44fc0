package atom

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a decode failure.
type ErrorKind uint8

const (
	KindTruncated      ErrorKind = iota + 1 // Buffer shorter than declared length
	KindUnknownType                         // Tag has no registered schema
	KindSchemaMismatch                      // Payload disagrees with the schema
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindTruncated:
		return "Truncated"
	case KindUnknownType:
		return "UnknownType"
	case KindSchemaMismatch:
		return "SchemaMismatch"
	default:
		return "Unknown"
	}
}

// Sentinel errors matched by DecodeError via errors.Is.
var (
	ErrTruncated      = errors.New("atom: truncated")
	ErrUnknownType    = errors.New("atom: unknown type")
	ErrSchemaMismatch = errors.New("atom: schema mismatch")
	ErrAtomTooLarge   = errors.New("atom: atom exceeds maximum length")
)

// DecodeError describes why an atom could not be decoded.
// Only UnknownType is non-fatal for the surrounding batch; callers keep the
// opaque payload and carry on.
type DecodeError struct {
	Kind   ErrorKind
	Tag    Tag
	Detail string
}

// Error returns the error message.
func (e *DecodeError) Error() string {
	var tag string
	if e.Tag != (Tag{}) {
		tag = " " + e.Tag.String()
	}
	if e.Detail == "" {
		return fmt.Sprintf("atom:%s: %s", tag, e.Kind)
	}
	return fmt.Sprintf("atom:%s: %s: %s", tag, e.Kind, e.Detail)
}

// Unwrap returns the sentinel matching the error kind.
func (e *DecodeError) Unwrap() error {
	switch e.Kind {
	case KindTruncated:
		return ErrTruncated
	case KindUnknownType:
		return ErrUnknownType
	case KindSchemaMismatch:
		return ErrSchemaMismatch
	default:
		return nil
	}
}

// Fatal reports whether the atom must be dropped.
func (e *DecodeError) Fatal() bool {
	return e.Kind != KindUnknownType
}

// Truncated builds a KindTruncated error.
func Truncated(tag Tag, format string, args ...any) *DecodeError {
	return &DecodeError{Kind: KindTruncated, Tag: tag, Detail: fmt.Sprintf(format, args...)}
}

// UnknownType builds a KindUnknownType error.
func UnknownType(tag Tag) *DecodeError {
	return &DecodeError{Kind: KindUnknownType, Tag: tag}
}

// SchemaMismatch builds a KindSchemaMismatch error.
func SchemaMismatch(tag Tag, format string, args ...any) *DecodeError {
	return &DecodeError{Kind: KindSchemaMismatch, Tag: tag, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns the decode error kind of err, or 0 if err is not a
// DecodeError.
func KindOf(err error) ErrorKind {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}
