package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// ProtocolVersion is the firmware protocol version reported by the switcher
// in its version atom.
type ProtocolVersion struct {
	Major uint16
	Minor uint16
}

// IsZero reports whether the version is unset.
func (v ProtocolVersion) IsZero() bool {
	return v.Major == 0 && v.Minor == 0
}

// Compare returns -1, 0 or +1.
func (v ProtocolVersion) Compare(o ProtocolVersion) int {
	switch {
	case v.Major < o.Major:
		return -1
	case v.Major > o.Major:
		return 1
	case v.Minor < o.Minor:
		return -1
	case v.Minor > o.Minor:
		return 1
	default:
		return 0
	}
}

// String returns "major.minor" with a two-digit minor, matching how the
// device firmware is usually quoted (2.30).
func (v ProtocolVersion) String() string {
	return fmt.Sprintf("%d.%02d", v.Major, v.Minor)
}

// ParseVersion parses "major.minor".
func ParseVersion(s string) (ProtocolVersion, error) {
	major, minor, ok := strings.Cut(s, ".")
	if !ok {
		return ProtocolVersion{}, fmt.Errorf("schema: invalid version %q", s)
	}
	ma, err := strconv.ParseUint(major, 10, 16)
	if err != nil {
		return ProtocolVersion{}, fmt.Errorf("schema: invalid version %q: %w", s, err)
	}
	mi, err := strconv.ParseUint(minor, 10, 16)
	if err != nil {
		return ProtocolVersion{}, fmt.Errorf("schema: invalid version %q: %w", s, err)
	}
	return ProtocolVersion{Major: uint16(ma), Minor: uint16(mi)}, nil
}
