package packet

// NextID returns the id following id, wrapping after MaxID.
func NextID(id uint16) uint16 {
	return (id + 1) & MaxID
}

// Diff returns the signed distance from b to a in the 15-bit id space.
// Positive means a is after b. Distances are folded into
// [-(MaxID+1)/2, (MaxID+1)/2).
func Diff(a, b uint16) int {
	d := int((a - b) & MaxID)
	if d >= (MaxID+1)/2 {
		d -= MaxID + 1
	}
	return d
}

// After reports whether a comes after b.
func After(a, b uint16) bool {
	return Diff(a, b) > 0
}
