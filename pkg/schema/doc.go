// Package schema describes atom payload layouts and holds the registry that
// maps atom tags to them.
//
// A Schema lists typed fields at fixed byte offsets. Fields flagged as
// Padding are alignment filler: they are never read, and they are written
// as zero. Everything else is significant and survives an encode/decode
// round trip. A schema may end in a variable-length Array of fixed-size
// elements whose count comes from an explicit count field or from the
// payload length. When both are present and disagree the count field wins
// and the record carries a warning.
//
// Fields can be gated by bits of a mask field. A masked field is only
// present when its bits are set, which lets partial updates leave the rest
// of an entity untouched.
//
// Registries are built once:
//
//	reg := schema.NewRegistry()
//	reg.MustRegister(schema.Schema{
//	    Tag:    atom.MustTag("DCut"),
//	    Size:   4,
//	    Fields: []schema.Field{schema.U8Field("me", 0).AsKey(), schema.Pad(1, 3)},
//	    Command: true,
//	})
//	reg.Freeze()
//
// A session then binds a View to the protocol version the switcher reports
// and decodes every atom through it.
package schema
