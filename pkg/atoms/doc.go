// Package atoms defines a starter set of switcher atom schemas and
// constructors for common commands.
//
// The set covers what a session needs to come up and what a simple control
// surface uses: the version and product atoms, topology, the end of the
// initial dump, program and preview inputs, transition position, colour
// generators, tally, timecode, fade to black, media players and startup
// settings. Applications register further schemas on
// their own registry with Register before freezing it:
//
//	reg := schema.NewRegistry()
//	if err := atoms.Register(reg); err != nil {
//		return err
//	}
//	reg.MustRegister(myAtoms...)
//	reg.Freeze()
//
// Command constructors return atoms ready for Session.SendCommand:
//
//	err := sess.SendCommand(ctx, atoms.SetPreview(0, 2), atoms.Cut(0))
package atoms
