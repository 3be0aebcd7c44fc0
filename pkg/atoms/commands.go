package atoms

import (
	"errors"
	"fmt"

	"github.com/vango-dev/burp/pkg/atom"
	"github.com/vango-dev/burp/pkg/schema"
)

// ErrOutOfRange is returned for command parameters the switcher would
// reject.
var ErrOutOfRange = errors.New("atoms: parameter out of range")

var commands = Registry()

func build(tag atom.Tag, fields map[string]schema.Value) (atom.Atom, error) {
	s, ok := commands.Lookup(tag)
	if !ok {
		return atom.Atom{}, fmt.Errorf("%w: %s", schema.ErrNoSchema, tag)
	}
	return s.Encode(fields, nil)
}

func mustBuild(tag atom.Tag, fields map[string]schema.Value) atom.Atom {
	a, err := build(tag, fields)
	if err != nil {
		panic(err)
	}
	return a
}

// Cut switches preview and program on mix effect block me immediately.
func Cut(me uint8) atom.Atom {
	return mustBuild(TagCut, map[string]schema.Value{"me": schema.U8(me)})
}

// Auto runs the configured transition on mix effect block me.
func Auto(me uint8) atom.Atom {
	return mustBuild(TagAuto, map[string]schema.Value{"me": schema.U8(me)})
}

// SetProgram puts source on program of mix effect block me.
func SetProgram(me uint8, source uint16) atom.Atom {
	return mustBuild(TagSetProgramInput, map[string]schema.Value{
		"me":      schema.U8(me),
		"program": schema.U16(source),
	})
}

// SetPreview puts source on preview of mix effect block me.
func SetPreview(me uint8, source uint16) atom.Atom {
	return mustBuild(TagSetPreviewInput, map[string]schema.Value{
		"me":      schema.U8(me),
		"preview": schema.U16(source),
	})
}

// CutToBlack sets or clears black on the output of mix effect block me
// without a transition.
func CutToBlack(me uint8, black bool) atom.Atom {
	return mustBuild(TagCutToBlack, map[string]schema.Value{
		"me":    schema.U8(me),
		"black": schema.Bool(black),
	})
}

// FadeToBlack toggles a fade to or from black on mix effect block me at the
// configured rate.
func FadeToBlack(me uint8) atom.Atom {
	return mustBuild(TagFadeToBlackAuto, map[string]schema.Value{"me": schema.U8(me)})
}

// CaptureStill grabs the program output into the media pool.
func CaptureStill() atom.Atom {
	return mustBuild(TagCaptureStill, nil)
}

// SetMediaPlayerStill loads still index into media player player.
func SetMediaPlayerStill(player, index uint8) atom.Atom {
	return mustBuild(TagSetMediaPlayerSource, map[string]schema.Value{
		"player": schema.U8(player),
		"type":   schema.U8(MediaStill),
		"still":  schema.U8(index),
	})
}

// SetMediaPlayerClip loads clip index into media player player.
func SetMediaPlayerClip(player, index uint8) atom.Atom {
	return mustBuild(TagSetMediaPlayerSource, map[string]schema.Value{
		"player": schema.U8(player),
		"type":   schema.U8(MediaClip),
		"clip":   schema.U8(index),
	})
}

// Startup settings live in slot 0.
func settings(tag atom.Tag) atom.Atom {
	return mustBuild(tag, map[string]schema.Value{"slot": schema.U8(0)})
}

// SaveStartupSettings stores the current configuration as the power-on
// state.
func SaveStartupSettings() atom.Atom { return settings(TagSaveSettings) }

// ClearStartupSettings reverts the power-on state to factory defaults.
func ClearStartupSettings() atom.Atom { return settings(TagClearSettings) }

// RestoreStartupSettings reloads the saved power-on state.
func RestoreStartupSettings() atom.Atom { return settings(TagRestoreSettings) }

// Colour holds colour generator parameters. Nil fields are left unchanged
// by the switcher.
type Colour struct {
	Hue        *uint16 // 0..3600, tenths of a degree
	Saturation *uint16 // 0..1000
	Luminance  *uint16 // 0..1000
}

// SetColourGenerator changes the parameters of colour generator gen. Only
// the parameters set in c are sent.
func SetColourGenerator(gen uint8, c Colour) (atom.Atom, error) {
	fields := map[string]schema.Value{"generator": schema.U8(gen)}
	set := func(name string, v *uint16, max uint16) error {
		if v == nil {
			return nil
		}
		if *v > max {
			return fmt.Errorf("%w: %s %d exceeds %d", ErrOutOfRange, name, *v, max)
		}
		fields[name] = schema.U16(*v)
		return nil
	}
	if err := errors.Join(
		set("hue", c.Hue, MaxHue),
		set("saturation", c.Saturation, MaxSatLum),
		set("luminance", c.Luminance, MaxSatLum),
	); err != nil {
		return atom.Atom{}, err
	}
	return build(TagSetColourGenerator, fields)
}

// Version reads a decoded version record.
func Version(rec *schema.Record) (schema.ProtocolVersion, bool) {
	if rec == nil || rec.Tag != TagVersion {
		return schema.ProtocolVersion{}, false
	}
	major, ok1 := rec.Get("major")
	minor, ok2 := rec.Get("minor")
	if !ok1 || !ok2 {
		return schema.ProtocolVersion{}, false
	}
	return schema.ProtocolVersion{Major: uint16(major.Uint()), Minor: uint16(minor.Uint())}, true
}

// Tally flag bits of a TlSr element.
const (
	TallyProgram = 1 << 0
	TallyPreview = 1 << 1
)
