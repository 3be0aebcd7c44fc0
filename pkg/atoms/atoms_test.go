package atoms

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/burp/pkg/atom"
	"github.com/vango-dev/burp/pkg/mirror"
	"github.com/vango-dev/burp/pkg/schema"
)

func decodeHex(t *testing.T, s string) atom.Atom {
	t.Helper()
	raw, err := hex.DecodeString(s)
	if err != nil {
		t.Fatal(err)
	}
	a, n, err := atom.Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(raw) {
		t.Fatalf("consumed %d of %d bytes", n, len(raw))
	}
	return a
}

func TestDecodeCapturedAtoms(t *testing.T) {
	reg := Registry()

	tests := []struct {
		name   string
		hex    string
		fields map[string]uint64
	}{
		{"version", "000c00005f7665720002001e", map[string]uint64{"major": 2, "minor": 30}},
		{"program input", "000c00005072674900000001", map[string]uint64{"me": 0, "program": 1}},
		{"preview input", "00100000507276490000000200000000", map[string]uint64{"me": 0, "preview": 2, "preview_live": 0}},
		{"colour generator", "00100000436f6c5600000770026e03e8", map[string]uint64{"generator": 0, "hue": 1904, "saturation": 622, "luminance": 1000}},
		{"time", "0010000054696d65101f161900000000", map[string]uint64{"hour": 16, "minute": 31, "second": 22, "frame": 25}},
		{"initialisation complete", "000c0000496e436d01400000", map[string]uint64{}},
		{"media player source", "000c00004d50434500010500", map[string]uint64{"player": 0, "type": MediaStill, "still": 5, "clip": 0}},
		{"media pool", "000c00005f6d706c14020100", map[string]uint64{"stills": 20, "clips": 2}},
		{"fade to black status", "000c00004674625300010112", map[string]uint64{"me": 0, "frames_remaining": 18}},
		{"fade to black params", "000c00004674625001190000", map[string]uint64{"me": 1, "rate": 25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := reg.Decode(decodeHex(t, tt.hex))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			for name, want := range tt.fields {
				v, ok := rec.Get(name)
				if !ok {
					t.Errorf("field %s missing", name)
					continue
				}
				if v.Uint() != want {
					t.Errorf("%s = %d, want %d", name, v.Uint(), want)
				}
			}
			if len(rec.Warnings) != 0 {
				t.Errorf("warnings = %v", rec.Warnings)
			}
		})
	}
}

func TestFadeToBlackStatus(t *testing.T) {
	reg := Registry()
	m := mirror.New()
	rec, err := reg.Decode(decodeHex(t, "000c00004674625300010112"))
	if err != nil {
		t.Fatal(err)
	}
	events := m.Apply(rec)
	if len(events) != 1 || events[0].Group != "ftb" {
		t.Fatalf("events = %+v, want one ftb group event", events)
	}
	fields, ok := m.Snapshot(mirror.Key{Kind: EntityFadeToBlack, ID: "0"})
	if !ok {
		t.Fatal("ftb/0 missing")
	}
	if !fields["fully_black"].Bool() || !fields["in_transition"].Bool() {
		t.Errorf("fields = %v", fields)
	}
}

func TestProductName(t *testing.T) {
	a := decodeHex(t, "003400005f70696e"+
		"4154454d204d696e6900000000000000000000000000000000000000000000000000000000000000"+
		"0d000000")
	rec, err := Registry().Decode(a)
	if err != nil {
		t.Fatal(err)
	}
	if name, _ := rec.Get("name"); name.Text() != "ATEM Mini" {
		t.Errorf("name = %q, want ATEM Mini", name.Text())
	}
	if model, _ := rec.Get("model"); model.Uint() != 0x0d {
		t.Errorf("model = %#x, want 0x0d", model.Uint())
	}
}

func TestTopology(t *testing.T) {
	a := decodeHex(t, "002400005f746f70010e0101000100000401000000000001000001000000010101000000")
	rec, err := Registry().Decode(a)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]uint64{"mes": 1, "sources": 14, "downstream_keys": 1, "auxs": 1, "media_players": 1, "hyperdecks": 4}
	for name, n := range want {
		if v, _ := rec.Get(name); v.Uint() != n {
			t.Errorf("%s = %d, want %d", name, v.Uint(), n)
		}
	}
}

func TestTallyBySourceMirrorsPerSource(t *testing.T) {
	a := decodeHex(t, "00340000546c5372000e00000000010200020000030000040103e80007d10007d2000bc2000bc300271a00271b002af9001f4100")
	rec, err := Registry().Decode(a)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Elements) != 14 {
		t.Fatalf("elements = %d, want 14", len(rec.Elements))
	}

	m := mirror.New()
	m.Apply(rec)
	fields, ok := m.Snapshot(mirror.Key{Kind: EntityTally, ID: "1"})
	if !ok {
		t.Fatal("tally for source 1 missing")
	}
	if fields["flags"].Uint() != TallyPreview {
		t.Errorf("source 1 flags = %d, want preview", fields["flags"].Uint())
	}
	fields, _ = m.Snapshot(mirror.Key{Kind: EntityTally, ID: "4"})
	if fields["flags"].Uint() != TallyProgram {
		t.Errorf("source 4 flags = %d, want program", fields["flags"].Uint())
	}
}

func TestCommands(t *testing.T) {
	u16 := func(v uint16) *uint16 { return &v }

	tests := []struct {
		name string
		atom func() (atom.Atom, error)
		want string
	}{
		{"cut", func() (atom.Atom, error) { return Cut(0), nil }, "000c00004443757400000000"},
		{"auto", func() (atom.Atom, error) { return Auto(1), nil }, "000c00004441757401000000"},
		{"set program", func() (atom.Atom, error) { return SetProgram(0, 3), nil }, "000c00004350674900000003"},
		{"set preview", func() (atom.Atom, error) { return SetPreview(0, 2), nil }, "000c00004350764900000002"},
		{"cut to black", func() (atom.Atom, error) { return CutToBlack(0, true), nil }, "000c00004674624300010000"},
		{"fade to black", func() (atom.Atom, error) { return FadeToBlack(1), nil }, "000c00004674624101000000"},
		{"capture still", func() (atom.Atom, error) { return CaptureStill(), nil }, "0008000043617074"},
		{"media player still", func() (atom.Atom, error) { return SetMediaPlayerStill(0, 5), nil }, "001000004d5053530300010500000000"},
		{"media player clip", func() (atom.Atom, error) { return SetMediaPlayerClip(1, 2), nil }, "001000004d5053530501020002000000"},
		{"save startup settings", func() (atom.Atom, error) { return SaveStartupSettings(), nil }, "000c00005352737600000000"},
		{"clear startup settings", func() (atom.Atom, error) { return ClearStartupSettings(), nil }, "000c00005352636c00000000"},
		{"restore startup settings", func() (atom.Atom, error) { return RestoreStartupSettings(), nil }, "000c00005352727300000000"},
		{"colour hue only", func() (atom.Atom, error) {
			return SetColourGenerator(0, Colour{Hue: u16(1904)})
		}, "0010000043436c560100077000000000"},
		{"colour saturation only", func() (atom.Atom, error) {
			return SetColourGenerator(0, Colour{Saturation: u16(622)})
		}, "0010000043436c5602000000026e0000"},
		{"colour luminance only", func() (atom.Atom, error) {
			return SetColourGenerator(0, Colour{Luminance: u16(1000)})
		}, "0010000043436c5604000000000003e8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := tt.atom()
			if err != nil {
				t.Fatal(err)
			}
			raw, err := a.Encode()
			if err != nil {
				t.Fatal(err)
			}
			if got := hex.EncodeToString(raw); got != tt.want {
				t.Errorf("encoded = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSetColourGeneratorRange(t *testing.T) {
	big := uint16(MaxHue + 1)
	if _, err := SetColourGenerator(0, Colour{Hue: &big}); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("error = %v, want ErrOutOfRange", err)
	}
	lum := uint16(MaxSatLum + 1)
	if _, err := SetColourGenerator(0, Colour{Luminance: &lum}); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("error = %v, want ErrOutOfRange", err)
	}
}

func TestCommandsNeverMirrored(t *testing.T) {
	reg := Registry()
	m := mirror.New()
	for _, a := range []atom.Atom{
		Cut(0), Auto(0), SetProgram(0, 1), SetPreview(0, 1),
		CutToBlack(0, true), FadeToBlack(0), CaptureStill(), SetMediaPlayerStill(0, 1), SaveStartupSettings(),
	} {
		rec, err := reg.Decode(a)
		if err != nil {
			t.Fatal(err)
		}
		if ev := m.Apply(rec); len(ev) != 0 {
			t.Errorf("%s produced %d events", a.Tag, len(ev))
		}
	}
	if m.Len() != 0 {
		t.Errorf("mirror has %d entities, want 0", m.Len())
	}
}

func TestVersion(t *testing.T) {
	rec, err := Registry().Decode(decodeHex(t, "000c00005f7665720002001e"))
	if err != nil {
		t.Fatal(err)
	}
	v, ok := Version(rec)
	if !ok {
		t.Fatal("Version() not ok")
	}
	if diff := cmp.Diff(schema.ProtocolVersion{Major: 2, Minor: 30}, v); diff != "" {
		t.Errorf("Version() mismatch (-want +got):\n%s", diff)
	}
	if _, ok := Version(&schema.Record{Tag: TagTime}); ok {
		t.Error("Version() ok for a Time record")
	}
}

func TestRegisterTwiceFails(t *testing.T) {
	r := schema.NewRegistry()
	if err := Register(r); err != nil {
		t.Fatal(err)
	}
	if err := Register(r); !errors.Is(err, schema.ErrDuplicate) {
		t.Errorf("second Register() = %v, want ErrDuplicate", err)
	}
}
