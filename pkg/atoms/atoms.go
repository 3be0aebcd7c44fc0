package atoms

import (
	"github.com/vango-dev/burp/pkg/atom"
	"github.com/vango-dev/burp/pkg/schema"
)

// Tags of the starter atom set.
var (
	TagVersion                = atom.MustTag("_ver")
	TagProductName            = atom.MustTag("_pin")
	TagTopology               = atom.MustTag("_top")
	TagInitialisationComplete = atom.MustTag("InCm")
	TagProgramInput           = atom.MustTag("PrgI")
	TagPreviewInput           = atom.MustTag("PrvI")
	TagSetProgramInput        = atom.MustTag("CPgI")
	TagSetPreviewInput        = atom.MustTag("CPvI")
	TagCut                    = atom.MustTag("DCut")
	TagAuto                   = atom.MustTag("DAut")
	TagTransitionPosition     = atom.MustTag("TrPs")
	TagColourGenerator        = atom.MustTag("ColV")
	TagSetColourGenerator     = atom.MustTag("CClV")
	TagTallyBySource          = atom.MustTag("TlSr")
	TagTime                   = atom.MustTag("Time")
	TagFadeToBlackStatus      = atom.MustTag("FtbS")
	TagFadeToBlackParams      = atom.MustTag("FtbP")
	TagFadeToBlackAuto        = atom.MustTag("FtbA")
	TagCutToBlack             = atom.MustTag("FtbC")
	TagMediaPool              = atom.MustTag("_mpl")
	TagMediaPlayerSource      = atom.MustTag("MPCE")
	TagSetMediaPlayerSource   = atom.MustTag("MPSS")
	TagCaptureStill           = atom.MustTag("Capt")
	TagSaveSettings           = atom.MustTag("SRsv")
	TagClearSettings          = atom.MustTag("SRcl")
	TagRestoreSettings        = atom.MustTag("SRrs")
)

// Entity kinds used as mirror key kinds.
const (
	EntityVersion   = "version"
	EntityProduct   = "product"
	EntityTopology  = "topology"
	EntityInit      = "init"
	EntityMixEffect = "me"
	EntityColour    = "colour"
	EntityTally     = "tally"
	EntityTime      = "time"

	EntityFadeToBlack = "ftb"
	EntityMediaPool   = "media_pool"
	EntityMediaPlayer = "media_player"
)

// Media player source types.
const (
	MediaStill = 1
	MediaClip  = 2
)

// Media player source mask bits.
const (
	mediaType  = 1 << 0
	mediaStill = 1 << 1
	mediaClip  = 1 << 2
)

// Colour generator mask bits.
const (
	ColourHue        = 1 << 0
	ColourSaturation = 1 << 1
	ColourLuminance  = 1 << 2
)

// Limits of colour generator parameters.
const (
	MaxHue       = 3600
	MaxSatLum    = 1000
	ProductNameN = 40
)

// Schemas returns the starter schemas.
func Schemas() []schema.Schema {
	return []schema.Schema{
		{
			Tag: TagVersion, Name: "Version", Entity: EntityVersion, Size: 4,
			Fields: []schema.Field{
				schema.U16Field("major", 0),
				schema.U16Field("minor", 2),
			},
		},
		{
			Tag: TagProductName, Name: "ProductName", Entity: EntityProduct, Size: 44,
			Fields: []schema.Field{
				schema.StringField("name", 0, ProductNameN),
				schema.U8Field("model", 40),
				schema.Pad(41, 3),
			},
		},
		{
			Tag: TagTopology, Name: "Topology", Entity: EntityTopology, Size: 28,
			Fields: []schema.Field{
				schema.U8Field("mes", 0),
				schema.U8Field("sources", 1),
				schema.U8Field("downstream_keys", 2),
				schema.U8Field("auxs", 3),
				schema.U8Field("mix_minus_outputs", 4),
				schema.U8Field("media_players", 5),
				schema.U8Field("multiviewers", 6),
				schema.U8Field("serial_ports", 7),
				schema.U8Field("hyperdecks", 8),
				schema.Pad(9, 3),
				schema.BoolField("audio_mixer", 12),
				schema.Pad(13, 2),
				schema.BoolField("fairlight_audio_mixer", 15),
				schema.BoolField("down_conversion_methods", 16),
				schema.BoolField("down_converted_hd_video_modes", 17),
				schema.BoolField("camera_control", 18),
				schema.BoolField("serial_ptz_visca", 19),
				schema.BoolField("serial_gvg100", 20),
				schema.BoolField("sdi3g", 21),
				schema.BoolField("advanced_chroma", 22),
				schema.BoolField("configurable_outputs", 23),
				schema.BoolField("auto_video_mode", 24),
				schema.Pad(25, 3),
			},
		},
		{
			Tag: TagInitialisationComplete, Name: "InitialisationComplete", Entity: EntityInit, Size: 4,
			Fields: []schema.Field{schema.Pad(0, 4)},
		},
		{
			Tag: TagProgramInput, Name: "ProgramInput", Entity: EntityMixEffect, Size: 4,
			Fields: []schema.Field{
				schema.U8Field("me", 0).AsKey(),
				schema.Pad(1, 1),
				schema.U16Field("program", 2),
			},
		},
		{
			Tag: TagPreviewInput, Name: "PreviewInput", Entity: EntityMixEffect, Size: 8,
			Fields: []schema.Field{
				schema.U8Field("me", 0).AsKey(),
				schema.Pad(1, 1),
				schema.U16Field("preview", 2).InGroup("preview"),
				schema.BoolField("preview_live", 4).InGroup("preview"),
				schema.Pad(5, 3),
			},
		},
		{
			Tag: TagTransitionPosition, Name: "TransitionPosition", Entity: EntityMixEffect, Size: 8,
			Fields: []schema.Field{
				schema.U8Field("me", 0).AsKey(),
				schema.BoolField("in_transition", 1).InGroup("transition"),
				schema.U8Field("frames_remaining", 2).InGroup("transition"),
				schema.Pad(3, 1),
				schema.U16Field("position", 4).InGroup("transition"),
				schema.Pad(6, 2),
			},
		},
		{
			Tag: TagColourGenerator, Name: "ColourGenerator", Entity: EntityColour, Size: 8,
			Fields: []schema.Field{
				schema.U8Field("generator", 0).AsKey(),
				schema.Pad(1, 1),
				schema.U16Field("hue", 2).InGroup("colour"),
				schema.U16Field("saturation", 4).InGroup("colour"),
				schema.U16Field("luminance", 6).InGroup("colour"),
			},
		},
		{
			Tag: TagTallyBySource, Name: "TallyBySource", Entity: EntityTally,
			Fields: []schema.Field{
				schema.U16Field("count", 0),
			},
			Array: &schema.Array{
				Prefix: 2, CountField: "count", ElementSize: 3,
				Element: []schema.Field{
					schema.U16Field("source", 0).AsKey(),
					schema.U8Field("flags", 2),
				},
			},
		},
		{
			Tag: TagTime, Name: "Time", Entity: EntityTime, Size: 8,
			Fields: []schema.Field{
				schema.U8Field("hour", 0).InGroup("timecode"),
				schema.U8Field("minute", 1).InGroup("timecode"),
				schema.U8Field("second", 2).InGroup("timecode"),
				schema.U8Field("frame", 3).InGroup("timecode"),
				schema.BoolField("drop_frame", 4).InGroup("timecode"),
				schema.Pad(5, 3),
			},
		},
		{
			Tag: TagFadeToBlackStatus, Name: "FadeToBlackStatus", Entity: EntityFadeToBlack, Size: 4,
			Fields: []schema.Field{
				schema.U8Field("me", 0).AsKey(),
				schema.BoolField("fully_black", 1).InGroup("ftb"),
				schema.BoolField("in_transition", 2).InGroup("ftb"),
				schema.U8Field("frames_remaining", 3).InGroup("ftb"),
			},
		},
		{
			Tag: TagFadeToBlackParams, Name: "FadeToBlackParams", Entity: EntityFadeToBlack, Size: 4,
			Fields: []schema.Field{
				schema.U8Field("me", 0).AsKey(),
				schema.U8Field("rate", 1),
				schema.Pad(2, 2),
			},
		},
		{
			Tag: TagMediaPool, Name: "MediaPool", Entity: EntityMediaPool, Size: 4,
			Fields: []schema.Field{
				schema.U8Field("stills", 0),
				schema.U8Field("clips", 1),
				schema.BoolField("still_capture", 2),
				schema.Pad(3, 1),
			},
		},
		{
			Tag: TagMediaPlayerSource, Name: "MediaPlayerSource", Entity: EntityMediaPlayer, Size: 4,
			Fields: []schema.Field{
				schema.U8Field("player", 0).AsKey(),
				schema.U8Field("type", 1).InGroup("source"),
				schema.U8Field("still", 2).InGroup("source"),
				schema.U8Field("clip", 3).InGroup("source"),
			},
		},

		// Commands.
		{
			Tag: TagCut, Name: "Cut", Size: 4, Command: true,
			Fields: []schema.Field{schema.U8Field("me", 0), schema.Pad(1, 3)},
		},
		{
			Tag: TagAuto, Name: "Auto", Size: 4, Command: true,
			Fields: []schema.Field{schema.U8Field("me", 0), schema.Pad(1, 3)},
		},
		{
			Tag: TagSetProgramInput, Name: "SetProgramInput", Size: 4, Command: true,
			Fields: []schema.Field{
				schema.U8Field("me", 0),
				schema.Pad(1, 1),
				schema.U16Field("program", 2),
			},
		},
		{
			Tag: TagSetPreviewInput, Name: "SetPreviewInput", Size: 4, Command: true,
			Fields: []schema.Field{
				schema.U8Field("me", 0),
				schema.Pad(1, 1),
				schema.U16Field("preview", 2),
			},
		},
		{
			Tag: TagSetColourGenerator, Name: "SetColourGenerator", Size: 8, Command: true, MaskField: "mask",
			Fields: []schema.Field{
				schema.U8Field("mask", 0),
				schema.U8Field("generator", 1),
				schema.U16Field("hue", 2).WithMask(ColourHue),
				schema.U16Field("saturation", 4).WithMask(ColourSaturation),
				schema.U16Field("luminance", 6).WithMask(ColourLuminance),
			},
		},
		{
			Tag: TagFadeToBlackAuto, Name: "FadeToBlackAuto", Size: 4, Command: true,
			Fields: []schema.Field{schema.U8Field("me", 0), schema.Pad(1, 3)},
		},
		{
			Tag: TagCutToBlack, Name: "CutToBlack", Size: 4, Command: true,
			Fields: []schema.Field{
				schema.U8Field("me", 0),
				schema.BoolField("black", 1),
				schema.Pad(2, 2),
			},
		},
		{
			Tag: TagSetMediaPlayerSource, Name: "SetMediaPlayerSource", Size: 8, Command: true, MaskField: "mask",
			Fields: []schema.Field{
				schema.U8Field("mask", 0),
				schema.U8Field("player", 1),
				schema.U8Field("type", 2).WithMask(mediaType),
				schema.U8Field("still", 3).WithMask(mediaStill),
				schema.U8Field("clip", 4).WithMask(mediaClip),
				schema.Pad(5, 3),
			},
		},
		{Tag: TagCaptureStill, Name: "CaptureStill", Command: true},
		{
			Tag: TagSaveSettings, Name: "SaveSettings", Size: 4, Command: true,
			Fields: []schema.Field{schema.U8Field("slot", 0), schema.Pad(1, 3)},
		},
		{
			Tag: TagClearSettings, Name: "ClearSettings", Size: 4, Command: true,
			Fields: []schema.Field{schema.U8Field("slot", 0), schema.Pad(1, 3)},
		},
		{
			Tag: TagRestoreSettings, Name: "RestoreSettings", Size: 4, Command: true,
			Fields: []schema.Field{schema.U8Field("slot", 0), schema.Pad(1, 3)},
		},
	}
}

// Register adds the starter schemas to r.
func Register(r *schema.Registry) error {
	for _, s := range Schemas() {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// Registry returns a frozen registry holding the starter schemas.
func Registry() *schema.Registry {
	r := schema.NewRegistry()
	r.MustRegister(Schemas()...)
	r.Freeze()
	return r
}
