package main

import (
	"errors"
	"strings"
	"testing"

	burperrors "github.com/vango-dev/burp/internal/errors"
	"github.com/vango-dev/burp/pkg/atoms"
	"github.com/vango-dev/burp/pkg/mirror"
	"github.com/vango-dev/burp/pkg/schema"
)

func mediaSource(stills, clips, players uint8, capture bool) *fakeSource {
	pool := mirror.Key{Kind: atoms.EntityMediaPool}
	top := mirror.Key{Kind: atoms.EntityTopology}
	return &fakeSource{
		ents: map[mirror.Key]map[string]schema.Value{
			pool: {"stills": schema.U8(stills), "clips": schema.U8(clips), "still_capture": schema.Bool(capture)},
			top:  {"media_players": schema.U8(players)},
		},
		order: []mirror.Key{pool, top},
	}
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	var be *burperrors.BurpError
	if !errors.As(err, &be) {
		t.Fatalf("error = %v, want %s", err, code)
	}
	if be.Code != code {
		t.Errorf("code = %s, want %s", be.Code, code)
	}
}

func TestParseMediaSource(t *testing.T) {
	kind, index, err := parseMediaSource("clip", "1")
	if err != nil {
		t.Fatal(err)
	}
	if kind != atoms.MediaClip || index != 1 {
		t.Errorf("got (%d, %d), want (clip, 1)", kind, index)
	}

	for _, args := range [][2]string{{"tape", "1"}, {"still", "-1"}, {"still", "256"}} {
		_, _, err := parseMediaSource(args[0], args[1])
		wantCode(t, err, "B301")
	}
}

func TestCheckMediaSource(t *testing.T) {
	src := mediaSource(20, 2, 2, true)

	tests := []struct {
		name   string
		player uint8
		kind   int
		index  uint8
		err    string
	}{
		{"still in range", 0, atoms.MediaStill, 19, ""},
		{"clip in range", 1, atoms.MediaClip, 1, ""},
		{"no such player", 2, atoms.MediaStill, 0, "media player 2 does not exist"},
		{"still out of range", 0, atoms.MediaStill, 20, "still 20 does not exist"},
		{"clip out of range", 0, atoms.MediaClip, 2, "clip 2 does not exist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkMediaSource(src, tt.player, tt.kind, tt.index)
			if tt.err == "" {
				if err != nil {
					t.Fatalf("error = %v", err)
				}
				return
			}
			wantCode(t, err, "B301")
			if !strings.Contains(err.Error(), tt.err) {
				t.Errorf("error = %q, want it to mention %q", err, tt.err)
			}
		})
	}
}

func TestCheckStillCapture(t *testing.T) {
	if err := checkStillCapture(mediaSource(20, 2, 2, true)); err != nil {
		t.Errorf("error = %v", err)
	}
	wantCode(t, checkStillCapture(mediaSource(20, 2, 2, false)), "B301")
	wantCode(t, checkStillCapture(&fakeSource{}), "B301")
}

func TestMediaPlayerBadKind(t *testing.T) {
	code, _, stderr := runCLI(t, "mediaplayer", "tape", "3")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "B301") || !strings.Contains(stderr, `"tape"`) {
		t.Errorf("stderr = %q", stderr)
	}
}
