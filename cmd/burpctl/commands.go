package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	burperrors "github.com/vango-dev/burp/internal/errors"
	"github.com/vango-dev/burp/pkg/atom"
	"github.com/vango-dev/burp/pkg/atoms"
	"github.com/vango-dev/burp/pkg/mirror"
	"github.com/vango-dev/burp/pkg/schema"
	"github.com/vango-dev/burp/pkg/session"
)

// withSession loads config, connects, runs fn and disconnects.
func (a *app) withSession(fn func(ctx context.Context, sess *session.Session) error) error {
	if err := a.load(); err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	sess, err := a.dial(ctx, connectOptions{})
	if err != nil {
		return err
	}
	defer func() {
		dctx, dcancel := context.WithTimeout(context.Background(), time.Second)
		defer dcancel()
		sess.Disconnect(dctx)
	}()
	return fn(ctx, sess)
}

// sendCmd builds a command that sends the atoms returned by build.
func (a *app) sendCmd(use, short string, args cobra.PositionalArgs, build func(me uint8, args []string) ([]atom.Atom, string, error)) *cobra.Command {
	var me uint8
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmds, what, err := build(me, args)
			if err != nil {
				return err
			}
			return a.withSession(func(ctx context.Context, sess *session.Session) error {
				start := time.Now()
				if err := sess.SendCommand(ctx, cmds...); err != nil {
					return err
				}
				a.success("%s (acknowledged in %s)", what, time.Since(start).Round(time.Millisecond))
				return nil
			})
		},
	}
	cmd.Flags().Uint8VarP(&me, "me", "m", 0, "mix effect block")
	return cmd
}

func cutCmd(a *app) *cobra.Command {
	return a.sendCmd("cut", "Cut preview to program", cobra.NoArgs,
		func(me uint8, _ []string) ([]atom.Atom, string, error) {
			return []atom.Atom{atoms.Cut(me)}, fmt.Sprintf("cut on M/E %d", me), nil
		})
}

func autoCmd(a *app) *cobra.Command {
	return a.sendCmd("auto", "Run the configured auto transition", cobra.NoArgs,
		func(me uint8, _ []string) ([]atom.Atom, string, error) {
			return []atom.Atom{atoms.Auto(me)}, fmt.Sprintf("auto transition on M/E %d", me), nil
		})
}

func programCmd(a *app) *cobra.Command {
	return a.sendCmd("program <source>", "Put a source on program", cobra.ExactArgs(1),
		func(me uint8, args []string) ([]atom.Atom, string, error) {
			src, err := parseSource(args[0])
			if err != nil {
				return nil, "", err
			}
			return []atom.Atom{atoms.SetProgram(me, src)}, fmt.Sprintf("program on M/E %d is source %d", me, src), nil
		})
}

func previewCmd(a *app) *cobra.Command {
	return a.sendCmd("preview <source>", "Put a source on preview", cobra.ExactArgs(1),
		func(me uint8, args []string) ([]atom.Atom, string, error) {
			src, err := parseSource(args[0])
			if err != nil {
				return nil, "", err
			}
			return []atom.Atom{atoms.SetPreview(me, src)}, fmt.Sprintf("preview on M/E %d is source %d", me, src), nil
		})
}

func colourCmd(a *app) *cobra.Command {
	var (
		gen           uint8
		hue, sat, lum uint16
	)
	cmd := &cobra.Command{
		Use:   "colour",
		Short: "Set a colour generator (hue in tenths of a degree, saturation and luminance in tenths of a percent)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var c atoms.Colour
			if cmd.Flags().Changed("hue") {
				c.Hue = &hue
			}
			if cmd.Flags().Changed("saturation") {
				c.Saturation = &sat
			}
			if cmd.Flags().Changed("luminance") {
				c.Luminance = &lum
			}
			set, err := atoms.SetColourGenerator(gen, c)
			if err != nil {
				return burperrors.Classify(err)
			}
			return a.withSession(func(ctx context.Context, sess *session.Session) error {
				if err := sess.SendCommand(ctx, set); err != nil {
					return err
				}
				a.success("colour generator %d updated", gen)
				return nil
			})
		},
	}
	cmd.Flags().Uint8VarP(&gen, "generator", "g", 0, "colour generator index")
	cmd.Flags().Uint16Var(&hue, "hue", 0, "hue, 0-3600")
	cmd.Flags().Uint16Var(&sat, "saturation", 0, "saturation, 0-1000")
	cmd.Flags().Uint16Var(&lum, "luminance", 0, "luminance, 0-1000")
	return cmd
}

func parseSource(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, burperrors.New("B301").WithDetailf("source %q is not a number in 0..65535", s).Wrap(err)
	}
	return uint16(n), nil
}

func blackCmd(a *app) *cobra.Command {
	var off bool
	cmd := a.sendCmd("black", "Cut the output to black, or back with --off", cobra.NoArgs,
		func(me uint8, _ []string) ([]atom.Atom, string, error) {
			if off {
				return []atom.Atom{atoms.CutToBlack(me, false)}, fmt.Sprintf("M/E %d back from black", me), nil
			}
			return []atom.Atom{atoms.CutToBlack(me, true)}, fmt.Sprintf("M/E %d cut to black", me), nil
		})
	cmd.Flags().BoolVar(&off, "off", false, "leave black instead of entering it")
	return cmd
}

func ftbCmd(a *app) *cobra.Command {
	return a.sendCmd("ftb", "Toggle a fade to or from black", cobra.NoArgs,
		func(me uint8, _ []string) ([]atom.Atom, string, error) {
			return []atom.Atom{atoms.FadeToBlack(me)}, fmt.Sprintf("fade to black toggled on M/E %d", me), nil
		})
}

// syncedCommand waits for the state dump so check can validate against the
// switcher's capabilities before the atoms are sent.
func (a *app) syncedCommand(what string, check func(sess snapshotter) error, cmds ...atom.Atom) error {
	return a.withSession(func(ctx context.Context, sess *session.Session) error {
		if err := sess.WaitSynced(ctx); err != nil {
			return err
		}
		if err := check(sess); err != nil {
			return err
		}
		if err := sess.SendCommand(ctx, cmds...); err != nil {
			return err
		}
		a.success("%s", what)
		return nil
	})
}

func captureCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "capture",
		Short: "Capture the program output as a still",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.syncedCommand("still captured", checkStillCapture, atoms.CaptureStill())
		},
	}
}

func mediaPlayerCmd(a *app) *cobra.Command {
	var player uint8
	cmd := &cobra.Command{
		Use:   "mediaplayer <still|clip> <index>",
		Short: "Load a still or clip into a media player",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, index, err := parseMediaSource(args[0], args[1])
			if err != nil {
				return err
			}
			set := atoms.SetMediaPlayerStill(player, index)
			if kind == atoms.MediaClip {
				set = atoms.SetMediaPlayerClip(player, index)
			}
			return a.syncedCommand(
				fmt.Sprintf("media player %d is %s %d", player, args[0], index),
				func(sess snapshotter) error { return checkMediaSource(sess, player, kind, index) },
				set,
			)
		},
	}
	cmd.Flags().Uint8VarP(&player, "player", "p", 0, "media player index")
	return cmd
}

func startupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "startup",
		Short: "Manage the switcher's power-on settings",
	}
	for _, sub := range []struct {
		use, short, done string
		atom             func() atom.Atom
	}{
		{"save", "Save the current configuration as the power-on state", "startup settings saved", atoms.SaveStartupSettings},
		{"clear", "Reset the power-on state to factory defaults", "startup settings cleared", atoms.ClearStartupSettings},
		{"restore", "Reload the saved power-on state", "startup settings restored", atoms.RestoreStartupSettings},
	} {
		cmd.AddCommand(&cobra.Command{
			Use:   sub.use,
			Short: sub.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withSession(func(ctx context.Context, sess *session.Session) error {
					if err := sess.SendCommand(ctx, sub.atom()); err != nil {
						return err
					}
					a.success("%s", sub.done)
					return nil
				})
			},
		})
	}
	return cmd
}

func parseMediaSource(kind, index string) (int, uint8, error) {
	var k int
	switch kind {
	case "still":
		k = atoms.MediaStill
	case "clip":
		k = atoms.MediaClip
	default:
		return 0, 0, burperrors.New("B301").WithDetailf("media source %q is neither still nor clip", kind)
	}
	n, err := strconv.ParseUint(index, 10, 8)
	if err != nil {
		return 0, 0, burperrors.New("B301").WithDetailf("%s index %q is not a number in 0..255", kind, index).Wrap(err)
	}
	return k, uint8(n), nil
}

type snapshotter interface {
	Snapshot(key mirror.Key) (map[string]schema.Value, bool)
}

func checkStillCapture(sess snapshotter) error {
	pool, _ := sess.Snapshot(mirror.Key{Kind: atoms.EntityMediaPool})
	if !pool["still_capture"].Bool() {
		return burperrors.New("B301").WithDetail("this switcher does not support still capture")
	}
	return nil
}

func checkMediaSource(sess snapshotter, player uint8, kind int, index uint8) error {
	top, _ := sess.Snapshot(mirror.Key{Kind: atoms.EntityTopology})
	if n := top["media_players"].Uint(); uint64(player) >= n {
		return burperrors.New("B301").WithDetailf("media player %d does not exist, switcher has %d", player, n)
	}
	pool, _ := sess.Snapshot(mirror.Key{Kind: atoms.EntityMediaPool})
	name, count := "still", pool["stills"].Uint()
	if kind == atoms.MediaClip {
		name, count = "clip", pool["clips"].Uint()
	}
	if uint64(index) >= count {
		return burperrors.New("B301").WithDetailf("%s %d does not exist, switcher has %d", name, index, count)
	}
	return nil
}
