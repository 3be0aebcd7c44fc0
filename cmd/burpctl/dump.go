package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/burp/pkg/mirror"
	"github.com/vango-dev/burp/pkg/mirrorstore"
)

func dumpCmd(a *app) *cobra.Command {
	var (
		asJSON bool
		save   bool
	)
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the switcher's full state and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			sess, err := a.dial(ctx, connectOptions{})
			if err != nil {
				return err
			}
			defer sess.Disconnect(ctx)

			if err := sess.WaitSynced(ctx); err != nil {
				return err
			}
			snap := sess.Export()

			if save {
				store, err := a.openStore(ctx)
				if err != nil {
					return err
				}
				if store == nil {
					a.warn("no snapshot store configured; --save ignored")
				} else {
					defer store.Close()
					if err := mirrorstore.SaveSnapshot(ctx, store, a.cfg.SwitcherAddr(), snap, a.cfg.Store.TTL); err != nil {
						return err
					}
				}
			}

			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			printSnapshot(a.out, snap)
			for tag, n := range sess.UnknownTags() {
				a.warn("%d unknown %s atoms skipped", n, tag)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	cmd.Flags().BoolVar(&save, "save", false, "also save the snapshot to the configured store")
	return cmd
}

// printSnapshot writes one line per entity, fields sorted by name. Entries
// seeded from a stored snapshot and not yet confirmed are marked stale.
func printSnapshot(w io.Writer, snap *mirror.Snapshot) {
	if snap.Version != "" {
		fmt.Fprintf(w, "protocol %s, %d entities\n", snap.Version, snap.Len())
	}
	for _, e := range snap.Entries {
		names := make([]string, 0, len(e.Fields))
		for name := range e.Fields {
			names = append(names, name)
		}
		slices.Sort(names)

		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, name+"="+e.Fields[name].String())
		}
		line := strings.Join(parts, " ")
		if e.Stale {
			line += dim.Sprint(" (stale)")
		}
		fmt.Fprintf(w, "%-12s %s\n", keyColor.Sprint(e.Key.String()), line)
	}
}
