package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vango-dev/burp/pkg/mirror"
	"github.com/vango-dev/burp/pkg/mirrorstore"
	"github.com/vango-dev/burp/pkg/session"
)

func watchCmd(a *app) *cobra.Command {
	var (
		httpAddr string
		asJSON   bool
		filter   string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream state changes from the switcher",
		Long: `Connect, mirror the switcher's state and print every change as it
arrives. With --http the mirror, health and Prometheus metrics are
served over HTTP. When a snapshot store is configured the mirror is
saved periodically and used to seed the next run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			match, err := newEventFilter(filter)
			if err != nil {
				return err
			}
			if httpAddr == "" {
				httpAddr = a.cfg.HTTP.Addr
			}
			return a.watch(httpAddr, asJSON, match)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve state and metrics on this address")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print events as JSON lines")
	cmd.Flags().StringVarP(&filter, "filter", "f", "", `only print events matching this expression, e.g. 'kind == "me"'`)
	return cmd
}

func (a *app) watch(httpAddr string, asJSON bool, match *eventFilter) error {
	ctx, cancel := signalContext()
	defer cancel()

	metrics, registry := newMetrics()
	co := connectOptions{metrics: metrics}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		co.store = store
	}

	sess, err := a.dial(ctx, co)
	if err != nil {
		return err
	}
	a.success("connected to %s", a.cfg.SwitcherAddr())

	go a.printLifecycle(sess.Lifecycle())

	recorded := make(chan int, 1)
	if store != nil {
		rec := mirrorstore.NewRecorder(store, sess, mirrorstore.RecorderConfig{
			Name:     a.cfg.SwitcherAddr(),
			Interval: a.cfg.Store.Interval,
			TTL:      a.cfg.Store.TTL,
		}, a.logger)
		go func() { recorded <- rec.Run(context.WithoutCancel(ctx)) }()
	} else {
		recorded <- 0
	}

	if httpAddr != "" {
		srv := &http.Server{
			Addr:              httpAddr,
			Handler:           newRouter(sess, registry, a.logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("http server failed", "addr", httpAddr, "error", err)
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			srv.Shutdown(sctx)
		}()
		a.success("serving state on http://%s", httpAddr)
	}

	err = a.streamEvents(ctx, sess, asJSON, match)

	dctx, dcancel := context.WithTimeout(context.Background(), time.Second)
	defer dcancel()
	sess.Disconnect(dctx)
	if n := <-recorded; n > 0 {
		a.logger.Info("snapshots saved", "count", n)
	}
	return err
}

// streamEvents prints change events until ctx ends or the session stops.
// A mirror reset ends the event sequence; it is reopened after the new dump.
func (a *app) streamEvents(ctx context.Context, sess *session.Session, asJSON bool, match *eventFilter) error {
	enc := json.NewEncoder(a.out)
	for {
		for ev := range sess.Events(ctx) {
			if !match.Match(ev) {
				continue
			}
			if asJSON {
				if err := enc.Encode(ev); err != nil {
					return err
				}
				continue
			}
			printEvent(a.out, ev)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-sess.Done():
			return sess.Err()
		case <-time.After(50 * time.Millisecond):
		}
		if err := sess.WaitSynced(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		a.warn("mirror resynchronised, %d entities", len(sess.Keys()))
	}
}

func (a *app) printLifecycle(ch <-chan session.Transition) {
	for tr := range ch {
		switch {
		case tr.Err != nil && tr.To == session.Reconnecting:
			a.warn("%s → %s: %v", tr.From, tr.To, tr.Err)
		case tr.Err != nil:
			fmt.Fprintf(a.errOut, "%s %s → %s: %v\n", color.RedString("✗"), tr.From, tr.To, tr.Err)
		default:
			a.logger.Debug("state", "from", tr.From, "to", tr.To)
		}
	}
}

var (
	keyColor = color.New(color.FgCyan, color.Bold)
	dim      = color.New(color.FgHiBlack)
)

// printEvent writes one event as "kind/id  field old → new, ...".
func printEvent(w io.Writer, ev mirror.ChangeEvent) {
	parts := make([]string, 0, len(ev.Fields))
	for _, f := range ev.Fields {
		if f.Had {
			parts = append(parts, fmt.Sprintf("%s %s → %s", f.Name, dim.Sprint(f.Old), f.New))
		} else {
			parts = append(parts, fmt.Sprintf("%s %s", f.Name, f.New))
		}
	}
	fmt.Fprintf(w, "%-12s %s\n", keyColor.Sprint(ev.Key.String()), strings.Join(parts, ", "))
}
