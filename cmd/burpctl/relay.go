package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/vango-dev/burp"
	"github.com/vango-dev/burp/pkg/transport"
)

func relayCmd(a *app) *cobra.Command {
	var (
		listen    string
		anyOrigin bool
	)
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Bridge WebSocket clients to the switcher's UDP port",
		Long: `Serve a WebSocket endpoint at /burp. Each client gets its own UDP
socket to the switcher, and each binary message carries one datagram.
Clients connect with transport: websocket and addr: ws://host/burp.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			target := burp.WithDefaultPort(a.cfg.Addr)
			relay := &transport.Relay{
				Dial: func(ctx context.Context) (transport.Transport, error) {
					return transport.DialUDP(ctx, target)
				},
				Logger: a.logger,
			}
			if anyOrigin {
				relay.Upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
			}

			r := chi.NewRouter()
			r.Use(middleware.Recoverer)
			r.Handle("/burp", relay)

			srv := &http.Server{Addr: listen, Handler: r, ReadHeaderTimeout: 5 * time.Second}
			errc := make(chan error, 1)
			go func() { errc <- srv.ListenAndServe() }()
			a.success("relaying ws://%s/burp to %s", listen, target)

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
				sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer scancel()
				return srv.Shutdown(sctx)
			}
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", ":9911", "listen address")
	cmd.Flags().BoolVar(&anyOrigin, "any-origin", false, "accept WebSocket upgrades from any origin")
	return cmd
}
