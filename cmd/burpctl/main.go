package main

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	burperrors "github.com/vango-dev/burp/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		burperrors.Fprint(stderr, err)
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{out: stdout, errOut: stderr}

	rootCmd := &cobra.Command{
		Use:   "burpctl",
		Short: "Control and monitor BURP video switchers",
		Long: `burpctl talks to broadcast video switchers over the BURP control
protocol. It mirrors the switcher's state, streams changes as they
happen and sends commands such as cuts and input changes.

The switcher address comes from --addr, BURP_ADDR or burp.yaml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.noColor || !isTerminal(stdout) {
				color.NoColor = true
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "path to burp.yaml")
	flags.StringVarP(&a.addr, "addr", "a", "", "switcher address (host or host:port)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(
		watchCmd(a),
		dumpCmd(a),
		cutCmd(a),
		autoCmd(a),
		programCmd(a),
		previewCmd(a),
		colourCmd(a),
		blackCmd(a),
		ftbCmd(a),
		captureCmd(a),
		mediaPlayerCmd(a),
		startupCmd(a),
		relayCmd(a),
		configCmd(a),
		versionCmd(a),
	)
	return rootCmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
