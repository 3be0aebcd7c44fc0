package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/burp/internal/config"
	burperrors "github.com/vango-dev/burp/internal/errors"
)

func configCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create burp.yaml",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			data, err := a.cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = a.out.Write(data)
			return err
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [addr]",
		Short: "Write a burp.yaml with default values",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if path == "" {
				path = config.ConfigFileName
			}
			if _, err := os.Stat(path); err == nil && !force {
				return burperrors.Newf(burperrors.CategoryConfig, "%s already exists", path).
					WithSuggestion("Use --force to overwrite it.")
			}
			cfg := config.New()
			if len(args) == 1 {
				cfg.Addr = args[0]
			}
			if err := cfg.SaveTo(path); err != nil {
				return err
			}
			a.success("wrote %s", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	cmd.AddCommand(show, initCmd)
	return cmd
}
