package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dennwc/assetcache/config"
)

func init() {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write a sample config file and create the corpus directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigName
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.CreateSample(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			cmd.Flags().Set("config", path)
			return withConfig(func(ctx context.Context, e *env, _ *pflag.FlagSet, _ []string) error {
				st, err := e.conf.OpenCorpus(ctx, true)
				if err != nil {
					return err
				}
				return st.Close()
			})(cmd, nil)
		},
	}
	Root.AddCommand(cmd)
}
