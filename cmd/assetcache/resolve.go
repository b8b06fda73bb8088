package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dennwc/assetcache"
	"github.com/dennwc/assetcache/types"
)

func init() {
	cmd := &cobra.Command{
		Use:   "resolve url [url ...]",
		Short: "print the corpus path of assets referenced by remote URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: withConfig(func(ctx context.Context, e *env, flags *pflag.FlagSet, args []string) error {
			st, err := e.conf.OpenCorpus(ctx, false)
			if err != nil {
				return err
			}
			defer st.Close()
			idx, err := assetcache.BuildIndex(ctx, st, assetcache.IndexOptions{
				Log:   e.log,
				Debug: e.conf.Debug,
			})
			if err != nil {
				return err
			}
			missing := 0
			for _, s := range args {
				a := idx.Resolve(s)
				if a == nil {
					missing++
					fmt.Printf("%s\t-\n", s)
					continue
				}
				fmt.Printf("%s\t%s\n", s, a.Path)
			}
			if missing != 0 {
				return fmt.Errorf("%d of %d assets are not in the corpus", missing, len(args))
			}
			return nil
		}),
	}
	Root.AddCommand(cmd)

	keyCmd := &cobra.Command{
		Use:   "key url [url ...]",
		Short: "print the corpus key derived from remote URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range args {
				key, err := types.ParseURLKey(s)
				if err != nil {
					return fmt.Errorf("%q: %w", s, err)
				}
				fmt.Println(key)
			}
			return nil
		},
	}
	Root.AddCommand(keyCmd)
}
