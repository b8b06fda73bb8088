package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dennwc/assetcache"
	"github.com/dennwc/assetcache/content/notion"
	"github.com/dennwc/assetcache/logging"
)

func init() {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "download all assets referenced by the content source into the corpus",
		Args:  cobra.NoArgs,
		RunE: withConfig(func(ctx context.Context, e *env, flags *pflag.FlagSet, _ []string) error {
			conf := e.conf
			if flags.Changed("workers") {
				conf.Pipeline.Workers, _ = flags.GetInt("workers")
			}
			if flags.Changed("page-workers") {
				conf.Pipeline.PageWorkers, _ = flags.GetInt("page-workers")
			}
			if flags.Changed("metrics-file") {
				conf.MetricsFile, _ = flags.GetString("metrics-file")
			}
			strict, _ := flags.GetBool("strict")

			if err := conf.RequireSource(); err != nil {
				return err
			}
			src, err := notion.New(notion.Config{
				Token:             conf.Notion.Token,
				DatabaseID:        conf.Notion.DatabaseID,
				BaseURL:           conf.Notion.BaseURL,
				RequestsPerSecond: conf.Notion.RequestsPerSecond,
				Logger:            e.log,
			})
			if err != nil {
				return err
			}
			st, err := conf.OpenCorpus(ctx, true)
			if err != nil {
				return err
			}
			defer st.Close()

			reg := prometheus.NewRegistry()
			idx, sum, err := assetcache.Build(ctx, assetcache.BuildOptions{
				Source:      src,
				Storage:     st,
				Workers:     conf.Pipeline.Workers,
				PageWorkers: conf.Pipeline.PageWorkers,
				Timeout:     conf.Timeout(),
				Log:         e.log,
				Metrics:     assetcache.NewMetrics(reg),
				Debug:       conf.Debug,
			})
			if conf.MetricsFile != "" {
				if merr := assetcache.WriteMetrics(conf.MetricsFile, reg); merr != nil {
					e.log.Warn("cannot write metrics", logging.String("path", conf.MetricsFile), logging.Error(merr))
				}
			}
			if err != nil {
				return err
			}
			fmt.Println(sum)
			e.log.Debug("corpus indexed", logging.Int("assets", idx.Len()))
			if strict && (sum.Failed != 0 || sum.Unresolvable != 0 || sum.FailedPages != 0) {
				return fmt.Errorf("%d assets and %d pages failed", sum.Failed+sum.Unresolvable, sum.FailedPages)
			}
			return nil
		}),
	}
	cmd.Flags().IntP("workers", "w", assetcache.DefaultWorkers, "number of concurrent downloads")
	cmd.Flags().Int("page-workers", assetcache.DefaultPageWorkers, "number of pages processed concurrently")
	cmd.Flags().String("metrics-file", "", "write metrics in Prometheus text format to this file")
	cmd.Flags().Bool("strict", false, "exit with an error if any asset or page failed")
	Root.AddCommand(cmd)
}
