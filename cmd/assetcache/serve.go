package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dennwc/assetcache"
	assethttp "github.com/dennwc/assetcache/http"
	"github.com/dennwc/assetcache/logging"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the asset index and the corpus over HTTP",
		Args:  cobra.NoArgs,
		RunE: withConfig(func(ctx context.Context, e *env, flags *pflag.FlagSet, _ []string) error {
			host, _ := flags.GetString("host")

			st, err := e.conf.OpenCorpus(ctx, false)
			if err != nil {
				return err
			}
			defer st.Close()

			reg := prometheus.NewRegistry()
			idx, err := assetcache.BuildIndex(ctx, st, assetcache.IndexOptions{
				Log:     e.log,
				Debug:   e.conf.Debug,
				Metrics: assetcache.NewMetrics(reg),
			})
			if err != nil {
				return err
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			mux.Handle("/", assethttp.NewServer(idx, st, "/", e.log))

			srv := &http.Server{
				Addr:              host,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(sctx)
			}()
			e.log.Info("listening", logging.String("host", host), logging.Int("assets", idx.Len()))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}),
	}
	cmd.Flags().String("host", "localhost:9080", "host to listen on")
	Root.AddCommand(cmd)
}
