package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dennwc/assetcache/config"
	"github.com/dennwc/assetcache/logging"
)

var (
	Root = &cobra.Command{
		Use:           "assetcache [command]",
		Short:         "Materialize assets referenced by remote content into a local corpus",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	Root.PersistentFlags().StringP("config", "c", "", "path to the config file (default ./"+config.DefaultConfigName+")")
	Root.PersistentFlags().Bool("debug", false, "enable debug logging and lookup diagnostics")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := Root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// env is the state shared by all commands.
type env struct {
	conf *config.Config
	log  *slog.Logger
}

type cmdFunc func(ctx context.Context, e *env, flags *pflag.FlagSet, args []string) error

// withConfig loads the configuration, sets up logging and runs the command.
func withConfig(fnc cmdFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		path, _ := flags.GetString("config")
		conf, resolved, exists, err := config.Load(path)
		if err != nil {
			return err
		}
		if debug, _ := flags.GetBool("debug"); debug {
			conf.Debug = true
			conf.Logging.Level = "debug"
		}
		log, err := logging.New(logging.Options{
			Level:  conf.Logging.Level,
			Format: conf.Logging.Format,
			Output: cmd.ErrOrStderr(),
		})
		if err != nil {
			return err
		}
		if exists {
			log.Debug("loaded config", logging.String("path", resolved))
		} else {
			log.Debug("config file not found, using defaults", logging.String("path", resolved))
		}
		return fnc(cmd.Context(), &env{conf: conf, log: log}, flags, args)
	}
}
