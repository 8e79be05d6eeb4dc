// Package cmd provides the CLI commands for foldersearch.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/foldersearch/internal/config"
	fserrors "github.com/Aman-CERP/foldersearch/internal/errors"
	"github.com/Aman-CERP/foldersearch/internal/logging"
	"github.com/Aman-CERP/foldersearch/pkg/version"
)

// rootOptions holds the global flags shared by every subcommand.
type rootOptions struct {
	indexDir string
	debug    bool

	loggingCleanup func()
}

// NewRootCmd creates the root command for the foldersearch CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "foldersearch",
		Short: "Keep a folder's full-text index in sync and search it",
		Long: `foldersearch mirrors a directory tree into a persistent full-text index
and answers term, phrase and regular-expression queries against it.

Each run brings the index up to date incrementally: only files modified since
the previous pass are re-read, and files that disappeared are dropped.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("foldersearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&opts.indexDir, "index-dir", "", "Directory holding indexes (default ~/.foldersearch/indexes)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging (also copied to stderr)")

	cmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return opts.startLogging()
	}
	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		opts.stopLogging()
		return nil
	}

	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newSyncCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging routes slog to the log file. CLI commands never log to stdout.
func (o *rootOptions) startLogging() error {
	logCfg := logging.DefaultConfig()
	if o.debug {
		logCfg = logging.DebugConfig()
	} else if cfg, err := config.Load(""); err == nil {
		logCfg = logging.ServerConfig(cfg.Server.LogLevel)
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// An unwritable log directory must not break searching.
		slog.SetDefault(logging.Discard())
		return nil
	}
	o.loggingCleanup = cleanup
	slog.SetDefault(logger)
	if o.debug {
		slog.Debug("debug_logging_enabled",
			slog.String("log_file", logCfg.FilePath),
			slog.String("version", version.Version))
	}
	return nil
}

func (o *rootOptions) stopLogging() {
	if o.loggingCleanup != nil {
		o.loggingCleanup()
		o.loggingCleanup = nil
	}
}

// Execute runs the root command with signal-aware cancellation and prints
// any error in CLI form.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, NewRootCmd(), os.Args[1:], os.Stderr)
}

func run(ctx context.Context, root *cobra.Command, args []string, errOut io.Writer) error {
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		if debug, _ := root.PersistentFlags().GetBool("debug"); debug {
			_, _ = fmt.Fprint(errOut, fserrors.FormatDetailed(err))
		} else {
			_, _ = fmt.Fprint(errOut, fserrors.FormatForCLI(err))
		}
	}
	return err
}
