package cmd

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	fserrors "github.com/Aman-CERP/foldersearch/internal/errors"
	"github.com/Aman-CERP/foldersearch/internal/index"
	"github.com/Aman-CERP/foldersearch/internal/output"
	"github.com/Aman-CERP/foldersearch/internal/watcher"
)

// watchOptions holds CLI flags shared by watch and serve.
type watchOptions struct {
	polling      bool
	pollInterval time.Duration
}

func (o *watchOptions) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.polling, "polling", false, "Poll the folder instead of using filesystem notifications")
	cmd.Flags().DurationVar(&o.pollInterval, "poll-interval", watcher.DefaultOptions().PollInterval, "Scan interval in polling mode")
}

// newRunner builds a watcher that triggers sync passes on s.
func (t *target) newRunner(s *index.Synchronizer, o watchOptions, opts ...watcher.RunnerOption) (*watcher.Runner, error) {
	debounce, err := t.cfg.WatchDebounce()
	if err != nil {
		return nil, fserrors.New(fserrors.ErrCodeConfigInvalid, "invalid watch.debounce", err)
	}

	w, err := watcher.New(watcher.Options{
		DebounceWindow: debounce,
		PollInterval:   o.pollInterval,
		SkipPaths:      s.SkipPaths(),
		ForcePolling:   o.polling,
	})
	if err != nil {
		return nil, err
	}

	opts = append([]watcher.RunnerOption{
		watcher.WithGitignoreInvalidator(s.Scanner().InvalidateGitignoreCache),
	}, opts...)
	return watcher.NewRunner(s, w, opts...), nil
}

func newWatchCmd(root *rootOptions) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch <folder>",
		Short: "Keep a folder's index in sync as files change",
		Long: `Sync the folder once, then watch it and run an incremental pass after
every burst of changes. Press Ctrl+C to stop.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := root.resolveTarget(args[0])
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			s, result, err := t.openAndSync(ctx, out, true)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()
			t.printSyncSummary(out, result)

			runner, err := t.newRunner(s, opts,
				watcher.WithResultHandler(func(r *index.SyncResult) {
					if r.Changed() {
						out.Statusf("↻", "%s: %d indexed, %d truncated, %d deleted",
							time.Now().Format("15:04:05"), r.Indexed, r.Truncated, r.Deleted)
					}
				}),
				watcher.WithErrorHandler(func(err error) {
					out.Error(fserrors.FormatForCLI(err))
				}),
			)
			if err != nil {
				return err
			}

			out.Statusf("👀", "Watching %s (Ctrl+C to stop)", t.folder)
			slog.Info("watch_started", slog.String("folder", t.folder))
			if err := runner.Run(ctx, t.folder); err != nil {
				return err
			}
			out.Newline()
			out.Line("Stopped.")
			return nil
		},
	}

	opts.register(cmd)

	return cmd
}
