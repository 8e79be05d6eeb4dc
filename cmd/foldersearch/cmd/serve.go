package cmd

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/foldersearch/internal/mcp"
	"github.com/Aman-CERP/foldersearch/internal/output"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var opts watchOptions
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "serve <folder>",
		Short: "Serve a folder's index to MCP clients over stdio",
		Long: `Sync the folder, then start a Model Context Protocol server on stdin/stdout
exposing the search, sync, index_status and read_document tools.

The folder is watched while the server runs so the index stays current.
With --no-watch every search runs a sync pass first instead.

Stdout is reserved for JSON-RPC; logs go to the log file.`,
		Example: `  # Claude Desktop / Claude Code MCP entry
  {"command": "foldersearch", "args": ["serve", "/path/to/notes"]}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), root, args[0], opts, noWatch)
		},
	}

	opts.register(cmd)
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not watch the folder; sync before every search")

	return cmd
}

func runServe(ctx context.Context, root *rootOptions, folder string, opts watchOptions, noWatch bool) error {
	t, err := root.resolveTarget(folder)
	if err != nil {
		return err
	}

	// Nothing may reach stdout before the transport owns it.
	s, _, err := t.openAndSync(ctx, output.New(io.Discard), true)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	logger := slog.Default()

	srv, err := mcp.NewServer(s, mcp.Options{
		AutoSync:  noWatch,
		ResultCap: t.cfg.Search.ResultCap,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	if noWatch {
		return srv.Serve(ctx)
	}

	runner, err := t.newRunner(s, opts)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	gctx, cancel := context.WithCancel(gctx)
	defer cancel()

	g.Go(func() error { return runner.Run(gctx, t.folder) })
	g.Go(func() error {
		// The client closing stdin ends the session; stop watching with it.
		defer cancel()
		return srv.Serve(gctx)
	})

	err = g.Wait()
	logger.Info("serve_stopped", slog.String("folder", t.folder))
	return err
}
