package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/foldersearch/internal/index"
	"github.com/Aman-CERP/foldersearch/internal/output"
)

func newSyncCmd(root *rootOptions) *cobra.Command {
	var jsonOutput bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "sync <folder>",
		Short: "Bring a folder's index up to date",
		Long: `Create the folder's index if it does not exist, otherwise run one
incremental pass: files modified since the last pass are re-indexed and files
that no longer exist are removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := root.resolveTarget(args[0])
			if err != nil {
				return err
			}

			status := output.New(cmd.OutOrStdout())
			if jsonOutput {
				status = output.New(cmd.ErrOrStderr())
			}
			s, result, err := t.openAndSync(cmd.Context(), status, true)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			out := output.New(cmd.OutOrStdout())
			t.printSyncSummary(out, result)
			if verbose {
				for _, f := range result.Files {
					if f.Outcome == index.OutcomeUnchanged {
						continue
					}
					out.Field(f.Name, f.Path)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the pass result as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List every file the pass changed or skipped")

	return cmd
}
