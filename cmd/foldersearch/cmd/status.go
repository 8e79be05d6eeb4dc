package cmd

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/foldersearch/internal/index"
	"github.com/Aman-CERP/foldersearch/internal/output"
	"github.com/Aman-CERP/foldersearch/internal/store"
)

// statusInfo is the status command's JSON shape.
type statusInfo struct {
	Indexed bool `json:"indexed"`
	// Syncing is set while another process holds the index writer.
	Syncing bool `json:"syncing"`
	*index.Status
	IndexBytes int64 `json:"index_bytes,omitempty"`
}

func newStatusCmd(root *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status <folder>",
		Short: "Show the state of a folder's index",
		Long: `Show where a folder's index lives, how many documents it holds and when
it last reflected the filesystem. Status never creates or updates an index.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := root.resolveTarget(args[0])
			if err != nil {
				return err
			}

			info, err := collectStatus(t)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			out := output.New(cmd.OutOrStdout())
			out.Field("Folder", t.folder)
			out.Field("Index", t.location)
			if !info.Indexed {
				out.Warning("Not indexed yet. Run 'foldersearch sync " + t.folder + "'")
				return nil
			}
			out.Field("Documents", output.Count(int(info.DocCount)))
			out.Field("Size", output.Bytes(info.IndexBytes))
			if info.Watermark.IsZero() {
				out.Field("Last sync", "never completed")
			} else {
				out.Field("Last sync", info.Watermark.Local().Format("2006-01-02 15:04:05"))
			}
			if info.Syncing {
				out.Field("Sync", "in progress")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")

	return cmd
}

// collectStatus inspects the index without creating it: directory existence is
// what marks a folder as indexed.
func collectStatus(t *target) (*statusInfo, error) {
	if _, err := os.Stat(t.location); os.IsNotExist(err) {
		return &statusInfo{
			Status: &index.Status{Folder: t.folder, Location: t.location},
		}, nil
	}

	// Checked before opening; the status reader never takes the writer.
	busy, err := store.WriterBusy(t.location)
	if err != nil {
		return nil, err
	}

	idx, _, err := store.Open(t.location)
	if err != nil {
		return nil, err
	}
	s, err := index.New(idx, t.indexConfig(nil))
	if err != nil {
		_ = idx.Close()
		return nil, err
	}
	defer func() { _ = s.Close() }()

	st, err := s.Status()
	if err != nil {
		return nil, err
	}
	return &statusInfo{
		Indexed:    true,
		Syncing:    busy,
		Status:     st,
		IndexBytes: dirSize(t.location),
	}, nil
}

// dirSize returns the total size of all files under path.
func dirSize(path string) int64 {
	var size int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size
}
