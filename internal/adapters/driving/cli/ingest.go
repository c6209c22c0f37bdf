package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/logger"
	"github.com/custodia-labs/ragchat/internal/watcher"
)

var (
	ingestNamespace string
	ingestChunkSize int
	ingestOverlap   int
	ingestWatch     bool
	ingestJSON      bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <paths...>",
	Short: "Load documents into the vector index",
	Long: `Loads files, splits them into overlapping chunks, embeds the chunks and
writes them into a namespace of the vector index.

Supported formats: .pdf, .txt, .csv, .md and .markdown. Directories are
walked recursively; hidden files and unsupported formats inside them are
skipped. Re-ingesting a file overwrites its earlier chunks.

With --watch, ragchat keeps running and re-ingests files as they change.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestNamespace, "namespace", "n", "", "namespace to write into (default: retrieval.namespace)")
	ingestCmd.Flags().IntVar(&ingestChunkSize, "chunk-size", 0, "maximum chunk length in characters (default: chunking.size)")
	ingestCmd.Flags().IntVar(&ingestOverlap, "overlap", 0, "characters shared by adjacent chunks (default: chunking.overlap)")
	ingestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "keep running and re-ingest changed files")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	rt, err := load(cmd, NeedIndex, func(o *LoadOptions) {
		o.ChunkSize = ingestChunkSize
		if cmd.Flags().Changed("overlap") {
			overlap := ingestOverlap
			o.Overlap = &overlap
		}
	})
	if err != nil {
		return err
	}
	if rt.Ingest == nil {
		return fmt.Errorf("ingestion: %w", domain.ErrConfiguration)
	}

	ctx := cmd.Context()
	paths, err := expandPaths(args, rt.Supports)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("%w: no supported files found", domain.ErrInvalidInput)
	}

	report, err := rt.Ingest.IngestInto(ctx, paths, ingestNamespace)
	if report != nil {
		if outErr := outputIngestReport(cmd, report); outErr != nil {
			return outErr
		}
	}
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	if ingestWatch {
		return watchAndIngest(ctx, cmd, rt, args)
	}
	return nil
}

// expandPaths walks directories for supported files. Files named
// explicitly are kept even when unsupported so the report explains them.
func expandPaths(args []string, supports func(string) bool) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != arg && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if supports == nil || supports(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}
	return paths, nil
}

type ingestReportJSON struct {
	Namespace string            `json:"namespace"`
	Loaded    int               `json:"loaded"`
	Skipped   int               `json:"skipped"`
	Chunks    int               `json:"chunks"`
	Indexed   int               `json:"indexed"`
	Failures  map[string]string `json:"failures,omitempty"`
}

func outputIngestReport(cmd *cobra.Command, report *domain.IngestReport) error {
	if ingestJSON {
		out := ingestReportJSON{
			Namespace: report.Namespace,
			Loaded:    report.Loaded,
			Skipped:   report.Skipped,
			Chunks:    len(report.Chunks),
			Indexed:   report.Indexed,
		}
		if len(report.Failures) > 0 {
			out.Failures = make(map[string]string, len(report.Failures))
			for _, f := range report.Failures {
				out.Failures[f.Path] = f.Err.Error()
			}
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Loaded %d file(s), skipped %d.\n", report.Loaded, report.Skipped)
	cmd.Printf("Indexed %d of %d chunk(s) into namespace %q.\n", report.Indexed, len(report.Chunks), report.Namespace)
	for _, f := range report.Failures {
		cmd.Printf("  skipped %s: %v\n", f.Path, f.Err)
	}
	return nil
}

// watchAndIngest re-ingests files under roots as they change until ctx is done.
func watchAndIngest(ctx context.Context, cmd *cobra.Command, rt *Runtime, roots []string) error {
	w := watcher.New(roots, watcher.WithFilter(func(path string) bool {
		return rt.Supports == nil || rt.Supports(path)
	}))
	defer w.Close()

	changes, err := w.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	cmd.Println("Watching for changes. Press Ctrl+C to stop.")

	for batch := range changes {
		var paths []string
		for _, c := range batch {
			if c.Type == watcher.ChangeDeleted {
				logger.Warn("%s was removed; its chunks stay in the index until overwritten", c.Path)
				continue
			}
			paths = append(paths, c.Path)
		}
		if len(paths) == 0 {
			continue
		}

		report, err := rt.Ingest.IngestInto(ctx, paths, ingestNamespace)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("Re-ingest failed: %v", err)
			continue
		}
		cmd.Printf("Re-ingested %d file(s): %d chunk(s) into %q.\n", report.Loaded, report.Indexed, report.Namespace)
		for _, f := range report.Failures {
			cmd.Printf("  skipped %s: %v\n", f.Path, f.Err)
		}
	}
	return nil
}
