package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/invsearch/internal/index"
	"github.com/Aman-CERP/invsearch/internal/output"
	"github.com/Aman-CERP/invsearch/internal/profiling"
)

func newReindexCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from the database",
		Long: `Rebuild the whole search index from the database.

The server must be stopped: only one process may write the index.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runReindex(ctx, cmd, opts)
		},
	}
}

type reindexResult struct {
	Indexed    int    `json:"indexed"`
	DurationMS int64  `json:"duration_ms"`
	HeapInUse  string `json:"heap_in_use"`
}

func runReindex(ctx context.Context, cmd *cobra.Command, opts *globalOptions) error {
	out, err := opts.writer(cmd)
	if err != nil {
		return err
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if out.Format() == output.FormatText {
		out.Status("🔄", "Rebuilding search index...")
	}
	start := time.Now()
	n, err := a.indexer.RebuildAll(ctx)
	if err != nil {
		return err
	}
	res := reindexResult{
		Indexed:    n,
		DurationMS: time.Since(start).Milliseconds(),
		HeapInUse:  profiling.FormatBytes(profiling.HeapInUse()),
	}
	slog.Debug("reindex_complete", slog.Int("documents", n))

	return out.Emit(res, func() {
		out.Successf("Indexed %d documents in %s", n, time.Duration(res.DurationMS)*time.Millisecond)
		out.KeyValue("index", cfg.IndexPath())
		out.KeyValue("heap in use", res.HeapInUse)
	})
}

func newCheckCmd(opts *globalOptions) *cobra.Command {
	var repair, quick bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare the search index with the database",
		Long: `Compare every inventory and item in the database with the documents in
the search index and report orphans and missing documents.

--quick compares counts only, which is fast but can miss drift that
cancels out. --repair fixes what a full check finds.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd.Context(), cmd, opts, quick, repair)
		},
	}

	cmd.Flags().BoolVar(&repair, "repair", false, "Index missing documents and delete orphans")
	cmd.Flags().BoolVar(&quick, "quick", false, "Compare document counts only")
	cmd.MarkFlagsMutuallyExclusive("repair", "quick")

	return cmd
}

type checkIssue struct {
	Type  string `json:"type"`
	DocID string `json:"doc_id"`
}

type checkResult struct {
	Consistent bool         `json:"consistent"`
	Checked    int          `json:"checked,omitempty"`
	Indexed    int          `json:"indexed,omitempty"`
	Issues     []checkIssue `json:"issues,omitempty"`
	Repaired   int          `json:"repaired,omitempty"`
}

func runCheck(ctx context.Context, cmd *cobra.Command, opts *globalOptions, quick, repair bool) error {
	out, err := opts.writer(cmd)
	if err != nil {
		return err
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if quick {
		ok, err := a.checker.QuickCheck(ctx)
		if err != nil {
			return err
		}
		return out.Emit(checkResult{Consistent: ok}, func() {
			if ok {
				out.Success("Document counts match")
			} else {
				out.Warning("Document counts differ; run 'invsearch check --repair'")
			}
		})
	}

	res, err := a.checker.Check(ctx)
	if err != nil {
		return err
	}
	result := checkResult{Consistent: res.Consistent(), Checked: res.Checked, Indexed: res.Indexed}
	for _, issue := range res.Inconsistencies {
		result.Issues = append(result.Issues, checkIssue{Type: issue.Type.String(), DocID: issue.DocID})
	}
	if repair && !res.Consistent() {
		result.Repaired, err = a.checker.Repair(ctx, res.Inconsistencies)
		if err != nil {
			return err
		}
	}

	return out.Emit(result, func() { printCheck(out, result, res) })
}

func printCheck(out *output.Writer, result checkResult, res *index.CheckResult) {
	out.KeyValue("database", result.Checked)
	out.KeyValue("index", result.Indexed)
	out.KeyValue("duration", res.Duration.Round(time.Millisecond))
	if result.Consistent {
		out.Success("Index is consistent")
		return
	}
	out.Warningf("%d inconsistencies", len(result.Issues))
	for _, issue := range result.Issues {
		out.Statusf("", "%-8s %s", issue.Type, issue.DocID)
	}
	if result.Repaired > 0 {
		out.Successf("Repaired %d documents", result.Repaired)
	}
}
