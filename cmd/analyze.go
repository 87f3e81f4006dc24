package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
	"github.com/JakeFAU/site-analyzer/internal/artifact"
)

func newAnalyzeCmd() *cobra.Command {
	var fullMode bool
	cmd := &cobra.Command{
		Use:   "analyze <url>",
		Short: "Analyzes one website in-process and waits for the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return analyze(cmd.Context(), appInstance, args[0], fullMode, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&fullMode, "full", false, "use the extended page and time budget")
	return cmd
}

func analyze(ctx context.Context, appInstance App, url string, fullMode bool, out io.Writer) error {
	orch := appInstance.Orchestrator()
	workerCtx, stopWorkers := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		orch.Run(workerCtx)
	}()
	defer func() {
		stopWorkers()
		<-done
	}()

	id, err := orch.Start(ctx, url, fullMode)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "analysis %s started for %s\n", id, url)

	var (
		lastProgress = -1.0
		lastSummary  int
	)
	run, err := orch.Wait(ctx, id, func(run analyzer.Run) {
		if run.Progress != lastProgress {
			lastProgress = run.Progress
			fmt.Fprintf(out, "[%3.0f%%] %s\n", run.Progress, run.Status)
		}
		for _, s := range run.Summaries[min(lastSummary, len(run.Summaries)):] {
			fmt.Fprintf(out, "       %s\n", s.Summary)
		}
		lastSummary = len(run.Summaries)
	})
	if err != nil {
		return err
	}
	if run.Status == analyzer.StatusError {
		return fmt.Errorf("%w: %s", analyzer.ErrFatalRun, run.Error)
	}

	record, err := appInstance.Artifacts().Load(ctx, run.Domain)
	if err != nil && !errors.Is(err, analyzer.ErrNotFound) {
		return err
	}
	fmt.Fprintf(out, "done: %d links saved to %s\n", len(record.Links), artifact.FileName(run.Domain))
	return nil
}
