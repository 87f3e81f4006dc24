package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/site-analyzer/internal/analyzer"
)

// statusView is the printable shape of a progress log.
type statusView struct {
	ID        string   `json:"analysisId" yaml:"analysisId"`
	URL       string   `json:"url" yaml:"url"`
	Domain    string   `json:"domain" yaml:"domain"`
	Status    string   `json:"status" yaml:"status"`
	Progress  float64  `json:"progress" yaml:"progress"`
	StartTime string   `json:"startTime" yaml:"startTime"`
	EndTime   string   `json:"endTime,omitempty" yaml:"endTime,omitempty"`
	Error     string   `json:"error,omitempty" yaml:"error,omitempty"`
	Summaries []string `json:"summaries" yaml:"summaries"`
	Recent    []string `json:"recentActions" yaml:"recentActions"`
}

func newStatusCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "status <analysis-id>",
		Short: "Prints the progress log of an analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			run, err := appInstance.Logs().Read(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), run, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}

func printStatus(w io.Writer, run analyzer.Run, output string) error {
	view := statusView{
		ID:        run.ID,
		URL:       run.URL,
		Domain:    run.Domain,
		Status:    string(run.Status),
		Progress:  run.Progress,
		StartTime: run.StartTime.UTC().Format(time.RFC3339),
		Error:     run.Error,
		Summaries: []string{},
		Recent:    []string{},
	}
	if run.EndTime != nil {
		view.EndTime = run.EndTime.UTC().Format(time.RFC3339)
	}
	for _, s := range run.Summaries {
		view.Summaries = append(view.Summaries, s.Summary)
	}
	for _, a := range run.RecentActions(5) {
		view.Recent = append(view.Recent, a.Action)
	}

	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(view); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		fmt.Fprintf(w, "%s  %s  %.0f%%\n", view.ID, view.Status, view.Progress)
		fmt.Fprintf(w, "url:    %s\n", view.URL)
		fmt.Fprintf(w, "domain: %s\n", view.Domain)
		if view.Error != "" {
			fmt.Fprintf(w, "error:  %s\n", view.Error)
		}
		for _, a := range view.Recent {
			fmt.Fprintf(w, "  - %s\n", a)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown output format %q", analyzer.ErrInput, output)
	}
}
