package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/site-analyzer/internal/export"
)

func newExportCmd() *cobra.Command {
	var (
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export <domain>",
		Short: "Exports a stored site record as JSON, Markdown or Excel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			record, err := appInstance.Artifacts().Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if out == "" {
				if f == export.FormatXLSX {
					out = record.Domain + "." + f.Extension()
				} else {
					return export.Write(cmd.OutOrStdout(), record, f)
				}
			}
			file, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			defer func() {
				if cerr := file.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}()
			if err := export.Write(file, record, f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "export format: json, markdown or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout; xlsx defaults to <domain>.xlsx)")
	return cmd
}
