package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search <domain> <query...>",
		Short: "Searches the stored links of an analyzed domain",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := appInstance.Search().Search(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			if len(resp.Results) == 0 {
				fmt.Fprintln(out, "no matches")
				return nil
			}
			for i, r := range resp.Results {
				fmt.Fprintf(out, "%2d. [%s] %s\n    %s\n", i+1, r.MatchType, r.Title, r.URL)
				if r.Description != "" {
					fmt.Fprintf(out, "    %s\n", r.Description)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")
	return cmd
}
