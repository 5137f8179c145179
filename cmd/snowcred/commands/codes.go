package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/snowcred/internal/config"
	dserrors "github.com/systmms/snowcred/internal/errors"
)

type codeOutput struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

func NewCodesCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "codes",
		Short: "List the result codes snowcred reports",
		Long: `Print every result code with its name.

The host stores these numbers, so they never change between releases.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			codes := dserrors.Codes()

			if cfg.Output == config.OutputJSON {
				out := make([]codeOutput, 0, len(codes))
				for _, c := range codes {
					out = append(out, codeOutput{Code: c.Int(), Name: c.String()})
				}
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(out); err != nil {
					return fmt.Errorf("failed to encode JSON: %w", err)
				}
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "CODE\tNAME\n")
			_, _ = fmt.Fprintf(w, "----\t----\n")
			for _, c := range codes {
				_, _ = fmt.Fprintf(w, "%d\t%s\n", c.Int(), c)
			}
			return w.Flush()
		},
	}
}
