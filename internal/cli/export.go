package cli

import (
	"fmt"
	"time"

	"github.com/fmuoria/recruit-crm/internal/export"
	"github.com/fmuoria/recruit-crm/internal/models"
	"github.com/spf13/cobra"
)

func newExportCmd(o *rootOptions) *cobra.Command {
	var (
		requirementID int64
		outPath       string
		filter        models.CandidateFilter
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a requirement's candidates to an Excel workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, o.cfg, o.log)
			if err != nil {
				return err
			}
			defer a.Close()

			table, err := a.agent.Candidates(ctx, requirementID, filter)
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = export.Filename(requirementID, time.Now())
			}
			path, err := export.SaveCandidates(table, outPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d candidates to %s\n", len(table.Rows), path)
			return nil
		},
	}

	cmd.Flags().Int64VarP(&requirementID, "requirement", "r", 0, "requirement id to export")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output .xlsx path (default candidates_req_<id>_<timestamp>.xlsx)")
	cmd.Flags().StringVar(&filter.Name, "name", "", "only candidates whose name contains this")
	cmd.Flags().StringVar(&filter.Email, "email", "", "only candidates whose email contains this")
	cmd.Flags().StringVar(&filter.Phone, "phone", "", "only candidates whose phone contains this")
	cmd.Flags().StringVar(&filter.Location, "location", "", "only candidates whose current location contains this")
	_ = cmd.MarkFlagRequired("requirement")
	return cmd
}
