package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/fmuoria/recruit-crm/internal/models"
	"github.com/spf13/cobra"
)

func newMappingsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mappings",
		Short: "List learned header mappings, most used first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), o.cfg, o.log)
			if err != nil {
				return err
			}
			defer a.Close()

			learned, err := a.agent.LearnedMappings(cmd.Context())
			if err != nil {
				return err
			}
			printLearned(cmd.OutOrStdout(), learned)
			return nil
		},
	}
}

func confidenceColor(c float64) *color.Color {
	switch {
	case c >= 0.9:
		return color.New(color.FgGreen)
	case c >= 0.7:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

func printLearned(w io.Writer, learned []models.LearnedMapping) {
	if len(learned) == 0 {
		fmt.Fprintln(w, "No learned mappings yet")
		return
	}

	bold := color.New(color.Bold)
	bold.Fprintf(w, "%-32s %-24s %6s %10s  %s\n", "UPLOADED", "COLUMN", "WEIGHT", "CONFIDENCE", "LAST USED")
	for _, m := range learned {
		fmt.Fprintf(w, "%-32s %-24s %6d ", m.UploadedColRaw, m.DBCol, m.Weight)
		confidenceColor(m.Confidence).Fprintf(w, "%10.2f", m.Confidence)
		fmt.Fprintf(w, "  %s\n", m.LastUsed.Format("2006-01-02 15:04"))
	}
}
