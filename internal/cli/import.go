package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/fmuoria/recruit-crm/internal/agent"
	"github.com/fmuoria/recruit-crm/internal/models"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newImportCmd(o *rootOptions) *cobra.Command {
	var (
		requirementID int64
		mode          string
		addedBy       string
		yes           bool
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a candidate sheet into a requirement",
		Long: `Import parses a CSV, TSV or XLSX sheet, suggests a column mapping and, once
confirmed, inserts the valid rows. Invalid rows are listed with their errors.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			a, err := newApp(ctx, o.cfg, o.log)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.agent.Requirement(ctx, requirementID); err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()

			upload, err := a.agent.Upload(ctx, filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			printDecisions(out, upload.Mappings)

			if !yes {
				question := fmt.Sprintf("Import %d rows into requirement %d?", upload.TotalRows, requirementID)
				if !confirm(cmd.InOrStdin(), out, question) {
					fmt.Fprintln(out, "Aborted")
					return nil
				}
			}

			pairs := make(models.ColumnMappings, 0, len(upload.Mappings))
			for _, d := range upload.Mappings {
				if d.Matched != "" {
					pairs = append(pairs, models.MappingPair{Uploaded: d.Uploaded, Matched: d.Matched})
				}
			}

			bar := progressbar.NewOptions(upload.TotalRows,
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionSetDescription("Validating rows..."),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(cmd.ErrOrStderr())
				}),
			)
			a.agent.SetProgressCallback(func(current, total int, message string) {
				bar.Describe(message)
				_ = bar.Set(current)
			})

			res, err := a.agent.Commit(ctx, models.CommitRequest{
				RequirementID: requirementID,
				UploadID:      upload.UploadID,
				Mappings:      pairs,
				Mode:          mode,
				AddedBy:       addedBy,
			})
			_ = bar.Finish()
			if err != nil {
				return err
			}
			printCommit(out, res)
			return nil
		},
	}

	cmd.Flags().Int64VarP(&requirementID, "requirement", "r", 0, "requirement id to import into")
	cmd.Flags().StringVar(&mode, "mode", agent.ModeAll, "commit mode: all or draft")
	cmd.Flags().StringVar(&addedBy, "added-by", os.Getenv("USER"), "recorded as the candidate's added_by")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "import without asking for confirmation")
	_ = cmd.MarkFlagRequired("requirement")
	return cmd
}

func printDecisions(w io.Writer, decisions []models.MappingDecision) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	for _, d := range decisions {
		fmt.Fprintf(w, "  %-32s -> ", d.Uploaded)
		if d.Matched == "" {
			yellow.Fprintln(w, "(unmapped)")
			continue
		}
		green.Fprintf(w, "%-24s", d.Matched)
		fmt.Fprintf(w, " %.2f  %s\n", d.Confidence, d.Status)
	}
}

// confirm asks a yes/no question; anything but y or yes is a no
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func printCommit(w io.Writer, res *models.CommitResult) {
	color.New(color.FgGreen).Fprintf(w, "✓ Inserted %d candidates\n", res.Inserted)
	if len(res.Invalid) > 0 {
		red := color.New(color.FgRed)
		red.Fprintf(w, "✗ %d rows not imported\n", len(res.Invalid))
		for _, inv := range res.Invalid {
			// blank lines are dropped at parse time, so count data rows only
			fmt.Fprintf(w, "  data row %d: %s\n", inv.RowIndex+1, strings.Join(inv.Errors, "; "))
		}
	}
	if res.Message != "" {
		color.New(color.FgYellow).Fprintln(w, res.Message)
	}
}
