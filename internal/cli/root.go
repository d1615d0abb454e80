// Package cli implements the recruit-crm command line: the API server plus
// maintenance and one-shot import commands.
package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/fmuoria/recruit-crm/internal/config"
	"github.com/fmuoria/recruit-crm/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	cfgFile string
	noColor bool

	cfg *config.Config
	log zerolog.Logger
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	o := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "recruit-crm",
		Short: "Candidate import service for Recruit CRM",
		Long: `recruit-crm imports candidate sheets into requirements. It maps uploaded
column headers onto the candidate schema, learns from confirmed mappings and
validates rows before they are saved.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if o.noColor {
				color.NoColor = true
			}
			cfg, err := config.Load(o.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			o.cfg = cfg
			o.log = logging.New(cfg.Log, cmd.ErrOrStderr())
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&o.cfgFile, "config", "c", "", "config file path (default $RECRUIT_CONFIG or the per-user config)")
	cmd.PersistentFlags().BoolVar(&o.noColor, "no-color", false, "disable colored output")

	cmd.AddCommand(
		newServeCmd(o),
		newMigrateCmd(o),
		newMappingsCmd(o),
		newImportCmd(o),
		newExportCmd(o),
		newRequirementCmd(o),
		newGmailTokenCmd(o),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}
