package cli

import (
	"fmt"

	"github.com/fmuoria/recruit-crm/internal/notify"
	"github.com/spf13/cobra"
)

func newGmailTokenCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "gmail-token",
		Short: "Authorize Gmail sending and save the OAuth token",
		RunE: func(cmd *cobra.Command, args []string) error {
			n := o.cfg.Notify
			if n.GmailCredentialsFile == "" {
				return fmt.Errorf("notify.gmail_credentials_file is not set")
			}
			return notify.AuthorizeGmail(cmd.Context(), n.GmailCredentialsFile, n.GmailTokenFile, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
