package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRequirementCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requirement",
		Short: "Manage requirements",
	}

	var name, client string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a requirement to import candidates into",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), o.cfg, o.log)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.repo.CreateRequirement(cmd.Context(), name, client)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created requirement %d\n", id)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "requirement name")
	create.Flags().StringVar(&client, "client", "", "client name")
	_ = create.MarkFlagRequired("name")

	cmd.AddCommand(create)
	return cmd
}
