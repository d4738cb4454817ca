package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hotgluexyz/target-dynamics-onprem/dynamics"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the URL and credentials by listing companies",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client := dynamics.NewClient(cfg)
		companies, err := client.Companies(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "check")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", client.CollectionRoot, cfg.APIStyle())
		for _, company := range companies {
			fmt.Fprintln(cmd.OutOrStdout(), company)
		}
		return nil
	},
}
