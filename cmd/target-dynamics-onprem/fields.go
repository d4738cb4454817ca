package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hotgluexyz/target-dynamics-onprem/dynamics"
)

var fieldsCmd = &cobra.Command{
	Use:         "fields [stream...]",
	Short:       "Print the field mappings of each stream as CSV",
	Annotations: map[string]string{"config": "mappings-only"},
	RunE: func(cmd *cobra.Command, args []string) error {
		streams := args
		if len(streams) == 0 {
			streams = dynamics.KnownStreams
		}
		for i, stream := range streams {
			doc, err := dynamics.GenerateFieldDocumentation(cfg, stream)
			if err != nil {
				return err
			}
			out, err := doc.FormatCSV()
			if err != nil {
				return err
			}
			if i > 0 {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
		}
		return nil
	},
}
