package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hotgluexyz/target-dynamics-onprem/dynamics"
)

func runTarget(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	var in io.Reader = os.Stdin
	if input, _ := cmd.Flags().GetString("input"); input != "" {
		f, err := os.Open(input)
		if err != nil {
			return eris.Wrap(err, "open input")
		}
		defer f.Close() //nolint:errcheck
		in = f
	}

	target := dynamics.NewTarget(cfg, dynamics.NewClient(cfg))
	if err := target.Process(ctx, in); err != nil {
		return err
	}

	for _, stream := range target.State.Streams() {
		summary := target.State.Summary(stream)
		zap.L().Info("stream finished",
			zap.String("stream", stream),
			zap.Int("success", summary.Success),
			zap.Int("fail", summary.Fail),
		)
	}
	return target.State.WriteMessage(cmd.OutOrStdout())
}
