package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/julius-speech/julius-sub004/internal/lm"
)

func newCompileLMCmd() *cobra.Command {
	var scale float64

	cmd := &cobra.Command{
		Use:   "compile-lm [arpa-file] [out-file]",
		Short: "Freeze an ARPA language model into the packed binary format internal/lm loads directly",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := lm.FromARPAFile(args[0], scale)
			if err != nil {
				return fmt.Errorf("compile-lm: %w", err)
			}
			if err := model.WriteBinary(args[1]); err != nil {
				return fmt.Errorf("compile-lm: write %s: %w", args[1], err)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&scale, "scale", 1.5, "hash table size multiplier")
	return cmd
}
