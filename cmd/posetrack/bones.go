package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bodybasics/posetrack/internal/skeleton"
)

var bonesCmd = &cobra.Command{
	Use:   "bones",
	Short: "Print the skeleton bone table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\tFROM\tTO")
		for i, b := range skeleton.Bones {
			fmt.Fprintf(w, "%d\t%s\t%s\n", i, b[0], b[1])
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(bonesCmd)
}
