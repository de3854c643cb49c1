package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the interpreter's Tcl version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		b, closeBridge, err := openBridge(cmd)
		if err != nil {
			return err
		}
		defer closeBridge()

		ctx, cancel := commandContext(cmd)
		defer cancel()

		v, err := b.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
