package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run a script on a fresh interpreter",
	Long: `Evaluate a Tcl script on a brand-new isolated interpreter that is
discarded afterwards.

The script can be provided via:
  - File argument: tclbridge run script.tcl
  - Inline flag: tclbridge run -c 'expr {6 * 7}'
  - Stdin: echo 'expr {6 * 7}' | tclbridge run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringP("code", "c", "", "Script to evaluate")
	runCmd.Flags().Duration("timeout", 0, "Execution timeout (default: exec.timeout)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	source, err := readSource(cmd, args)
	if err != nil {
		return err
	}

	b, closeBridge, err := openBridge(cmd)
	if err != nil {
		return err
	}
	defer closeBridge()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	o := <-b.Cmd(ctx, source)
	if o.Err != nil {
		return o.Err
	}

	if v := o.Result.String(); v != "" {
		fmt.Fprintln(cmd.OutOrStdout(), v)
	}
	return nil
}
