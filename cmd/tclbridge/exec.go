package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caffeineduck/tclbridge/bridge"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var execCmd = &cobra.Command{
	Use:   "exec [file...]",
	Short: "Run scripts in order on one shared interpreter",
	Long: `Evaluate each script in order on one shared interpreter, so variables
and procedures defined by earlier scripts are visible to later ones.

Scripts come from repeated -c flags followed by file arguments.

  tclbridge exec -c 'set x 5' -c 'expr {$x + 1}'
  tclbridge exec --format json setup.tcl main.tcl`,
	RunE: runExec,
}

func init() {
	execCmd.Flags().StringArrayP("code", "c", nil, "Script to evaluate (repeatable)")
	execCmd.Flags().StringP("format", "f", "text", "Output format: text, json, yaml")
	execCmd.Flags().Duration("timeout", 0, "Timeout for each script (default: exec.timeout)")
	rootCmd.AddCommand(execCmd)
}

// execResult is the outcome of one script in json and yaml output.
type execResult struct {
	Script    string `json:"script" yaml:"script"`
	Result    string `json:"result,omitempty" yaml:"result,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty" yaml:"error_code,omitempty"`
	Duration  string `json:"duration" yaml:"duration"`
}

func runExec(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" && format != "yaml" {
		return fmt.Errorf("unknown format %q: use text, json or yaml", format)
	}

	scripts, _ := cmd.Flags().GetStringArray("code")
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		scripts = append(scripts, string(data))
	}
	if len(scripts) == 0 {
		return errors.New("no script: use -c or file arguments")
	}

	b, closeBridge, err := openBridge(cmd)
	if err != nil {
		return err
	}
	defer closeBridge()

	results := make([]execResult, 0, len(scripts))
	failed := 0
	for _, script := range scripts {
		ctx, cancel := commandContext(cmd)
		start := time.Now()
		res, err := b.CmdSync(ctx, script)
		cancel()

		r := execResult{Script: script, Duration: time.Since(start).String()}
		if err != nil {
			failed++
			r.Error = err.Error()
			var evalErr *bridge.EvalError
			if errors.As(err, &evalErr) {
				r.ErrorCode = evalErr.Code
			}
		} else {
			r.Result = res.String()
		}
		results = append(results, r)

		if format == "text" {
			writeText(cmd.OutOrStdout(), cmd.ErrOrStderr(), r)
		}
	}

	switch format {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	case "yaml":
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(results); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d scripts failed", failed, len(scripts))
	}
	return nil
}

func writeText(out, errOut io.Writer, r execResult) {
	if r.Error != "" {
		fmt.Fprintf(errOut, "Error: %s\n", r.Error)
		return
	}
	if r.Result != "" {
		fmt.Fprintln(out, r.Result)
	}
}
