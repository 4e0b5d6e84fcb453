package main

import (
	"context"
	"os"

	"github.com/aretw0/botlink/internal/cli"
	"github.com/spf13/cobra"
)

var execCmd = &cobra.Command{
	Use:   "exec <program.json>",
	Short: "Run a program offline against a recording robot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		delay, _ := cmd.Flags().GetInt("delay")
		triggers, _ := cmd.Flags().GetStringSlice("trigger")
		debug, _ := cmd.Flags().GetBool("debug")
		mermaid, _ := cmd.Flags().GetBool("mermaid")

		return cli.Exec(context.Background(), cli.ExecOptions{
			Path:     args[0],
			Delay:    delay,
			Triggers: triggers,
			Debug:    debug,
			Mermaid:  mermaid,
			Out:      os.Stdout,
		})
	},
}

func init() {
	rootCmd.AddCommand(execCmd)

	execCmd.Flags().Int("delay", 0, "Seconds to pause after every nested call")
	execCmd.Flags().Bool("mermaid", false, "Print a Mermaid flowchart of the visited blocks afterwards")
	execCmd.Flags().StringSliceP("trigger", "t", nil, "Triggers to fire after the run (start, front, word, ...)")
}
