package main

import (
	"os"

	"github.com/aretw0/botlink/internal/cli"
	"github.com/aretw0/botlink/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <program.json>",
	Short: "Print a program as an outline or a Mermaid flowchart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plain, _ := cmd.Flags().GetBool("plain")
		mermaid, _ := cmd.Flags().GetBool("mermaid")
		return cli.Show(args[0], os.Stdout, cli.ShowOptions{
			Styled:  !plain && tui.IsTerminal(os.Stdout),
			Mermaid: mermaid,
		})
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <program.json>",
	Short: "Check a program for unknown or misplaced functions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Validate(args[0], os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(validateCmd)

	showCmd.Flags().Bool("plain", false, "Print raw Markdown even on a terminal")
	showCmd.Flags().Bool("mermaid", false, "Print a Mermaid flowchart instead of the outline")
}
