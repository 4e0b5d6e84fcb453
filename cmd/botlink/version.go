package main

import (
	"fmt"

	"github.com/aretw0/botlink"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of botlink",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("botlink version %s\n", botlink.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
