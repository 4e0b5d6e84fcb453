package main

import (
	"context"
	"os"

	"github.com/aretw0/botlink/internal/cli"
	"github.com/aretw0/botlink/internal/config"
	"github.com/aretw0/botlink/internal/presentation/tui"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the coordination server and serve programs",
	Long: `Loads the configuration file, applies flag overrides, then connects to the first
coordination server that answers and serves it until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		applyRunFlags(cmd, &cfg)

		debug, _ := cmd.Flags().GetBool("debug")
		return cli.Run(context.Background(), cli.RunOptions{
			Config: cfg,
			Debug:  debug,
			Banner: tui.IsTerminal(os.Stdout),
			Out:    os.Stdout,
		})
	},
}

// applyRunFlags overrides file values with the flags the user set explicitly.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("address") {
		cfg.Addresses, _ = flags.GetStringArray("address")
	}
	if flags.Changed("name") {
		cfg.Name, _ = flags.GetString("name")
	}
	if flags.Changed("password") {
		cfg.Password, _ = flags.GetString("password")
	}
	if insecure, _ := flags.GetBool("insecure"); insecure {
		cfg.Secure = false
	}
	if noVerify, _ := flags.GetBool("no-verify"); noVerify {
		cfg.Verify = false
	}
	if flags.Changed("transport") {
		cfg.Transport, _ = flags.GetString("transport")
	}
	if flags.Changed("reconnect") {
		cfg.ReconnectAttempts, _ = flags.GetInt("reconnect")
	}
	if flags.Changed("status") {
		cfg.Status.Address, _ = flags.GetString("status")
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", config.DefaultPath, "Configuration file (YAML, or JSON by extension)")
	cmd.Flags().StringArrayP("address", "a", nil, "Coordination server address, repeatable, tried in order")
	cmd.Flags().StringP("name", "n", "", "Robot name (default: host name)")
	cmd.Flags().String("password", "", "Robot password")
	cmd.Flags().Bool("insecure", false, "Use plain http/ws instead of TLS")
	cmd.Flags().Bool("no-verify", false, "Skip TLS certificate verification")
	cmd.Flags().String("transport", config.TransportWebsocket, "Live connection: websocket or socket")
	cmd.Flags().Int("reconnect", 10, "Reconnect attempts before giving up (negative: forever)")
	cmd.Flags().String("status", "", "Serve the status surface on this address (e.g. :8080)")
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)
}
