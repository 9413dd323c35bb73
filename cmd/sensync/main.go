// Sensync bridges a Senville mini-split air conditioner onto the local
// network: it keeps a display model synchronized with the appliance over its
// LAN protocol and exposes it through a REST API and an optional MQTT mirror.
//
// Usage:
//
//	sensync run --config-file /etc/sensync/config.json
//
// See 'sensync --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "sensync",
	Short: "Senville mini-split sync bridge",
	Long: `Sensync keeps a local display model synchronized with a Senville
mini-split air conditioner and exposes it over REST and MQTT.`,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configFile, "config-file", "/etc/sensync/config.json", "Path to the JSON config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sensync %s (commit: %s)\n", version, commit)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
