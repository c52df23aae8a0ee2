package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "posetrack",
	Short:         "Skeletal tracking frame processor",
	Version:       GetVersion(),
	SilenceUsage:  true,
	SilenceErrors: false,
	Long: `posetrack turns skeletal tracking frames into render-ready skeletons,
detects simple poses from the proximity of body landmarks and streams the
results to the configured sinks.`,
}

// setupVersion configures the version display
func setupVersion() {
	rootCmd.SetVersionTemplate(GetVersionInfo() + "\n")
}

func Execute() {
	setupVersion()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}
