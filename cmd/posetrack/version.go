package main

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

// Version information - can be overridden at build time with -ldflags
var (
	version   = "dev"
	gitCommit = ""
	buildDate = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), GetVersionInfo())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// GetVersion returns the current version string
func GetVersion() string {
	if version != "dev" {
		return version
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}

	return "dev"
}

// GetVersionInfo returns detailed version information
func GetVersionInfo() string {
	var b strings.Builder

	fmt.Fprintf(&b, "posetrack version %s", GetVersion())
	if gitCommit != "" {
		fmt.Fprintf(&b, "\ncommit: %s", gitCommit)
	}
	if buildDate != "" {
		fmt.Fprintf(&b, "\nbuilt: %s", buildDate)
	}

	return b.String()
}
