package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "caseload",
	Short:         "Therapy clinic caseload coordinator",
	Long:          `caseload assigns clients to therapists, tracks their therapy workflow and enforces the clinic's subscription quotas over MCP.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(cmd.Context(), cmd.OutOrStdout())
	},
}

var tiersCmd = &cobra.Command{
	Use:   "tiers",
	Short: "Print the subscription tier catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTiers(cmd.OutOrStdout())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "caseload %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, tiersCmd, versionCmd, keysCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
