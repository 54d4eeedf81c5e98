package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	rootCmd = &cobra.Command{
		Use:   "helpdesk",
		Short: "Customer support ticketing service",
		RunE:  runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}

	reapCmd = &cobra.Command{
		Use:   "reap",
		Short: "Close tickets that waited on the customer past the inactivity window, then exit",
		RunE:  runReap,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the helpdesk version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}

	envFile string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFile, "env-file", "e", "", "path to a .env file (optional)")
	rootCmd.AddCommand(serveCmd, reapCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
