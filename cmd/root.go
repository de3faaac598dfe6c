package cmd

import (
	"fmt"
	"os"

	"github.com/namelessnanashi/census/cmd/report"
	"github.com/namelessnanashi/census/cmd/serve"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "census",
		Short: "anonymous daily-usage census",
		Long: fmt.Sprintf(`census (v%s)

An anonymous daily-usage census service written in Go: installations
report a one-way hashed id once per UTC day, the server deduplicates
and counts per project, and aggregated per-day statistics are served
over HTTP.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of census",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("census v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(report.ReportCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
