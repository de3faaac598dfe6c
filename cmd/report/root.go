package report

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	cmdUtil "github.com/namelessnanashi/census/cmd/util"
	"github.com/namelessnanashi/census/reporter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var ReportCmd = &cobra.Command{
	Use:     "report",
	Short:   "Send an anonymous usage ping",
	Long:    `Send an anonymous usage ping to a census collector. The ping contains only a one-way hashed installation id and a project name. By default one ping is sent and the command exits; with --daemon it keeps reporting every 2 hours aligned to even UTC hours.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return cmdUtil.BindCommandFlags(cmd)
	},
	RunE:    run,
}

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "collector"
	ReportCmd.PersistentFlags().String(key, reporter.DefaultEndpoint, cmdUtil.WrapString("The census collector URL to report to"))

	key = "project"
	ReportCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The project name to report (required)"))

	key = "state-file"
	ReportCmd.PersistentFlags().String(key, ".telemetry_id", cmdUtil.WrapString("File in which the random installation id is persisted"))

	key = "daemon"
	ReportCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Keep running and report periodically instead of sending a single ping"))
}

func run(_ *cobra.Command, _ []string) error {
	project := viper.GetString("project")
	if project == "" {
		return fmt.Errorf("project is required")
	}

	r := reporter.New(reporter.Config{
		Endpoint:     viper.GetString("collector"),
		Project:      project,
		StateFile:    viper.GetString("state-file"),
		OptOutEnvVar: "CENSUS_TELEMETRY_OPTOUT",
	})

	if !viper.GetBool("daemon") {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return r.Send(ctx)
	}

	if err := r.Start(); err != nil {
		return err
	}
	defer func() {
		_ = r.Stop()
	}()

	// block until interrupted
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	return nil
}
