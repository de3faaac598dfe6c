package serve

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/namelessnanashi/census/api"
	cmdUtil "github.com/namelessnanashi/census/cmd/util"
	"github.com/namelessnanashi/census/lib/kv"
	"github.com/namelessnanashi/census/lib/kv/httpstore"
	"github.com/namelessnanashi/census/lib/kv/memstore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &api.Config{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the census server",
		Long:    `Start the census server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is CENSUS_<flag> (e.g. CENSUS_LOG_LEVEL=debug)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. 0.0.0.0:8080)"))

	key = "store"
	ServeCmd.PersistentFlags().String(key, "memory", cmdUtil.WrapString("Storage backend to use. One of: memory (embedded in-process store), http (remote census node serving the KV protocol)"))

	key = "store-endpoints"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(http store) Comma-separated list of KV backend base URLs (e.g. http://kv-1:8080,http://kv-2:8080)"))

	key = "store-timeout"
	ServeCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("(http store) The timeout in seconds for one storage request"))

	key = "store-retries"
	ServeCmd.PersistentFlags().Int(key, 3, cmdUtil.WrapString("(http store) How many times to retry a storage request"))

	key = "store-gc-interval"
	ServeCmd.PersistentFlags().Int(key, 1, cmdUtil.WrapString("(memory store) Interval in seconds between garbage collection passes for expired keys"))

	key = "serve-kv"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Expose the raw KV storage protocol under /kv so this node can act as the storage backend for other census nodes"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts it to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.ServeKV = viper.GetBool("serve-kv")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	switch backend := viper.GetString("store"); backend {
	case "memory", "http":
	default:
		return fmt.Errorf("invalid store backend: %s (expected one of: memory, http)", backend)
	}

	if viper.GetString("store") == "http" && viper.GetString("store-endpoints") == "" {
		return fmt.Errorf("store-endpoints is required for the http store backend")
	}

	return nil
}

// run starts the census server
func run(_ *cobra.Command, _ []string) error {
	setupLogger(serveCmdConfig.LogLevel)

	// create the storage backend
	var (
		store kv.IStore
		err   error
	)
	switch viper.GetString("store") {
	case "memory":
		opts := memstore.DefaultOptions()
		opts.GCInterval = time.Duration(viper.GetInt("store-gc-interval")) * time.Second
		store = memstore.New(opts)
	case "http":
		store, err = httpstore.New(httpstore.Config{
			Endpoints:     strings.Split(viper.GetString("store-endpoints"), ","),
			TimeoutSecond: viper.GetInt("store-timeout"),
			RetryCount:    viper.GetInt("store-retries"),
		})
		if err != nil {
			return fmt.Errorf("failed to create http store: %w", err)
		}
	}
	defer func() {
		_ = store.Close()
	}()

	return api.NewServer(*serveCmdConfig, store).Serve()
}

// setupLogger installs the process-wide slog handler at the configured level
func setupLogger(level string) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}
