package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/cellgrid/internal/config"
	"github.com/MeKo-Tech/cellgrid/internal/version"
)

var (
	// Configuration loader of the running command.
	configLoader *config.Loader
	// Configuration of the running command.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "cellgrid",
	Short: "Table grid reconstruction and sensor tagging over OCR block graphs",
	Long: `cellgrid turns the block graph of a table-aware OCR backend into
rectangular table grids and serves annotation sessions in which table cells
are selected, tagged with sensor identifiers and saved.

This tool provides:
- Grid reconstruction with merged-cell resolution
- Header inference for tagged cells through OpenAI, Anthropic or a remote service
- Sub-region crops mapped from the display to source image pixels
- An HTTP API with a websocket event stream per session

Examples:
  cellgrid analyze scan.png --format csv
  cellgrid analyze --blocks response.json --format json
  cellgrid crop scan.png --rect 40,30,200,120 --display 800,600 --out crop.jpg
  cellgrid serve --port 8080`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(cmd); err != nil {
			return err
		}
		setupLogging(globalConfig)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version.String()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $XDG_CONFIG_HOME/cellgrid, /etc/cellgrid)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
}

// initConfig loads the configuration for cmd. Persistent flags are bound so
// they take precedence over the file and the environment.
func initConfig(cmd *cobra.Command) error {
	configLoader = config.NewLoader()
	v := configLoader.GetViper()
	if err := v.BindPFlag("verbose", cmd.Flags().Lookup("verbose")); err != nil {
		return err
	}
	if err := v.BindPFlag("log_level", cmd.Flags().Lookup("log-level")); err != nil {
		return err
	}

	cfg, err := configLoader.LoadWithFile(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	globalConfig = cfg
	return nil
}

// setupLogging installs the JSON logger. Logs go to stderr so command output
// on stdout stays machine readable.
func setupLogging(cfg *config.Config) {
	var logLevel slog.Level
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			logLevel = slog.LevelDebug
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		default:
			logLevel = slog.LevelInfo
		}
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}

// GetConfig returns the configuration of the running command.
func GetConfig() *config.Config {
	if globalConfig == nil {
		return config.DefaultConfig()
	}
	return globalConfig
}
