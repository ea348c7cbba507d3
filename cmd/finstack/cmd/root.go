package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"finstack/internal/compose"
	"finstack/pkg/logging"
)

var (
	cfgFile      string
	outputFormat string
	logLevel     string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "finstack",
	Short: "Operations CLI for the finstack finance platform",
	Long: `finstack launches and orchestrates the finance platform's services:
the session-auth server (gunicorn, port 8000), the wallet API (uvicorn,
port 8001) and the celery beat scheduler, plus the docker compose commands
that build and manage the containerized stack.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./finstack.yaml or $HOME/.finstack/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table or json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("finstack")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".finstack"))
		}
	}

	viper.SetEnvPrefix("FINSTACK")
	viper.AutomaticEnv()

	viper.SetDefault("compose.file", "")
	viper.SetDefault("compose.project", "")
	viper.SetDefault("compose.app_service", "session")
	viper.SetDefault("watch.paths", []string{"."})
	viper.SetDefault("watch.debounce", "300ms")
	viper.SetDefault("history.enabled", true)
	viper.SetDefault("history.path", "")

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}
}

// IsJSONOutput returns true if JSON output is requested
func IsJSONOutput() bool {
	return outputFormat == "json"
}

// newLogger builds the CLI logger from the global flag
func newLogger() *logging.Logger {
	return logging.NewLogger(logging.ParseLevel(logLevel), false)
}

// composeConfig assembles the compose invoker config from viper
func composeConfig() compose.Config {
	return compose.Config{
		File:       viper.GetString("compose.file"),
		Project:    viper.GetString("compose.project"),
		AppService: viper.GetString("compose.app_service"),
	}
}

// watchDebounce reads the configured debounce window
func watchDebounce() time.Duration {
	d, err := time.ParseDuration(viper.GetString("watch.debounce"))
	if err != nil || d <= 0 {
		return 300 * time.Millisecond
	}
	return d
}
