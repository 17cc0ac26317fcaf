package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/gematik/pca/pkg/pca"
	"github.com/joho/godotenv"
	"github.com/phsym/console-slog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var verbose = false
var workdir = ""

var (
	rootCmd = &cobra.Command{
		Use:   "pca",
		Short: "Polymorphic Card Application simulator",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if workdir != "" {
				err := os.Chdir(workdir)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Failed to change working directory: %v\n", err)
					os.Exit(1)
				}
			}
			godotenv.Load()

			logLevel := slog.LevelInfo
			if verbose {
				logLevel = slog.LevelDebug
			}
			if os.Getenv("PRETTY_LOGS") != "false" {
				logger := slog.New(
					console.NewHandler(os.Stderr, &console.HandlerOptions{Level: logLevel}),
				)
				slog.SetDefault(logger)
			} else {
				slog.SetLogLoggerLevel(logLevel)
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	viper.AutomaticEnv()
	viper.SetEnvPrefix("PCA")
	persistendFlags := rootCmd.PersistentFlags()
	persistendFlags.StringVarP(&workdir, "workdir", "w", "", "working directory")
	persistendFlags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	persistendFlags.StringP("config-file", "f", "pca.yaml", "config file, relative to working directory")
	viper.BindPFlag("config_file", persistendFlags.Lookup("config-file"))
}

// configFile returns the configured file, falling back to $XDG_CONFIG_HOME/pca/pca.yaml
// when the default is not present in the working directory.
func configFile() string {
	path := pca.ExpandPath(viper.GetString("config_file"))
	if _, err := os.Stat(path); err == nil || filepath.IsAbs(path) {
		return path
	}
	fallback := filepath.Join(xdg.ConfigHome, "pca", filepath.Base(path))
	if _, err := os.Stat(fallback); err == nil {
		return fallback
	}
	return path
}

func loadConfig() (*pca.Config, error) {
	path := configFile()
	config, err := pca.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config file %q: %w", path, err)
	}
	return config, nil
}
