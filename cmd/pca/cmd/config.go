package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the loaded configuration",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Config file: %s\n", configFile())
		config, err := loadConfig()
		if err != nil {
			slog.Error("Failed to load config", "error", err)
			return
		}
		fmt.Printf("Base dir: %s\n", config.BaseDir)
		yaml.NewEncoder(cmd.OutOrStdout()).Encode(config)
	},
}
