package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/gematik/pca/pkg/pca"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Polymorphic Card Application v%s\n", pca.Version)
		expanded, err := filepath.Abs(configFile())
		if err != nil {
			fmt.Printf("Error expanding config file: %s\n", err)
		} else {
			fmt.Println("Config file:", expanded)
		}

		fmt.Println("Working directory:", workdir)
	},
}
