package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gematik/pca/pkg/pca"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(decryptCmd)
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt [disclosure-hex]",
	Short: "Decrypt a disclosure with the configured private keys",
	Long:  "Decrypt a hex encoded disclosure. The disclosure is read from stdin when no argument is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var input string
		if len(args) == 1 {
			input = args[0]
		} else {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			input = string(data)
		}
		raw, err := hex.DecodeString(strings.TrimSpace(input))
		if err != nil {
			return fmt.Errorf("disclosure is not hex encoded: %w", err)
		}
		d, err := pca.ParseDisclosure(raw)
		if err != nil {
			return err
		}

		config, err := loadConfig()
		if err != nil {
			return err
		}
		keys, err := config.Keys.Load()
		if err != nil {
			return err
		}
		view, err := describeDisclosure(d, keys)
		if err != nil {
			return err
		}
		return printJSON(view)
	},
}
