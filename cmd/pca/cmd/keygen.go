package cmd

import (
	"encoding/hex"

	"github.com/gematik/pca/pkg/brainpool"
	"github.com/gematik/pca/pkg/pca"
	"github.com/gematik/pca/pkg/polymorph"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var keygenPublicOnly bool

func init() {
	keygenCmd.Flags().BoolVar(&keygenPublicOnly, "public-only", false, "omit the private keys")
	rootCmd.AddCommand(keygenCmd)
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate scheme keys as a keys config section",
	RunE: func(cmd *cobra.Command, args []string) error {
		curve := brainpool.P320r1()
		pi, err := polymorph.GenerateKeyPair(nil)
		if err != nil {
			return err
		}
		pp, err := polymorph.GenerateKeyPair(nil)
		if err != nil {
			return err
		}
		sectorKey, err := polymorph.NewSectorKey(nil)
		if err != nil {
			return err
		}

		keys := pca.KeysConfig{
			PIPublicKey: hex.EncodeToString(curve.MarshalUncompressed(pi.Q)),
			PPPublicKey: hex.EncodeToString(curve.MarshalUncompressed(pp.Q)),
			SectorKey:   hex.EncodeToString(sectorKey),
		}
		if !keygenPublicOnly {
			keys.PIPrivateKey = hex.EncodeToString(curve.CoordinateBytes(pi.D))
			keys.PPPrivateKey = hex.EncodeToString(curve.CoordinateBytes(pp.D))
		}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		defer enc.Close()
		return enc.Encode(struct {
			Keys pca.KeysConfig `yaml:"keys"`
		}{keys})
	},
}
