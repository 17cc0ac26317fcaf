package cmd

import (
	"encoding/hex"

	"github.com/gematik/pca/pkg/pca"
	"github.com/spf13/cobra"
)

var infoCard string

func init() {
	infoCmd.Flags().StringVarP(&infoCard, "card", "c", "", "card id, defaults to every provisioned card")
	rootCmd.AddCommand(infoCmd)
}

type infoView struct {
	Card  string   `json:"card"`
	Info  pca.Info `json:"info"`
	Flags []string `json:"flags"`
	TLV   string   `json:"tlv"`
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the PolymorphicInfo of provisioned cards",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		service, err := pca.NewServiceFromConfig(cmd.Context(), config)
		if err != nil {
			return err
		}
		ids := []string{infoCard}
		if infoCard == "" {
			if ids, err = service.Cards().ListCards(cmd.Context()); err != nil {
				return err
			}
		}

		views := make([]infoView, 0, len(ids))
		for _, id := range ids {
			info, err := service.Info(cmd.Context(), id)
			if err != nil {
				return err
			}
			tlv, err := info.MarshalTLV()
			if err != nil {
				return err
			}
			views = append(views, infoView{Card: id, Info: info, Flags: info.Flags.Names(), TLV: hex.EncodeToString(tlv)})
		}
		return printJSON(views)
	},
}
