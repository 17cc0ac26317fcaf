package cmd

import (
	"log/slog"
	"os"

	"github.com/gematik/pca/pkg/pca"
	"github.com/gematik/pca/pkg/pca/api"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	serveCmd.Flags().StringP("addr", "a", "", "address to listen on, overrides listen_addr")
	viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the provisioned cards over HTTP",
	Run: func(cmd *cobra.Command, args []string) {
		config, err := loadConfig()
		if err != nil {
			slog.Error("Failed to load config", "error", err)
			os.Exit(1)
		}

		service, err := pca.NewServiceFromConfig(cmd.Context(), config)
		if err != nil {
			slog.Error("Failed to create card service", "error", err)
			os.Exit(1)
		}
		pcaAPI, err := api.NewPcaAPI(service)
		if err != nil {
			slog.Error("Failed to create API", "error", err)
			os.Exit(1)
		}

		e := echo.New()
		e.HideBanner = true
		e.Use(middleware.Recover())

		pcaAPI.MountRoutes(e.Group("/pca"))

		addr := viper.GetString("addr")
		if addr == "" {
			addr = config.ListenAddr
		}
		slog.Info("Starting Polymorphic Card Application", "version", pca.Version, "addr", addr, "store", config.Store.Backend)
		e.Logger.Fatal(e.Start(addr))
	},
}
