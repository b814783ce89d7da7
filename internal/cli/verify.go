package cli

import (
	"encoding/json"
	"fmt"

	"certquiz-service/internal/app"
	"certquiz-service/internal/config"
	"certquiz-service/internal/logger"
	"github.com/spf13/cobra"
)

// NewVerifyCmd looks a certificate up in the configured store.
func NewVerifyCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <certificate-id>",
		Short: "Check whether a certificate exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

			store, closeStore, err := openCertificateStore(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeStore()

			cert, found, err := app.NewCertificateService(store).Verify(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("certificate %s not found", args[0])
			}
			cert.Questions = nil
			cert.UserAnswers = nil
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cert)
		},
	}
}
