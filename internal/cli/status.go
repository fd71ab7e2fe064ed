package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pittisunilkumar3/nibog-sub001/internal/apperr"
	"github.com/pittisunilkumar3/nibog-sub001/internal/config"
	"github.com/pittisunilkumar3/nibog-sub001/internal/gateway"
)

type statusView struct {
	TransactionID string                 `json:"transactionId"`
	Classified    gateway.Classification `json:"classified"`
	Status        string                 `json:"status"`
	Code          string                 `json:"code"`
	AmountPaise   int64                  `json:"amountPaise"`
}

func newStatusCmd() *cobra.Command {
	statusCmd := &cobra.Command{
		Use:   "status <merchant-transaction-id>",
		Short: "Query the gateway for the status of a payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			client := gateway.NewClient(gateway.ConfigFrom(cfg.Gateway), slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil)))

			var result *gateway.StatusResult
			if wait, _ := cmd.Flags().GetBool("wait"); wait {
				result, err = client.PollUntilTerminal(cmd.Context(), args[0],
					cfg.Gateway.PollAttempts, config.Millis(cfg.Gateway.PollDelayMs))
			} else {
				result, err = client.CheckStatus(cmd.Context(), args[0])
			}
			if result == nil {
				return err
			}
			if err != nil && !apperr.Is(err, apperr.PaymentFailed) {
				return err
			}

			return printJSON(cmd.OutOrStdout(), statusView{
				TransactionID: result.TransactionID,
				Classified:    result.Classified,
				Status:        string(result.Status),
				Code:          result.Raw.Code,
				AmountPaise:   result.Raw.Data.Amount,
			})
		},
	}
	statusCmd.Flags().Bool("wait", false, "Re-query a pending payment until it settles (gateway.poll-attempts, gateway.poll-delay-ms)")
	return statusCmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.LoadConfig(path)
}
