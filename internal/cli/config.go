package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate configuration the way the service does at startup",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration OK (gateway %s, merchant %s)\n", cfg.Gateway.Environment, cfg.Gateway.MerchantID)
			return nil
		},
	}

	configCmd.AddCommand(checkCmd)
	return configCmd
}
