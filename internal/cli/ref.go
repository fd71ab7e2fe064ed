package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pittisunilkumar3/nibog-sub001/internal/reference"
)

func newRefCmd() *cobra.Command {
	refCmd := &cobra.Command{
		Use:   "ref",
		Short: "Booking reference utilities",
	}

	deriveCmd := &cobra.Command{
		Use:   "derive <transaction-id>",
		Short: "Print the booking reference derived from a transaction id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := reference.Derive(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ref)
			return nil
		},
	}

	convertCmd := &cobra.Command{
		Use:   "convert <reference>",
		Short: "Rewrite a reference into another dialect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, _ := cmd.Flags().GetString("to")
			ref, err := reference.Convert(args[0], reference.Dialect(strings.ToUpper(to)))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ref)
			return nil
		},
	}
	convertCmd.Flags().String("to", "", "Target dialect: PPT or MAN")
	_ = convertCmd.MarkFlagRequired("to")

	refCmd.AddCommand(deriveCmd, convertCmd)
	return refCmd
}
