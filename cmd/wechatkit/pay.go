package main

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ShinyNito/wechatkit/payment"
)

func newPayCmd(flags *globalFlags) *cobra.Command {
	payCmd := &cobra.Command{
		Use:   "pay",
		Short: "This command groups subcommands for signed payment calls.",
	}

	var (
		outRefundNo   string
		refundID      string
		outTradeNo    string
		transactionID string
	)
	queryCmd := &cobra.Command{
		Use:   "refund-query",
		Short: "Query refund status by exactly one identifier",
		Long: `
Usage: wechatkit pay refund-query [one of the identifier flags]

  Sends a signed refund query and prints the verified response fields.

      $ wechatkit pay refund-query --out-refund-no R1001
      $ wechatkit pay refund-query --transaction-id 4200000001
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.Payment == nil {
				return errors.New("payment is not configured")
			}

			var result map[string]string
			ctx := cmd.Context()
			switch {
			case outRefundNo != "":
				result, err = a.Payment.QueryByOutRefundNumber(ctx, outRefundNo)
			case refundID != "":
				result, err = a.Payment.QueryByRefundID(ctx, refundID)
			case outTradeNo != "":
				result, err = a.Payment.QueryByOutTradeNumber(ctx, outTradeNo)
			default:
				result, err = a.Payment.QueryByTransactionID(ctx, transactionID)
			}
			if err != nil {
				if payErr, ok := errors.AsType[*payment.Error](err); ok {
					return fmt.Errorf("refund query rejected: %w", payErr)
				}
				return err
			}

			out := cmd.OutOrStdout()
			for _, key := range slices.Sorted(maps.Keys(result)) {
				fmt.Fprintf(out, "%s=%s\n", key, result[key])
			}
			return nil
		},
	}
	queryCmd.Flags().StringVar(&outRefundNo, "out-refund-no", "", "Merchant refund number")
	queryCmd.Flags().StringVar(&refundID, "refund-id", "", "WeChat refund id")
	queryCmd.Flags().StringVar(&outTradeNo, "out-trade-no", "", "Merchant order number")
	queryCmd.Flags().StringVar(&transactionID, "transaction-id", "", "WeChat transaction id")
	queryCmd.MarkFlagsMutuallyExclusive("out-refund-no", "refund-id", "out-trade-no", "transaction-id")
	queryCmd.MarkFlagsOneRequired("out-refund-no", "refund-id", "out-trade-no", "transaction-id")

	payCmd.AddCommand(queryCmd)
	return payCmd
}
