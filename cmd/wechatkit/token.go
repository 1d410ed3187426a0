package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTokenCmd(flags *globalFlags) *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "This command groups subcommands for managing access tokens.",
		Long: `
Usage: wechatkit token <subcommand> <tenant>

  Read the cached token (minting one when absent):

      $ wechatkit token get my-oa

  Force a new token:

      $ wechatkit token get my-oa --refresh

  Drop the cached token so the next caller mints a new one:

      $ wechatkit token invalidate my-oa
`,
	}

	var refresh bool
	getCmd := &cobra.Command{
		Use:   "get <tenant>",
		Short: "Print the access token of a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			tenant, err := a.Tenant(args[0])
			if err != nil {
				return err
			}

			var token string
			if refresh {
				token, err = tenant.Provider.RefreshToken(cmd.Context())
			} else {
				token, err = tenant.Provider.GetToken(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("get token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	getCmd.Flags().BoolVar(&refresh, "refresh", false, "Mint a new token even if the cached one is valid")

	invalidateCmd := &cobra.Command{
		Use:   "invalidate <tenant>",
		Short: "Remove the cached access token of a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			tenant, err := a.Tenant(args[0])
			if err != nil {
				return err
			}
			if err := tenant.Provider.Invalidate(cmd.Context()); err != nil {
				return fmt.Errorf("invalidate token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token of %s invalidated.\n", tenant.Name)
			return nil
		},
	}

	tokenCmd.AddCommand(getCmd, invalidateCmd)
	return tokenCmd
}
