package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShinyNito/wechatkit/config"
	"github.com/ShinyNito/wechatkit/internal/app"
)

// globalFlags 所有子命令共享的参数
type globalFlags struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "wechatkit",
		Short: "wechatkit manages WeChat access tokens and signed payment calls",
		Long: `
Usage: wechatkit <command> [options]

  wechatkit reads tenants from a YAML file and shares their access tokens
  through the configured cache (memory, ristretto or redis).

  Print the current token of a tenant:

      $ wechatkit token get my-oa

  Call an API with automatic token handling:

      $ wechatkit call my-oa /cgi-bin/get_api_domain_ip

  Query a refund:

      $ wechatkit pay refund-query --out-refund-no R1001
`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultConfig := os.Getenv("WECHATKIT_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "wechatkit.yaml"
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", defaultConfig, "Path to the YAML config file (can also use WECHATKIT_CONFIG env var)")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Dotenv file loaded before the config, ignored when missing")

	root.AddCommand(newTenantsCmd(flags))
	root.AddCommand(newTokenCmd(flags))
	root.AddCommand(newCallCmd(flags))
	root.AddCommand(newPayCmd(flags))
	return root
}

// openApp 加载配置并组装依赖，调用方负责 Close
func openApp(cmd *cobra.Command, flags *globalFlags) (*app.App, error) {
	cfg, err := config.NewLoader().
		WithDotEnv(flags.envFile).
		WithConfigPath(flags.configPath).
		Load()
	if err != nil {
		return nil, err
	}

	a, err := app.New(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	if err := a.Ping(cmd.Context()); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("cache unavailable: %w", err)
	}
	return a, nil
}

func newTenantsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tenants",
		Short: "List configured tenants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			for _, name := range a.TenantNames() {
				t, _ := a.Tenant(name)
				fmt.Fprintf(out, "%s\t%s\n", t.Name, t.Kind)
			}
			return nil
		},
	}
}
