package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCallCmd(flags *globalFlags) *cobra.Command {
	var (
		post  bool
		data  string
		query []string
	)

	cmd := &cobra.Command{
		Use:   "call <tenant> <path>",
		Short: "Call a WeChat API with the tenant's access token",
		Long: `
Usage: wechatkit call <tenant> <path> [options]

  Sends a request with the tenant's access token attached. A token-invalid
  response is retried once with a fresh token. The raw response body is
  printed as-is.

      $ wechatkit call my-oa /cgi-bin/user/info -q openid=o123
      $ wechatkit call my-corp /cgi-bin/externalcontact/get_moment_list --post -d '{"start_time":1,"end_time":2}'
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseQuery(query)
			if err != nil {
				return err
			}
			if data != "" && !json.Valid([]byte(data)) {
				return fmt.Errorf("--data is not valid JSON")
			}

			a, err := openApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			tenant, err := a.Tenant(args[0])
			if err != nil {
				return err
			}

			builder := tenant.API.Request().Path(args[1]).QueryMap(params)
			if data != "" {
				builder.RawBody([]byte(data), "application/json")
			}

			if post || data != "" {
				resp, err := builder.Post(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(resp.Body))
				return nil
			}
			resp, err := builder.Get(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(resp.Body))
			return nil
		},
	}

	cmd.Flags().BoolVar(&post, "post", false, "Send a POST request")
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body, implies --post")
	cmd.Flags().StringArrayVarP(&query, "query", "q", nil, "Query parameter as key=value, repeatable")
	return cmd
}

func parseQuery(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid query %q, expected key=value", pair)
		}
		params[key] = value
	}
	return params, nil
}
