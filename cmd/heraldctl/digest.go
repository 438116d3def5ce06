package main

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/potooio/herald/internal/api"
	"github.com/potooio/herald/internal/types"
)

func digestCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Inspect or send a user's pending digest",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show USER_ID",
		Short: "Show pending digest entries grouped by event type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.DigestResponse
			if _, err := opts.client().do(cmd.Context(), http.MethodGet, userPath(args[0], "digest"), nil, &resp); err != nil {
				return err
			}
			return outputResult(cmd.OutOrStdout(), resp, opts.output)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "drain USER_ID",
		Short: "Send the pending digest now",
		Long: `Send the user's pending digest now, regardless of schedule. Entries are
removed only after a successful send.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var res types.DeliveryResult
			if _, err := opts.client().do(cmd.Context(), http.MethodPost, userPath(args[0], "digest/drain"), nil, &res, http.StatusBadGateway); err != nil {
				return err
			}
			if err := outputResult(cmd.OutOrStdout(), res, opts.output); err != nil {
				return err
			}
			if res.Failed() {
				return errDigestFailed{res}
			}
			return nil
		},
	})
	return cmd
}

type errDigestFailed struct {
	result types.DeliveryResult
}

func (e errDigestFailed) Error() string {
	return "digest send failed: " + e.result.Error
}

func eventTypesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "event-types",
		Short: "List notification event types and their preference keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp api.EventTypesResponse
			if _, err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/event-types", nil, &resp); err != nil {
				return err
			}
			return outputResult(cmd.OutOrStdout(), resp, opts.output)
		},
	}
}
