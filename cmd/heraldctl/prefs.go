package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/potooio/herald/internal/api"
	"github.com/potooio/herald/internal/types"
)

func prefsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change a user's notification preferences",
	}
	cmd.AddCommand(prefsGetCmd(opts))
	cmd.AddCommand(prefsSetCmd(opts))
	return cmd
}

func prefsGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get USER_ID",
		Short: "Show a user's notification preferences",
		Long: `Show a user's notification preferences. Users without stored
preferences get the defaults: enabled, instant, every event type on.

Examples:
  heraldctl prefs get u1
  heraldctl prefs get u1 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.PreferencesResponse
			if _, err := opts.client().do(cmd.Context(), http.MethodGet, userPath(args[0], "preferences"), nil, &resp); err != nil {
				return err
			}
			return outputResult(cmd.OutOrStdout(), resp, opts.output)
		},
	}
}

type prefsSetFlags struct {
	frequency string
	enabled   bool
	enable    []string
	disable   []string
	reset     bool
}

func prefsSetCmd(opts *rootOptions) *cobra.Command {
	f := &prefsSetFlags{}
	cmd := &cobra.Command{
		Use:   "set USER_ID",
		Short: "Change a user's notification preferences",
		Long: `Change a user's notification preferences. Only the given flags are
changed; everything else keeps its current value.

Examples:
  # Switch to a daily digest
  heraldctl prefs set u1 --frequency daily_digest

  # Mute comments and overdue reminders
  heraldctl prefs set u1 --disable taskCommentAdded,taskOverdue

  # Turn all notifications off
  heraldctl prefs set u1 --enabled=false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrefsSet(cmd, opts, f, args[0])
		},
	}
	cmd.Flags().StringVar(&f.frequency, "frequency", "", "Delivery frequency: instant, daily_digest, weekly_digest")
	cmd.Flags().BoolVar(&f.enabled, "enabled", true, "Global notification switch")
	cmd.Flags().StringSliceVar(&f.enable, "enable", nil, "Event types to turn on")
	cmd.Flags().StringSliceVar(&f.disable, "disable", nil, "Event types to turn off")
	cmd.Flags().BoolVar(&f.reset, "reset", false, "Start from the defaults instead of the current preferences")
	return cmd
}

func runPrefsSet(cmd *cobra.Command, opts *rootOptions, f *prefsSetFlags, userID string) error {
	c := opts.client()
	ctx := cmd.Context()

	prefs := types.DefaultPreferences()
	if !f.reset {
		var current api.PreferencesResponse
		if _, err := c.do(ctx, http.MethodGet, userPath(userID, "preferences"), nil, &current); err != nil {
			return err
		}
		prefs = current.Preferences
	}
	if prefs.EventTypes == nil {
		prefs.EventTypes = make(map[types.EventType]bool)
	}

	if f.frequency != "" {
		prefs.Frequency = types.Frequency(f.frequency)
	}
	if cmd.Flags().Changed("enabled") {
		prefs.Enabled = f.enabled
	}
	for _, t := range f.enable {
		prefs.EventTypes[types.EventType(t)] = true
	}
	for _, t := range f.disable {
		prefs.EventTypes[types.EventType(t)] = false
	}
	if err := prefs.Validate(); err != nil {
		return fmt.Errorf("invalid preferences: %w", err)
	}

	var resp api.PreferencesResponse
	if _, err := c.do(ctx, http.MethodPut, userPath(userID, "preferences"), prefs, &resp); err != nil {
		return err
	}
	return outputResult(cmd.OutOrStdout(), resp, opts.output)
}
