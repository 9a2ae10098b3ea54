package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Device settings",
	}

	var enable, disable, grant, revoke bool
	sms := &cobra.Command{
		Use:   "sms",
		Short: "Show or change SMS goal alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if enable || disable {
				if err := c.app.alerter.SetEnabled(ctx, enable); err != nil {
					return err
				}
			}
			if grant || revoke {
				if err := c.app.alerter.SetPermission(ctx, grant); err != nil {
					return err
				}
			}

			s, err := c.app.alerter.Settings(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "SMS alerts: %s\n", onOff(s.Enabled))
			fmt.Fprintf(out, "Send permission: %s\n", granted(s.PermissionGranted, s.PermissionRequested))
			return nil
		},
	}
	sms.Flags().BoolVar(&enable, "enable", false, "turn SMS alerts on")
	sms.Flags().BoolVar(&disable, "disable", false, "turn SMS alerts off")
	sms.Flags().BoolVar(&grant, "grant-permission", false, "allow sending SMS")
	sms.Flags().BoolVar(&revoke, "revoke-permission", false, "disallow sending SMS")
	sms.MarkFlagsMutuallyExclusive("enable", "disable")
	sms.MarkFlagsMutuallyExclusive("grant-permission", "revoke-permission")

	cmd.AddCommand(sms)
	return cmd
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func granted(ok, requested bool) string {
	switch {
	case ok:
		return "granted"
	case requested:
		return "requested"
	}
	return "not granted"
}
