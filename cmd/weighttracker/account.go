package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/weighttracker/weighttracker/internal/service"
)

func (c *cli) registerCmd() *cobra.Command {
	var req service.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompts := []struct {
				value  *string
				prompt string
			}{
				{&req.Email, "Email: "},
				{&req.Username, "Username: "},
				{&req.Phone, "Phone: "},
			}
			for _, p := range prompts {
				if *p.value != "" {
					continue
				}
				v, err := c.readLine(cmd, p.prompt)
				if err != nil {
					return err
				}
				*p.value = v
			}

			password, err := c.readPassword(cmd, "Password: ")
			if err != nil {
				return err
			}
			req.Password = password

			if _, err := c.app.auth.Register(cmd.Context(), req); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Account created successfully! You can now log in.")
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.Username, "username", "", "username")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "phone number for goal alerts")
	return cmd
}

func (c *cli) loginCmd() *cobra.Command {
	var remember bool

	cmd := &cobra.Command{
		Use:   "login <username|email>",
		Short: "Log in, optionally remembering the session on this device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := c.readPassword(cmd, "Password: ")
			if err != nil {
				return err
			}

			userID, err := c.app.auth.Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			session, err := c.app.sessions.Start(cmd.Context(), userID, remember)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Welcome, %s!\n", session.Username)
			if !session.Remembered {
				fmt.Fprintln(out, "Session not remembered; use --remember to stay logged in.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&remember, "remember", false, "remember me on this device")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the remembered session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.sessions.End(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := c.currentUser(cmd)
			if err != nil {
				return err
			}
			user, err := c.app.auth.User(cmd.Context(), userID)
			if err != nil {
				return err
			}
			status, err := c.app.auth.Status(cmd.Context(), userID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s <%s>\n", user.Username, user.Email)
			fmt.Fprintf(out, "Phone: %s\n", user.Phone)
			fmt.Fprintf(out, "Account: %s (%d failed attempts)\n", status.State, status.FailedAttempts)
			return nil
		},
	}
}

func (c *cli) migratePasswordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-passwords",
		Short: "Hash any passwords still stored in plaintext",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := c.app.auth.MigrateLegacyPasswords(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Upgraded %d password(s).\n", n)
			return nil
		},
	}
}
