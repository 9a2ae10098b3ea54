package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/weighttracker/weighttracker/internal/config"
	"github.com/weighttracker/weighttracker/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := &cli{}
	err := c.rootCmd().ExecuteContext(ctx)
	if cerr := c.close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", describe(err, time.Now()))
		stop()
		os.Exit(1)
	}
}

// cli holds the flags and the services of one invocation. The caller closes
// it after Execute since post-run hooks are skipped when a command fails.
type cli struct {
	configFile string
	as         string
	password   string

	cfg   *config.Config // preset by tests, loaded from configFile otherwise
	app   *app
	stdin *bufio.Reader
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "weighttracker",
		Short:             "Track your weight and get notified when you reach your goal",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.open,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringVar(&c.configFile, "config", "", "config file (default: ./config.yaml or ~/.weighttracker/config.yaml)")
	root.PersistentFlags().StringVar(&c.as, "as", "", "authenticate as this username or email for a single command")
	root.PersistentFlags().StringVar(&c.password, "password", "", "password (prompted when omitted)")

	root.AddCommand(
		c.registerCmd(),
		c.loginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.weightCmd(),
		c.goalCmd(),
		c.trendCmd(),
		c.settingsCmd(),
		c.migratePasswordsCmd(),
	)
	return root
}

func (c *cli) open(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" {
		return nil
	}
	if c.cfg == nil {
		cfg, err := config.Load(c.configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		c.cfg = cfg
	}

	log := logger.NewWithWriter(cmd.ErrOrStderr(), c.cfg.Log.Level, c.cfg.Log.Format).
		WithInvocation(uuid.New().String())
	log.Debug().Str("command", cmd.CommandPath()).Msg("starting")

	a, err := newApp(c.cfg, log)
	if err != nil {
		return err
	}
	c.app = a
	c.stdin = bufio.NewReader(cmd.InOrStdin())
	return nil
}

func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

// currentUser authenticates with --as when given, otherwise resumes the
// remembered session
func (c *cli) currentUser(cmd *cobra.Command) (int64, error) {
	ctx := cmd.Context()
	if c.as != "" {
		password, err := c.readPassword(cmd, "Password: ")
		if err != nil {
			return 0, err
		}
		return c.app.auth.Login(ctx, c.as, password)
	}

	session, err := c.app.sessions.Resume(ctx)
	if err != nil {
		return 0, err
	}
	c.app.log.Debug().Int64("user_id", session.UserID).Msg("session resumed")
	return session.UserID, nil
}

func (c *cli) readPassword(cmd *cobra.Command, prompt string) (string, error) {
	if c.password != "" {
		return c.password, nil
	}
	return promptPassword(cmd.ErrOrStderr(), c.stdin, prompt)
}

func (c *cli) readLine(cmd *cobra.Command, prompt string) (string, error) {
	return promptLine(cmd.ErrOrStderr(), c.stdin, prompt)
}
