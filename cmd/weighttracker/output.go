package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/weighttracker/weighttracker/internal/model"
	"github.com/weighttracker/weighttracker/internal/notify"
	"github.com/weighttracker/weighttracker/internal/service"
	"golang.org/x/term"
)

// readTerminalPassword is a test seam for term.ReadPassword.
var readTerminalPassword = term.ReadPassword

// isTerminal reports whether stdin is an interactive terminal.
var isTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

// describe turns an error into the message shown to the user
func describe(err error, now time.Time) string {
	var locked *service.AccountLockedError
	var invalid *service.ValidationError

	switch {
	case errors.As(err, &locked):
		return fmt.Sprintf("Account locked. Try again in %s.", locked.Remaining(now).Round(time.Second))
	// Unknown users and wrong passwords read the same
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrInvalidCredentials):
		return "Invalid username or password."
	case errors.As(err, &invalid):
		return "Invalid " + invalid.Field + ": " + invalid.Reason + "."
	case errors.Is(err, service.ErrDuplicateUsername):
		return "Username already exists."
	case errors.Is(err, service.ErrDuplicateEmail):
		return "Email already exists."
	case errors.Is(err, service.ErrDuplicatePhone):
		return "Phone number already used."
	case errors.Is(err, service.ErrNotLoggedIn):
		return "Not logged in. Run 'weighttracker login --remember' or pass --as."
	case errors.Is(err, service.ErrMeasurementNotFound):
		return "No such weight entry."
	case errors.Is(err, service.ErrNoGoal):
		return "No goal set. Run 'weighttracker goal set <weight>' first."
	case errors.Is(err, service.ErrPersistence):
		return "Something went wrong saving your data. Please try again."
	}
	return err.Error()
}

// promptPassword reads a password without echo from a terminal, or a plain
// line when input is piped
func promptPassword(w io.Writer, in *bufio.Reader, prompt string) (string, error) {
	if !isTerminal() {
		return promptLine(w, in, prompt)
	}
	fmt.Fprint(w, prompt)
	pw, err := readTerminalPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

// promptLine prints prompt and reads one trimmed line. A final line without
// newline is accepted.
func promptLine(w io.Writer, in *bufio.Reader, prompt string) (string, error) {
	fmt.Fprint(w, prompt)
	line, err := in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func printMeasurements(w io.Writer, list []model.Measurement) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No weight entries yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tWEIGHT")
	for _, m := range list {
		fmt.Fprintf(tw, "%d\t%s\t%.1f lbs\n", m.ID, m.RecordedAt.Format(model.DateLayout), m.Weight)
	}
	tw.Flush()
}

func printGoal(w io.Writer, goal *model.Goal) {
	if goal == nil {
		fmt.Fprintln(w, "Goal: not set")
		return
	}
	fmt.Fprintf(w, "Goal: %.1f lbs (alert when %s)\n", goal.Weight, goal.Direction)
}

func printSnapshot(w io.Writer, snap *service.Snapshot) {
	printMeasurements(w, snap.Measurements)
	printGoal(w, snap.Goal)

	d := snap.Decision
	if !d.Evaluated {
		return
	}
	if d.Notify {
		fmt.Fprintf(w, "Goal reached: %.1f is %s %.1f.\n", d.Weight, d.Direction, d.Goal)
	}
	switch notify.Outcome(d.Alert) {
	case notify.OutcomeSent:
		fmt.Fprintln(w, "SMS alert sent.")
	case notify.OutcomePermissionRequested:
		fmt.Fprintln(w, "SMS permission needed. Run 'weighttracker settings sms --grant-permission'.")
	case notify.OutcomeNoPhone:
		fmt.Fprintln(w, "No phone number on file, SMS alert skipped.")
	case notify.OutcomeFailed:
		fmt.Fprintln(w, "SMS alert could not be sent.")
	}
}

func printTrend(w io.Writer, trend *model.Trend) {
	if len(trend.Points) == 0 {
		fmt.Fprintln(w, "No weight entries yet.")
		printGoal(w, trend.Goal)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, p := range trend.Points {
		fmt.Fprintf(tw, "%s\t%.1f\t%s\n", p.RecordedAt.Format("01/02 15:04"), p.Weight, bar(p.Weight, trend))
	}
	tw.Flush()

	fmt.Fprintf(w, "First %.1f, latest %.1f, change %+.1f (min %.1f, max %.1f)\n",
		trend.First, trend.Latest, trend.Change, trend.Min, trend.Max)
	printGoal(w, trend.Goal)
}

// bar scales weight between the series minimum and maximum
func bar(weight float64, trend *model.Trend) string {
	const width = 30
	span := trend.Max - trend.Min
	if span == 0 {
		return strings.Repeat("#", width/2)
	}
	n := 1 + int((weight-trend.Min)/span*float64(width-1))
	return strings.Repeat("#", n)
}
