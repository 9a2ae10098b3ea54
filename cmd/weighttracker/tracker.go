package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/weighttracker/weighttracker/internal/model"
	"github.com/weighttracker/weighttracker/internal/service"
)

func (c *cli) weightCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weight",
		Short: "Record and manage weight entries",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <weight>",
			Short: "Record a weight now",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				weight, err := parseWeight(args[0])
				if err != nil {
					return err
				}
				userID, err := c.currentUser(cmd)
				if err != nil {
					return err
				}
				snap, err := c.app.tracker.AddMeasurement(cmd.Context(), userID, weight)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %.1f lbs.\n", weight)
				printSnapshot(cmd.OutOrStdout(), snap)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List weight entries, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				userID, err := c.currentUser(cmd)
				if err != nil {
					return err
				}
				list, err := c.app.tracker.ListMeasurements(cmd.Context(), userID)
				if err != nil {
					return err
				}
				printMeasurements(cmd.OutOrStdout(), list)
				return nil
			},
		},
		&cobra.Command{
			Use:   "edit <id> <weight>",
			Short: "Change the weight of an entry",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				weight, err := parseWeight(args[1])
				if err != nil {
					return err
				}
				userID, err := c.currentUser(cmd)
				if err != nil {
					return err
				}
				snap, err := c.app.tracker.UpdateMeasurement(cmd.Context(), userID, id, weight)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Weight updated.")
				printSnapshot(cmd.OutOrStdout(), snap)
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete an entry",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				userID, err := c.currentUser(cmd)
				if err != nil {
					return err
				}
				snap, err := c.app.tracker.DeleteMeasurement(cmd.Context(), userID, id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Weight deleted.")
				printSnapshot(cmd.OutOrStdout(), snap)
				return nil
			},
		},
	)
	return cmd
}

func (c *cli) goalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goal",
		Short: "Set and show the goal weight",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <weight>",
			Short: "Set the goal weight",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				weight, err := parseWeight(args[0])
				if err != nil {
					return err
				}
				userID, err := c.currentUser(cmd)
				if err != nil {
					return err
				}
				snap, err := c.app.tracker.SetGoal(cmd.Context(), userID, weight)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Goal updated.")
				printSnapshot(cmd.OutOrStdout(), snap)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Show the goal",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				userID, err := c.currentUser(cmd)
				if err != nil {
					return err
				}
				goal, err := c.app.tracker.GetGoal(cmd.Context(), userID)
				if err != nil {
					return err
				}
				printGoal(cmd.OutOrStdout(), goal)
				return nil
			},
		},
		&cobra.Command{
			Use:       "direction <below|above>",
			Short:     "Alert when the weight drops below or rises above the goal",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{string(model.DirectionBelow), string(model.DirectionAbove)},
			RunE: func(cmd *cobra.Command, args []string) error {
				direction, err := model.ParseDirection(args[0])
				if err != nil {
					return err
				}
				userID, err := c.currentUser(cmd)
				if err != nil {
					return err
				}
				snap, err := c.app.tracker.SetGoalDirection(cmd.Context(), userID, direction)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Alerts now trigger %s the goal.\n", direction)
				printSnapshot(cmd.OutOrStdout(), snap)
				return nil
			},
		},
	)
	return cmd
}

func (c *cli) trendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trend",
		Short: "Show weight over time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := c.currentUser(cmd)
			if err != nil {
				return err
			}
			trend, err := c.app.tracker.Trend(cmd.Context(), userID)
			if err != nil {
				return err
			}
			printTrend(cmd.OutOrStdout(), trend)
			return nil
		},
	}
}

func parseWeight(s string) (float64, error) {
	w, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &service.ValidationError{Field: "weight", Reason: "invalid number format"}
	}
	return w, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &service.ValidationError{Field: "id", Reason: "must be a number"}
	}
	return id, nil
}
