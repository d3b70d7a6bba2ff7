package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"metroplan.dev/metro"
)

var exitsCmd = &cobra.Command{
	Use:   "exits <station>",
	Short: "Shows exit availability for a station right now",
	Args:  cobra.ExactArgs(1),
	RunE:  exits,
}

func exits(cmd *cobra.Command, args []string) error {
	planner, _, err := LoadPlanner(context.Background())
	if err != nil {
		return err
	}

	code := strings.ToUpper(args[0])
	station, err := planner.Directory().Station(code)
	if err != nil {
		return err
	}

	statuses := metro.EvaluateExits(
		planner.Directory().Exits(code), time.Now(), planner.Config().Night)

	fmt.Printf("%s (%s)\n", station.Name, station.Code)
	for _, status := range statuses {
		open := "OPEN"
		if !status.Available {
			open = "CLOSED"
		}
		fmt.Printf("  %s %s\n", open, status.Name)
		for _, issue := range status.Issues {
			fmt.Printf("    %s\n", issue)
		}
	}
	return nil
}
