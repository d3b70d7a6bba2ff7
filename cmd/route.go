package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"metroplan.dev/metro"
	"metroplan.dev/metro/parse"
)

var routeCmd = &cobra.Command{
	Use:   "route <from> <to>",
	Short: "Plans a trip between two station codes",
	Args:  cobra.ExactArgs(2),
	RunE:  route,
}

var asJSON bool

func init() {
	routeCmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Print the raw itinerary JSON")
}

func route(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	planner, client, err := LoadPlanner(ctx)
	if err != nil {
		return err
	}

	primary, err := client.RouteInfo(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	var transfer *parse.Payload
	if primary.Trip.Transfer {
		transferStation := planner.TransferStationFor(primary)
		if transferStation != "" {
			transfer, err = client.RouteInfo(ctx, transferStation, args[1])
			if err != nil {
				// Transfer data is best-effort; the planner
				// degrades gracefully without it.
				log.Warnf("fetching transfer leg: %s", err)
				transfer = nil
			}
		}
	}

	result, err := planner.Assemble(primary, transfer, time.Now())
	if err != nil {
		return err
	}

	if asJSON {
		buf, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(buf))
		return nil
	}

	fmt.Println(metro.FormatItinerary(result))
	return nil
}
