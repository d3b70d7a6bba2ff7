package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var stationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "Lists the stations of the network",
	Args:  cobra.NoArgs,
	RunE:  stations,
}

var (
	near  string
	limit int
)

func init() {
	stationsCmd.Flags().StringVarP(&near, "near", "n", "", "Order by distance from <lat>,<lon>")
	stationsCmd.Flags().IntVarP(&limit, "limit", "l", 0, "Limit the number of stations returned")
}

func stations(cmd *cobra.Command, args []string) error {
	planner, _, err := LoadPlanner(context.Background())
	if err != nil {
		return err
	}
	directory := planner.Directory()

	if near != "" {
		parts := strings.SplitN(near, ",", 2)
		if len(parts) != 2 {
			return fmt.Errorf("'%s' is not on form <lat>,<lon>", near)
		}
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errLat != nil || errLon != nil {
			return fmt.Errorf("'%s' is not on form <lat>,<lon>", near)
		}

		nearby, err := directory.Nearby(lat, lon, limit)
		if err != nil {
			return err
		}
		for _, station := range nearby {
			fmt.Printf("%s %s\n", station.Code, station.Name)
		}
		return nil
	}

	stations := directory.Stations()
	if limit > 0 && len(stations) > limit {
		stations = stations[:limit]
	}
	for _, station := range stations {
		fmt.Printf("%s %s\n", station.Code, station.Name)
	}
	return nil
}
