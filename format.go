package metro

import (
	"fmt"
	"strings"
)

const formatRule = "============================================================"

// FormatItinerary renders an itinerary as plain text for terminal
// display.
func FormatItinerary(result *ItineraryResult) string {
	sections := []string{
		formatRule,
		"METRO ROUTE INFORMATION",
		formatRule,
		formatTrip(result.Trip),
		formatTrains(result.Trains),
	}

	if len(result.TransferOptions) > 0 {
		sections = append(sections, formatTransfers(result.TransferOptions))
	}

	sections = append(sections,
		formatExits("Origin", result.Exits.Origin),
		formatExits("Destination", result.Exits.Destiny),
		formatCO2(result.CO2Metro),
	)

	if result.EarliestArrival != "" {
		sections = append(sections, fmt.Sprintf("\nEarliest arrival: %s", result.EarliestArrival))
	}

	if len(result.Messages) > 0 {
		lines := []string{"\nMessages:", formatRule}
		for _, msg := range result.Messages {
			lines = append(lines, "  - "+msg)
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	return strings.Join(sections, "\n")
}

func formatTrip(trip TripSummary) string {
	lines := []string{
		"\nTrip Information:",
		formatRule,
		fmt.Sprintf("From: %s (%s)", trip.From.Name, trip.From.Code),
		fmt.Sprintf("To: %s (%s)", trip.To.Name, trip.To.Code),
		fmt.Sprintf("Duration: %d minutes", trip.DurationMin),
		fmt.Sprintf("Line: %s", trip.Line),
	}
	if trip.Transfer {
		lines = append(lines, fmt.Sprintf("Transfer Required: Yes (at %s)", trip.TransferStation))
	} else {
		lines = append(lines, "Transfer Required: No")
	}
	return strings.Join(lines, "\n")
}

func formatTrains(trains []TrainInfo) string {
	if len(trains) == 0 {
		return "\nNo trains available"
	}

	lines := []string{"\nUpcoming Trains:", formatRule}
	for i, train := range trains {
		lines = append(lines, fmt.Sprintf(
			"Train %d: %s\n  Estimated: %d minutes (%s)\n  Wagons: %d",
			i+1, train.Direction, train.EstimatedMin, train.TimeRounded, train.Wagons))
	}
	return strings.Join(lines, "\n")
}

func formatTransfers(options []TransferOption) string {
	lines := []string{"\nTransfer Options:", formatRule}
	for i, option := range options {
		lines = append(lines, fmt.Sprintf("\nOption %d:", i+1))
		lines = append(lines, fmt.Sprintf("  1. %s -> %s", option.FirstLeg.From, option.FirstLeg.To))
		lines = append(lines, fmt.Sprintf(
			"     Line: %s, Duration: %d min", option.FirstLeg.Line, option.FirstLeg.DurationMin))
		lines = append(lines, fmt.Sprintf("  Transfer wait: ~%d minutes", option.TransferWaitMin))
		lines = append(lines, fmt.Sprintf("  2. %s -> %s", option.SecondLeg.From, option.SecondLeg.To))
		lines = append(lines, fmt.Sprintf(
			"     Line: %s, Duration: %d min", option.SecondLeg.Line, option.SecondLeg.DurationMin))
		lines = append(lines, fmt.Sprintf("  Total time: %d minutes", option.TotalDuration))
	}
	return strings.Join(lines, "\n")
}

func formatExits(label string, exits []ExitStatus) string {
	lines := []string{fmt.Sprintf("\n%s Station Exits:", label), formatRule}
	if len(exits) == 0 {
		lines = append(lines, "  (no exit records)")
	}
	for _, exit := range exits {
		status := "OPEN"
		if !exit.Available {
			status = "CLOSED"
		}
		elevator := "Stairs"
		if exit.Elevator {
			elevator = "Elevator"
		}
		hours := "Day only"
		if exit.Nocturnal {
			hours = "24h"
		}
		lines = append(lines, fmt.Sprintf("  %s - %s (%s | %s)", status, exit.Name, elevator, hours))
		for _, issue := range exit.Issues {
			lines = append(lines, "    "+issue)
		}
	}
	return strings.Join(lines, "\n")
}

func formatCO2(co2 CO2Estimate) string {
	return strings.Join([]string{
		"\nEnvironmental Impact:",
		formatRule,
		fmt.Sprintf("Metro CO2: %.2f kg", co2.CO2Metro),
		fmt.Sprintf("Car CO2: %.2f kg", co2.CO2Car),
		fmt.Sprintf("Savings: %.2f kg", co2.Savings),
		fmt.Sprintf("Metro Distance: %.2f km", co2.MetroDistanceKm),
		fmt.Sprintf("Car Distance: %.2f km", co2.CarDistanceKm),
	}, "\n")
}
