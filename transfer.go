package metro

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"metroplan.dev/metro/parse"
)

// Returning the full cross product of feasible pairings helps nobody;
// riders care about the next few connections.
const maxTransferOptions = 4

// One leg of a transfer itinerary.
type TransferLeg struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Line        string `json:"line"`
	DurationMin int    `json:"duration"`
}

// A candidate pairing of a first-leg train with a feasible onward
// train at the transfer station.
type TransferOption struct {
	Description     string      `json:"description"`
	FirstLeg        TransferLeg `json:"firstLeg"`
	SecondLeg       TransferLeg `json:"secondLeg"`
	ArrivalTime     time.Time   `json:"arrivalTime"`
	DepartureTime   time.Time   `json:"departureTime"`
	TransferWaitMin int         `json:"transferWait"`
	TotalDuration   int         `json:"totalDuration"`
	ExpectedArrival time.Time   `json:"expectedArrival"`
}

// PlanTransfers pairs first-leg arrivals at the transfer station with
// feasible onward departures. Both legs are anchored to the transfer
// station by the upstream feed: a first-leg train's scheduled time is
// its arrival there, a second-leg train's is its departure.
//
// For each first-leg arrival, the earliest strictly-later second-leg
// departure in the right direction is chosen. First-leg arrivals with
// no onward train are skipped, not errors. Distinct first-leg trains
// may share a second-leg train. Results are capped at
// maxTransferOptions, in chronological first-leg order.
func PlanTransfers(directory *Directory, first, second parse.TripInfo, firstArrivals, secondArrivals []parse.Train) []TransferOption {
	options := []TransferOption{}
	if len(firstArrivals) == 0 || len(secondArrivals) == 0 {
		// Valid no-service outcome.
		return options
	}

	transferCode := second.From.Code

	// Upstream claims chronological order. Don't trust it.
	arrivals := sortedByTime(firstArrivals)
	departures := sortedByTime(onwardOnly(directory, second, secondArrivals))

	firstDur, secondDur := legDurations(first, second)

	for _, arrival := range arrivals {
		if len(options) == maxTransferOptions {
			break
		}

		idx := sort.Search(len(departures), func(i int) bool {
			return departures[i].Time.After(arrival.Time)
		})
		if idx == len(departures) {
			continue
		}
		departure := departures[idx]

		wait := int(math.Round(departure.Time.Sub(arrival.Time).Minutes()))
		if wait < 0 {
			continue
		}

		expected := departure.Time.Add(time.Duration(secondDur) * time.Minute)
		options = append(options, TransferOption{
			Description: fmt.Sprintf("Transfer at %s", directory.Name(transferCode)),
			FirstLeg: TransferLeg{
				From:        directory.Name(first.From.Code),
				To:          directory.Name(transferCode),
				Line:        first.Line,
				DurationMin: firstDur,
			},
			SecondLeg: TransferLeg{
				From:        directory.Name(transferCode),
				To:          directory.Name(second.To.Code),
				Line:        second.Line,
				DurationMin: secondDur,
			},
			ArrivalTime:     arrival.Time,
			DepartureTime:   departure.Time,
			TransferWaitMin: wait,
			TotalDuration:   firstDur + wait + secondDur,
			ExpectedArrival: expected,
		})
	}

	return options
}

// onwardOnly drops second-leg trains headed the wrong way. The feed
// reports trains toward every terminus at the transfer station; only
// those toward the requested destination can continue the trip.
func onwardOnly(directory *Directory, second parse.TripInfo, trains []parse.Train) []parse.Train {
	wanted := map[string]bool{}
	add := func(s string) {
		if s != "" {
			wanted[strings.ToLower(s)] = true
		}
	}
	add(second.To.Name)
	add(directory.Name(second.To.Code))
	if terminus, ok := TerminusToward(second.Line, second.From.Code, second.To.Code); ok {
		add(terminus)
		add(directory.Name(terminus))
	}

	onward := []parse.Train{}
	for _, train := range trains {
		if wanted[strings.ToLower(train.Direction)] {
			onward = append(onward, train)
		}
	}
	return onward
}

func sortedByTime(trains []parse.Train) []parse.Train {
	sorted := make([]parse.Train, len(trains))
	copy(sorted, trains)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})
	return sorted
}

// legDurations splits the end-to-end duration between the legs. The
// second leg's payload carries its own duration; the remainder is the
// first leg's. Upstream occasionally reports inconsistent totals, in
// which case the split falls back to halves.
func legDurations(first, second parse.TripInfo) (int, int) {
	if second.DurationMin > 0 && first.DurationMin > second.DurationMin {
		return first.DurationMin - second.DurationMin, second.DurationMin
	}
	if second.DurationMin > 0 {
		return first.DurationMin / 2, second.DurationMin
	}
	half := first.DurationMin / 2
	return half, first.DurationMin - half
}
