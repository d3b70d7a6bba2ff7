package metro_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metroplan.dev/metro"
	"metroplan.dev/metro/parse"
	"metroplan.dev/metro/testutil"
)

func testConfig(t *testing.T) *metro.Config {
	nightStart, err := metro.ParseTimeOfDay("22:00")
	require.NoError(t, err)
	nightEnd, err := metro.ParseTimeOfDay("06:00")
	require.NoError(t, err)

	return &metro.Config{
		APIBaseURL:             "https://api.metrobilbao.eus/metro/real-time",
		RefreshInterval:        10 * time.Second,
		Night:                  metro.NightWindow{Start: nightStart, End: nightEnd},
		Location:               time.UTC,
		MetroEmissionFactor:    0.033,
		CarEmissionFactor:      0.171,
		DefaultTransferStation: "CAD",
	}
}

func testPlanner(t *testing.T) *metro.Planner {
	return metro.NewPlanner(testutil.BilbaoDirectory(t), testConfig(t))
}

func payload(t *testing.T, raw string) *parse.Payload {
	p, err := parse.ParsePayload([]byte(raw))
	require.NoError(t, err)
	return p
}

const directPayload = `{
	"trip": {
		"transfer": false,
		"fromStation": {"code": "CAD", "name": "Zazpikaleak/Casco Viejo"},
		"toStation": {"code": "ABN", "name": "Abando"},
		"duration": 2,
		"line": "L1",
		"distance": 0.5,
		"carDistance": 1.2
	},
	"trains": [
		{"direction": "Plentzia", "time": "2025-03-10T10:05:00Z", "wagons": 4},
		{"direction": "Plentzia", "time": "2025-03-10T10:10:00Z", "wagons": 5}
	]
}`

const transferPayload = `{
	"trip": {
		"transfer": true,
		"transferStation": "SMM",
		"fromStation": {"code": "PLE", "name": "Plentzia"},
		"toStation": {"code": "BAS", "name": "Basauri"},
		"duration": 30,
		"line": "L1",
		"distance": 12.4,
		"carDistance": 15.8
	},
	"trains": [
		{"direction": "Etxebarri", "time": "2025-03-10T10:00:00Z", "wagons": 4},
		{"direction": "Etxebarri", "time": "2025-03-10T10:10:00Z", "wagons": 4}
	]
}`

const onwardPayload = `{
	"trip": {
		"transfer": false,
		"fromStation": {"code": "SMM", "name": "Santimami/San Mames"},
		"toStation": {"code": "BAS", "name": "Basauri"},
		"duration": 12,
		"line": "L2",
		"distance": 6.1
	},
	"trains": [
		{"direction": "Basauri", "time": "2025-03-10T10:05:00Z", "wagons": 4},
		{"direction": "Basauri", "time": "2025-03-10T10:20:00Z", "wagons": 4}
	]
}`

func TestAssembleDirectTrip(t *testing.T) {
	planner := testPlanner(t)
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	result, err := planner.Assemble(payload(t, directPayload), nil, now)
	require.NoError(t, err)

	assert.Equal(t, "CAD", result.Trip.From.Code)
	assert.Equal(t, "Zazpikaleak/Casco Viejo", result.Trip.From.Name)
	assert.Equal(t, "ABN", result.Trip.To.Code)
	assert.Equal(t, 2, result.Trip.DurationMin)
	assert.Equal(t, "L1", result.Trip.Line)
	assert.False(t, result.Trip.Transfer)
	assert.Empty(t, result.Trip.TransferStation)
	assert.Equal(t, 0.5, result.Trip.DistanceKm)

	require.Len(t, result.Trains, 2)
	assert.Equal(t, "10:05", result.Trains[0].TimeRounded)
	assert.Equal(t, 5, result.Trains[0].EstimatedMin)
	assert.Equal(t, 10, result.Trains[1].EstimatedMin)
	assert.Equal(t, 5, result.Trains[1].Wagons)

	// Direct trips report the next scheduled train as the earliest
	// arrival anchor.
	assert.Equal(t, "10:05", result.EarliestArrival)

	assert.Empty(t, result.TransferOptions)
	assert.Empty(t, result.Messages)

	// Daytime request, all exits open at both ends.
	require.Len(t, result.Exits.Origin, 2)
	require.Len(t, result.Exits.Destiny, 2)
	for _, status := range append(result.Exits.Origin, result.Exits.Destiny...) {
		assert.True(t, status.Available)
	}

	assert.Equal(t, 0.02, result.CO2Metro.CO2Metro)
	assert.Equal(t, 0.21, result.CO2Metro.CO2Car)
	assert.Equal(t, 0.19, result.CO2Metro.Savings)
	assert.Equal(t, 0.5, result.CO2Metro.MetroDistanceKm)
	assert.Equal(t, 1.2, result.CO2Metro.CarDistanceKm)
}

func TestAssembleTransferTrip(t *testing.T) {
	planner := testPlanner(t)
	now := time.Date(2025, 3, 10, 9, 55, 0, 0, time.UTC)

	result, err := planner.Assemble(payload(t, transferPayload), payload(t, onwardPayload), now)
	require.NoError(t, err)

	assert.True(t, result.Trip.Transfer)
	assert.Equal(t, "SMM", result.Trip.TransferStation)

	require.Len(t, result.TransferOptions, 2)
	assert.Equal(t, 5, result.TransferOptions[0].TransferWaitMin)
	assert.Equal(t, 10, result.TransferOptions[1].TransferWaitMin)

	// Earliest arrival is the best option's expected arrival:
	// 10:05 departure plus the 12 minute onward leg.
	assert.Equal(t, "10:17", result.EarliestArrival)

	assert.Empty(t, result.Messages)
}

func TestAssembleMissingTransferPayloadDegrades(t *testing.T) {
	planner := testPlanner(t)
	now := time.Date(2025, 3, 10, 9, 55, 0, 0, time.UTC)

	result, err := planner.Assemble(payload(t, transferPayload), nil, now)
	require.NoError(t, err)

	assert.True(t, result.Trip.Transfer)
	assert.Equal(t, "SMM", result.Trip.TransferStation)
	assert.Empty(t, result.TransferOptions)
	assert.Empty(t, result.EarliestArrival)
	require.NotEmpty(t, result.Messages)
	assert.Contains(t, result.Messages[0], "transfer data unavailable")
}

func TestAssembleNoFeasibleConnection(t *testing.T) {
	planner := testPlanner(t)
	// Asking late enough that every onward departure precedes every
	// first-leg arrival won't help; the payloads are fixed. Shift the
	// onward payload instead.
	onward := payload(t, onwardPayload)
	for i := range onward.Trains {
		onward.Trains[i].Time = onward.Trains[i].Time.Add(-2 * time.Hour)
	}
	now := time.Date(2025, 3, 10, 9, 55, 0, 0, time.UTC)

	result, err := planner.Assemble(payload(t, transferPayload), onward, now)
	require.NoError(t, err)

	assert.Empty(t, result.TransferOptions)
	require.NotEmpty(t, result.Messages)
	assert.Contains(t, result.Messages[0], "no feasible transfer connection")
}

func TestAssembleNilPayload(t *testing.T) {
	planner := testPlanner(t)

	_, err := planner.Assemble(nil, nil, time.Now())
	assert.ErrorIs(t, err, metro.ErrMissingPayload)
}

func TestAssembleSameStation(t *testing.T) {
	planner := testPlanner(t)
	p := payload(t, directPayload)
	p.Trip.To = p.Trip.From

	_, err := planner.Assemble(p, nil, time.Now())
	assert.ErrorIs(t, err, metro.ErrSameStation)
}

func TestAssembleUnknownStationAdvisory(t *testing.T) {
	planner := testPlanner(t)
	p := payload(t, directPayload)
	p.Trip.From = parse.StationRef{Code: "XXX", Name: "Nowhere"}
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	result, err := planner.Assemble(p, nil, now)
	require.NoError(t, err)

	// The payload's own name keeps the reply usable.
	assert.Equal(t, "XXX", result.Trip.From.Code)
	assert.Equal(t, "Nowhere", result.Trip.From.Name)
	require.NotEmpty(t, result.Messages)
	assert.Contains(t, result.Messages[0], "'XXX' is not in the directory")

	assert.Empty(t, result.Exits.Origin)
	assert.NotEmpty(t, result.Exits.Destiny)
}

func TestAssembleStaleFeed(t *testing.T) {
	planner := testPlanner(t)
	// Well past the last reported train.
	now := time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC)

	result, err := planner.Assemble(payload(t, directPayload), nil, now)
	require.NoError(t, err)

	require.NotEmpty(t, result.Messages)
	assert.Contains(t, result.Messages[0], "stale")

	// Departed trains never show negative countdowns.
	for _, train := range result.Trains {
		assert.GreaterOrEqual(t, train.EstimatedMin, 0)
	}
}

func TestAssembleNoTrains(t *testing.T) {
	planner := testPlanner(t)
	p := payload(t, directPayload)
	p.Trains = nil

	result, err := planner.Assemble(p, nil, time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Empty(t, result.Trains)
	assert.Empty(t, result.EarliestArrival)
	require.NotEmpty(t, result.Messages)
	assert.Contains(t, result.Messages[0], "no upcoming trains")
}

func TestAssembleNightExits(t *testing.T) {
	planner := testPlanner(t)
	now := time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC)

	result, err := planner.Assemble(payload(t, directPayload), nil, now)
	require.NoError(t, err)

	byName := map[string]metro.ExitStatus{}
	for _, status := range result.Exits.Origin {
		byName[status.Name] = status
	}
	require.Contains(t, byName, "Unamuno")
	require.Contains(t, byName, "Askao")
	assert.True(t, byName["Unamuno"].Available, "nocturnal exit stays open")
	assert.False(t, byName["Askao"].Available)
}

func TestAssembleDistanceFallback(t *testing.T) {
	planner := testPlanner(t)
	p := payload(t, directPayload)
	p.Trip.DistanceKm = 0
	p.Trip.CarDistanceKm = 0
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	result, err := planner.Assemble(p, nil, now)
	require.NoError(t, err)

	// CAD and ABN both carry coordinates, so the line topology yields
	// a usable great-circle estimate.
	assert.Greater(t, result.Trip.DistanceKm, 0.0)
	assert.Less(t, result.Trip.DistanceKm, 2.0)
	assert.Equal(t, result.Trip.DistanceKm, result.CO2Metro.MetroDistanceKm)
	assert.Equal(t, result.Trip.DistanceKm, result.CO2Metro.CarDistanceKm)
}

func TestAssembleDeterministic(t *testing.T) {
	planner := testPlanner(t)
	now := time.Date(2025, 3, 10, 9, 55, 0, 0, time.UTC)

	first, err := planner.Assemble(payload(t, transferPayload), payload(t, onwardPayload), now)
	require.NoError(t, err)
	second, err := planner.Assemble(payload(t, transferPayload), payload(t, onwardPayload), now)
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)
}

func TestTransferStationFor(t *testing.T) {
	planner := testPlanner(t)

	// Explicit field wins.
	assert.Equal(t, "SMM", planner.TransferStationFor(payload(t, transferPayload)))

	// Direct trips have no transfer station.
	assert.Empty(t, planner.TransferStationFor(payload(t, directPayload)))
	assert.Empty(t, planner.TransferStationFor(nil))

	// Without an explicit field the line topology decides: BOL is the
	// first shared station of L1 and L3.
	p := payload(t, transferPayload)
	p.Trip.TransferStation = ""
	p.Trip.To = parse.StationRef{Code: "KUK", Name: "Kukullaga"}
	assert.Equal(t, "BOL", planner.TransferStationFor(p))
}
