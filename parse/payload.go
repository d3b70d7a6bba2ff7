package parse

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// Typed form of the realtime API's route payload. Optional upstream
// fields are resolved here, at ingestion, so nothing downstream has
// to branch on field presence:
//
//   - carDistance defaults to the metro distance when absent (road
//     routing data is best-effort upstream).
//   - transferStation may legitimately be empty even when Transfer is
//     true; the planner resolves it against the line topology.
type Payload struct {
	Trip   TripInfo
	Trains []Train
}

type TripInfo struct {
	Transfer        bool
	TransferStation string
	From            StationRef
	To              StationRef
	DurationMin     int
	Line            string
	DistanceKm      float64
	CarDistanceKm   float64
}

type StationRef struct {
	Code string
	Name string
}

type Train struct {
	Direction string
	Time      time.Time
	Wagons    int
}

type payloadJSON struct {
	Trip struct {
		Transfer        bool        `json:"transfer"`
		TransferStation string      `json:"transferStation"`
		FromStation     stationJSON `json:"fromStation"`
		ToStation       stationJSON `json:"toStation"`
		Duration        int         `json:"duration"`
		Line            string      `json:"line"`
		Distance        float64     `json:"distance"`
		CarDistance     *float64    `json:"carDistance"`
	} `json:"trip"`
	Trains []struct {
		Direction string `json:"direction"`
		Time      string `json:"time"`
		Wagons    int    `json:"wagons"`
	} `json:"trains"`
}

type stationJSON struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Timestamp layouts seen in the wild. The feed documents RFC 3339 but
// omits the zone offset on some deployments.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
}

func ParsePayload(buf []byte) (*Payload, error) {
	raw := payloadJSON{}
	if err := json.Unmarshal(buf, &raw); err != nil {
		return nil, errors.Wrap(err, "unmarshaling payload")
	}

	if raw.Trip.FromStation.Code == "" || raw.Trip.ToStation.Code == "" {
		return nil, fmt.Errorf("payload trip is missing station codes")
	}
	if raw.Trip.Line == "" {
		return nil, fmt.Errorf("payload trip is missing line")
	}
	if raw.Trip.Duration < 0 {
		return nil, fmt.Errorf("negative trip duration %d", raw.Trip.Duration)
	}

	p := &Payload{
		Trip: TripInfo{
			Transfer:        raw.Trip.Transfer,
			TransferStation: raw.Trip.TransferStation,
			From:            StationRef{Code: raw.Trip.FromStation.Code, Name: raw.Trip.FromStation.Name},
			To:              StationRef{Code: raw.Trip.ToStation.Code, Name: raw.Trip.ToStation.Name},
			DurationMin:     raw.Trip.Duration,
			Line:            raw.Trip.Line,
			DistanceKm:      raw.Trip.Distance,
			CarDistanceKm:   raw.Trip.Distance,
		},
	}
	if raw.Trip.CarDistance != nil {
		p.Trip.CarDistanceKm = *raw.Trip.CarDistance
	}

	for i, train := range raw.Trains {
		when, err := parseTrainTime(train.Time)
		if err != nil {
			return nil, errors.Wrapf(err, "train %d", i)
		}
		p.Trains = append(p.Trains, Train{
			Direction: train.Direction,
			Time:      when,
			Wagons:    train.Wagons,
		})
	}

	// The feed claims to order trains by time. Don't trust it.
	sort.SliceStable(p.Trains, func(i, j int) bool {
		return p.Trains[i].Time.Before(p.Trains[j].Time)
	})

	return p, nil
}

func parseTrainTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		when, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return when, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp '%s'", s)
}
