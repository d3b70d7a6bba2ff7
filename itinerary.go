package metro

import (
	"errors"
	"fmt"
	"math"
	"time"

	"metroplan.dev/metro/parse"
)

var (
	ErrMissingPayload = errors.New("missing route payload")
	ErrSameStation    = errors.New("origin and destination are the same station")
)

// Planner assembles display-ready itineraries from upstream route
// payloads. It holds only immutable reference data and configuration,
// so a single Planner serves concurrent requests.
type Planner struct {
	directory *Directory
	cfg       *Config
}

func NewPlanner(directory *Directory, cfg *Config) *Planner {
	return &Planner{directory: directory, cfg: cfg}
}

func (p *Planner) Directory() *Directory {
	return p.directory
}

func (p *Planner) Config() *Config {
	return p.cfg
}

type StationInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type TripSummary struct {
	From            StationInfo `json:"fromStation"`
	To              StationInfo `json:"toStation"`
	DurationMin     int         `json:"duration"`
	Line            string      `json:"line"`
	Transfer        bool        `json:"transfer"`
	TransferStation string      `json:"transferStation,omitempty"`
	DistanceKm      float64     `json:"distance"`
}

type TrainInfo struct {
	Direction    string    `json:"direction"`
	Time         time.Time `json:"time"`
	TimeRounded  string    `json:"timeRounded"`
	EstimatedMin int       `json:"estimated"`
	Wagons       int       `json:"wagons"`
}

type ExitAvailability struct {
	Origin  []ExitStatus `json:"origin"`
	Destiny []ExitStatus `json:"destiny"`
}

// The aggregate reply consumed by the presentation layer. Messages
// carries non-fatal advisories; a result with messages is computed
// with caveats, not failed.
type ItineraryResult struct {
	Trip            TripSummary      `json:"trip"`
	Trains          []TrainInfo      `json:"trains"`
	TransferOptions []TransferOption `json:"transferOptions"`
	Exits           ExitAvailability `json:"exits"`
	CO2Metro        CO2Estimate      `json:"co2Metro"`
	EarliestArrival string           `json:"earliestArrival"`
	Messages        []string         `json:"messages"`
}

// Assemble builds the itinerary for one request. primary is the route
// payload for the requested trip; transfer is the onward-leg payload
// fetched against the transfer station, and may be nil even when the
// trip requires a transfer — upstream transfer data is best-effort,
// and its absence degrades the result instead of failing it.
//
// Given identical payloads and the same now, Assemble returns
// identical results.
func (p *Planner) Assemble(primary *parse.Payload, transfer *parse.Payload, now time.Time) (*ItineraryResult, error) {
	if primary == nil {
		return nil, ErrMissingPayload
	}
	if primary.Trip.From.Code == primary.Trip.To.Code {
		return nil, fmt.Errorf("%w: '%s'", ErrSameStation, primary.Trip.From.Code)
	}

	result := &ItineraryResult{
		Trains:          []TrainInfo{},
		TransferOptions: []TransferOption{},
		Messages:        []string{},
	}

	origin := p.resolveStation(primary.Trip.From, result)
	destiny := p.resolveStation(primary.Trip.To, result)

	result.Trip = TripSummary{
		From:        origin,
		To:          destiny,
		DurationMin: primary.Trip.DurationMin,
		Line:        primary.Trip.Line,
		Transfer:    primary.Trip.Transfer,
	}
	if primary.Trip.Transfer {
		result.Trip.TransferStation = p.resolveTransferStation(primary, transfer)
	}

	metroKm, carKm := p.resolveDistances(primary, result.Trip.TransferStation)
	result.Trip.DistanceKm = metroKm

	for _, train := range primary.Trains {
		result.Trains = append(result.Trains, p.trainInfo(train, now))
	}
	if len(primary.Trains) > 0 && !primary.Trains[len(primary.Trains)-1].Time.After(now) {
		result.Messages = append(result.Messages, "arrival feed appears stale, times may be outdated")
	}

	var earliest time.Time
	if primary.Trip.Transfer {
		switch {
		case transfer == nil:
			result.Messages = append(result.Messages,
				"transfer data unavailable, showing first leg only")
		default:
			result.TransferOptions = PlanTransfers(
				p.directory, primary.Trip, transfer.Trip, primary.Trains, transfer.Trains)
			for _, option := range result.TransferOptions {
				if earliest.IsZero() || option.ExpectedArrival.Before(earliest) {
					earliest = option.ExpectedArrival
				}
			}
			if len(result.TransferOptions) == 0 {
				result.Messages = append(result.Messages,
					"no feasible transfer connection in the current timetable")
			}
		}
	} else {
		if len(primary.Trains) == 0 {
			result.Messages = append(result.Messages, "no upcoming trains reported")
		} else {
			earliest = primary.Trains[0].Time
		}
	}
	if !earliest.IsZero() {
		result.EarliestArrival = earliest.In(p.cfg.Location).Format("15:04")
	}

	result.Exits = ExitAvailability{
		Origin:  EvaluateExits(p.directory.Exits(origin.Code), now, p.cfg.Night),
		Destiny: EvaluateExits(p.directory.Exits(destiny.Code), now, p.cfg.Night),
	}

	result.CO2Metro = EstimateCO2(metroKm, carKm, p.cfg.MetroEmissionFactor, p.cfg.CarEmissionFactor)

	return result, nil
}

// TransferStationFor returns the transfer station the onward leg
// should be fetched against for a trip payload. Callers use it to
// issue the second upstream fetch before assembling.
func (p *Planner) TransferStationFor(primary *parse.Payload) string {
	if primary == nil || !primary.Trip.Transfer {
		return ""
	}
	return p.resolveTransferStation(primary, nil)
}

// resolveStation prefers the directory's record for a station
// reference. A code missing from the directory is reported once as an
// advisory; the payload's own name keeps the reply usable.
func (p *Planner) resolveStation(ref parse.StationRef, result *ItineraryResult) StationInfo {
	station, err := p.directory.Station(ref.Code)
	if err != nil {
		name := ref.Name
		if name == "" {
			name = ref.Code
		}
		result.Messages = append(result.Messages,
			fmt.Sprintf("station '%s' is not in the directory", ref.Code))
		return StationInfo{Code: ref.Code, Name: name}
	}
	return StationInfo{Code: station.Code, Name: station.Name}
}

// resolveTransferStation picks the transfer station once, at
// assembly: the payload's own field wins, then the onward payload's
// origin, then the line topology, then the configured default.
func (p *Planner) resolveTransferStation(primary, transfer *parse.Payload) string {
	if primary.Trip.TransferStation != "" {
		return primary.Trip.TransferStation
	}
	if transfer != nil && transfer.Trip.From.Code != "" {
		return transfer.Trip.From.Code
	}
	for _, line := range LinesThrough(primary.Trip.To.Code) {
		if line == primary.Trip.Line {
			continue
		}
		if code, ok := SharedTransferStation(primary.Trip.Line, line); ok {
			return code
		}
	}
	return p.cfg.DefaultTransferStation
}

// resolveDistances settles the metro and car distances for the CO2
// comparison. The feed's values win; a missing metro distance falls
// back to summing great-circle hops along the line, and a missing car
// distance falls back to the metro distance.
func (p *Planner) resolveDistances(primary *parse.Payload, transferStation string) (float64, float64) {
	metroKm := primary.Trip.DistanceKm
	if metroKm == 0 {
		if primary.Trip.Transfer && transferStation != "" {
			leg1, err := LineDistanceKm(p.directory, primary.Trip.Line, primary.Trip.From.Code, transferStation)
			if err == nil {
				metroKm += leg1
			}
			for _, line := range LinesThrough(primary.Trip.To.Code) {
				if line == primary.Trip.Line {
					continue
				}
				leg2, err := LineDistanceKm(p.directory, line, transferStation, primary.Trip.To.Code)
				if err == nil {
					metroKm += leg2
					break
				}
			}
		} else {
			km, err := LineDistanceKm(p.directory, primary.Trip.Line, primary.Trip.From.Code, primary.Trip.To.Code)
			if err == nil {
				metroKm = km
			}
		}
		metroKm = round2(metroKm)
	}

	carKm := primary.Trip.CarDistanceKm
	if carKm == 0 {
		carKm = metroKm
	}
	return metroKm, carKm
}

func (p *Planner) trainInfo(train parse.Train, now time.Time) TrainInfo {
	estimated := int(math.Round(train.Time.Sub(now).Minutes()))
	if estimated < 0 {
		estimated = 0
	}
	return TrainInfo{
		Direction:    train.Direction,
		Time:         train.Time,
		TimeRounded:  train.Time.In(p.cfg.Location).Format("15:04"),
		EstimatedMin: estimated,
		Wagons:       train.Wagons,
	}
}
