package metro

import (
	"errors"
	"fmt"
	"sort"

	"metroplan.dev/metro/storage"
)

var ErrUnknownStation = errors.New("unknown station code")

// Directory holds the static station and exit reference data. It is
// built once from storage and never mutated, so it can be shared
// freely between concurrent itinerary computations.
type Directory struct {
	reader         storage.DirectoryReader
	stations       map[string]*storage.Station
	exitsByStation map[string][]*storage.Exit
}

func NewDirectory(reader storage.DirectoryReader) (*Directory, error) {
	stations, err := reader.Stations()
	if err != nil {
		return nil, fmt.Errorf("reading stations: %w", err)
	}

	exits, err := reader.Exits("")
	if err != nil {
		return nil, fmt.Errorf("reading exits: %w", err)
	}

	d := &Directory{
		reader:         reader,
		stations:       map[string]*storage.Station{},
		exitsByStation: map[string][]*storage.Exit{},
	}
	for _, station := range stations {
		if _, found := d.stations[station.Code]; found {
			return nil, fmt.Errorf("duplicate station code '%s'", station.Code)
		}
		d.stations[station.Code] = station
	}
	for _, exit := range exits {
		if _, found := d.stations[exit.StationCode]; !found {
			return nil, fmt.Errorf("exit '%s' references unknown station '%s'", exit.Name, exit.StationCode)
		}
		d.exitsByStation[exit.StationCode] = append(d.exitsByStation[exit.StationCode], exit)
	}

	return d, nil
}

// Station looks up a station by its code.
func (d *Directory) Station(code string) (*storage.Station, error) {
	station, found := d.stations[code]
	if !found {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownStation, code)
	}
	return station, nil
}

// Exits returns the exits of the station with the given code. A
// station without exit records yields an empty slice.
func (d *Directory) Exits(code string) []*storage.Exit {
	return d.exitsByStation[code]
}

// Stations returns all stations, ordered by code.
func (d *Directory) Stations() []*storage.Station {
	stations := make([]*storage.Station, 0, len(d.stations))
	for _, station := range d.stations {
		stations = append(stations, station)
	}
	sort.Slice(stations, func(i, j int) bool {
		return stations[i].Code < stations[j].Code
	})
	return stations
}

// Nearby returns stations ordered by distance from lat/lon, at most
// limit results (pass 0 for no limit.)
func (d *Directory) Nearby(lat float64, lon float64, limit int) ([]storage.Station, error) {
	return d.reader.NearbyStations(lat, lon, limit)
}

// Names returns a fresh code to display name map.
func (d *Directory) Names() map[string]string {
	names := make(map[string]string, len(d.stations))
	for code, station := range d.stations {
		names[code] = station.Name
	}
	return names
}

// Name returns the display name for a code, falling back to the code
// itself when the station is not in the directory.
func (d *Directory) Name(code string) string {
	if station, found := d.stations[code]; found {
		return station.Name
	}
	return code
}
