package metro

import (
	"fmt"
	"sort"

	"github.com/umahmood/haversine"
)

// Line topology of the network. The realtime API anchors every trip
// to a line, but it never states termini or inter-station order, so
// direction resolution and distance fallbacks need the layout.
//
// L1: Plentzia - Etxebarri
// L2: Kabiezes - Basauri
// L3: Matiko - Kukullaga
var lines = map[string][]string{
	"L1": {
		"PLE", "SOP", "LAR", "BER", "IBR", "BID", "ALG", "AIB", "NEG",
		"GOB", "ARE", "LAM", "LEI", "AST", "ERA", "LUT", "DEU", "SAR",
		"SMM", "IND", "MOY", "ABN", "CAD", "BOL", "ETX",
	},
	"L2": {
		"KAB", "STZ", "PEN", "POR", "ABT", "SES", "URB", "BAG", "BAR",
		"ANS", "GUR", "BAS", "ARZ", "ETX", "BOL", "CAD", "ABN", "MOY",
		"SMM", "IND",
	},
	"L3": {"MAT", "URI", "ZUR", "TXU", "OTX", "KUK", "BOL", "CAD"},
}

// Stations where lines intersect, in preference order for transfer
// resolution. CAD (Zazpikaleak/Casco Viejo) serves all three lines
// and is the documented default.
var transferStations = []string{"ETX", "BOL", "CAD", "ABN", "MOY", "IND", "SMM"}

const DefaultTransferStation = "CAD"

// Lines returns all line identifiers, sorted.
func Lines() []string {
	ids := make([]string, 0, len(lines))
	for id := range lines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LineStations returns the ordered station codes of a line.
func LineStations(line string) ([]string, error) {
	stations, found := lines[line]
	if !found {
		return nil, fmt.Errorf("unknown line '%s'", line)
	}
	return stations, nil
}

// LinesThrough returns the lines serving a station code, sorted.
func LinesThrough(code string) []string {
	through := []string{}
	for _, line := range Lines() {
		if lineIndex(line, code) >= 0 {
			through = append(through, line)
		}
	}
	return through
}

func lineIndex(line, code string) int {
	for i, c := range lines[line] {
		if c == code {
			return i
		}
	}
	return -1
}

// SharedTransferStation returns the preferred transfer station served
// by both lines.
func SharedTransferStation(lineA, lineB string) (string, bool) {
	for _, code := range transferStations {
		if lineIndex(lineA, code) >= 0 && lineIndex(lineB, code) >= 0 {
			return code, true
		}
	}
	return "", false
}

// TerminusToward returns the terminus code a rider headed from one
// station to another on the given line is traveling toward. The feed
// labels train directions with terminus names, so this is what the
// second-leg direction filter matches against.
func TerminusToward(line, from, to string) (string, bool) {
	stations, found := lines[line]
	if !found {
		return "", false
	}
	fromIdx := lineIndex(line, from)
	toIdx := lineIndex(line, to)
	if fromIdx < 0 || toIdx < 0 || fromIdx == toIdx {
		return "", false
	}
	if toIdx > fromIdx {
		return stations[len(stations)-1], true
	}
	return stations[0], true
}

// LineDistanceKm sums great-circle hops between consecutive stations
// from one station to another along a line. Coordinates come from the
// directory; stations without them contribute nothing, making this a
// lower bound suitable as a fallback when the feed omits distance.
func LineDistanceKm(directory *Directory, line, from, to string) (float64, error) {
	stations, found := lines[line]
	if !found {
		return 0, fmt.Errorf("unknown line '%s'", line)
	}
	fromIdx := lineIndex(line, from)
	toIdx := lineIndex(line, to)
	if fromIdx < 0 {
		return 0, fmt.Errorf("station '%s' is not on line '%s'", from, line)
	}
	if toIdx < 0 {
		return 0, fmt.Errorf("station '%s' is not on line '%s'", to, line)
	}
	if fromIdx > toIdx {
		fromIdx, toIdx = toIdx, fromIdx
	}

	total := 0.0
	for i := fromIdx; i < toIdx; i++ {
		a, errA := directory.Station(stations[i])
		b, errB := directory.Station(stations[i+1])
		if errA != nil || errB != nil {
			continue
		}
		if (a.Lat == 0 && a.Lon == 0) || (b.Lat == 0 && b.Lon == 0) {
			continue
		}
		_, km := haversine.Distance(
			haversine.Coord{Lat: a.Lat, Lon: a.Lon},
			haversine.Coord{Lat: b.Lat, Lon: b.Lon},
		)
		total += km
	}
	return total, nil
}
