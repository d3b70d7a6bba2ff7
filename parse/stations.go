package parse

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"metroplan.dev/metro/storage"
)

type StationCSV struct {
	Code string  `csv:"station_code"`
	Name string  `csv:"station_name"`
	Lat  float64 `csv:"station_lat"`
	Lon  float64 `csv:"station_lon"`
}

func ParseStations(writer storage.DirectoryWriter, data io.Reader) (map[string]bool, error) {
	stationCsv := []*StationCSV{}
	if err := gocsv.Unmarshal(data, &stationCsv); err != nil {
		return nil, fmt.Errorf("unmarshaling stations csv: %w", err)
	}

	codes := map[string]bool{}
	for _, st := range stationCsv {
		if st.Code == "" {
			return nil, fmt.Errorf("empty station_code")
		}
		if !validStationCode(st.Code) {
			return nil, fmt.Errorf("station_code '%s' is not 3 uppercase letters", st.Code)
		}
		if codes[st.Code] {
			return nil, fmt.Errorf("repeated station_code '%s'", st.Code)
		}
		codes[st.Code] = true

		if st.Name == "" {
			return nil, fmt.Errorf("empty station_name for station_code '%s'", st.Code)
		}

		err := writer.WriteStation(&storage.Station{
			Code: st.Code,
			Name: st.Name,
			Lat:  st.Lat,
			Lon:  st.Lon,
		})
		if err != nil {
			return nil, fmt.Errorf("writing station '%s': %w", st.Code, err)
		}
	}

	return codes, nil
}

func validStationCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}
