package parse

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"metroplan.dev/metro/storage"
)

type ExitCSV struct {
	StationCode string `csv:"station_code"`
	Name        string `csv:"exit_name"`
	Elevator    int8   `csv:"elevator"`
	Nocturnal   int8   `csv:"nocturnal"`
}

func ParseExits(writer storage.DirectoryWriter, data io.Reader, stations map[string]bool) error {
	exitCsv := []*ExitCSV{}
	if err := gocsv.Unmarshal(data, &exitCsv); err != nil {
		return fmt.Errorf("unmarshaling exits csv: %w", err)
	}

	for _, ex := range exitCsv {
		if ex.StationCode == "" {
			return fmt.Errorf("empty station_code")
		}
		if !stations[ex.StationCode] {
			return fmt.Errorf("exit '%s' references unknown station_code '%s'", ex.Name, ex.StationCode)
		}
		if ex.Name == "" {
			return fmt.Errorf("empty exit_name for station_code '%s'", ex.StationCode)
		}

		err := writer.WriteExit(&storage.Exit{
			StationCode: ex.StationCode,
			Name:        ex.Name,
			Elevator:    ex.Elevator == 1,
			Nocturnal:   ex.Nocturnal == 1,
		})
		if err != nil {
			return fmt.Errorf("writing exit '%s': %w", ex.Name, err)
		}
	}

	return nil
}
