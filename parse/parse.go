package parse

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/spkg/bom"

	"metroplan.dev/metro/storage"
)

// ParseDirectory loads a station directory dump into storage. The
// dump is a zip archive holding stations.txt and exits.txt.
func ParseDirectory(writer storage.DirectoryWriter, buf []byte) (*storage.DirectoryMetadata, error) {
	file := map[string]io.ReadCloser{
		"stations.txt": nil,
		"exits.txt":    nil,
	}

	defer func() {
		for _, rc := range file {
			if rc != nil {
				rc.Close()
			}
		}
	}()

	r, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("unzipping: %w", err)
	}

	for _, f := range r.File {
		// There should not be any subdirectories. But, some
		// data providers don't care.
		if f.FileInfo().IsDir() {
			continue
		}
		path := strings.Split(f.Name, "/")
		fName := path[len(path)-1]

		if _, found := file[fName]; !found {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", f.Name, err)
		}

		file[fName] = rc
	}

	if file["stations.txt"] == nil {
		return nil, fmt.Errorf("missing stations.txt")
	}

	// LazyCSVReader required (at least) to survive sloppy use of
	// quotes. The BOM reader strips unicode BOMs if present.
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		return gocsv.LazyCSVReader(bom.NewReader(in))
	})

	stations, err := ParseStations(writer, file["stations.txt"])
	if err != nil {
		return nil, fmt.Errorf("parsing stations.txt: %w", err)
	}

	// Exits are optional. A directory without them still serves
	// station name lookups.
	if file["exits.txt"] != nil {
		err = ParseExits(writer, file["exits.txt"], stations)
		if err != nil {
			return nil, fmt.Errorf("parsing exits.txt: %w", err)
		}
	}

	return &storage.DirectoryMetadata{}, nil
}
