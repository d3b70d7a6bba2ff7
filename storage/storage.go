package storage

import (
	"time"
)

type Storage interface {
	// Retrieves all directory metadata records matching the given
	// filter.
	ListDirectories(filter ListDirectoriesFilter) ([]*DirectoryMetadata, error)

	// Writes a DirectoryMetadata record. If a record with the same
	// URL and hash exists, it is updated.
	WriteDirectoryMetadata(metadata *DirectoryMetadata) error

	// Retrieves all directory requests matching the given URL. If
	// the URL is blank, all requests are returned.
	ListDirectoryRequests(url string) ([]DirectoryRequest, error)

	// Writes a DirectoryRequest record. If a record with the same
	// URL exists, it is updated. All consumers included in the
	// request will be created/updated. Missing consumers will
	// _not_ be removed.
	WriteDirectoryRequest(req DirectoryRequest) error

	DeleteDirectoryMetadata(url string, sha256 string) error

	// Gets a reader for the directory with the given hash.
	GetReader(directory string) (DirectoryReader, error)

	// Gets a writer for the directory with the given hash.
	GetWriter(directory string) (DirectoryWriter, error)
}

type ListDirectoriesFilter struct {
	// If set, only include directories with the given URL.
	URL string

	// If set, only include directories with the given hash.
	SHA256 string
}

// A request to download station directory data at the given URL. The
// same URL can be requested by multiple consumers, possibly with
// different HTTP headers holding API keys.
type DirectoryRequest struct {
	URL         string
	RefreshedAt time.Time
	Consumers   []DirectoryConsumer
}

type DirectoryConsumer struct {
	Name      string
	Headers   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Metadata for a downloaded station directory. The parsed records can
// be accessed via DirectoryReader.
type DirectoryMetadata struct {
	URL         string
	SHA256      string
	RetrievedAt time.Time
}

// A metro station. Code is the short uppercase identifier used by the
// realtime API (e.g. "ABN" for Abando).
type Station struct {
	Code string
	Name string
	Lat  float64
	Lon  float64
}

// A station exit. Nocturnal exits stay open through the night-closure
// window; the rest close during it.
type Exit struct {
	StationCode string
	Name        string
	Elevator    bool
	Nocturnal   bool
}

// Writes records for a single station directory.
type DirectoryWriter interface {
	WriteStation(station *Station) error
	WriteExit(exit *Exit) error
	Close() error
}

// Reads records for a single station directory.
type DirectoryReader interface {
	// All stations, ordered by code.
	Stations() ([]*Station, error)

	// Exits for the station with the given code. Pass "" for the
	// exits of every station.
	Exits(stationCode string) ([]*Exit, error)

	// Stations near given lat/lon, ordered by distance. At most
	// limit results (pass 0 for no limit.)
	NearbyStations(lat float64, lon float64, limit int) ([]Station, error)
}
