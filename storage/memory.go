package storage

import (
	"fmt"
	"sort"

	"github.com/umahmood/haversine"
)

// In memory implementation of Storage below

type memoryMetadataKey struct {
	URL    string
	SHA256 string
}

type MemoryStorage struct {
	Directories map[string]*MemoryDirectory
	Metadata    map[memoryMetadataKey]*DirectoryMetadata
	Requests    map[string]DirectoryRequest
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		Directories: map[string]*MemoryDirectory{},
		Metadata:    map[memoryMetadataKey]*DirectoryMetadata{},
		Requests:    map[string]DirectoryRequest{},
	}
}

func (s *MemoryStorage) ListDirectories(filter ListDirectoriesFilter) ([]*DirectoryMetadata, error) {
	directories := []*DirectoryMetadata{}
	for _, metadata := range s.Metadata {
		if filter.URL != "" && metadata.URL != filter.URL {
			continue
		}
		if filter.SHA256 != "" && metadata.SHA256 != filter.SHA256 {
			continue
		}
		directories = append(directories, metadata)
	}
	sort.Slice(directories, func(i, j int) bool {
		return directories[i].RetrievedAt.After(directories[j].RetrievedAt)
	})
	return directories, nil
}

func (s *MemoryStorage) WriteDirectoryMetadata(metadata *DirectoryMetadata) error {
	s.Metadata[memoryMetadataKey{metadata.URL, metadata.SHA256}] = metadata
	return nil
}

func (s *MemoryStorage) ListDirectoryRequests(url string) ([]DirectoryRequest, error) {
	reqs := []DirectoryRequest{}

	for _, req := range s.Requests {
		if url != "" && req.URL != url {
			continue
		}
		reqs = append(reqs, req)
	}

	return reqs, nil
}

func (s *MemoryStorage) WriteDirectoryRequest(req DirectoryRequest) error {
	existing, found := s.Requests[req.URL]
	if !found {
		s.Requests[req.URL] = req
		return nil
	}

	if req.RefreshedAt.After(existing.RefreshedAt) {
		existing.RefreshedAt = req.RefreshedAt
	}
	for _, consumer := range req.Consumers {
		replaced := false
		for i, old := range existing.Consumers {
			if old.Name == consumer.Name && old.Headers == consumer.Headers {
				existing.Consumers[i].UpdatedAt = consumer.UpdatedAt
				replaced = true
				break
			}
		}
		if !replaced {
			existing.Consumers = append(existing.Consumers, consumer)
		}
	}
	s.Requests[req.URL] = existing

	return nil
}

func (s *MemoryStorage) DeleteDirectoryMetadata(url string, sha256 string) error {
	key := memoryMetadataKey{url, sha256}
	if _, found := s.Metadata[key]; !found {
		return fmt.Errorf("directory not found")
	}
	delete(s.Metadata, key)
	return nil
}

func (s *MemoryStorage) GetReader(directory string) (DirectoryReader, error) {
	d, ok := s.Directories[directory]
	if !ok {
		return nil, fmt.Errorf("directory not found")
	}
	return d, nil
}

func (s *MemoryStorage) GetWriter(directory string) (DirectoryWriter, error) {
	d := &MemoryDirectory{
		stations:       map[string]*Station{},
		exitsByStation: map[string][]*Exit{},
	}

	s.Directories[directory] = d

	return d, nil
}

type MemoryDirectory struct {
	stations       map[string]*Station
	exitsByStation map[string][]*Exit
}

func (d *MemoryDirectory) WriteStation(station *Station) error {
	d.stations[station.Code] = station
	return nil
}

func (d *MemoryDirectory) WriteExit(exit *Exit) error {
	d.exitsByStation[exit.StationCode] = append(d.exitsByStation[exit.StationCode], exit)
	return nil
}

func (d *MemoryDirectory) Close() error {
	return nil
}

func (d *MemoryDirectory) Stations() ([]*Station, error) {
	stations := make([]*Station, 0, len(d.stations))
	for _, station := range d.stations {
		stations = append(stations, station)
	}
	sort.Slice(stations, func(i, j int) bool {
		return stations[i].Code < stations[j].Code
	})
	return stations, nil
}

func (d *MemoryDirectory) Exits(stationCode string) ([]*Exit, error) {
	if stationCode != "" {
		return d.exitsByStation[stationCode], nil
	}

	codes := make([]string, 0, len(d.exitsByStation))
	for code := range d.exitsByStation {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	exits := []*Exit{}
	for _, code := range codes {
		exits = append(exits, d.exitsByStation[code]...)
	}
	return exits, nil
}

func (d *MemoryDirectory) NearbyStations(lat float64, lon float64, limit int) ([]Station, error) {
	stations, err := d.Stations()
	if err != nil {
		return nil, err
	}

	here := haversine.Coord{Lat: lat, Lon: lon}
	sorted := make([]Station, 0, len(stations))
	for _, station := range stations {
		sorted = append(sorted, *station)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		_, di := haversine.Distance(here, haversine.Coord{Lat: sorted[i].Lat, Lon: sorted[i].Lon})
		_, dj := haversine.Distance(here, haversine.Coord{Lat: sorted[j].Lat, Lon: sorted[j].Lon})
		return di < dj
	})

	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}
