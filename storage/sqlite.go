package storage

import (
	"database/sql"
	"fmt"
	"sort"

	_ "github.com/mattn/go-sqlite3"
	"github.com/umahmood/haversine"
)

type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

type SQLiteStorage struct {
	SQLiteConfig

	db *sql.DB
}

type SQLiteDirectoryWriter struct {
	id string
	db *sql.DB
}

type SQLiteDirectoryReader struct {
	id string
	db *sql.DB
}

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	onDisk := false
	directory := ""
	if len(cfg) > 0 {
		onDisk = cfg[0].OnDisk
		directory = cfg[0].Directory
	}

	sourceName := ":memory:"
	if onDisk {
		sourceName = directory + "/metro.db"
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS directory (
    sha256 TEXT,
    url TEXT NOT NULL,
    retrieved_at TIMESTAMP NOT NULL,
    PRIMARY KEY (sha256, url)
);

CREATE TABLE IF NOT EXISTS directory_request (
    url TEXT NOT NULL,
    refreshed_at TIMESTAMP NOT NULL,
    PRIMARY KEY (url)
);

CREATE TABLE IF NOT EXISTS directory_consumer (
    name TEXT NOT NULL,
    url TEXT NOT NULL,
    headers TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (name, url, headers)
);

CREATE TABLE IF NOT EXISTS stations (
    directory TEXT NOT NULL,
    code TEXT NOT NULL,
    name TEXT NOT NULL,
    lat REAL NOT NULL,
    lon REAL NOT NULL,
    PRIMARY KEY (directory, code)
);

CREATE TABLE IF NOT EXISTS exits (
    directory TEXT NOT NULL,
    station_code TEXT NOT NULL,
    name TEXT NOT NULL,
    elevator BOOL NOT NULL,
    nocturnal BOOL NOT NULL
);

CREATE INDEX IF NOT EXISTS exits_by_station ON exits (directory, station_code);
`)
	if err != nil {
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &SQLiteStorage{
		SQLiteConfig: SQLiteConfig{OnDisk: onDisk, Directory: directory},
		db:           db,
	}, nil
}

func (s *SQLiteStorage) ListDirectories(filter ListDirectoriesFilter) ([]*DirectoryMetadata, error) {
	query := `SELECT sha256, url, retrieved_at FROM directory`
	where := []string{}
	args := []interface{}{}
	if filter.URL != "" {
		where = append(where, "url = ?")
		args = append(args, filter.URL)
	}
	if filter.SHA256 != "" {
		where = append(where, "sha256 = ?")
		args = append(args, filter.SHA256)
	}
	for i, clause := range where {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY retrieved_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying directories: %w", err)
	}
	defer rows.Close()

	directories := []*DirectoryMetadata{}
	for rows.Next() {
		metadata := &DirectoryMetadata{}
		err = rows.Scan(&metadata.SHA256, &metadata.URL, &metadata.RetrievedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning directory: %w", err)
		}
		directories = append(directories, metadata)
	}

	return directories, nil
}

func (s *SQLiteStorage) WriteDirectoryMetadata(metadata *DirectoryMetadata) error {
	_, err := s.db.Exec(`
INSERT INTO directory (sha256, url, retrieved_at)
VALUES (?, ?, ?)
ON CONFLICT (sha256, url) DO UPDATE SET retrieved_at = excluded.retrieved_at`,
		metadata.SHA256, metadata.URL, metadata.RetrievedAt)
	if err != nil {
		return fmt.Errorf("writing directory metadata: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListDirectoryRequests(url string) ([]DirectoryRequest, error) {
	query := `SELECT url, refreshed_at FROM directory_request`
	args := []interface{}{}
	if url != "" {
		query += " WHERE url = ?"
		args = append(args, url)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying directory requests: %w", err)
	}
	defer rows.Close()

	reqs := []DirectoryRequest{}
	for rows.Next() {
		req := DirectoryRequest{}
		err = rows.Scan(&req.URL, &req.RefreshedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning directory request: %w", err)
		}
		reqs = append(reqs, req)
	}

	for i := range reqs {
		crows, err := s.db.Query(`
SELECT name, headers, created_at, updated_at
FROM directory_consumer
WHERE url = ?`, reqs[i].URL)
		if err != nil {
			return nil, fmt.Errorf("querying directory consumers: %w", err)
		}
		for crows.Next() {
			consumer := DirectoryConsumer{}
			err = crows.Scan(&consumer.Name, &consumer.Headers, &consumer.CreatedAt, &consumer.UpdatedAt)
			if err != nil {
				crows.Close()
				return nil, fmt.Errorf("scanning directory consumer: %w", err)
			}
			reqs[i].Consumers = append(reqs[i].Consumers, consumer)
		}
		crows.Close()
	}

	return reqs, nil
}

func (s *SQLiteStorage) WriteDirectoryRequest(req DirectoryRequest) error {
	_, err := s.db.Exec(`
INSERT INTO directory_request (url, refreshed_at)
VALUES (?, ?)
ON CONFLICT (url) DO UPDATE SET refreshed_at = MAX(refreshed_at, excluded.refreshed_at)`,
		req.URL, req.RefreshedAt)
	if err != nil {
		return fmt.Errorf("writing directory request: %w", err)
	}

	for _, consumer := range req.Consumers {
		_, err = s.db.Exec(`
INSERT INTO directory_consumer (name, url, headers, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (name, url, headers) DO UPDATE SET updated_at = excluded.updated_at`,
			consumer.Name, req.URL, consumer.Headers, consumer.CreatedAt, consumer.UpdatedAt)
		if err != nil {
			return fmt.Errorf("writing directory consumer: %w", err)
		}
	}

	return nil
}

func (s *SQLiteStorage) DeleteDirectoryMetadata(url string, sha256 string) error {
	res, err := s.db.Exec(`DELETE FROM directory WHERE url = ? AND sha256 = ?`, url, sha256)
	if err != nil {
		return fmt.Errorf("deleting directory metadata: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("directory not found")
	}
	return nil
}

func (s *SQLiteStorage) GetReader(directory string) (DirectoryReader, error) {
	return &SQLiteDirectoryReader{id: directory, db: s.db}, nil
}

func (s *SQLiteStorage) GetWriter(directory string) (DirectoryWriter, error) {
	_, err := s.db.Exec(`DELETE FROM stations WHERE directory = ?`, directory)
	if err != nil {
		return nil, fmt.Errorf("clearing stations: %w", err)
	}
	_, err = s.db.Exec(`DELETE FROM exits WHERE directory = ?`, directory)
	if err != nil {
		return nil, fmt.Errorf("clearing exits: %w", err)
	}
	return &SQLiteDirectoryWriter{id: directory, db: s.db}, nil
}

func (w *SQLiteDirectoryWriter) WriteStation(station *Station) error {
	_, err := w.db.Exec(`
INSERT INTO stations (directory, code, name, lat, lon)
VALUES (?, ?, ?, ?, ?)`,
		w.id, station.Code, station.Name, station.Lat, station.Lon)
	if err != nil {
		return fmt.Errorf("writing station: %w", err)
	}
	return nil
}

func (w *SQLiteDirectoryWriter) WriteExit(exit *Exit) error {
	_, err := w.db.Exec(`
INSERT INTO exits (directory, station_code, name, elevator, nocturnal)
VALUES (?, ?, ?, ?, ?)`,
		w.id, exit.StationCode, exit.Name, exit.Elevator, exit.Nocturnal)
	if err != nil {
		return fmt.Errorf("writing exit: %w", err)
	}
	return nil
}

func (w *SQLiteDirectoryWriter) Close() error {
	return nil
}

func (r *SQLiteDirectoryReader) Stations() ([]*Station, error) {
	rows, err := r.db.Query(`
SELECT code, name, lat, lon
FROM stations
WHERE directory = ?
ORDER BY code`, r.id)
	if err != nil {
		return nil, fmt.Errorf("querying stations: %w", err)
	}
	defer rows.Close()

	stations := []*Station{}
	for rows.Next() {
		station := &Station{}
		err = rows.Scan(&station.Code, &station.Name, &station.Lat, &station.Lon)
		if err != nil {
			return nil, fmt.Errorf("scanning station: %w", err)
		}
		stations = append(stations, station)
	}

	return stations, nil
}

func (r *SQLiteDirectoryReader) Exits(stationCode string) ([]*Exit, error) {
	query := `
SELECT station_code, name, elevator, nocturnal
FROM exits
WHERE directory = ?`
	args := []interface{}{r.id}
	if stationCode != "" {
		query += " AND station_code = ?"
		args = append(args, stationCode)
	}
	query += " ORDER BY station_code, name"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying exits: %w", err)
	}
	defer rows.Close()

	exits := []*Exit{}
	for rows.Next() {
		exit := &Exit{}
		err = rows.Scan(&exit.StationCode, &exit.Name, &exit.Elevator, &exit.Nocturnal)
		if err != nil {
			return nil, fmt.Errorf("scanning exit: %w", err)
		}
		exits = append(exits, exit)
	}

	return exits, nil
}

func (r *SQLiteDirectoryReader) NearbyStations(lat float64, lon float64, limit int) ([]Station, error) {
	stations, err := r.Stations()
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
