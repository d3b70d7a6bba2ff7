package storage

import (
	"database/sql"
	"fmt"
	"sort"

	_ "github.com/lib/pq"
	"github.com/umahmood/haversine"
)

type PSQLStorage struct {
	db *sql.DB
}

type PSQLDirectoryWriter struct {
	id string
	db *sql.DB
}

type PSQLDirectoryReader struct {
	id string
	db *sql.DB
}

// Creates a new Postgres Storage using the provided connection string.
//
// If clearDB is true, the database will be cleared on startup. You
// probably only want this for testing.
func NewPSQLStorage(connStr string, clearDB bool) (*PSQLStorage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if clearDB {
		_, err = db.Exec(`
DROP TABLE IF EXISTS directory;
DROP TABLE IF EXISTS directory_request;
DROP TABLE IF EXISTS directory_consumer;
DROP TABLE IF EXISTS stations;
DROP TABLE IF EXISTS exits;
`)
		if err != nil {
			return nil, fmt.Errorf("clearing db: %w", err)
		}
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS directory (
    sha256 TEXT,
    url TEXT NOT NULL,
    retrieved_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (sha256, url)
);

CREATE TABLE IF NOT EXISTS directory_request (
    url TEXT NOT NULL,
    refreshed_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (url)
);

CREATE TABLE IF NOT EXISTS directory_consumer (
    name TEXT NOT NULL,
    url TEXT NOT NULL,
    headers TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (name, url, headers)
);

CREATE TABLE IF NOT EXISTS stations (
    directory TEXT NOT NULL,
    code TEXT NOT NULL,
    name TEXT NOT NULL,
    lat DOUBLE PRECISION NOT NULL,
    lon DOUBLE PRECISION NOT NULL,
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

	return &PSQLStorage{db: db}, nil
}

func (s *PSQLStorage) ListDirectories(filter ListDirectoriesFilter) ([]*DirectoryMetadata, error) {
	query := `SELECT sha256, url, retrieved_at FROM directory`
	where := []string{}
	args := []interface{}{}
	if filter.URL != "" {
		args = append(args, filter.URL)
		where = append(where, fmt.Sprintf("url = $%d", len(args)))
	}
	if filter.SHA256 != "" {
		args = append(args, filter.SHA256)
		where = append(where, fmt.Sprintf("sha256 = $%d", len(args)))
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

func (s *PSQLStorage) WriteDirectoryMetadata(metadata *DirectoryMetadata) error {
	_, err := s.db.Exec(`
INSERT INTO directory (sha256, url, retrieved_at)
VALUES ($1, $2, $3)
ON CONFLICT (sha256, url) DO UPDATE SET retrieved_at = excluded.retrieved_at`,
		metadata.SHA256, metadata.URL, metadata.RetrievedAt)
	if err != nil {
		return fmt.Errorf("writing directory metadata: %w", err)
	}
	return nil
}

func (s *PSQLStorage) ListDirectoryRequests(url string) ([]DirectoryRequest, error) {
	query := `SELECT url, refreshed_at FROM directory_request`
	args := []interface{}{}
	if url != "" {
		query += " WHERE url = $1"
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
WHERE url = $1`, reqs[i].URL)
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

func (s *PSQLStorage) WriteDirectoryRequest(req DirectoryRequest) error {
	_, err := s.db.Exec(`
INSERT INTO directory_request (url, refreshed_at)
VALUES ($1, $2)
ON CONFLICT (url) DO UPDATE SET refreshed_at = GREATEST(directory_request.refreshed_at, excluded.refreshed_at)`,
		req.URL, req.RefreshedAt)
	if err != nil {
		return fmt.Errorf("writing directory request: %w", err)
	}

	for _, consumer := range req.Consumers {
		_, err = s.db.Exec(`
INSERT INTO directory_consumer (name, url, headers, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (name, url, headers) DO UPDATE SET updated_at = excluded.updated_at`,
			consumer.Name, req.URL, consumer.Headers, consumer.CreatedAt, consumer.UpdatedAt)
		if err != nil {
			return fmt.Errorf("writing directory consumer: %w", err)
		}
	}

	return nil
}

func (s *PSQLStorage) DeleteDirectoryMetadata(url string, sha256 string) error {
	res, err := s.db.Exec(`DELETE FROM directory WHERE url = $1 AND sha256 = $2`, url, sha256)
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

func (s *PSQLStorage) GetReader(directory string) (DirectoryReader, error) {
	return &PSQLDirectoryReader{id: directory, db: s.db}, nil
}

func (s *PSQLStorage) GetWriter(directory string) (DirectoryWriter, error) {
	_, err := s.db.Exec(`DELETE FROM stations WHERE directory = $1`, directory)
	if err != nil {
		return nil, fmt.Errorf("clearing stations: %w", err)
	}
	_, err = s.db.Exec(`DELETE FROM exits WHERE directory = $1`, directory)
	if err != nil {
		return nil, fmt.Errorf("clearing exits: %w", err)
	}
	return &PSQLDirectoryWriter{id: directory, db: s.db}, nil
}

func (w *PSQLDirectoryWriter) WriteStation(station *Station) error {
	_, err := w.db.Exec(`
INSERT INTO stations (directory, code, name, lat, lon)
VALUES ($1, $2, $3, $4, $5)`,
		w.id, station.Code, station.Name, station.Lat, station.Lon)
	if err != nil {
		return fmt.Errorf("writing station: %w", err)
	}
	return nil
}

func (w *PSQLDirectoryWriter) WriteExit(exit *Exit) error {
	_, err := w.db.Exec(`
INSERT INTO exits (directory, station_code, name, elevator, nocturnal)
VALUES ($1, $2, $3, $4, $5)`,
		w.id, exit.StationCode, exit.Name, exit.Elevator, exit.Nocturnal)
	if err != nil {
		return fmt.Errorf("writing exit: %w", err)
	}
	return nil
}

func (w *PSQLDirectoryWriter) Close() error {
	return nil
}

func (r *PSQLDirectoryReader) Stations() ([]*Station, error) {
	rows, err := r.db.Query(`
SELECT code, name, lat, lon
FROM stations
WHERE directory = $1
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

func (r *PSQLDirectoryReader) Exits(stationCode string) ([]*Exit, error) {
	query := `
SELECT station_code, name, elevator, nocturnal
FROM exits
WHERE directory = $1`
	args := []interface{}{r.id}
	if stationCode != "" {
		query += " AND station_code = $2"
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

func (r *PSQLDirectoryReader) NearbyStations(lat float64, lon float64, limit int) ([]Station, error) {
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
