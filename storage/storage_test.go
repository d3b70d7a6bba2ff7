package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBackends(t *testing.T) map[string]Storage {
	sqlite, err := NewSQLiteStorage()
	require.NoError(t, err)

	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"sqlite": sqlite,
	}
}

func writeTestDirectory(t *testing.T, s Storage, directory string) {
	writer, err := s.GetWriter(directory)
	require.NoError(t, err)

	for _, station := range []*Station{
		{Code: "CAD", Name: "Zazpikaleak/Casco Viejo", Lat: 43.2590, Lon: -2.9215},
		{Code: "ABN", Name: "Abando", Lat: 43.2609, Lon: -2.9253},
		{Code: "SMM", Name: "Santimami/San Mames", Lat: 43.2617, Lon: -2.9483},
	} {
		require.NoError(t, writer.WriteStation(station))
	}
	for _, exit := range []*Exit{
		{StationCode: "ABN", Name: "Plaza Circular", Elevator: true, Nocturnal: true},
		{StationCode: "ABN", Name: "Berastegi"},
		{StationCode: "CAD", Name: "Askao"},
	} {
		require.NoError(t, writer.WriteExit(exit))
	}
	require.NoError(t, writer.Close())
}

func TestStorageStationsAndExits(t *testing.T) {
	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			writeTestDirectory(t, s, "d1")

			reader, err := s.GetReader("d1")
			require.NoError(t, err)

			stations, err := reader.Stations()
			require.NoError(t, err)
			require.Len(t, stations, 3)
			assert.Equal(t, "ABN", stations[0].Code)
			assert.Equal(t, "CAD", stations[1].Code)
			assert.Equal(t, "SMM", stations[2].Code)
			assert.Equal(t, "Abando", stations[0].Name)
			assert.InDelta(t, 43.2609, stations[0].Lat, 0.0001)

			exits, err := reader.Exits("ABN")
			require.NoError(t, err)
			require.Len(t, exits, 2)
			for _, exit := range exits {
				assert.Equal(t, "ABN", exit.StationCode)
			}

			all, err := reader.Exits("")
			require.NoError(t, err)
			assert.Len(t, all, 3)

			none, err := reader.Exits("SMM")
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestStorageNearbyStations(t *testing.T) {
	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			writeTestDirectory(t, s, "d1")

			reader, err := s.GetReader("d1")
			require.NoError(t, err)

			// From Abando's own coordinates.
			nearby, err := reader.NearbyStations(43.2609, -2.9253, 0)
			require.NoError(t, err)
			require.Len(t, nearby, 3)
			assert.Equal(t, "ABN", nearby[0].Code)
			assert.Equal(t, "CAD", nearby[1].Code)
			assert.Equal(t, "SMM", nearby[2].Code)

			limited, err := reader.NearbyStations(43.2609, -2.9253, 2)
			require.NoError(t, err)
			assert.Len(t, limited, 2)
		})
	}
}

func TestMemoryStorageUnknownDirectory(t *testing.T) {
	s := NewMemoryStorage()
	_, err := s.GetReader("nope")
	assert.Error(t, err)
}

func TestStorageRewriteReplacesDirectory(t *testing.T) {
	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			writeTestDirectory(t, s, "d1")

			writer, err := s.GetWriter("d1")
			require.NoError(t, err)
			require.NoError(t, writer.WriteStation(&Station{Code: "BOL", Name: "Bolueta"}))
			require.NoError(t, writer.Close())

			reader, err := s.GetReader("d1")
			require.NoError(t, err)
			stations, err := reader.Stations()
			require.NoError(t, err)
			require.Len(t, stations, 1)
			assert.Equal(t, "BOL", stations[0].Code)
		})
	}
}

func TestStorageDirectoryMetadata(t *testing.T) {
	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			older := &DirectoryMetadata{
				URL:         "https://example.com/a.zip",
				SHA256:      "aaa",
				RetrievedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			}
			newer := &DirectoryMetadata{
				URL:         "https://example.com/a.zip",
				SHA256:      "bbb",
				RetrievedAt: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
			}
			other := &DirectoryMetadata{
				URL:         "https://example.com/b.zip",
				SHA256:      "ccc",
				RetrievedAt: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
			}
			require.NoError(t, s.WriteDirectoryMetadata(older))
			require.NoError(t, s.WriteDirectoryMetadata(newer))
			require.NoError(t, s.WriteDirectoryMetadata(other))

			// Newest first.
			all, err := s.ListDirectories(ListDirectoriesFilter{})
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "ccc", all[0].SHA256)
			assert.Equal(t, "bbb", all[1].SHA256)
			assert.Equal(t, "aaa", all[2].SHA256)

			byURL, err := s.ListDirectories(ListDirectoriesFilter{URL: "https://example.com/a.zip"})
			require.NoError(t, err)
			require.Len(t, byURL, 2)
			assert.Equal(t, "bbb", byURL[0].SHA256)

			byHash, err := s.ListDirectories(ListDirectoriesFilter{SHA256: "aaa"})
			require.NoError(t, err)
			require.Len(t, byHash, 1)

			require.NoError(t, s.DeleteDirectoryMetadata("https://example.com/a.zip", "aaa"))
			byURL, err = s.ListDirectories(ListDirectoriesFilter{URL: "https://example.com/a.zip"})
			require.NoError(t, err)
			assert.Len(t, byURL, 1)

			assert.Error(t, s.DeleteDirectoryMetadata("https://example.com/a.zip", "aaa"))
		})
	}
}

func TestStorageDirectoryRequests(t *testing.T) {
	for name, s := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			created := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
			require.NoError(t, s.WriteDirectoryRequest(DirectoryRequest{
				URL: "https://example.com/a.zip",
				Consumers: []DirectoryConsumer{
					{Name: "cli", Headers: "", CreatedAt: created, UpdatedAt: created},
				},
			}))

			// Same URL, new consumer. Existing consumers survive.
			updated := created.Add(24 * time.Hour)
			require.NoError(t, s.WriteDirectoryRequest(DirectoryRequest{
				URL:         "https://example.com/a.zip",
				RefreshedAt: updated,
				Consumers: []DirectoryConsumer{
					{Name: "server", Headers: "x-api-key=secret", CreatedAt: updated, UpdatedAt: updated},
				},
			}))

			reqs, err := s.ListDirectoryRequests("https://example.com/a.zip")
			require.NoError(t, err)
			require.Len(t, reqs, 1)
			assert.True(t, reqs[0].RefreshedAt.Equal(updated))
			assert.Len(t, reqs[0].Consumers, 2)

			reqs, err = s.ListDirectoryRequests("https://example.com/other.zip")
			require.NoError(t, err)
			assert.Empty(t, reqs)

			require.NoError(t, s.WriteDirectoryRequest(DirectoryRequest{
				URL: "https://example.com/b.zip",
			}))
			reqs, err = s.ListDirectoryRequests("")
			require.NoError(t, err)
			assert.Len(t, reqs, 2)
		})
	}
}
