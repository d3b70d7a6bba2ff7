package metro

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"metroplan.dev/metro/downloader"
	"metroplan.dev/metro/parse"
	"metroplan.dev/metro/storage"
)

const (
	DefaultDirectoryRefreshInterval = 12 * time.Hour
	DefaultDirectoryTimeout         = 60 * time.Second
	DefaultDirectoryMaxSize         = 10 << 20 // 10 MB
)

var ErrNoActiveDirectory = errors.New("no active directory found")

// Manager keeps the station directory in storage fresh.
type Manager struct {
	DirectoryRefreshInterval time.Duration
	DirectoryTimeout         time.Duration
	DirectoryMaxSize         int
	Downloader               downloader.Downloader

	storage storage.Storage
}

func NewManager(s storage.Storage) *Manager {
	return &Manager{
		DirectoryRefreshInterval: DefaultDirectoryRefreshInterval,
		DirectoryTimeout:         DefaultDirectoryTimeout,
		DirectoryMaxSize:         DefaultDirectoryMaxSize,

		Downloader: downloader.NewMemoryDownloader(),

		storage: s,
	}
}

// Loads the station directory from a URL.
//
// If directory data for the URL is available in storage, it is
// returned immediately. Otherwise, ErrNoActiveDirectory is returned.
//
// Unless already present, a DirectoryRequest for this URL will be
// placed in storage, to track consumers and headers. A later call to
// Refresh() will download and parse the data.
func (m *Manager) LoadDirectoryAsync(
	consumer string,
	directoryURL string,
	headers map[string]string,
) (*Directory, error) {

	now := time.Now().UTC()

	err := m.storage.WriteDirectoryRequest(storage.DirectoryRequest{
		URL: directoryURL,
		Consumers: []storage.DirectoryConsumer{
			{
				Name:      consumer,
				Headers:   serializeHeaders(headers),
				CreatedAt: now,
				UpdatedAt: now,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("writing directory request: %w", err)
	}

	directories, err := m.storage.ListDirectories(storage.ListDirectoriesFilter{URL: directoryURL})
	if err != nil {
		return nil, fmt.Errorf("listing directories: %w", err)
	}
	if len(directories) == 0 {
		return nil, ErrNoActiveDirectory
	}

	// Most recently retrieved copy wins.
	reader, err := m.storage.GetReader(directories[0].SHA256)
	if err != nil {
		return nil, fmt.Errorf("getting reader: %w", err)
	}

	return NewDirectory(reader)
}

// Loads the station directory from a URL, downloading it if storage
// holds no copy yet. Blocking convenience wrapper for the CLI.
func (m *Manager) LoadDirectory(ctx context.Context, consumer string, directoryURL string) (*Directory, error) {
	directory, err := m.LoadDirectoryAsync(consumer, directoryURL, nil)
	if err == nil {
		return directory, nil
	}
	if !errors.Is(err, ErrNoActiveDirectory) {
		return nil, err
	}

	if err := m.Refresh(ctx); err != nil {
		return nil, err
	}

	return m.LoadDirectoryAsync(consumer, directoryURL, nil)
}

// Refreshes any directory requests that might need refreshing.
func (m *Manager) Refresh(ctx context.Context) error {
	directoriesByHash := map[string][]*storage.DirectoryMetadata{}
	directories, err := m.storage.ListDirectories(storage.ListDirectoriesFilter{})
	if err != nil {
		return fmt.Errorf("listing directories: %w", err)
	}
	for _, metadata := range directories {
		directoriesByHash[metadata.SHA256] = append(directoriesByHash[metadata.SHA256], metadata)
	}

	requests, err := m.storage.ListDirectoryRequests("")
	if err != nil {
		return fmt.Errorf("listing directory requests: %w", err)
	}

	errs := []error{}
	for _, req := range requests {
		if req.RefreshedAt.Before(time.Now().Add(-m.DirectoryRefreshInterval)) {
			err = m.processRequest(ctx, req, directoriesByHash)
			if err != nil {
				errs = append(errs, fmt.Errorf("refreshing directory at %s: %w", req.URL, err))
			}
		}
	}

	return errors.Join(errs...)
}

// Downloads a requested URL. A randomly selected consumer's headers
// will be used. If the data is already in storage, only a metadata
// record is added for this URL.
func (m *Manager) processRequest(
	ctx context.Context,
	req storage.DirectoryRequest,
	directoriesByHash map[string][]*storage.DirectoryMetadata,
) error {

	headers := map[string]string{}
	if len(req.Consumers) > 0 {
		var err error
		headers, err = deserializeHeaders(req.Consumers[rand.Intn(len(req.Consumers))].Headers)
		if err != nil {
			return fmt.Errorf("deserializing headers: %w", err)
		}
	}

	body, err := m.Downloader.Get(
		ctx,
		req.URL,
		headers,
		downloader.GetOptions{
			Cache:   false,
			Timeout: m.DirectoryTimeout,
			MaxSize: m.DirectoryMaxSize,
		},
	)
	if err != nil {
		return fmt.Errorf("downloading directory at %s: %w", req.URL, err)
	}
	hash := fmt.Sprintf("%x", sha256.Sum256(body))

	existing := directoriesByHash[hash]
	found := false
	for _, metadata := range existing {
		if metadata.URL == req.URL {
			found = true
			break
		}
	}

	if len(existing) > 0 && !found {
		// Data is in storage, but recorded for a different
		// URL. Add a metadata record for this one.
		metadata := &storage.DirectoryMetadata{
			URL:         req.URL,
			SHA256:      hash,
			RetrievedAt: time.Now().UTC(),
		}
		directoriesByHash[hash] = append(directoriesByHash[hash], metadata)
		if err := m.storage.WriteDirectoryMetadata(metadata); err != nil {
			return fmt.Errorf("writing metadata: %w", err)
		}
	} else if len(existing) == 0 {
		writer, err := m.storage.GetWriter(hash)
		if err != nil {
			return fmt.Errorf("getting writer: %w", err)
		}
		defer writer.Close()

		_, err = parse.ParseDirectory(writer, body)
		if err != nil {
			// If the downloaded data is broken, still mark
			// the request as refreshed so a bad dump isn't
			// hammered.
			req.RefreshedAt = time.Now().UTC()
			if reqErr := m.storage.WriteDirectoryRequest(req); reqErr != nil {
				return errors.Join(
					fmt.Errorf("writing directory request: %w", reqErr),
					fmt.Errorf("parsing: %w", err),
				)
			}
			return fmt.Errorf("parsing: %w", err)
		}

		metadata := &storage.DirectoryMetadata{
			URL:         req.URL,
			SHA256:      hash,
			RetrievedAt: time.Now().UTC(),
		}
		directoriesByHash[hash] = append(directoriesByHash[hash], metadata)
		if err := m.storage.WriteDirectoryMetadata(metadata); err != nil {
			return fmt.Errorf("writing metadata: %w", err)
		}

		log.Debugf("parsed directory %s from %s", hash[:8], req.URL)
	}

	req.RefreshedAt = time.Now().UTC()
	if err := m.storage.WriteDirectoryRequest(req); err != nil {
		return fmt.Errorf("writing directory request: %w", err)
	}

	return nil
}

func serializeHeaders(headers map[string]string) string {
	keys := make([]string, 0, len(headers))
	for key := range headers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, url.QueryEscape(key)+"="+url.QueryEscape(headers[key]))
	}
	return strings.Join(pairs, "&")
}

func deserializeHeaders(serialized string) (map[string]string, error) {
	headers := map[string]string{}
	if serialized == "" {
		return headers, nil
	}
	for _, pair := range strings.Split(serialized, "&") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed header pair '%s'", pair)
		}
		key, err := url.QueryUnescape(parts[0])
		if err != nil {
			return nil, fmt.Errorf("unescaping header key: %w", err)
		}
		value, err := url.QueryUnescape(parts[1])
		if err != nil {
			return nil, fmt.Errorf("unescaping header value: %w", err)
		}
		headers[key] = value
	}
	return headers, nil
}
