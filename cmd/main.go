package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"metroplan.dev/metro"
	"metroplan.dev/metro/downloader"
	"metroplan.dev/metro/storage"
)

var rootCmd = &cobra.Command{
	Use:          "metro",
	Short:        "Metro itinerary planning tool",
	Long:         "Plans metro trips from realtime arrival data: upcoming trains, transfer options, exit availability and CO2 comparison",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			log.SetLevel(log.DebugLevel)
		}
	},
}

var (
	apiURL       string
	directoryURL string
	dbDir        string
	cachePath    string
	debug        bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&apiURL, "api-url", "", "", "Realtime API base URL (overrides METRO_API_BASE_URL)")
	rootCmd.PersistentFlags().StringVarP(&directoryURL, "directory-url", "", "", "Station directory dump URL (overrides METRO_DIRECTORY_URL)")
	rootCmd.PersistentFlags().StringVarP(&dbDir, "db", "", "", "Directory for the sqlite database (default: in-memory)")
	rootCmd.PersistentFlags().StringVarP(&cachePath, "cache", "", "", "Path for the download cache file (default: in-memory)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "", false, "Enable debug logging")

	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(stationsCmd)
	rootCmd.AddCommand(exitsCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadConfig() (*metro.Config, error) {
	cfg, err := metro.LoadConfig()
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.APIBaseURL = apiURL
	}
	if directoryURL != "" {
		cfg.DirectoryURL = directoryURL
	}
	return cfg, nil
}

func buildDownloader() (downloader.Downloader, error) {
	if cachePath != "" {
		return downloader.NewFilesystem(cachePath)
	}
	return downloader.NewMemoryDownloader(), nil
}

func buildStorage() (storage.Storage, error) {
	if dbDir != "" {
		return storage.NewSQLiteStorage(storage.SQLiteConfig{OnDisk: true, Directory: dbDir})
	}
	return storage.NewSQLiteStorage()
}

// LoadPlanner wires up config, storage, downloader and directory, and
// returns a ready planner plus the realtime client.
func LoadPlanner(ctx context.Context) (*metro.Planner, *metro.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.DirectoryURL == "" {
		return nil, nil, fmt.Errorf("directory URL is required (--directory-url or METRO_DIRECTORY_URL)")
	}

	s, err := buildStorage()
	if err != nil {
		return nil, nil, err
	}

	dl, err := buildDownloader()
	if err != nil {
		return nil, nil, err
	}

	manager := metro.NewManager(s)
	manager.Downloader = dl

	directory, err := manager.LoadDirectory(ctx, "cli", cfg.DirectoryURL)
	if err != nil {
		return nil, nil, fmt.Errorf("loading directory: %w", err)
	}

	return metro.NewPlanner(directory, cfg), metro.NewClient(cfg, dl), nil
}
