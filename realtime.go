package metro

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"metroplan.dev/metro/downloader"
	"metroplan.dev/metro/parse"
)

var ErrBadStationCode = errors.New("station codes must be 3 letters")

const (
	DefaultRealtimeTimeout = 30 * time.Second
	DefaultRealtimeMaxSize = 1 << 20 // 1 MB
)

// Client fetches route payloads from the realtime arrivals API.
// Responses are cached briefly, matching the upstream refresh cadence,
// so a burst of requests for the same trip costs one fetch.
type Client struct {
	BaseURL    string
	Downloader downloader.Downloader
	Timeout    time.Duration
	MaxSize    int
	CacheTTL   time.Duration
}

func NewClient(cfg *Config, dl downloader.Downloader) *Client {
	return &Client{
		BaseURL:    cfg.APIBaseURL,
		Downloader: dl,
		Timeout:    DefaultRealtimeTimeout,
		MaxSize:    DefaultRealtimeMaxSize,
		CacheTTL:   cfg.RefreshInterval,
	}
}

// RouteInfo fetches the route payload for a trip between two station
// codes. Codes are upcased before use. Bad input is rejected before
// any network traffic.
func (c *Client) RouteInfo(ctx context.Context, origin, destination string) (*parse.Payload, error) {
	origin = strings.ToUpper(strings.TrimSpace(origin))
	destination = strings.ToUpper(strings.TrimSpace(destination))

	if len(origin) != 3 || len(destination) != 3 {
		return nil, fmt.Errorf("%w: '%s', '%s'", ErrBadStationCode, origin, destination)
	}
	if origin == destination {
		return nil, fmt.Errorf("%w: '%s'", ErrSameStation, origin)
	}

	url := fmt.Sprintf("%s/%s/%s", c.BaseURL, origin, destination)
	body, err := c.Downloader.Get(ctx, url, nil, downloader.GetOptions{
		Timeout:  c.Timeout,
		MaxSize:  c.MaxSize,
		Cache:    true,
		CacheTTL: c.CacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching route %s-%s: %w", origin, destination, err)
	}

	payload, err := parse.ParsePayload(body)
	if err != nil {
		return nil, fmt.Errorf("parsing route %s-%s: %w", origin, destination, err)
	}

	return payload, nil
}
