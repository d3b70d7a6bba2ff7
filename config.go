package metro

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultAPIBaseURL     = "https://api.metrobilbao.eus/metro/real-time"
	DefaultRefreshSeconds = 10
	DefaultNightStart     = "22:00"
	DefaultNightEnd       = "06:00"
	DefaultTimezone       = "Europe/Madrid"

	// kg CO2 per passenger-km.
	DefaultMetroEmissionFactor = 0.033
	DefaultCarEmissionFactor   = 0.171
)

// TimeOfDay is a wall-clock time, minutes since midnight.
type TimeOfDay int

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("'%s' is not on form HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in '%s'", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in '%s'", s)
	}
	return TimeOfDay(hour*60 + minute), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// NightWindow is the daily closure window for non-nocturnal exits,
// half-open [Start, End). It wraps midnight when Start > End.
type NightWindow struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Contains reports whether the time-of-day of t falls inside the
// window. An empty window (Start == End) contains nothing.
func (w NightWindow) Contains(t time.Time) bool {
	tod := TimeOfDay(t.Hour()*60 + t.Minute())
	if w.Start == w.End {
		return false
	}
	if w.Start > w.End {
		// Window spans midnight, e.g. 22:00-06:00.
		return tod >= w.Start || tod < w.End
	}
	return w.Start <= tod && tod < w.End
}

func (w NightWindow) String() string {
	return w.Start.String() + "-" + w.End.String()
}

type Config struct {
	APIBaseURL   string `validate:"required,url"`
	DirectoryURL string `validate:"omitempty,url"`

	// How long realtime payloads may be served from cache.
	RefreshInterval time.Duration

	Night    NightWindow
	Location *time.Location `validate:"required"`

	MetroEmissionFactor float64 `validate:"gte=0"`
	CarEmissionFactor   float64 `validate:"gte=0"`

	// Used when a transfer trip arrives without an explicit
	// transfer station and the line topology offers no better
	// candidate.
	DefaultTransferStation string `validate:"omitempty,len=3"`
}

// LoadConfig builds the configuration from environment variables,
// reading a .env file first if one is present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIBaseURL:             getenvDefault("METRO_API_BASE_URL", DefaultAPIBaseURL),
		DirectoryURL:           os.Getenv("METRO_DIRECTORY_URL"),
		MetroEmissionFactor:    DefaultMetroEmissionFactor,
		CarEmissionFactor:      DefaultCarEmissionFactor,
		DefaultTransferStation: getenvDefault("METRO_DEFAULT_TRANSFER_STATION", DefaultTransferStation),
	}

	if v := os.Getenv("AUTO_REFRESH_INTERVAL_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec <= 0 {
			return nil, fmt.Errorf("invalid AUTO_REFRESH_INTERVAL_SEC: %q", v)
		}
		cfg.RefreshInterval = time.Duration(sec) * time.Second
	} else {
		cfg.RefreshInterval = DefaultRefreshSeconds * time.Second
	}

	nightStart, err := ParseTimeOfDay(getenvDefault("NIGHT_TIME_START", DefaultNightStart))
	if err != nil {
		return nil, fmt.Errorf("invalid NIGHT_TIME_START: %w", err)
	}
	nightEnd, err := ParseTimeOfDay(getenvDefault("NIGHT_TIME_END", DefaultNightEnd))
	if err != nil {
		return nil, fmt.Errorf("invalid NIGHT_TIME_END: %w", err)
	}
	cfg.Night = NightWindow{Start: nightStart, End: nightEnd}

	location, err := time.LoadLocation(getenvDefault("METRO_TIMEZONE", DefaultTimezone))
	if err != nil {
		return nil, fmt.Errorf("invalid METRO_TIMEZONE: %w", err)
	}
	cfg.Location = location

	if v := os.Getenv("METRO_EMISSION_FACTOR"); v != "" {
		cfg.MetroEmissionFactor, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid METRO_EMISSION_FACTOR: %q", v)
		}
	}
	if v := os.Getenv("CAR_EMISSION_FACTOR"); v != "" {
		cfg.CarEmissionFactor, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid CAR_EMISSION_FACTOR: %q", v)
		}
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
