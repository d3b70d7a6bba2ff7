package metro

import (
	"fmt"
	"time"

	"metroplan.dev/metro/storage"
)

// Availability of a single exit at the evaluated instant.
type ExitStatus struct {
	Name      string   `json:"name"`
	Elevator  bool     `json:"elevator"`
	Nocturnal bool     `json:"nocturnal"`
	Available bool     `json:"available"`
	Issues    []string `json:"issues,omitempty"`
}

// EvaluateExits decides which exits are open at the given instant.
// Nocturnal exits are always open; the rest close during the night
// window. Availability is time-dependent, so callers must re-evaluate
// on every request rather than cache the result.
func EvaluateExits(exits []*storage.Exit, now time.Time, night NightWindow) []ExitStatus {
	statuses := make([]ExitStatus, 0, len(exits))
	for _, exit := range exits {
		status := ExitStatus{
			Name:      exit.Name,
			Elevator:  exit.Elevator,
			Nocturnal: exit.Nocturnal,
			Available: exit.Nocturnal || !night.Contains(now),
		}
		if !status.Available {
			status.Issues = []string{
				fmt.Sprintf("closed during night hours (%s)", night),
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}
