package metro

import (
	"math"
)

// Emission comparison between riding the metro and driving the same
// trip. Metro and car distances may legitimately differ, as road
// routing differs from rail routing.
type CO2Estimate struct {
	CO2Metro        float64 `json:"co2metro"`
	CO2Car          float64 `json:"co2Car"`
	Savings         float64 `json:"diff"`
	MetroDistanceKm float64 `json:"metroDistance"`
	CarDistanceKm   float64 `json:"carDistance"`
}

// EstimateCO2 computes kg of CO2 for both modes, rounded to two
// decimals for display. Savings is not clamped: a negative value
// signals anomalous inputs and is the presentation layer's to
// surface.
func EstimateCO2(metroKm, carKm, metroFactor, carFactor float64) CO2Estimate {
	co2Metro := round2(metroKm * metroFactor)
	co2Car := round2(carKm * carFactor)
	return CO2Estimate{
		CO2Metro:        co2Metro,
		CO2Car:          co2Car,
		Savings:         round2(co2Car - co2Metro),
		MetroDistanceKm: metroKm,
		CarDistanceKm:   carKm,
	}
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
