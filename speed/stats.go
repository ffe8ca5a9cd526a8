package speed

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary holds aggregate statistics of the available speeds in a set of
// events, all speeds in km/h
type Summary struct {
	Count       int     `json:"count"`
	Unavailable int     `json:"unavailable"`
	Exceeded    int     `json:"exceeded"`
	MinKMH      float64 `json:"min_kmh"`
	MeanKMH     float64 `json:"mean_kmh"`
	P50KMH      float64 `json:"p50_kmh"`
	P85KMH      float64 `json:"p85_kmh"`
	MaxKMH      float64 `json:"max_kmh"`
}

// Speeds returns the available speeds of the events in km/h, sorted ascending
func Speeds(events []Event) []float64 {

	speeds := make([]float64, 0, len(events))

	for _, ev := range events {
		if ev.Speed.Available {
			speeds = append(speeds, ev.Speed.KMH)
		}
	}

	sort.Float64s(speeds)

	return speeds
}

// Summarize computes the speed survey statistics of the events.  Events
// without an available speed are only counted in Unavailable.
func Summarize(events []Event) Summary {

	var sum Summary

	for _, ev := range events {
		if !ev.Speed.Available {
			sum.Unavailable++
		}
		if ev.Exceeded {
			sum.Exceeded++
		}
	}

	speeds := Speeds(events)
	sum.Count = len(speeds)

	if sum.Count == 0 {
		return sum
	}

	sum.MinKMH = speeds[0]
	sum.MaxKMH = speeds[len(speeds)-1]
	sum.MeanKMH = stat.Mean(speeds, nil)
	sum.P50KMH = stat.Quantile(0.5, stat.Empirical, speeds, nil)
	sum.P85KMH = stat.Quantile(0.85, stat.Empirical, speeds, nil)

	return sum
}
