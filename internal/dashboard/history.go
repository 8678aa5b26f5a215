package dashboard

import (
	"strconv"

	"sensor-dashboard/internal/storage"
)

// Shown on the history page when there is nothing to summarise.
const NoData = "-"

type HistorySummary struct {
	Count              int    `json:"count"`
	LatestTemperature  string `json:"latestTemperature"`
	LatestHumidity     string `json:"latestHumidity"`
	LatestDust         string `json:"latestDust"`
	AverageTemperature string `json:"averageTemperature"`
}

// SummarizeHistory summarises entries ordered oldest first. Values are shown
// with one decimal; entries without a temperature do not count towards the
// average.
func SummarizeHistory(entries []storage.HistoryEntry) HistorySummary {
	summary := HistorySummary{
		Count:              len(entries),
		LatestTemperature:  NoData,
		LatestHumidity:     NoData,
		LatestDust:         NoData,
		AverageTemperature: NoData,
	}
	if len(entries) == 0 {
		return summary
	}

	last := entries[len(entries)-1]
	one := func(v *float64) string {
		if !valid(v) {
			return NoData
		}
		return strconv.FormatFloat(*v, 'f', 1, 64)
	}
	summary.LatestTemperature = one(last.Temperature)
	summary.LatestHumidity = one(last.Humidity)
	summary.LatestDust = one(last.Dust)

	var sum float64
	var n int
	for _, e := range entries {
		if valid(e.Temperature) {
			sum += *e.Temperature
			n++
		}
	}
	if n > 0 {
		avg := sum / float64(n)
		summary.AverageTemperature = one(&avg)
	}
	return summary
}
