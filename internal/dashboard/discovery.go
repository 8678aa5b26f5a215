package dashboard

import (
	"sensor-dashboard/internal/storage"
)

// DiscoverMACs returns the distinct MACs of entries in first-seen order.
// With entries newest first, the most recently active device comes first.
func DiscoverMACs(entries []storage.HistoryEntry) []string {
	seen := make(map[string]bool, len(entries))
	macs := []string{}
	for _, e := range entries {
		if e.MAC == "" || seen[e.MAC] {
			continue
		}
		seen[e.MAC] = true
		macs = append(macs, e.MAC)
	}
	return macs
}

// BindChoices is the union of discovered MACs and known sensor MACs,
// discovered ones first. Archived sensors are included so they can be re-bound.
func BindChoices(discovered []string, sensors []storage.Sensor) []string {
	seen := make(map[string]bool, len(discovered)+len(sensors))
	choices := make([]string, 0, len(discovered)+len(sensors))
	add := func(mac string) {
		if mac != "" && !seen[mac] {
			seen[mac] = true
			choices = append(choices, mac)
		}
	}
	for _, mac := range discovered {
		add(mac)
	}
	for _, s := range sensors {
		add(s.MAC)
	}
	return choices
}
