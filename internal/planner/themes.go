package planner

import (
	"sort"

	"github.com/roamline/roamline/internal/domain"
)

// themeLabels maps activity categories to day-theme labels.
var themeLabels = map[string]string{
	"museum":     "Culture",
	"gallery":    "Culture",
	"historic":   "Heritage",
	"temple":     "Heritage",
	"church":     "Heritage",
	"park":       "Outdoors",
	"garden":     "Outdoors",
	"hike":       "Outdoors",
	"beach":      "Beach",
	"landmark":   "Sightseeing",
	"viewpoint":  "Sightseeing",
	"tour":       "Sightseeing",
	"restaurant": "Food",
	"food":       "Food",
	"market":     "Food",
	"cafe":       "Food",
	"shopping":   "Shopping",
	"nightlife":  "Nightlife",
	"bar":        "Nightlife",
	"show":       "Entertainment",
	"theater":    "Entertainment",
}

const (
	unknownThemeLabel = "Discovery"
	emptyDayTheme     = "Free Day"
)

// Theme generates a short label for a day from its activities' categories,
// combining the top one or two labels. Empty days get a fixed fallback.
func Theme(acts []domain.Activity) string {
	if len(acts) == 0 {
		return emptyDayTheme
	}

	tally := make(map[string]int)
	for _, a := range acts {
		label, ok := themeLabels[a.Category]
		if !ok {
			label = unknownThemeLabel
		}
		tally[label]++
	}

	labels := make([]string, 0, len(tally))
	for l := range tally {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if tally[labels[i]] != tally[labels[j]] {
			return tally[labels[i]] > tally[labels[j]]
		}
		return labels[i] < labels[j]
	})

	if len(labels) == 1 {
		return labels[0] + " Highlights"
	}
	return labels[0] + " & " + labels[1]
}
