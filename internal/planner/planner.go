// Package planner partitions selected activities across the days of a
// trip. The optimizer is a pure function: it performs no I/O and cannot
// fail on well-typed input. Callers validate that activity IDs are known
// before invoking it.
package planner

import (
	"math"
	"sort"
	"time"

	"github.com/roamline/roamline/internal/domain"
	"github.com/roamline/roamline/internal/geo"
	"github.com/samber/lo"
)

const (
	maxTripDays        = 30
	maxDerivedDays     = 7
	localSearchPasses  = 4
	improvementEpsilon = 1e-9
)

// GroupActivitiesByDay assigns every activity to exactly one day of the
// trip and generates a theme per day. An empty activity list yields
// empty days.
func GroupActivitiesByDay(trip domain.TripInfo, acts []domain.Activity) []domain.DayGroup {
	days := dayCount(trip, len(acts))
	g := newGrouper(acts, days)

	anchors := lo.Filter(acts, func(a domain.Activity, _ int) bool { return a.BestTimeOfDay.Anchored() })
	flexible := lo.Filter(acts, func(a domain.Activity, _ int) bool { return !a.BestTimeOfDay.Anchored() })

	seeded := g.seedDays(anchors, flexible)
	remainingAnchors := lo.Filter(anchors, func(a domain.Activity, _ int) bool { return !seeded[a.ID] })
	remainingFlexible := lo.Filter(flexible, func(a domain.Activity, _ int) bool { return !seeded[a.ID] })

	g.assignBestFit(remainingAnchors, true)
	g.assignBestFit(remainingFlexible, false)
	g.localSearch()

	return g.buildGroups(startDate(trip))
}

// dayCount derives the number of days, first match wins: explicit
// duration, date range, activity count, then one.
func dayCount(trip domain.TripInfo, activityCount int) int {
	if trip.DurationDays > 0 {
		return clampInt(trip.DurationDays, 1, maxTripDays)
	}
	if trip.StartDate != nil && trip.EndDate != nil && !trip.EndDate.Before(*trip.StartDate) {
		span := trip.EndDate.Sub(*trip.StartDate)
		days := int(math.Ceil(span.Hours()/24)) + 1
		return clampInt(days, 1, maxTripDays)
	}
	if activityCount > 0 {
		return clampInt(activityCount, 1, maxDerivedDays)
	}
	return 1
}

func startDate(trip domain.TripInfo) time.Time {
	if trip.StartDate != nil {
		return trip.StartDate.Truncate(24 * time.Hour)
	}
	return time.Now().UTC().Truncate(24 * time.Hour)
}

// seedDays places one activity per day by a farthest-point heuristic so
// days start geographically (or thematically) spread out. Anchors are
// preferred as seeds and locked in place; flexible activities backfill
// when anchors are too few. Returns the set of seeded IDs.
func (g *grouper) seedDays(anchors, flexible []domain.Activity) map[string]bool {
	candidates := sortCandidates(anchors)
	if len(candidates) < len(g.days) {
		candidates = append(candidates, sortCandidates(flexible)...)
	}

	seeded := make(map[string]bool)
	if len(candidates) == 0 {
		return seeded
	}

	chosen := []domain.Activity{candidates[0]}
	remaining := candidates[1:]

	for len(chosen) < len(g.days) && len(remaining) > 0 {
		best, bestDist := 0, -1.0
		for i, cand := range remaining {
			nearest := math.Inf(1)
			for _, c := range chosen {
				if d := geo.Proximity(cand, c); d < nearest {
					nearest = d
				}
			}
			if nearest > bestDist {
				best, bestDist = i, nearest
			}
		}
		chosen = append(chosen, remaining[best])
		remaining = append(remaining[:best], remaining[best+1:]...)
	}

	for i, a := range chosen {
		g.days[i].add(a.ID, a.BestTimeOfDay.Anchored())
		seeded[a.ID] = true
	}
	return seeded
}

func sortCandidates(acts []domain.Activity) []domain.Activity {
	out := make([]domain.Activity, len(acts))
	copy(out, acts)
	sort.Slice(out, func(i, j int) bool {
		si, sj := geo.SlotOrder(out[i].BestTimeOfDay), geo.SlotOrder(out[j].BestTimeOfDay)
		if si != sj {
			return si < sj
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// assignBestFit places each activity on the day that minimizes total
// cost, in descending duration order. Days that would exceed the daily
// hour cap are skipped unless no day qualifies.
func (g *grouper) assignBestFit(acts []domain.Activity, lock bool) {
	ordered := make([]domain.Activity, len(acts))
	copy(ordered, acts)
	sort.Slice(ordered, func(i, j int) bool {
		hi, hj := g.hours[ordered[i].ID], g.hours[ordered[j].ID]
		if hi != hj {
			return hi > hj
		}
		return ordered[i].Name < ordered[j].Name
	})

	for _, a := range ordered {
		candidates := lo.Filter(g.days, func(d *workingDay, _ int) bool {
			return g.dayHours(d)+g.hours[a.ID] <= maxDayHours
		})
		if len(candidates) == 0 {
			candidates = g.days
		}

		var bestDay *workingDay
		bestCost := math.Inf(1)
		for _, d := range candidates {
			d.add(a.ID, false)
			if c := g.totalCost(); c < bestCost {
				bestDay, bestCost = d, c
			}
			d.remove(a.ID)
		}
		bestDay.add(a.ID, lock)
	}
}

// localSearch runs bounded passes of single-activity moves followed by
// pairwise swaps, committing only strictly cost-reducing changes.
// Locked (anchored) activities never move.
func (g *grouper) localSearch() {
	for pass := 0; pass < localSearchPasses; pass++ {
		changed := g.movePass()
		if g.swapPass() {
			changed = true
		}
		if !changed {
			return
		}
	}
}

func (g *grouper) movePass() bool {
	changed := false
	for _, from := range g.days {
		for _, id := range from.movable() {
			base := g.totalCost()
			for _, to := range g.days {
				if to == from {
					continue
				}
				from.remove(id)
				to.add(id, false)
				if g.totalCost() < base-improvementEpsilon {
					changed = true
					break
				}
				to.remove(id)
				from.add(id, false)
			}
		}
	}
	return changed
}

func (g *grouper) swapPass() bool {
	changed := false
	for i := 0; i < len(g.days); i++ {
		for j := i + 1; j < len(g.days); j++ {
			if g.trySwap(g.days[i], g.days[j]) {
				changed = true
			}
		}
	}
	return changed
}

func (g *grouper) trySwap(a, b *workingDay) bool {
	for _, idA := range a.movable() {
		for _, idB := range b.movable() {
			base := g.totalCost()
			a.remove(idA)
			b.remove(idB)
			a.add(idB, false)
			b.add(idA, false)
			if g.totalCost() < base-improvementEpsilon {
				return true
			}
			a.remove(idB)
			b.remove(idA)
			a.add(idA, false)
			b.add(idB, false)
		}
	}
	return false
}

// buildGroups freezes the working days into DayGroups with consecutive
// calendar dates, deterministic in-day ordering, and generated themes.
func (g *grouper) buildGroups(start time.Time) []domain.DayGroup {
	groups := make([]domain.DayGroup, len(g.days))
	for i, d := range g.days {
		acts := lo.Map(d.ids, func(id string, _ int) domain.Activity { return g.byID[id] })
		g.sortDayOrder(acts)

		groups[i] = domain.DayGroup{
			Day:         i + 1,
			Date:        start.AddDate(0, 0, i),
			Theme:       Theme(acts),
			ActivityIDs: lo.Map(acts, func(a domain.Activity, _ int) string { return a.ID }),
		}
	}
	return groups
}

// Hydrate expands day groups into full GroupedDays, attaching each
// restaurant to its assigned day.
func Hydrate(groups []domain.DayGroup, activities []domain.Activity, restaurants []domain.Restaurant) []domain.GroupedDay {
	byID := lo.KeyBy(activities, func(a domain.Activity) string { return a.ID })

	out := make([]domain.GroupedDay, len(groups))
	for i, grp := range groups {
		day := domain.GroupedDay{
			Day:   grp.Day,
			Date:  grp.Date,
			Theme: grp.Theme,
		}
		for _, id := range grp.ActivityIDs {
			if a, ok := byID[id]; ok {
				day.Activities = append(day.Activities, a)
			}
		}
		for _, r := range restaurants {
			if r.Day == grp.Day {
				day.Restaurants = append(day.Restaurants, r)
			}
		}
		out[i] = day
	}
	return out
}

func clampInt(v, lower, upper int) int {
	if v < lower {
		return lower
	}
	if v > upper {
		return upper
	}
	return v
}
