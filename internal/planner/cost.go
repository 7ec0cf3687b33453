package planner

import (
	"math"
	"sort"

	"github.com/roamline/roamline/internal/domain"
	"github.com/roamline/roamline/internal/geo"
	"github.com/samber/lo"
)

// Cost weights. Overflow dominates so the search empties overloaded days
// before polishing commute and variety.
const (
	maxDayHours = 8.0

	overflowWeight     = 50.0
	overflowSqWeight   = 8.0
	commuteWeight      = 1.2
	varietyWeight      = 3.0
	slotOverflowWeight = 8.0
	balanceWeight      = 0.7
	anchorWeight       = 1.5
)

// Per-slot hour caps for anchored activities.
var slotCaps = map[domain.TimeOfDay]float64{
	domain.TimeMorning:   4,
	domain.TimeAfternoon: 4,
	domain.TimeEvening:   3,
}

// workingDay is a day's mutable assignment state during optimization.
// Locked IDs are anchored in place and never moved by later steps.
type workingDay struct {
	ids    []string
	locked map[string]bool
}

func newWorkingDay() *workingDay {
	return &workingDay{locked: make(map[string]bool)}
}

func (d *workingDay) add(id string, lock bool) {
	d.ids = append(d.ids, id)
	if lock {
		d.locked[id] = true
	}
}

func (d *workingDay) remove(id string) {
	for i, v := range d.ids {
		if v == id {
			d.ids = append(d.ids[:i], d.ids[i+1:]...)
			return
		}
	}
}

func (d *workingDay) movable() []string {
	return lo.Filter(d.ids, func(id string, _ int) bool {
		return !d.locked[id]
	})
}

// grouper carries the immutable inputs of one optimization run.
type grouper struct {
	days  []*workingDay
	byID  map[string]domain.Activity
	hours map[string]float64

	// targetHours is total estimated hours divided by day count, capped
	// at the daily maximum.
	targetHours float64
}

func newGrouper(acts []domain.Activity, dayCount int) *grouper {
	g := &grouper{
		byID:  make(map[string]domain.Activity, len(acts)),
		hours: make(map[string]float64, len(acts)),
	}
	for _, a := range acts {
		g.byID[a.ID] = a
		g.hours[a.ID] = geo.ParseDurationHours(a.EstDuration)
	}
	total := lo.Sum(lo.Values(g.hours))
	g.targetHours = math.Min(total/float64(dayCount), maxDayHours)

	for i := 0; i < dayCount; i++ {
		g.days = append(g.days, newWorkingDay())
	}
	return g
}

func (g *grouper) dayHours(d *workingDay) float64 {
	return lo.SumBy(d.ids, func(id string) float64 { return g.hours[id] })
}

// totalCost sums the per-day cost over all days. The per-day terms are
// independent, so a single-day change only perturbs that day's share.
func (g *grouper) totalCost() float64 {
	var sum float64
	for _, d := range g.days {
		sum += g.dayCost(d)
	}
	return sum
}

func (g *grouper) dayCost(d *workingDay) float64 {
	if len(d.ids) == 0 {
		// Idle days still pay the balance term so work spreads out.
		return g.targetHours * balanceWeight
	}

	acts := lo.Map(d.ids, func(id string, _ int) domain.Activity { return g.byID[id] })
	total := g.dayHours(d)

	overflow := math.Max(0, total-maxDayHours)
	cost := overflow*overflowWeight + overflow*overflow*overflowSqWeight

	cost += g.commute(acts) * commuteWeight
	cost += variety(acts) * varietyWeight
	cost += g.slotOverflow(acts) * slotOverflowWeight
	cost += math.Abs(total-g.targetHours) * balanceWeight
	cost += g.anchorSpread(acts) * anchorWeight

	return cost
}

// commute estimates in-day travel friction as the summed distance proxy
// over consecutive activities in canonical day order.
func (g *grouper) commute(acts []domain.Activity) float64 {
	if len(acts) < 2 {
		return 0
	}
	ordered := make([]domain.Activity, len(acts))
	copy(ordered, acts)
	g.sortDayOrder(ordered)

	var sum float64
	for i := 1; i < len(ordered); i++ {
		sum += geo.Proximity(ordered[i-1], ordered[i])
	}
	return sum
}

// variety is the fraction of the day's activities that share a category
// with another activity that day.
func variety(acts []domain.Activity) float64 {
	counts := lo.CountValuesBy(acts, func(a domain.Activity) string { return a.Category })
	crowded := lo.CountBy(acts, func(a domain.Activity) bool { return counts[a.Category] > 1 })
	return float64(crowded) / float64(len(acts))
}

// slotOverflow sums anchored hours beyond each slot's cap.
func (g *grouper) slotOverflow(acts []domain.Activity) float64 {
	perSlot := make(map[domain.TimeOfDay]float64)
	for _, a := range acts {
		if a.BestTimeOfDay.Anchored() {
			perSlot[a.BestTimeOfDay] += g.hours[a.ID]
		}
	}
	var sum float64
	for slot, limit := range slotCaps {
		sum += math.Max(0, perSlot[slot]-limit)
	}
	return sum
}

// anchorSpread penalizes non-anchor activities that sit far from every
// anchor of their day.
func (g *grouper) anchorSpread(acts []domain.Activity) float64 {
	anchors := lo.Filter(acts, func(a domain.Activity, _ int) bool { return a.BestTimeOfDay.Anchored() })
	if len(anchors) == 0 || len(anchors) == len(acts) {
		return 0
	}

	var sum float64
	for _, a := range acts {
		if a.BestTimeOfDay.Anchored() {
			continue
		}
		nearest := math.Inf(1)
		for _, anchor := range anchors {
			if d := geo.Proximity(a, anchor); d < nearest {
				nearest = d
			}
		}
		sum += nearest
	}
	return sum
}

// sortDayOrder orders a day's activities by time-of-day slot, then
// duration descending, then name.
func (g *grouper) sortDayOrder(acts []domain.Activity) {
	sort.SliceStable(acts, func(i, j int) bool {
		si, sj := geo.SlotOrder(acts[i].BestTimeOfDay), geo.SlotOrder(acts[j].BestTimeOfDay)
		if si != sj {
			return si < sj
		}
		hi, hj := g.hours[acts[i].ID], g.hours[acts[j].ID]
		if hi != hj {
			return hi > hj
		}
		return acts[i].Name < acts[j].Name
	})
}
