// Package view derives visible subsets and summary statistics from a card
// set. It is pure: every observer applies it independently over its own copy
// of the board, and the server never depends on it for correctness.
package view

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shappi-app/warehouse-bundles-dashboard/board"
)

// FilterName selects one of the named board filters.
type FilterName string

const (
	FilterAll         FilterName = "all"
	FilterToday       FilterName = "today"
	FilterThisWeek    FilterName = "this-week"
	FilterNextWeek    FilterName = "next-week"
	FilterAmbassadors FilterName = "ambassadors"
	FilterCustomRange FilterName = "custom-range"
	FilterAssignee    FilterName = "assignee"
)

// Filter is a predicate over cards. The zero value (empty Name) behaves like
// FilterAll. Start/End bound custom-range inclusively and both are required;
// Assignee is matched exactly against the card's assignment.
type Filter struct {
	Name     FilterName
	Start    time.Time
	End      time.Time
	Assignee string
}

// Roster is the set of ambassador traveler names, matched case-insensitively
// after trimming.
type Roster map[string]struct{}

// NewRoster builds a roster from configured names.
func NewRoster(names []string) Roster {
	r := make(Roster, len(names))
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key != "" {
			r[key] = struct{}{}
		}
	}
	return r
}

// Contains reports whether traveler is on the roster.
func (r Roster) Contains(traveler string) bool {
	_, ok := r[strings.ToLower(strings.TrimSpace(traveler))]
	return ok
}

// shipDateLayouts covers the date shapes seen in trip exports.
var shipDateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseShipDate parses a card's ship date, reporting whether it was usable.
// Cards with unparsable or missing ship dates never pass a date-based filter.
func ParseShipDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range shipDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// startOfDay truncates t to midnight in its own location.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// startOfWeek returns the Monday of t's week.
func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// Passes reports whether card is visible under f, evaluated relative to now.
func Passes(card board.Card, f Filter, roster Roster, now time.Time) bool {
	switch f.Name {
	case FilterAll, "":
		return true
	case FilterAmbassadors:
		return roster.Contains(card.Traveler)
	case FilterAssignee:
		return card.AssignedTo != nil && *card.AssignedTo == f.Assignee
	}

	shipDate, ok := ParseShipDate(card.ShipBundle)
	if !ok {
		return false
	}
	ship := startOfDay(shipDate)
	today := startOfDay(now)

	switch f.Name {
	case FilterToday:
		return ship.Equal(today)
	case FilterThisWeek:
		start := startOfWeek(now)
		return !ship.Before(start) && ship.Before(start.AddDate(0, 0, 7))
	case FilterNextWeek:
		start := startOfWeek(now).AddDate(0, 0, 7)
		return !ship.Before(start) && ship.Before(start.AddDate(0, 0, 7))
	case FilterCustomRange:
		if f.Start.IsZero() || f.End.IsZero() {
			return false
		}
		return !ship.Before(startOfDay(f.Start)) && !ship.After(startOfDay(f.End))
	default:
		return false
	}
}

// Visible returns the cards passing f, in input order.
func Visible(cards []board.Card, f Filter, roster Roster, now time.Time) []board.Card {
	out := make([]board.Card, 0, len(cards))
	for _, card := range cards {
		if Passes(card, f, roster, now) {
			out = append(out, card)
		}
	}
	return out
}

// Summary aggregates the visible card set.
type Summary struct {
	TotalTrips    int
	ItemsAccepted int
	TotalWeight   float64
}

// Summarize totals the visible set: trip count, accepted items, and bundle
// weight with unparsable weights counting as zero.
func Summarize(visible []board.Card) Summary {
	var s Summary
	s.TotalTrips = len(visible)
	for _, card := range visible {
		s.ItemsAccepted += card.ItemsAccepted
		if w, err := strconv.ParseFloat(strings.TrimSpace(card.TotalBundleWeight), 64); err == nil {
			s.TotalWeight += w
		}
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("Total Trips: %d | Items Accepted: %d | Total Bundle Weight: %.2f lbs",
		s.TotalTrips, s.ItemsAccepted, s.TotalWeight)
}

// BucketCounts tallies visible cards per stage, in canonical bucket order.
// The result drives the bar chart but has no dependency on any charting code.
func BucketCounts(visible []board.Card) []int {
	index := make(map[board.Bucket]int, len(board.Buckets))
	for i, b := range board.Buckets {
		index[b] = i
	}
	counts := make([]int, len(board.Buckets))
	for _, card := range visible {
		if i, ok := index[card.CurrentBucket]; ok {
			counts[i]++
		}
	}
	return counts
}

// AssignmentCounts tallies visible cards per roster assignee, preserving the
// given roster order.
func AssignmentCounts(visible []board.Card, assignees []string) map[string]int {
	counts := make(map[string]int, len(assignees))
	for _, name := range assignees {
		counts[name] = 0
	}
	for _, card := range visible {
		if card.AssignedTo == nil {
			continue
		}
		if _, ok := counts[*card.AssignedTo]; ok {
			counts[*card.AssignedTo]++
		}
	}
	return counts
}

// SortCards orders cards by ship date ascending, pushing cards with
// unparsable dates to the end. Ties keep a stable order.
func SortCards(cards []board.Card) []board.Card {
	out := make([]board.Card, len(cards))
	copy(out, cards)
	sort.SliceStable(out, func(i, j int) bool {
		di, oki := ParseShipDate(out[i].ShipBundle)
		dj, okj := ParseShipDate(out[j].ShipBundle)
		if oki && okj {
			return di.Before(dj)
		}
		return oki && !okj
	})
	return out
}
