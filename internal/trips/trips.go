// FilePath: internal/trips/trips.go

// Package trips partitions a mobile box's time-ordered location fixes into
// discrete trips. A trip ends when the gap to the next fix exceeds the
// policy threshold. Trips are derived on demand and never stored.
package trips

import (
	"time"

	"github.com/opensensemap/osem/internal/models"
)

// GapPolicy names a segmentation configuration. Call sites used to carry
// their own magic thresholds and slice counts; they now pass one of the
// named policies below (or their own).
type GapPolicy struct {
	// MaxGap is the largest allowed gap between consecutive fixes within
	// one trip.
	MaxGap time.Duration
	// Keep limits how many of the most recent trips a caller is interested
	// in; 0 keeps all.
	Keep int
}

var (
	// LatestTrip is used for "where is the box right now" views.
	LatestTrip = GapPolicy{MaxGap: 10 * time.Minute, Keep: 1}
	// RecentTrips is used for track history views.
	RecentTrips = GapPolicy{MaxGap: time.Minute, Keep: 5}
)

// Trip is a maximal run of consecutive location points whose inter-point
// gap never exceeds the policy threshold.
type Trip struct {
	Start  time.Time         `json:"start"`
	End    time.Time         `json:"end"`
	Points []models.Location `json:"points"`
}

// Categorize walks the points once and cuts a new trip wherever the gap to
// the previous point exceeds policy.MaxGap. The input is assumed sorted
// ascending by time; this is not re-verified. Every input point lands in
// exactly one trip.
func Categorize(points []models.Location, policy GapPolicy) []Trip {
	if len(points) == 0 {
		return []Trip{}
	}

	trips := []Trip{}
	current := Trip{
		Start:  points[0].Time,
		End:    points[0].Time,
		Points: []models.Location{points[0]},
	}

	for _, p := range points[1:] {
		if p.Time.Sub(current.End) > policy.MaxGap {
			trips = append(trips, current)
			current = Trip{Start: p.Time, End: p.Time, Points: []models.Location{p}}
			continue
		}
		current.End = p.Time
		current.Points = append(current.Points, p)
	}
	trips = append(trips, current)

	return Tail(trips, policy.Keep)
}

// Tail returns the keep most recent trips, or all of them when keep is 0
// or exceeds the trip count.
func Tail(trips []Trip, keep int) []Trip {
	if keep <= 0 || keep >= len(trips) {
		return trips
	}
	return trips[len(trips)-keep:]
}
