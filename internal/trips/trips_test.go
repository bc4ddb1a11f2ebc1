package trips

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensensemap/osem/internal/models"
)

func fixes(gaps ...time.Duration) []models.Location {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	points := make([]models.Location, 0, len(gaps)+1)
	points = append(points, models.Location{ID: "loc0", Time: base})
	t := base
	for i, gap := range gaps {
		t = t.Add(gap)
		points = append(points, models.Location{ID: "loc" + string(rune('1'+i)), Time: t})
	}
	return points
}

func TestCategorizeEmpty(t *testing.T) {
	result := Categorize(nil, GapPolicy{MaxGap: 10 * time.Minute})
	require.NotNil(t, result)
	assert.Len(t, result, 0)
}

func TestCategorizeSinglePoint(t *testing.T) {
	points := fixes()
	result := Categorize(points, GapPolicy{MaxGap: 10 * time.Minute})

	require.Len(t, result, 1)
	assert.Equal(t, points[0].Time, result[0].Start)
	assert.Equal(t, points[0].Time, result[0].End)
	assert.Len(t, result[0].Points, 1)
}

func TestCategorizeGapBoundaries(t *testing.T) {
	policy := GapPolicy{MaxGap: 600 * time.Second}

	tests := []struct {
		name      string
		gaps      []time.Duration
		wantTrips int
	}{
		{"zero gap stays in one trip", []time.Duration{0}, 1},
		{"short gap stays in one trip", []time.Duration{30 * time.Second}, 1},
		{"gap equal to threshold stays in one trip", []time.Duration{600 * time.Second}, 1},
		{"gap above threshold cuts", []time.Duration{700 * time.Second}, 2},
		{"mixed gaps", []time.Duration{30 * time.Second, 720 * time.Second, 30 * time.Second}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := fixes(tt.gaps...)
			result := Categorize(points, policy)
			assert.Len(t, result, tt.wantTrips)

			// Every input point lands in exactly one trip, in order.
			total := 0
			for _, trip := range result {
				require.NotEmpty(t, trip.Points)
				assert.Equal(t, trip.Points[0].Time, trip.Start)
				assert.Equal(t, trip.Points[len(trip.Points)-1].Time, trip.End)
				total += len(trip.Points)
			}
			assert.Equal(t, len(points), total)
		})
	}
}

func TestCategorizeTripsDoNotOverlap(t *testing.T) {
	points := fixes(30*time.Second, 20*time.Minute, time.Minute, 20*time.Minute)
	result := Categorize(points, GapPolicy{MaxGap: 10 * time.Minute})

	require.Len(t, result, 3)
	for i := 1; i < len(result); i++ {
		assert.True(t, result[i].Start.After(result[i-1].End))
	}
}

func TestCategorizeKeepsMostRecent(t *testing.T) {
	// Three trips separated by large gaps, keep only the last one.
	points := fixes(time.Hour, 30*time.Second, time.Hour, 30*time.Second)
	result := Categorize(points, GapPolicy{MaxGap: 10 * time.Minute, Keep: 1})

	require.Len(t, result, 1)
	assert.Equal(t, points[len(points)-1].Time, result[0].End)
}

func TestTail(t *testing.T) {
	trips := []Trip{{}, {}, {}}

	assert.Len(t, Tail(trips, 0), 3)
	assert.Len(t, Tail(trips, 5), 3)
	assert.Len(t, Tail(trips, 2), 2)
	assert.Equal(t, trips[1:], Tail(trips, 2))
}

func TestNamedPolicies(t *testing.T) {
	assert.Equal(t, 10*time.Minute, LatestTrip.MaxGap)
	assert.Equal(t, 1, LatestTrip.Keep)
	assert.Equal(t, time.Minute, RecentTrips.MaxGap)
	assert.Equal(t, 5, RecentTrips.Keep)
}
