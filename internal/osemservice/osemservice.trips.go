package osemservice

import (
	"context"
	"time"

	geojson "github.com/paulmach/orb/geojson"

	"github.com/opensensemap/osem/internal/errors"
	"github.com/opensensemap/osem/internal/geo"
	"github.com/opensensemap/osem/internal/models"
	"github.com/opensensemap/osem/internal/trips"
)

// GetBoxLocations returns the location history of a mobile box, ascending
// by time.
func (s *OsemService) GetBoxLocations(ctx context.Context, boxID string, from, to *time.Time) ([]models.Location, error) {
	if _, err := s.Boxes.Get(ctx, boxID); err != nil {
		return nil, err
	}
	return s.Measurements.GetLocations(ctx, boxID, from, to)
}

// GetBoxTrips partitions a mobile box's location history into trips using
// the given gap policy.
func (s *OsemService) GetBoxTrips(ctx context.Context, boxID string, policy trips.GapPolicy, from, to *time.Time) ([]trips.Trip, error) {
	box, err := s.Boxes.Get(ctx, boxID)
	if err != nil {
		return nil, err
	}
	if box.Exposure != models.ExposureMobile {
		return nil, errors.NewValidationError("trips require a mobile box", nil).WithField("exposure")
	}
	locations, err := s.Measurements.GetLocations(ctx, boxID, from, to)
	if err != nil {
		return nil, err
	}
	return trips.Categorize(locations, policy), nil
}

// GetBoxTrack renders a box's location history as a GeoJSON LineString
// feature with parallel timestamps.
func (s *OsemService) GetBoxTrack(ctx context.Context, boxID string, from, to *time.Time) (*geojson.Feature, error) {
	locations, err := s.GetBoxLocations(ctx, boxID, from, to)
	if err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		return nil, errors.NewNotFoundError("no locations recorded for box", nil)
	}
	return geo.TrackFeature(locations), nil
}
