package osemservice

import (
	"context"

	nuts "github.com/vaudience/go-nuts"

	"github.com/itsatony/struccy"
	"github.com/opensensemap/osem/internal/errors"
	"github.com/opensensemap/osem/internal/models"
)

// CreateBox registers a new box together with its sensors. The caller
// becomes the owner. An access token for the ingest endpoint is generated
// on creation.
func (s *OsemService) CreateBox(ctx context.Context, box *models.Box, sensors []*models.Sensor) (*models.BoxWithSensors, error) {
	if box.Name == "" {
		return nil, errors.NewValidationError("box name is required", nil).WithField("name")
	}
	if box.Exposure == "" {
		box.Exposure = models.ExposureUnknown
	}
	if !models.ValidExposure(box.Exposure) {
		return nil, errors.NewValidationError("invalid exposure", nil).WithField("exposure")
	}
	if box.Status == "" {
		box.Status = models.StatusActive
	}

	box.ID = nuts.NID("box", 12)
	box.OwnerID = GetUserID(ctx)
	box.AccessToken = nuts.NID("bat", 32)
	now := s.now()
	box.CreatedAt = now
	box.UpdatedAt = now

	if err := s.Boxes.Create(ctx, box); err != nil {
		return nil, err
	}

	for _, sensor := range sensors {
		sensor.ID = nuts.NID("sensor", 12)
		sensor.BoxID = box.ID
		sensor.CreatedAt = now
		sensor.UpdatedAt = now
		if err := s.Sensors.Create(ctx, sensor); err != nil {
			return nil, err
		}
	}

	nuts.L.Infof("[OsemService.CreateBox] created box (%s) with %d sensors", box.ID, len(sensors))
	return &models.BoxWithSensors{Box: box, Sensors: sensors}, nil
}

// GetBox returns a single box with its sensors. Fields are filtered by
// the caller's roles, so the access token is only visible to the owner.
func (s *OsemService) GetBox(ctx context.Context, id string) (*models.BoxWithSensors, error) {
	box, err := s.Boxes.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sensors, err := s.Sensors.ListByBox(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.BoxWithSensors{Box: s.filterBox(ctx, box), Sensors: sensors}, nil
}

// GetBoxSensors returns the sensors attached to a box.
func (s *OsemService) GetBoxSensors(ctx context.Context, boxID string) ([]*models.Sensor, error) {
	if _, err := s.Boxes.Get(ctx, boxID); err != nil {
		return nil, err
	}
	return s.Sensors.ListByBox(ctx, boxID)
}

// UpdateSensor updates the descriptive fields of a sensor on a box owned
// by the caller. Identity and value bookkeeping fields are not writable
// through this path.
func (s *OsemService) UpdateSensor(ctx context.Context, boxID string, sensor *models.Sensor) (*models.Sensor, error) {
	box, err := s.Boxes.Get(ctx, boxID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(ctx, box); err != nil {
		return nil, err
	}
	existing, err := s.Sensors.Get(ctx, sensor.ID)
	if err != nil {
		return nil, err
	}
	if existing.BoxID != boxID {
		return nil, errors.NewValidationError("sensor does not belong to this box", nil).WithField("sensorId")
	}
	if sensor.Title != "" {
		existing.Title = sensor.Title
	}
	if sensor.Unit != "" {
		existing.Unit = sensor.Unit
	}
	if sensor.SensorType != "" {
		existing.SensorType = sensor.SensorType
	}
	if sensor.Icon != "" {
		existing.Icon = sensor.Icon
	}
	if sensor.Metadata != nil {
		existing.Metadata = sensor.Metadata
	}
	if err := s.Sensors.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// DeleteSensor removes a sensor and its measurements from a box owned by
// the caller.
func (s *OsemService) DeleteSensor(ctx context.Context, boxID, sensorID string) error {
	box, err := s.Boxes.Get(ctx, boxID)
	if err != nil {
		return err
	}
	if err := s.requireOwner(ctx, box); err != nil {
		return err
	}
	sensor, err := s.Sensors.Get(ctx, sensorID)
	if err != nil {
		return err
	}
	if sensor.BoxID != boxID {
		return errors.NewValidationError("sensor does not belong to this box", nil).WithField("sensorId")
	}
	if s.latest != nil {
		s.latest.Invalidate(ctx, sensorID)
	}
	return s.Cleanup.DeleteSensor(ctx, sensorID)
}

// ListBoxes returns boxes matching the given filters.
func (s *OsemService) ListBoxes(ctx context.Context, filters models.BoxFilters, offset, limit int) ([]*models.Box, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if filters.Exposure != "" && !models.ValidExposure(filters.Exposure) {
		return nil, errors.NewValidationError("invalid exposure", nil).WithField("exposure")
	}
	boxes, err := s.Boxes.List(ctx, filters, offset, limit)
	if err != nil {
		return nil, err
	}
	for i, box := range boxes {
		boxes[i] = s.filterBox(ctx, box)
	}
	return boxes, nil
}

// UpdateBox applies the incoming box fields to a box owned by the caller,
// honoring role-based write access.
func (s *OsemService) UpdateBox(ctx context.Context, box *models.Box) (*models.Box, error) {
	existing, err := s.Boxes.Get(ctx, box.ID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(ctx, existing); err != nil {
		return nil, err
	}

	if box.Exposure != "" && !models.ValidExposure(box.Exposure) {
		return nil, errors.NewValidationError("invalid exposure", nil).WithField("exposure")
	}

	roles := rolesForBox(ctx, existing)
	updatedFields, _, err := struccy.UpdateStructFields(existing, box, roles, true, true)
	if err != nil {
		return nil, errors.NewAuthorizationError("unauthorized field update", err)
	}
	existing.UpdatedAt = s.now()

	nuts.L.Infof("[OsemService.UpdateBox] updating box (%s), fields changed: %v", existing.ID, updatedFields)
	if err := s.Boxes.Update(ctx, existing); err != nil {
		return nil, err
	}
	return s.filterBox(ctx, existing), nil
}

// DeleteBox removes a box and all dependent data via the cleanup cascade.
func (s *OsemService) DeleteBox(ctx context.Context, id string) error {
	box, err := s.Boxes.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireOwner(ctx, box); err != nil {
		return err
	}
	return s.Cleanup.DeleteBox(ctx, id)
}

func (s *OsemService) requireOwner(ctx context.Context, box *models.Box) error {
	userID := GetUserID(ctx)
	if userID == "" {
		return errors.NewAuthError("authentication required", nil)
	}
	if box.OwnerID != userID && !hasRole(ctx, "admin") {
		return errors.NewAuthorizationError("not the box owner", nil)
	}
	return nil
}

// filterBox returns a role-filtered copy of the box, stripping fields
// the caller may not read.
func (s *OsemService) filterBox(ctx context.Context, box *models.Box) *models.Box {
	roles := rolesForBox(ctx, box)
	filteredMap, err := struccy.StructToMapFieldsWithReadXS(box, roles)
	if err != nil {
		nuts.L.Warnf("[OsemService.filterBox] field filtering failed for box (%s): %v", box.ID, err)
		return box
	}
	filtered := &models.Box{}
	if _, err := struccy.MergeMapStringFieldsToStruct(filtered, filteredMap, roles); err != nil {
		nuts.L.Warnf("[OsemService.filterBox] field merge failed for box (%s): %v", box.ID, err)
		return box
	}
	return filtered
}

func rolesForBox(ctx context.Context, box *models.Box) []string {
	roles := GetUserRoles(ctx)
	if box.OwnerID != "" && box.OwnerID == GetUserID(ctx) {
		roles = append(roles, "owner")
	}
	return roles
}

func hasRole(ctx context.Context, role string) bool {
	for _, r := range GetUserRoles(ctx) {
		if r == role {
			return true
		}
	}
	return false
}
