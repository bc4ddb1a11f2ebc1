package models

// BoxWithSensors bundles a box with its sensors for detail responses
type BoxWithSensors struct {
	Box     *Box      `json:"box"`
	Sensors []*Sensor `json:"sensors"`
}
