package models

// BoxFilters defines the available filter options for box listings
type BoxFilters struct {
	Exposure   Exposure  `json:"exposure"`
	Status     BoxStatus `json:"status"`
	Phenomenon string    `json:"phenomenon"`
	OwnerID    string    `json:"owner_id"`
}
