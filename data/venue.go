package data

import "time"

// Venues come embedded in the ticketing service's event payloads.
type Venue struct {
	// like "KovZpZAEdntA"
	ID string `json:"id"`

	Name  string `json:"name"`
	City  string `json:"city"`
	State string `json:"state"`

	UpdatedAt time.Time `json:"updatedAt"`
}
