package domain

import "time"

// User is the order owner and notification recipient. Authentication is
// handled outside this service; requests carry the user id directly.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}
