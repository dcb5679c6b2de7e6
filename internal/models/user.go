// internal/models/user.go
package models

import "github.com/google/uuid"

// User is a registered or guest account. Guests never reach the users table.
type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Password string    `json:"password,omitempty"`
	Username string    `json:"username"`

	IsEphemeral bool `json:"is_ephemeral"`
	IsAdmin     bool `json:"is_admin"`

	// Glicko-2 state on the familiar 1500 scale.
	Rating           float64 `json:"rating"`
	RatingDeviation  float64 `json:"rating_deviation"`
	RatingVolatility float64 `json:"rating_volatility"`
}
