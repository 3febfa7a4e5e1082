package model

import "time"

// UserProfile is a denormalized snapshot of the authenticated user's profile.
// The backend profile is authoritative; this copy is replaced wholesale on
// login, token refresh and profile update.
type UserProfile struct {
	ID           string       `json:"id" validate:"required"`
	Email        string       `json:"email" validate:"omitempty,email"`
	Name         string       `json:"name"`
	Birthdate    *time.Time   `json:"birthdate,omitempty"`
	Gender       string       `json:"gender,omitempty"`
	Bio          string       `json:"bio,omitempty"`
	Photos       []string     `json:"photos,omitempty"`
	Preferences  Preferences  `json:"preferences"`
	Verification Verification `json:"verification"`
}

// Preferences holds the user's matching preferences.
type Preferences struct {
	AgeMin        int      `json:"ageMin,omitempty"`
	AgeMax        int      `json:"ageMax,omitempty"`
	MaxDistanceKm int      `json:"maxDistanceKm,omitempty"`
	Genders       []string `json:"genders,omitempty"`
}

// Verification holds the user's verification flags.
type Verification struct {
	Email bool `json:"email"`
	Phone bool `json:"phone"`
	Photo bool `json:"photo"`
}
