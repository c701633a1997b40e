package model

import "time"

// User is a management user account
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	CreatedTs *time.Time `json:"created_ts,omitempty"`
	UpdatedTs *time.Time `json:"updated_ts,omitempty"`
}

// UserUpdate carries the optional fields of a user update
type UserUpdate struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

// NewUser is the body of a user creation call
type NewUser struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserSettings is the free-form settings document of the current user
type UserSettings map[string]any
