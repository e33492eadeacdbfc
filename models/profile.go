package models

import (
	"encoding/json"
	"time"
)

const (
	// DefaultProfileID is the identifier of the profile created on first run.
	DefaultProfileID = "default"
	// DefaultProfileName is used when creating the initial profile.
	DefaultProfileName = "Primary Profile"
)

// Profile models a viewer persona holding its own show subscriptions and
// watch marks.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	PinHash   string    `json:"-"` // bcrypt hash, never serialized
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasPin returns true if the profile has a PIN set.
func (p Profile) HasPin() bool {
	return p.PinHash != ""
}

// MarshalJSON includes the computed hasPin field without exposing the hash.
func (p Profile) MarshalJSON() ([]byte, error) {
	type ProfileAlias Profile // prevent recursion
	return json.Marshal(&struct {
		ProfileAlias
		HasPin bool `json:"hasPin"`
	}{
		ProfileAlias: ProfileAlias(p),
		HasPin:       p.HasPin(),
	})
}
