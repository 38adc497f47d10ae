// ABOUTME: Profile holds per-user identity and locale settings
// ABOUTME: Timezone drives all hour and weekday bucketing for the user
package models

import (
	"time"
)

// Profile represents one user known to the engine
type Profile struct {
	UserID            string    `json:"user_id"`
	DisplayName       string    `json:"display_name"`
	PreferredLanguage string    `json:"preferred_language,omitempty"`
	Timezone          string    `json:"timezone,omitempty"`
	Synthetic         bool      `json:"synthetic,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Location resolves the profile timezone, falling back to UTC.
func (p *Profile) Location() *time.Location {
	if p == nil || p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Merge applies the non-empty fields of update to the profile
func (p *Profile) Merge(update *Profile) {
	if update.DisplayName != "" {
		p.DisplayName = update.DisplayName
	}
	if update.PreferredLanguage != "" {
		p.PreferredLanguage = update.PreferredLanguage
	}
	if update.Timezone != "" {
		p.Timezone = update.Timezone
	}
	// An explicit update turns a synthetic profile into a real one
	p.Synthetic = false
}
