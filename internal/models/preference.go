package models

import "time"

// Preference is one persisted key/value setting.
type Preference struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
