package models

import "time"

// ExtensionSettings stores per-browser-extension preferences. Independent of
// users and items; the only behavior is the mute flag for extension mails.
type ExtensionSettings struct {
	UUID        string
	ExtensionID string
	MuteEmails  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
