package models

import "time"

// ItemState is the lifecycle of an item. A tombstoned item is retained so
// sync clients that have not seen the deletion yet still receive it.
type ItemState int

const (
	ItemActive ItemState = iota
	ItemTombstoned
)

// ItemStateFromDeleted maps the persisted boolean flag to a state.
func ItemStateFromDeleted(deleted bool) ItemState {
	if deleted {
		return ItemTombstoned
	}
	return ItemActive
}

// Deleted maps the state back to the persisted boolean flag.
func (s ItemState) Deleted() bool {
	return s == ItemTombstoned
}

// Item is an opaque, client-encrypted record owned by exactly one user.
// Content and EncItemKey are ciphertext the server cannot parse; AuthHash is
// a legacy integrity tag passed through verbatim.
type Item struct {
	UUID        string
	UserUUID    string
	Content     string
	ContentType string
	EncItemKey  string
	AuthHash    string
	State       ItemState

	LastUserAgent string
	CreatedAt     time.Time
	// UpdatedAt is the sync cursor field. Writes always advance it, never
	// reuse a value for the same item.
	UpdatedAt time.Time
}
