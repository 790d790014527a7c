package types

import "time"

// Room is a bookable meeting room.
type Room struct {
	// ID is the unique identifier of the room.
	ID int `json:"id" db:"id"`

	// Name is unique among visible rooms.
	Name string `json:"name" db:"name"`

	Description string `json:"description" db:"description"`

	// Responsible is the person in charge of the room. They receive a copy
	// of every booking notification at ResponsibleEmail.
	Responsible      string `json:"responsible" db:"responsible"`
	ResponsibleEmail string `json:"responsible_email" db:"responsible_email"`

	// Visible is false once the room has been deleted.
	Visible bool `json:"-" db:"visible"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
