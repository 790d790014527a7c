package types

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	// ReservationPending is a freshly created reservation awaiting its
	// emailed confirmation code. It holds the slot until Validity elapses.
	ReservationPending ReservationStatus = "pending"

	// ReservationConfirmed is a reservation whose code has been redeemed.
	ReservationConfirmed ReservationStatus = "confirmed"
)

// Valid reports whether s is a known status.
func (s ReservationStatus) Valid() bool {
	return s == ReservationPending || s == ReservationConfirmed
}

// Reservation is a request to use a room on a date between two times of day.
// Date is formatted as YYYY-MM-DD and Start/End as HH:MM, interpreted in the
// deployment's booking timezone.
type Reservation struct {
	// ID is the unique identifier of the reservation.
	ID int64 `json:"id" db:"id"`

	// RoomID references the reserved room.
	RoomID int `json:"room_id" db:"room_id"`

	// Code is the confirmation code mailed to the requester.
	Code string `json:"-" db:"code"`

	RequesterName  string `json:"requester_name" db:"requester_name"`
	RequesterEmail string `json:"requester_email" db:"requester_email"`
	Area           string `json:"area" db:"area"`

	// Description is the purpose of the meeting.
	Description string `json:"description" db:"description"`

	Date  string `json:"date" db:"date"`
	Start string `json:"start" db:"start_time"`
	End   string `json:"end" db:"end_time"`

	Status ReservationStatus `json:"status" db:"status"`

	// Validity is the instant after which a pending reservation can no
	// longer be confirmed and stops blocking its slot.
	Validity time.Time `json:"validity" db:"validity"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Expired reports whether a pending reservation has outlived its validity.
func (r Reservation) Expired(now time.Time) bool {
	return r.Status == ReservationPending && r.Validity.Before(now)
}

// ScheduleEntry is the public projection of a reservation used by the
// weekly and daily schedules.
type ScheduleEntry struct {
	Date   string            `json:"date"`
	Start  string            `json:"start"`
	End    string            `json:"end"`
	Status ReservationStatus `json:"status"`
}

// UpcomingReservation is a reservation joined with the metadata of its room.
type UpcomingReservation struct {
	RoomID           int               `json:"room_id"`
	RoomName         string            `json:"room"`
	Date             string            `json:"date"`
	Start            string            `json:"start"`
	End              string            `json:"end"`
	Description      string            `json:"description"`
	RequesterName    string            `json:"requester_name,omitempty"`
	RequesterEmail   string            `json:"requester_email,omitempty"`
	Status           ReservationStatus `json:"status"`
	Responsible      string            `json:"responsible"`
	ResponsibleEmail string            `json:"responsible_email"`
}
