package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roomdesk/apiserver/types"
)

// Sender delivers a plain-text mail.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Notifier composes booking mails. Delivery failures are logged and never
// surface to the caller: the reservation has already been committed.
type Notifier struct {
	sender    Sender
	publicURL string
	logger    *slog.Logger
}

func NewNotifier(sender Sender, publicURL string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		sender:    sender,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}
}

// ConfirmationLink is the URL a requester follows to confirm a reservation.
func (n *Notifier) ConfirmationLink(code string) string {
	return n.publicURL + "/reservations/confirm/" + code
}

func (n *Notifier) ReservationCreated(ctx context.Context, room types.Room, reservation types.Reservation) {
	if n == nil {
		return
	}
	n.send(ctx, reservation.RequesterEmail, "Confirm your reservation", fmt.Sprintf(
		"Hello %s,\n\nYour reservation is pending confirmation.\n\n%s\nConfirmation code: %s\nConfirm it within %s at:\n%s\n",
		reservation.RequesterName,
		details(room, reservation),
		reservation.Code,
		reservation.Validity.Sub(reservation.CreatedAt).Round(time.Second),
		n.ConfirmationLink(reservation.Code),
	))
	n.send(ctx, room.ResponsibleEmail, "Room reserved", fmt.Sprintf(
		"Hello %s,\n\n%s (%s) requested the following reservation.\n\n%s",
		room.Responsible,
		reservation.RequesterName,
		reservation.RequesterEmail,
		details(room, reservation),
	))
}

func (n *Notifier) ReservationConfirmed(ctx context.Context, room types.Room, reservation types.Reservation) {
	if n == nil {
		return
	}
	n.send(ctx, reservation.RequesterEmail, "Reservation confirmed", fmt.Sprintf(
		"Hello %s,\n\nYour reservation is confirmed.\n\n%s",
		reservation.RequesterName,
		details(room, reservation),
	))
	n.send(ctx, room.ResponsibleEmail, "Reservation confirmed", fmt.Sprintf(
		"Hello %s,\n\n%s confirmed the following reservation.\n\n%s",
		room.Responsible,
		reservation.RequesterName,
		details(room, reservation),
	))
}

func (n *Notifier) ReservationCancelled(ctx context.Context, room types.Room, reservation types.Reservation) {
	if n == nil {
		return
	}
	n.send(ctx, room.ResponsibleEmail, "Reservation cancelled", fmt.Sprintf(
		"Hello %s,\n\n%s cancelled the following reservation.\n\n%s",
		room.Responsible,
		reservation.RequesterName,
		details(room, reservation),
	))
}

func (n *Notifier) send(ctx context.Context, to, subject, body string) {
	if n.sender == nil || strings.TrimSpace(to) == "" {
		return
	}
	if err := n.sender.Send(ctx, to, subject, body); err != nil {
		n.logger.ErrorContext(ctx, "failed to send mail", "to", to, "subject", subject, "err", err)
	}
}

func details(room types.Room, reservation types.Reservation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Room: %s\n", room.Name)
	fmt.Fprintf(&b, "Date: %s\n", reservation.Date)
	fmt.Fprintf(&b, "Time: %s - %s\n", reservation.Start, reservation.End)
	if reservation.Area != "" {
		fmt.Fprintf(&b, "Area: %s\n", reservation.Area)
	}
	if reservation.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", reservation.Description)
	}
	return b.String()
}
