package reservas

import "strings"

// NotificationKind selects the message template.
type NotificationKind string

const (
	NotificationConfirmation NotificationKind = "reservation_confirmation"
	NotificationCancellation NotificationKind = "reservation_cancellation"
)

// Notification is a templated message queued for asynchronous delivery.
type Notification struct {
	Kind      NotificationKind
	Recipient string
	Subject   string
	Payload   NotificationPayload
}

// NotificationPayload carries the structured fields a template renders.
type NotificationPayload struct {
	ReservationID    uint64 `json:"reservation_id"`
	Name             string `json:"name"`
	Date             string `json:"date"`
	Time             string `json:"time"`
	PartySize        int    `json:"party_size"`
	Title            string `json:"title,omitempty"`
	Reason           string `json:"reason,omitempty"`
	ConfirmationLink string `json:"confirmation_link,omitempty"`
}

func (service *Service) confirmationNotification(reservation Reservation, title string) Notification {
	payload := payloadFor(reservation)
	payload.Title = title
	payload.ConfirmationLink = service.confirmationLink(reservation.ConfirmationToken)
	subject := subjectConfirmation
	if title != "" {
		subject = title
	}
	return Notification{
		Kind:      NotificationConfirmation,
		Recipient: reservation.Contact.Email(),
		Subject:   subject,
		Payload:   payload,
	}
}

func cancellationNotification(reservation Reservation, byAdmin bool) Notification {
	payload := payloadFor(reservation)
	if byAdmin {
		payload.Title = titleAdminCancel
		payload.Reason = reservation.CancellationReason
	}
	return Notification{
		Kind:      NotificationCancellation,
		Recipient: reservation.Contact.Email(),
		Subject:   subjectCancellation,
		Payload:   payload,
	}
}

func payloadFor(reservation Reservation) NotificationPayload {
	return NotificationPayload{
		ReservationID: reservation.ID.Uint64(),
		Name:          reservation.Contact.Name(),
		Date:          reservation.Slot.Date(),
		Time:          reservation.Slot.Time(),
		PartySize:     reservation.PartySize.Int(),
	}
}

func (service *Service) confirmationLink(token string) string {
	return strings.TrimRight(service.publicBaseURL, "/") + confirmationPathPrefix + token
}
