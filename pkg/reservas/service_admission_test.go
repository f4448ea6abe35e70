package reservas

import (
	"context"
	"errors"
	"strconv"
	"testing"
)

func TestCreateReservationPersistsPendingWithToken(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	actor := userActor(test, "user-1")

	reservation, err := service.CreateReservation(context.Background(), actor, ReservationRequest{
		Slot:      mustSlot(test, "2025-06-01", "19:00"),
		PartySize: mustPartySize(test, 4),
	})
	if err != nil {
		test.Fatalf("create: %v", err)
	}
	stored := store.mustReservation(test, reservation.ID)
	if stored.Status != ReservationStatusPending {
		test.Fatalf("expected pending, got %s", stored.Status)
	}
	if stored.ConfirmationToken == "" {
		test.Fatalf("expected confirmation token")
	}
	if !stored.OwnedBy(actor.UserID) {
		test.Fatalf("expected reservation owned by %s", actor.UserID)
	}
	if stored.Contact.Email() != "user-1@example.com" {
		test.Fatalf("expected contact copied from actor, got %q", stored.Contact.Email())
	}
	if len(store.notifications) != 1 {
		test.Fatalf("expected one queued notification, got %d", len(store.notifications))
	}
	notification := store.notifications[0]
	if notification.Kind != NotificationConfirmation || notification.Subject != subjectConfirmation {
		test.Fatalf("unexpected notification: %+v", notification)
	}
	expectedLink := "http://localhost:8000/api/confirmar-reserva/" + stored.ConfirmationToken
	if notification.Payload.ConfirmationLink != expectedLink {
		test.Fatalf("expected link %q, got %q", expectedLink, notification.Payload.ConfirmationLink)
	}
	if notification.Payload.Title != "" {
		test.Fatalf("expected no title override, got %q", notification.Payload.Title)
	}
}

func TestCapacityBoundaryIsInclusive(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	slot := mustSlot(test, "2025-06-01", "19:00")
	for _, seats := range []int{12, 12, 12, 12, 12, 12, 3} {
		store.seed(test, Reservation{Slot: slot, PartySize: mustPartySize(test, seats)})
	}
	service := mustNewService(test, store)

	_, err := service.CreateGuestReservation(context.Background(), GuestReservationRequest{
		Slot:      slot,
		PartySize: mustPartySize(test, 6),
		Contact:   mustContact(test, "Guest", "guest@example.com"),
	})
	if !errors.Is(err, ErrSlotUnavailable) {
		test.Fatalf("expected ErrSlotUnavailable for 75+6, got %v", err)
	}
	if len(store.reservations) != 7 {
		test.Fatalf("expected rejected booking to persist nothing, got %d reservations", len(store.reservations))
	}
	if len(store.notifications) != 0 {
		test.Fatalf("expected no notification on rejection")
	}

	if _, err := service.CreateGuestReservation(context.Background(), GuestReservationRequest{
		Slot:      slot,
		PartySize: mustPartySize(test, 5),
		Contact:   mustContact(test, "Guest", "guest@example.com"),
	}); err != nil {
		test.Fatalf("expected 75+5 to fit capacity 80, got %v", err)
	}
}

func TestCanceledReservationsDoNotOccupySeats(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	slot := mustSlot(test, "2025-06-01", "20:00")
	for index := 0; index < 7; index++ {
		store.seed(test, Reservation{Slot: slot, PartySize: mustPartySize(test, 12), Status: ReservationStatusCanceled})
	}
	service := mustNewService(test, store)

	available, err := service.CheckAvailability(context.Background(), slot, mustPartySize(test, 12))
	if err != nil {
		test.Fatalf("check availability: %v", err)
	}
	if !available {
		test.Fatalf("expected canceled seats to be released")
	}
}

func TestConfiguredCapacityOverridesDefault(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	slot := mustSlot(test, "2025-06-01", "19:00")
	store.seed(test, Reservation{Slot: slot, PartySize: mustPartySize(test, 8)})
	service := mustNewService(test, store)
	if err := service.UpdateMaxCapacity(context.Background(), adminActor(test), 10); err != nil {
		test.Fatalf("update capacity: %v", err)
	}

	availability, err := service.Availability(context.Background(), slot)
	if err != nil {
		test.Fatalf("availability: %v", err)
	}
	if availability.Capacity != 10 || availability.Occupied != 8 || availability.Remaining != 2 {
		test.Fatalf("unexpected availability: %+v", availability)
	}
	if availability.Admits(mustPartySize(test, 3)) {
		test.Fatalf("expected 3 seats to exceed remaining 2")
	}
}

func TestReservationLimitBlocksFifthBookingUntilOneIsCanceled(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	actor := userActor(test, "limit-user")
	created := make([]Reservation, 0, MaxReservationsPerUser)
	for index := 0; index < MaxReservationsPerUser; index++ {
		reservation, err := service.CreateReservation(context.Background(), actor, ReservationRequest{
			Slot:      mustSlot(test, "2025-06-0"+strconv.Itoa(index+2), "19:00"),
			PartySize: mustPartySize(test, 2),
		})
		if err != nil {
			test.Fatalf("create %d: %v", index, err)
		}
		created = append(created, reservation)
	}

	request := ReservationRequest{Slot: mustSlot(test, "2025-06-10", "19:00"), PartySize: mustPartySize(test, 2)}
	if _, err := service.CreateReservation(context.Background(), actor, request); !errors.Is(err, ErrReservationLimitReached) {
		test.Fatalf("expected ErrReservationLimitReached, got %v", err)
	}

	if _, err := service.CancelReservation(context.Background(), actor, created[0].ID, ""); err != nil {
		test.Fatalf("cancel: %v", err)
	}
	if _, err := service.CreateReservation(context.Background(), actor, request); err != nil {
		test.Fatalf("expected booking after cancellation, got %v", err)
	}
}

func TestGuestBookingSkipsReservationLimit(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	for index := 0; index < MaxReservationsPerUser+2; index++ {
		_, err := service.CreateGuestReservation(context.Background(), GuestReservationRequest{
			Slot:      mustSlot(test, "2025-06-01", "12:00"),
			PartySize: mustPartySize(test, 1),
			Contact:   mustContact(test, "Walk In", "walkin@example.com"),
		})
		if err != nil {
			test.Fatalf("guest booking %d: %v", index, err)
		}
	}
}

func TestPartyLargerThanTwelveIsRejected(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)

	_, err := service.CreateReservation(context.Background(), userActor(test, "big-party"), ReservationRequest{
		Slot:      mustSlot(test, "2025-06-01", "19:00"),
		PartySize: mustPartySize(test, 13),
	})
	if !errors.Is(err, ErrPartyTooLarge) {
		test.Fatalf("expected ErrPartyTooLarge, got %v", err)
	}
	if KindOf(err) != ErrorKindPolicy {
		test.Fatalf("expected policy rejection, got %s", KindOf(err))
	}
	if len(store.reservations) != 0 {
		test.Fatalf("expected nothing persisted")
	}
}

func TestPausedReservationsRejectEveryBooking(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	if err := service.SetReservationsPaused(context.Background(), adminActor(test), true); err != nil {
		test.Fatalf("pause: %v", err)
	}

	_, err := service.CreateReservation(context.Background(), userActor(test, "paused"), ReservationRequest{
		Slot:      mustSlot(test, "2025-06-01", "19:00"),
		PartySize: mustPartySize(test, 2),
	})
	if !errors.Is(err, ErrReservationsPaused) {
		test.Fatalf("expected ErrReservationsPaused, got %v", err)
	}
	_, err = service.CreateGuestReservation(context.Background(), GuestReservationRequest{
		Slot:      mustSlot(test, "2025-06-01", "19:00"),
		PartySize: mustPartySize(test, 2),
		Contact:   mustContact(test, "Guest", "guest@example.com"),
	})
	if !errors.Is(err, ErrReservationsPaused) {
		test.Fatalf("expected guest booking paused, got %v", err)
	}

	if err := service.SetReservationsPaused(context.Background(), adminActor(test), false); err != nil {
		test.Fatalf("resume: %v", err)
	}
	if _, err := service.CreateReservation(context.Background(), userActor(test, "paused"), ReservationRequest{
		Slot:      mustSlot(test, "2025-06-01", "19:00"),
		PartySize: mustPartySize(test, 2),
	}); err != nil {
		test.Fatalf("expected booking after resume, got %v", err)
	}
}

func TestNotificationFailureRollsBackBooking(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	store.enqueueErr = errors.New("outbox unavailable")
	service := mustNewService(test, store)

	_, err := service.CreateReservation(context.Background(), userActor(test, "rollback"), ReservationRequest{
		Slot:      mustSlot(test, "2025-06-01", "19:00"),
		PartySize: mustPartySize(test, 2),
	})
	if err == nil {
		test.Fatalf("expected error")
	}
	if KindOf(err) != ErrorKindTransient {
		test.Fatalf("expected transient failure, got %s", KindOf(err))
	}
	if len(store.reservations) != 0 {
		test.Fatalf("expected rollback, got %d reservations", len(store.reservations))
	}
}

func TestCreateReservationRequiresAuthenticatedActor(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore(test))

	_, err := service.CreateReservation(context.Background(), Actor{}, ReservationRequest{
		Slot:      mustSlot(test, "2025-06-01", "19:00"),
		PartySize: mustPartySize(test, 2),
	})
	if !errors.Is(err, ErrForbidden) {
		test.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestStoreFailureSurfacesAsTransient(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newFailingStore(test, errors.New("db down")))

	_, err := service.CreateReservation(context.Background(), userActor(test, "u"), ReservationRequest{
		Slot:      mustSlot(test, "2025-06-01", "19:00"),
		PartySize: mustPartySize(test, 2),
	})
	if err == nil || KindOf(err) != ErrorKindTransient {
		test.Fatalf("expected transient failure, got %v", err)
	}
}
