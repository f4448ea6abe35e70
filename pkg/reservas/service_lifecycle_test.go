package reservas

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestConfirmByTokenConsumesToken(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	reservation := store.seed(test, Reservation{
		Slot:              mustSlot(test, "2025-06-01", "19:00"),
		PartySize:         mustPartySize(test, 2),
		ConfirmationToken: "secret-token",
	})

	outcome, err := service.ConfirmByToken(context.Background(), "secret-token")
	if err != nil {
		test.Fatalf("confirm: %v", err)
	}
	if outcome.AlreadyConfirmed {
		test.Fatalf("expected fresh confirmation")
	}
	stored := store.mustReservation(test, reservation.ID)
	if stored.Status != ReservationStatusConfirmed {
		test.Fatalf("expected confirmed, got %s", stored.Status)
	}
	if stored.ConfirmationToken != "" {
		test.Fatalf("expected token cleared, got %q", stored.ConfirmationToken)
	}

	second, err := service.ConfirmByToken(context.Background(), "secret-token")
	if err != nil {
		test.Fatalf("second confirm should not fail: %v", err)
	}
	if !second.AlreadyConfirmed {
		test.Fatalf("expected already-confirmed outcome")
	}
}

func TestConfirmByUnknownTokenReportsAlreadyConfirmed(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore(test))

	for _, token := range []string{"missing", "  "} {
		outcome, err := service.ConfirmByToken(context.Background(), token)
		if err != nil {
			test.Fatalf("confirm %q: %v", token, err)
		}
		if !outcome.AlreadyConfirmed {
			test.Fatalf("expected already-confirmed outcome for %q", token)
		}
	}
}

func TestConfirmByTokenPropagatesStoreFailure(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newFailingStore(test, errors.New("db down")))

	if _, err := service.ConfirmByToken(context.Background(), "token"); err == nil {
		test.Fatalf("expected store failure")
	}
}

func TestAdminConfirmsDirectly(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	reservation := store.seed(test, Reservation{Slot: mustSlot(test, "2025-06-01", "19:00"), PartySize: mustPartySize(test, 2), ConfirmationToken: "t"})

	if _, err := service.ConfirmReservation(context.Background(), userActor(test, "someone"), reservation.ID); !errors.Is(err, ErrForbidden) {
		test.Fatalf("expected ErrForbidden for regular user, got %v", err)
	}
	confirmed, err := service.ConfirmReservation(context.Background(), adminActor(test), reservation.ID)
	if err != nil {
		test.Fatalf("admin confirm: %v", err)
	}
	if confirmed.Status != ReservationStatusConfirmed || confirmed.ConfirmationToken != "" {
		test.Fatalf("unexpected confirmed reservation: %+v", confirmed)
	}
	if _, err := service.ConfirmReservation(context.Background(), adminActor(test), reservation.ID); err != nil {
		test.Fatalf("re-confirm should be a no-op, got %v", err)
	}
}

func TestUpdateConfirmedReservationIsForbidden(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	owner := userActor(test, "owner")
	slot := mustSlot(test, "2025-06-01", "19:00")
	reservation := store.seed(test, Reservation{
		OwnerID:   ownerRef(owner.UserID),
		Slot:      slot,
		PartySize: mustPartySize(test, 2),
		Status:    ReservationStatusConfirmed,
	})

	_, err := service.UpdateReservation(context.Background(), owner, reservation.ID, ReservationChanges{
		Slot:      mustSlot(test, "2025-06-02", "20:00"),
		PartySize: mustPartySize(test, 4),
	})
	if !errors.Is(err, ErrReservationNotEditable) {
		test.Fatalf("expected ErrReservationNotEditable, got %v", err)
	}
	if KindOf(err) != ErrorKindForbidden {
		test.Fatalf("expected forbidden kind, got %s", KindOf(err))
	}
	stored := store.mustReservation(test, reservation.ID)
	if stored.Slot != slot || stored.PartySize != 2 {
		test.Fatalf("expected fields unchanged, got %+v", stored)
	}
	if len(store.notifications) != 0 {
		test.Fatalf("expected no notification")
	}
}

func TestUpdateExcludesOwnSeatsFromOccupancy(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	owner := userActor(test, "owner")
	slot := mustSlot(test, "2025-06-01", "19:00")
	for index := 0; index < 6; index++ {
		store.seed(test, Reservation{Slot: slot, PartySize: mustPartySize(test, 12)})
	}
	reservation := store.seed(test, Reservation{OwnerID: ownerRef(owner.UserID), Slot: slot, PartySize: mustPartySize(test, 6), ConfirmationToken: "edit-token"})

	updated, err := service.UpdateReservation(context.Background(), owner, reservation.ID, ReservationChanges{
		Slot:      slot,
		PartySize: mustPartySize(test, 8),
	})
	if err != nil {
		test.Fatalf("expected 72+8 to fit once own seats are excluded, got %v", err)
	}
	if updated.PartySize != 8 {
		test.Fatalf("expected party size 8, got %d", updated.PartySize)
	}
	if updated.ConfirmationToken != "edit-token" {
		test.Fatalf("expected token kept across edit, got %q", updated.ConfirmationToken)
	}
	if len(store.notifications) != 1 || store.notifications[0].Payload.Title != "" {
		test.Fatalf("expected one confirmation notification without title, got %+v", store.notifications)
	}

	_, err = service.UpdateReservation(context.Background(), owner, reservation.ID, ReservationChanges{
		Slot:      slot,
		PartySize: mustPartySize(test, 9),
	})
	if !errors.Is(err, ErrSlotUnavailable) {
		test.Fatalf("expected ErrSlotUnavailable for 72+9, got %v", err)
	}
}

func TestUpdateRechecksPartyCeilingButNotLimit(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	owner := userActor(test, "owner")
	var target Reservation
	for index := 0; index < MaxReservationsPerUser; index++ {
		target = store.seed(test, Reservation{OwnerID: ownerRef(owner.UserID), Slot: mustSlot(test, "2025-06-01", "19:00"), PartySize: mustPartySize(test, 1)})
	}

	if _, err := service.UpdateReservation(context.Background(), owner, target.ID, ReservationChanges{
		Slot:      mustSlot(test, "2025-06-01", "21:00"),
		PartySize: mustPartySize(test, 13),
	}); !errors.Is(err, ErrPartyTooLarge) {
		test.Fatalf("expected ErrPartyTooLarge, got %v", err)
	}
	if _, err := service.UpdateReservation(context.Background(), owner, target.ID, ReservationChanges{
		Slot:      mustSlot(test, "2025-06-01", "21:00"),
		PartySize: mustPartySize(test, 3),
	}); err != nil {
		test.Fatalf("expected edit at the limit to succeed, got %v", err)
	}
}

func TestAdminUpdateCarriesTitleOverride(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	reservation := store.seed(test, Reservation{Slot: mustSlot(test, "2025-06-01", "19:00"), PartySize: mustPartySize(test, 2), ConfirmationToken: "tok"})

	if _, err := service.UpdateReservation(context.Background(), adminActor(test), reservation.ID, ReservationChanges{
		Slot:      mustSlot(test, "2025-06-01", "20:00"),
		PartySize: mustPartySize(test, 3),
	}); err != nil {
		test.Fatalf("admin update: %v", err)
	}
	notification := store.notifications[0]
	if notification.Payload.Title != titleAdminUpdate || notification.Subject != titleAdminUpdate {
		test.Fatalf("expected admin title override, got %+v", notification)
	}
}

func TestUsersCannotTouchOthersReservations(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	owner := userActor(test, "owner")
	intruder := userActor(test, "intruder")
	reservation := store.seed(test, Reservation{OwnerID: ownerRef(owner.UserID), Slot: mustSlot(test, "2025-06-01", "19:00"), PartySize: mustPartySize(test, 2)})

	if _, err := service.GetReservation(context.Background(), intruder, reservation.ID); !errors.Is(err, ErrForbidden) {
		test.Fatalf("expected forbidden get, got %v", err)
	}
	if _, err := service.UpdateReservation(context.Background(), intruder, reservation.ID, ReservationChanges{
		Slot:      mustSlot(test, "2025-06-01", "19:00"),
		PartySize: mustPartySize(test, 3),
	}); !errors.Is(err, ErrForbidden) {
		test.Fatalf("expected forbidden update, got %v", err)
	}
	if _, err := service.CancelReservation(context.Background(), intruder, reservation.ID, ""); !errors.Is(err, ErrForbidden) {
		test.Fatalf("expected forbidden cancel, got %v", err)
	}
	if err := service.DeleteReservation(context.Background(), owner, reservation.ID); !errors.Is(err, ErrForbidden) {
		test.Fatalf("expected forbidden delete for non-admin, got %v", err)
	}
	if store.mustReservation(test, reservation.ID).Status != ReservationStatusPending {
		test.Fatalf("expected reservation untouched")
	}
}

func TestMissingReservationReportsNotFound(test *testing.T) {
	test.Parallel()
	service := mustNewService(test, newStubStore(test))
	admin := adminActor(test)

	if _, err := service.GetReservation(context.Background(), admin, 99); KindOf(err) != ErrorKindNotFound {
		test.Fatalf("expected not found on get, got %v", err)
	}
	if _, err := service.CancelReservation(context.Background(), admin, 99, ""); KindOf(err) != ErrorKindNotFound {
		test.Fatalf("expected not found on cancel, got %v", err)
	}
	if err := service.DeleteReservation(context.Background(), admin, 99); KindOf(err) != ErrorKindNotFound {
		test.Fatalf("expected not found on delete, got %v", err)
	}
	if _, err := service.UpdateReservation(context.Background(), admin, 99, ReservationChanges{
		Slot:      mustSlot(test, "2025-06-01", "19:00"),
		PartySize: mustPartySize(test, 2),
	}); KindOf(err) != ErrorKindNotFound {
		test.Fatalf("expected not found on update, got %v", err)
	}
}

func TestCancellationDetachesOwnerAndStampsTime(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	owner := userActor(test, "owner")
	reservation := store.seed(test, Reservation{
		OwnerID:           ownerRef(owner.UserID),
		Slot:              mustSlot(test, "2025-06-01", "19:00"),
		PartySize:         mustPartySize(test, 2),
		ConfirmationToken: "tok",
	})

	canceled, err := service.CancelReservation(context.Background(), owner, reservation.ID, "should be ignored")
	if err != nil {
		test.Fatalf("cancel: %v", err)
	}
	if canceled.OwnerID != nil {
		test.Fatalf("expected owner detached")
	}
	if canceled.CanceledAt == nil || !canceled.CanceledAt.Equal(fixedNow) {
		test.Fatalf("expected canceled at %v, got %v", fixedNow, canceled.CanceledAt)
	}
	if canceled.CancellationReason != "" {
		test.Fatalf("expected no reason from a regular user, got %q", canceled.CancellationReason)
	}
	if canceled.ConfirmationToken != "" {
		test.Fatalf("expected token cleared on cancel")
	}
	notification := store.notifications[0]
	if notification.Kind != NotificationCancellation || notification.Subject != subjectCancellation {
		test.Fatalf("unexpected notification: %+v", notification)
	}
	if notification.Payload.Reason != "" || notification.Payload.Title != "" {
		test.Fatalf("expected no reason or title for user cancellation, got %+v", notification.Payload)
	}

	if _, err := service.CancelReservation(context.Background(), adminActor(test), reservation.ID, ""); !errors.Is(err, ErrReservationClosed) {
		test.Fatalf("expected ErrReservationClosed on second cancel, got %v", err)
	}
}

func TestAdminCancellationCarriesReasonAndTitle(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	owner := userActor(test, "owner")
	reservation := store.seed(test, Reservation{
		OwnerID:   ownerRef(owner.UserID),
		Slot:      mustSlot(test, "2025-06-01", "19:00"),
		PartySize: mustPartySize(test, 2),
		Status:    ReservationStatusConfirmed,
	})

	canceled, err := service.CancelReservation(context.Background(), adminActor(test), reservation.ID, "cliente não compareceu")
	if err != nil {
		test.Fatalf("admin cancel: %v", err)
	}
	if canceled.OwnerID != nil || canceled.CanceledAt == nil {
		test.Fatalf("expected owner detached and time stamped, got %+v", canceled)
	}
	if canceled.CancellationReason != "cliente não compareceu" {
		test.Fatalf("expected reason stored, got %q", canceled.CancellationReason)
	}
	payload := store.notifications[0].Payload
	if payload.Reason != "cliente não compareceu" || payload.Title != titleAdminCancel {
		test.Fatalf("unexpected admin cancellation payload: %+v", payload)
	}
}

func TestAdminDeleteIsUnconditional(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	reservation := store.seed(test, Reservation{Slot: mustSlot(test, "2025-06-01", "19:00"), PartySize: mustPartySize(test, 2), Status: ReservationStatusConfirmed})

	if err := service.DeleteReservation(context.Background(), adminActor(test), reservation.ID); err != nil {
		test.Fatalf("delete: %v", err)
	}
	if len(store.reservations) != 0 {
		test.Fatalf("expected reservation removed")
	}
}

func TestListReservationsScopesRegularUsers(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	owner := userActor(test, "owner")
	other := userActor(test, "other")
	for index := 0; index < 7; index++ {
		store.seed(test, Reservation{OwnerID: ownerRef(owner.UserID), Slot: mustSlot(test, "2025-06-01", "19:00"), PartySize: mustPartySize(test, 1)})
	}
	store.seed(test, Reservation{OwnerID: ownerRef(other.UserID), Slot: mustSlot(test, "2025-06-01", "19:00"), PartySize: mustPartySize(test, 1)})

	page, err := service.ListReservations(context.Background(), owner, ListQuery{OwnerID: ownerRef(other.UserID)})
	if err != nil {
		test.Fatalf("list: %v", err)
	}
	if page.Total != 7 || len(page.Items) != ReportPageSize {
		test.Fatalf("expected 7 own reservations paged by %d, got total=%d items=%d", ReportPageSize, page.Total, len(page.Items))
	}
	if page.Items[0].ID < page.Items[1].ID {
		test.Fatalf("expected newest first")
	}
	if page.LastPage() != 2 {
		test.Fatalf("expected 2 pages, got %d", page.LastPage())
	}

	all, err := service.ListReservations(context.Background(), adminActor(test), ListQuery{Page: 2})
	if err != nil {
		test.Fatalf("admin list: %v", err)
	}
	if all.Total != 8 || len(all.Items) != 3 {
		test.Fatalf("expected admin to see 8 reservations, got total=%d items=%d", all.Total, len(all.Items))
	}
	if _, err := service.ListReservations(context.Background(), Actor{}, ListQuery{}); !errors.Is(err, ErrForbidden) {
		test.Fatalf("expected guests to be refused, got %v", err)
	}
}

func TestExpirePendingCancelsStaleReservations(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	owner := userActor(test, "owner")
	stale := store.seed(test, Reservation{
		OwnerID:           ownerRef(owner.UserID),
		Slot:              mustSlot(test, "2025-06-01", "19:00"),
		PartySize:         mustPartySize(test, 2),
		ConfirmationToken: "stale",
		CreatedAt:         fixedNow.Add(-2 * time.Hour),
	})
	fresh := store.seed(test, Reservation{
		Slot:      mustSlot(test, "2025-06-01", "19:00"),
		PartySize: mustPartySize(test, 2),
		CreatedAt: fixedNow.Add(-10 * time.Minute),
	})
	confirmed := store.seed(test, Reservation{
		Slot:      mustSlot(test, "2025-06-01", "19:00"),
		PartySize: mustPartySize(test, 2),
		Status:    ReservationStatusConfirmed,
		CreatedAt: fixedNow.Add(-3 * time.Hour),
	})

	expired, err := service.ExpirePending(context.Background())
	if err != nil {
		test.Fatalf("expire: %v", err)
	}
	if expired != 1 {
		test.Fatalf("expected 1 expired reservation, got %d", expired)
	}
	storedStale := store.mustReservation(test, stale.ID)
	if storedStale.Status != ReservationStatusCanceled || storedStale.OwnerID != nil || storedStale.CanceledAt == nil {
		test.Fatalf("unexpected stale reservation: %+v", storedStale)
	}
	if store.mustReservation(test, fresh.ID).Status != ReservationStatusPending {
		test.Fatalf("expected fresh reservation untouched")
	}
	if store.mustReservation(test, confirmed.ID).Status != ReservationStatusConfirmed {
		test.Fatalf("expected confirmed reservation untouched")
	}
	if len(store.notifications) != 0 {
		test.Fatalf("expected expiry to stay silent")
	}
}

func TestExpirePendingRollsBackOnFailure(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store, WithPendingTTL(30*time.Minute))
	stale := store.seed(test, Reservation{
		Slot:      mustSlot(test, "2025-06-01", "19:00"),
		PartySize: mustPartySize(test, 2),
		CreatedAt: fixedNow.Add(-time.Hour),
	})
	store.updateErr = errors.New("write failed")

	expired, err := service.ExpirePending(context.Background())
	if err == nil || expired != 0 {
		test.Fatalf("expected failure with zero expired, got %d, %v", expired, err)
	}
	if store.mustReservation(test, stale.ID).Status != ReservationStatusPending {
		test.Fatalf("expected rollback")
	}
}
