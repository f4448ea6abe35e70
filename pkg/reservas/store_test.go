package reservas

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"
)

var fixedNow = time.Date(2025, time.June, 1, 18, 0, 0, 0, time.UTC)

// stubStore keeps state in memory and restores it when a transaction fails.
type stubStore struct {
	settings      map[string]SettingEntry
	reservations  map[ReservationID]Reservation
	notifications []Notification
	nextID        ReservationID
	enqueueErr    error
	updateErr     error
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{
		settings:     make(map[string]SettingEntry),
		reservations: make(map[ReservationID]Reservation),
		nextID:       1,
	}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	settings := make(map[string]SettingEntry, len(store.settings))
	for key, value := range store.settings {
		settings[key] = value
	}
	reservations := make(map[ReservationID]Reservation, len(store.reservations))
	for key, value := range store.reservations {
		reservations[key] = value
	}
	notifications := append([]Notification(nil), store.notifications...)
	nextID := store.nextID
	if err := fn(ctx, store); err != nil {
		store.settings = settings
		store.reservations = reservations
		store.notifications = notifications
		store.nextID = nextID
		return err
	}
	return nil
}

func (store *stubStore) GetSetting(ctx context.Context, key string) (SettingEntry, bool, error) {
	entry, found := store.settings[key]
	return entry, found, nil
}

func (store *stubStore) UpsertSetting(ctx context.Context, entry SettingEntry) error {
	store.settings[entry.Key] = entry
	return nil
}

func (store *stubStore) SumPartySize(ctx context.Context, slot Slot, exclude ReservationID) (int, error) {
	total := 0
	for id, reservation := range store.reservations {
		if id == exclude || reservation.Slot != slot || reservation.Status == ReservationStatusCanceled {
			continue
		}
		total += reservation.PartySize.Int()
	}
	return total, nil
}

func (store *stubStore) CountReservationsByOwner(ctx context.Context, ownerID UserID) (int, error) {
	count := 0
	for _, reservation := range store.reservations {
		if reservation.OwnedBy(ownerID) {
			count++
		}
	}
	return count, nil
}

func (store *stubStore) CreateReservation(ctx context.Context, reservation Reservation) (Reservation, error) {
	reservation.ID = store.nextID
	store.nextID++
	store.reservations[reservation.ID] = reservation
	return reservation, nil
}

func (store *stubStore) GetReservation(ctx context.Context, id ReservationID) (Reservation, error) {
	reservation, found := store.reservations[id]
	if !found {
		return Reservation{}, ErrReservationNotFound
	}
	return reservation, nil
}

func (store *stubStore) FindReservationByToken(ctx context.Context, token string) (Reservation, error) {
	for _, reservation := range store.reservations {
		if reservation.ConfirmationToken != "" && reservation.ConfirmationToken == token {
			return reservation, nil
		}
	}
	return Reservation{}, ErrReservationNotFound
}

func (store *stubStore) UpdateReservation(ctx context.Context, reservation Reservation) error {
	if store.updateErr != nil {
		return store.updateErr
	}
	if _, found := store.reservations[reservation.ID]; !found {
		return ErrReservationNotFound
	}
	store.reservations[reservation.ID] = reservation
	return nil
}

func (store *stubStore) DeleteReservation(ctx context.Context, id ReservationID) error {
	delete(store.reservations, id)
	return nil
}

func (store *stubStore) ListReservations(ctx context.Context, query ReservationQuery) (ReservationPage, error) {
	matches := make([]Reservation, 0, len(store.reservations))
	for _, reservation := range store.reservations {
		if query.OwnerID != nil && !reservation.OwnedBy(*query.OwnerID) {
			continue
		}
		if query.FromDate != "" && reservation.Slot.Date() < query.FromDate {
			continue
		}
		if query.ToDate != "" && reservation.Slot.Date() > query.ToDate {
			continue
		}
		if !stubMatches(reservation, query.Filter) {
			continue
		}
		matches = append(matches, reservation)
	}
	sort.Slice(matches, func(left, right int) bool {
		if query.Order == OrderByDate {
			if matches[left].Slot.Date() != matches[right].Slot.Date() {
				return matches[left].Slot.Date() < matches[right].Slot.Date()
			}
			return matches[left].ID < matches[right].ID
		}
		return matches[left].ID > matches[right].ID
	})
	start := (query.Page - 1) * query.PageSize
	if start > len(matches) {
		start = len(matches)
	}
	end := start + query.PageSize
	if end > len(matches) {
		end = len(matches)
	}
	return ReservationPage{Items: matches[start:end], Total: len(matches), Page: query.Page, PageSize: query.PageSize}, nil
}

func stubMatches(reservation Reservation, filter SearchFilter) bool {
	if filter.IsEmpty() {
		return true
	}
	term := strings.ToLower(strings.TrimSpace(filter.Term))
	values := map[SearchField]string{
		SearchFieldID:        reservation.ID.String(),
		SearchFieldName:      strings.ToLower(reservation.Contact.Name()),
		SearchFieldDate:      reservation.Slot.Date(),
		SearchFieldTime:      reservation.Slot.Time(),
		SearchFieldPartySize: strconv.Itoa(reservation.PartySize.Int()),
	}
	if filter.Field != SearchFieldAny {
		return strings.Contains(values[filter.Field], term)
	}
	for _, value := range values {
		if strings.Contains(value, term) {
			return true
		}
	}
	return false
}

func (store *stubStore) ListReservationDays(ctx context.Context, fromDate string, toDate string) ([]ReservationDay, error) {
	days := make([]ReservationDay, 0, len(store.reservations))
	for _, reservation := range store.reservations {
		date := reservation.Slot.Date()
		if date < fromDate || date > toDate {
			continue
		}
		days = append(days, ReservationDay{Date: reservation.Slot.Day(), Status: reservation.Status})
	}
	return days, nil
}

func (store *stubStore) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]Reservation, error) {
	stale := make([]Reservation, 0)
	for _, reservation := range store.reservations {
		if reservation.Status == ReservationStatusPending && reservation.CreatedAt.Before(cutoff) {
			stale = append(stale, reservation)
		}
	}
	return stale, nil
}

func (store *stubStore) EnqueueNotification(ctx context.Context, notification Notification) error {
	if store.enqueueErr != nil {
		return store.enqueueErr
	}
	store.notifications = append(store.notifications, notification)
	return nil
}

func (store *stubStore) seed(test *testing.T, reservation Reservation) Reservation {
	test.Helper()
	if reservation.Status == "" {
		reservation.Status = ReservationStatusPending
	}
	if reservation.Contact.IsZero() {
		reservation.Contact = mustContact(test, "Seed Guest", "seed@example.com")
	}
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = fixedNow
	}
	created, err := store.CreateReservation(context.Background(), reservation)
	if err != nil {
		test.Fatalf("seed reservation: %v", err)
	}
	return created
}

func (store *stubStore) mustReservation(test *testing.T, id ReservationID) Reservation {
	test.Helper()
	reservation, found := store.reservations[id]
	if !found {
		test.Fatalf("reservation %s not found", id)
	}
	return reservation
}

// failingStore fails every read and write with err.
type failingStore struct {
	Store
	err error
}

func newFailingStore(test *testing.T, err error) *failingStore {
	test.Helper()
	return &failingStore{err: err}
}

func (store *failingStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, store)
}

func (store *failingStore) GetSetting(ctx context.Context, key string) (SettingEntry, bool, error) {
	return SettingEntry{}, false, store.err
}

func (store *failingStore) GetReservation(ctx context.Context, id ReservationID) (Reservation, error) {
	return Reservation{}, store.err
}

func (store *failingStore) FindReservationByToken(ctx context.Context, token string) (Reservation, error) {
	return Reservation{}, store.err
}

func (store *failingStore) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]Reservation, error) {
	return nil, store.err
}

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	counter := 0
	tokenOption := WithTokenGenerator(func() (string, error) {
		counter++
		return "token-" + strconv.Itoa(counter), nil
	})
	allOptions := append([]ServiceOption{tokenOption, WithPublicBaseURL("http://localhost:8000")}, options...)
	service, err := NewService(store, func() time.Time { return fixedNow }, allOptions...)
	if err != nil {
		test.Fatalf("service init failed: %v", err)
	}
	return service
}

func mustUserID(test *testing.T, raw string) UserID {
	test.Helper()
	userID, err := NewUserID(raw)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	return userID
}

func mustSlot(test *testing.T, date string, clock string) Slot {
	test.Helper()
	slot, err := NewSlot(date, clock)
	if err != nil {
		test.Fatalf("slot: %v", err)
	}
	return slot
}

func mustPartySize(test *testing.T, raw int) PartySize {
	test.Helper()
	size, err := NewPartySize(raw)
	if err != nil {
		test.Fatalf("party size: %v", err)
	}
	return size
}

func mustContact(test *testing.T, name string, email string) Contact {
	test.Helper()
	contact, err := NewContact(name, email, "")
	if err != nil {
		test.Fatalf("contact: %v", err)
	}
	return contact
}

func userActor(test *testing.T, raw string) Actor {
	test.Helper()
	return Actor{UserID: mustUserID(test, raw), Role: RoleUser, Contact: mustContact(test, "User "+raw, raw+"@example.com")}
}

func adminActor(test *testing.T) Actor {
	test.Helper()
	return Actor{UserID: mustUserID(test, "admin-1"), Role: RoleAdmin, Contact: mustContact(test, "Admin", "admin@example.com")}
}

func ownerRef(userID UserID) *UserID {
	return &userID
}
