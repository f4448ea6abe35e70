package reservas

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	slotDateLayout        = "2006-01-02"
	slotTimeLayout        = "15:04"
	slotTimeSecondsLayout = "15:04:05"
)

// ReservationID identifies a stored reservation.
type ReservationID uint64

// NewReservationID validates a numeric reservation id.
func NewReservationID(raw uint64) (ReservationID, error) {
	if raw == 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidReservationID)
	}
	return ReservationID(raw), nil
}

// ParseReservationID parses a decimal reservation id.
func ParseReservationID(raw string) (ReservationID, error) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidReservationID, raw)
	}
	return NewReservationID(parsed)
}

// Uint64 returns the raw id.
func (id ReservationID) Uint64() uint64 {
	return uint64(id)
}

// String returns the decimal representation.
func (id ReservationID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// UserID identifies an account owner.
type UserID struct {
	value string
}

// NewUserID validates and normalizes a user id.
func NewUserID(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserID{}, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	return UserID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id UserID) String() string {
	return id.value
}

// IsZero reports whether the id was never set.
func (id UserID) IsZero() bool {
	return id.value == ""
}

// PartySize is the number of seats a reservation occupies.
type PartySize int

// NewPartySize validates a seat count. The self-service ceiling is a policy
// check applied at admission, not here.
func NewPartySize(raw int) (PartySize, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidPartySize)
	}
	return PartySize(raw), nil
}

// Int returns the seat count.
func (size PartySize) Int() int {
	return int(size)
}

// Slot is the date and time capacity is checked against.
type Slot struct {
	date  string
	clock string
}

// NewSlot parses a YYYY-MM-DD date and an HH:MM (or HH:MM:SS) time.
func NewSlot(date string, clock string) (Slot, error) {
	trimmedDate := strings.TrimSpace(date)
	if _, err := time.Parse(slotDateLayout, trimmedDate); err != nil {
		return Slot{}, fmt.Errorf("%w: date %q", ErrInvalidSlot, date)
	}
	trimmedClock := strings.TrimSpace(clock)
	parsedClock, err := time.Parse(slotTimeLayout, trimmedClock)
	if err != nil {
		parsedClock, err = time.Parse(slotTimeSecondsLayout, trimmedClock)
		if err != nil {
			return Slot{}, fmt.Errorf("%w: time %q", ErrInvalidSlot, clock)
		}
	}
	return Slot{date: trimmedDate, clock: parsedClock.Format(slotTimeLayout)}, nil
}

// Date returns the YYYY-MM-DD date.
func (slot Slot) Date() string {
	return slot.date
}

// Time returns the HH:MM time.
func (slot Slot) Time() string {
	return slot.clock
}

// Day returns the calendar day at midnight UTC.
func (slot Slot) Day() time.Time {
	day, _ := time.Parse(slotDateLayout, slot.date)
	return day
}

// IsZero reports whether the slot was never set.
func (slot Slot) IsZero() bool {
	return slot.date == ""
}

// String returns "date time".
func (slot Slot) String() string {
	return slot.date + " " + slot.clock
}

// ReservationStatus defines the reservation lifecycle.
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pendente"
	ReservationStatusConfirmed ReservationStatus = "confirmada"
	ReservationStatusCanceled  ReservationStatus = "cancelada"
)

// ParseReservationStatus validates a stored status value.
func ParseReservationStatus(raw string) (ReservationStatus, error) {
	switch ReservationStatus(strings.TrimSpace(raw)) {
	case ReservationStatusPending:
		return ReservationStatusPending, nil
	case ReservationStatusConfirmed:
		return ReservationStatusConfirmed, nil
	case ReservationStatusCanceled:
		return ReservationStatusCanceled, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidReservationStatus, raw)
	}
}

// String returns the status label.
func (status ReservationStatus) String() string {
	return string(status)
}

// Role distinguishes administrators from regular users.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole maps a claim value onto a role; anything but admin is a regular user.
func ParseRole(raw string) Role {
	if strings.EqualFold(strings.TrimSpace(raw), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleUser
}

// Contact is the requester data copied onto a reservation.
type Contact struct {
	name  string
	email string
	phone string
}

// NewContact validates requester data. Phone is optional.
func NewContact(name string, email string, phone string) (Contact, error) {
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return Contact{}, fmt.Errorf("%w: empty name", ErrInvalidContact)
	}
	trimmedEmail := strings.TrimSpace(email)
	if trimmedEmail == "" || !strings.Contains(trimmedEmail, "@") {
		return Contact{}, fmt.Errorf("%w: email %q", ErrInvalidContact, email)
	}
	return Contact{name: trimmedName, email: trimmedEmail, phone: strings.TrimSpace(phone)}, nil
}

// Name returns the requester name.
func (contact Contact) Name() string {
	return contact.name
}

// Email returns the notification address.
func (contact Contact) Email() string {
	return contact.email
}

// Phone returns the optional phone number.
func (contact Contact) Phone() string {
	return contact.phone
}

// IsZero reports whether the contact was never set.
func (contact Contact) IsZero() bool {
	return contact.email == ""
}

// Actor is the caller on whose behalf an operation runs. The zero value is an
// anonymous guest.
type Actor struct {
	UserID  UserID
	Role    Role
	Contact Contact
}

// IsAdmin reports whether the actor holds the administrator role.
func (actor Actor) IsAdmin() bool {
	return !actor.UserID.IsZero() && actor.Role == RoleAdmin
}

// Authenticated reports whether the actor carries an identity.
func (actor Actor) Authenticated() bool {
	return !actor.UserID.IsZero()
}

// Reservation represents a stored reservation record.
type Reservation struct {
	ID                 ReservationID
	OwnerID            *UserID
	Slot               Slot
	PartySize          PartySize
	Contact            Contact
	Status             ReservationStatus
	ConfirmationToken  string
	CancellationReason string
	CanceledAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// OwnedBy reports whether userID owns the reservation.
func (reservation Reservation) OwnedBy(userID UserID) bool {
	return reservation.OwnerID != nil && !userID.IsZero() && *reservation.OwnerID == userID
}

// SettingEntry is a stored operational parameter.
type SettingEntry struct {
	Key         string
	Value       string
	Description string
}

// SearchField selects the column a listing search matches against.
type SearchField string

const (
	SearchFieldAny       SearchField = ""
	SearchFieldID        SearchField = "ID"
	SearchFieldName      SearchField = "Nome"
	SearchFieldDate      SearchField = "Data"
	SearchFieldTime      SearchField = "Hora"
	SearchFieldPartySize SearchField = "Quantidade"
)

// ParseSearchField accepts the filter labels used by the dashboard, case-insensitively.
func ParseSearchField(raw string) (SearchField, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return SearchFieldAny, nil
	}
	for _, field := range []SearchField{SearchFieldID, SearchFieldName, SearchFieldDate, SearchFieldTime, SearchFieldPartySize} {
		if strings.EqualFold(trimmed, string(field)) {
			return field, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSearchField, raw)
}

// SearchFilter narrows a listing. An empty term matches everything.
type SearchFilter struct {
	Field SearchField
	Term  string
}

// IsEmpty reports whether the filter matches everything.
func (filter SearchFilter) IsEmpty() bool {
	return strings.TrimSpace(filter.Term) == ""
}

// ListOrder selects listing order.
type ListOrder int

const (
	// OrderNewestFirst orders by id descending.
	OrderNewestFirst ListOrder = iota
	// OrderByDate orders by date, then time, then id, ascending.
	OrderByDate
)

// ReservationQuery describes a filtered, paginated listing.
type ReservationQuery struct {
	OwnerID  *UserID
	FromDate string
	ToDate   string
	Filter   SearchFilter
	Order    ListOrder
	Page     int
	PageSize int
}

// ReservationPage is one page of a listing.
type ReservationPage struct {
	Items    []Reservation
	Total    int
	Page     int
	PageSize int
}

// LastPage returns the number of the final page (at least 1).
func (page ReservationPage) LastPage() int {
	if page.PageSize <= 0 || page.Total == 0 {
		return 1
	}
	return (page.Total + page.PageSize - 1) / page.PageSize
}

// ReservationDay is the (date, status) pair reports group over.
type ReservationDay struct {
	Date   time.Time
	Status ReservationStatus
}

// Store is the persistence port for the reservation core.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	GetSetting(ctx context.Context, key string) (SettingEntry, bool, error)
	UpsertSetting(ctx context.Context, entry SettingEntry) error
	// SumPartySize totals non-canceled seats at slot, ignoring exclude when non-zero.
	SumPartySize(ctx context.Context, slot Slot, exclude ReservationID) (int, error)
	CountReservationsByOwner(ctx context.Context, ownerID UserID) (int, error)
	CreateReservation(ctx context.Context, reservation Reservation) (Reservation, error)
	GetReservation(ctx context.Context, id ReservationID) (Reservation, error)
	FindReservationByToken(ctx context.Context, token string) (Reservation, error)
	UpdateReservation(ctx context.Context, reservation Reservation) error
	DeleteReservation(ctx context.Context, id ReservationID) error
	ListReservations(ctx context.Context, query ReservationQuery) (ReservationPage, error)
	ListReservationDays(ctx context.Context, fromDate string, toDate string) ([]ReservationDay, error)
	ListPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]Reservation, error)
	EnqueueNotification(ctx context.Context, notification Notification) error
}
