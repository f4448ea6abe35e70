package reservas

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Service contains the reservation lifecycle over a Store.
type Service struct {
	store         Store
	nowFn         func() time.Time
	logger        OperationLogger
	locker        SlotLocker
	ownerLocker   OwnerLocker
	newToken      func() (string, error)
	publicBaseURL string
	pendingTTL    time.Duration
}

// ReservationRequest is an authenticated booking.
type ReservationRequest struct {
	Slot      Slot
	PartySize PartySize
}

// GuestReservationRequest is an unauthenticated booking carrying its own contact.
type GuestReservationRequest struct {
	Slot      Slot
	PartySize PartySize
	Contact   Contact
}

// ReservationChanges are the fields an edit may replace.
type ReservationChanges struct {
	Slot      Slot
	PartySize PartySize
}

// ConfirmationOutcome reports what a token confirmation did.
type ConfirmationOutcome struct {
	Reservation      Reservation
	AlreadyConfirmed bool
}

// ListQuery narrows a reservation listing.
type ListQuery struct {
	OwnerID *UserID
	Filter  SearchFilter
	Page    int
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	localLocker := NewLocalSlotLocker()
	service := &Service{
		store:       store,
		nowFn:       now,
		locker:      localLocker,
		ownerLocker: localLocker,
		newToken:    NewConfirmationToken,
		pendingTTL:  DefaultPendingTTL,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// CreateReservation books a pending reservation for an authenticated actor and
// queues the confirmation message.
func (service *Service) CreateReservation(ctx context.Context, actor Actor, request ReservationRequest) (Reservation, error) {
	var created Reservation
	operationError := func() error {
		if !actor.Authenticated() {
			return fmt.Errorf("%w: authentication required", ErrForbidden)
		}
		if actor.Contact.IsZero() {
			return fmt.Errorf("%w: actor has no contact", ErrInvalidContact)
		}
		if err := validateSlotAndSize(request.Slot, request.PartySize); err != nil {
			return err
		}
		owner := actor.UserID
		return service.admitAndCreate(ctx, admission{slot: request.Slot, partySize: request.PartySize, owner: &owner}, actor.Contact, &created)
	}()
	service.logOperation(ctx, OperationLog{
		Operation:     operationCreate,
		ActorID:       actor.UserID,
		ActorRole:     actor.Role,
		ReservationID: created.ID,
		Slot:          request.Slot,
		PartySize:     request.PartySize,
		Error:         operationError,
	})
	return created, operationError
}

// CreateGuestReservation books a pending reservation without an owner. The
// per-user limit does not apply.
func (service *Service) CreateGuestReservation(ctx context.Context, request GuestReservationRequest) (Reservation, error) {
	var created Reservation
	operationError := func() error {
		if request.Contact.IsZero() {
			return fmt.Errorf("%w: guest contact is required", ErrInvalidContact)
		}
		if err := validateSlotAndSize(request.Slot, request.PartySize); err != nil {
			return err
		}
		return service.admitAndCreate(ctx, admission{slot: request.Slot, partySize: request.PartySize}, request.Contact, &created)
	}()
	service.logOperation(ctx, OperationLog{
		Operation:     operationCreateGuest,
		ReservationID: created.ID,
		Slot:          request.Slot,
		PartySize:     request.PartySize,
		Error:         operationError,
	})
	return created, operationError
}

func (service *Service) admitAndCreate(ctx context.Context, request admission, contact Contact, created *Reservation) error {
	if request.owner != nil {
		unlockOwner, err := service.lockOwner(ctx, *request.owner)
		if err != nil {
			return err
		}
		defer unlockOwner()
	}
	unlock, err := service.lockSlot(ctx, request.slot)
	if err != nil {
		return err
	}
	defer unlock()
	return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if err := admitNew(ctx, transactionStore, request); err != nil {
			return err
		}
		token, err := service.newToken()
		if err != nil {
			return err
		}
		now := service.nowFn()
		reservation, err := transactionStore.CreateReservation(ctx, Reservation{
			OwnerID:           request.owner,
			Slot:              request.slot,
			PartySize:         request.partySize,
			Contact:           contact,
			Status:            ReservationStatusPending,
			ConfirmationToken: token,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
		if err != nil {
			return err
		}
		if err := transactionStore.EnqueueNotification(ctx, service.confirmationNotification(reservation, "")); err != nil {
			return err
		}
		*created = reservation
		return nil
	})
}

// ConfirmByToken confirms the pending reservation holding token. Unknown or
// already consumed tokens report AlreadyConfirmed instead of failing.
func (service *Service) ConfirmByToken(ctx context.Context, token string) (ConfirmationOutcome, error) {
	var outcome ConfirmationOutcome
	trimmed := strings.TrimSpace(token)
	operationError := func() error {
		if trimmed == "" {
			outcome.AlreadyConfirmed = true
			return nil
		}
		return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			reservation, err := transactionStore.FindReservationByToken(ctx, trimmed)
			if err != nil {
				if KindOf(err) == ErrorKindNotFound {
					outcome.AlreadyConfirmed = true
					return nil
				}
				return err
			}
			if reservation.Status != ReservationStatusPending {
				outcome = ConfirmationOutcome{Reservation: reservation, AlreadyConfirmed: true}
				return nil
			}
			confirmed, err := service.confirm(ctx, transactionStore, reservation)
			if err != nil {
				return err
			}
			outcome = ConfirmationOutcome{Reservation: confirmed}
			return nil
		})
	}()
	service.logOperation(ctx, OperationLog{
		Operation:     operationConfirmToken,
		ReservationID: outcome.Reservation.ID,
		Slot:          outcome.Reservation.Slot,
		PartySize:     outcome.Reservation.PartySize,
		Error:         operationError,
	})
	return outcome, operationError
}

// ConfirmReservation lets an administrator confirm a pending reservation
// directly. Confirming twice is a no-op.
func (service *Service) ConfirmReservation(ctx context.Context, actor Actor, id ReservationID) (Reservation, error) {
	var result Reservation
	operationError := func() error {
		if !actor.IsAdmin() {
			return fmt.Errorf("%w: administrator role required", ErrForbidden)
		}
		return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			reservation, err := transactionStore.GetReservation(ctx, id)
			if err != nil {
				return err
			}
			switch reservation.Status {
			case ReservationStatusConfirmed:
				result = reservation
				return nil
			case ReservationStatusCanceled:
				return fmt.Errorf("%w: reservation %s is canceled", ErrReservationClosed, id)
			}
			result, err = service.confirm(ctx, transactionStore, reservation)
			return err
		})
	}()
	service.logOperation(ctx, OperationLog{
		Operation:     operationConfirm,
		ActorID:       actor.UserID,
		ActorRole:     actor.Role,
		ReservationID: id,
		Error:         operationError,
	})
	return result, operationError
}

func (service *Service) confirm(ctx context.Context, transactionStore Store, reservation Reservation) (Reservation, error) {
	reservation.Status = ReservationStatusConfirmed
	reservation.ConfirmationToken = ""
	reservation.UpdatedAt = service.nowFn()
	if err := transactionStore.UpdateReservation(ctx, reservation); err != nil {
		return Reservation{}, err
	}
	return reservation, nil
}

// UpdateReservation edits a pending reservation and re-sends its confirmation
// message. Confirmed and canceled reservations cannot be edited.
func (service *Service) UpdateReservation(ctx context.Context, actor Actor, id ReservationID, changes ReservationChanges) (Reservation, error) {
	var updated Reservation
	operationError := func() error {
		if err := validateSlotAndSize(changes.Slot, changes.PartySize); err != nil {
			return err
		}
		unlock, err := service.lockSlot(ctx, changes.Slot)
		if err != nil {
			return err
		}
		defer unlock()
		return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			reservation, err := transactionStore.GetReservation(ctx, id)
			if err != nil {
				return err
			}
			if err := authorize(actor, reservation); err != nil {
				return err
			}
			if reservation.Status != ReservationStatusPending {
				return fmt.Errorf("%w: reservation %s is %s", ErrReservationNotEditable, id, reservation.Status)
			}
			if err := admitEdit(ctx, transactionStore, admission{slot: changes.Slot, partySize: changes.PartySize, editing: id}); err != nil {
				return err
			}
			reservation.Slot = changes.Slot
			reservation.PartySize = changes.PartySize
			reservation.UpdatedAt = service.nowFn()
			if err := transactionStore.UpdateReservation(ctx, reservation); err != nil {
				return err
			}
			title := ""
			if actor.IsAdmin() {
				title = titleAdminUpdate
			}
			if err := transactionStore.EnqueueNotification(ctx, service.confirmationNotification(reservation, title)); err != nil {
				return err
			}
			updated = reservation
			return nil
		})
	}()
	service.logOperation(ctx, OperationLog{
		Operation:     operationUpdate,
		ActorID:       actor.UserID,
		ActorRole:     actor.Role,
		ReservationID: id,
		Slot:          changes.Slot,
		PartySize:     changes.PartySize,
		Error:         operationError,
	})
	return updated, operationError
}

// CancelReservation cancels a pending or confirmed reservation. The owner is
// detached and the time stamped whoever cancels; only administrators attach a
// reason.
func (service *Service) CancelReservation(ctx context.Context, actor Actor, id ReservationID, reason string) (Reservation, error) {
	var canceled Reservation
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		reservation, err := transactionStore.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		if err := authorize(actor, reservation); err != nil {
			return err
		}
		if reservation.Status == ReservationStatusCanceled {
			return fmt.Errorf("%w: reservation %s already canceled", ErrReservationClosed, id)
		}
		reason = strings.TrimSpace(reason)
		if !actor.IsAdmin() {
			reason = ""
		}
		reservation = service.markCanceled(reservation, reason)
		if err := transactionStore.UpdateReservation(ctx, reservation); err != nil {
			return err
		}
		if err := transactionStore.EnqueueNotification(ctx, cancellationNotification(reservation, actor.IsAdmin())); err != nil {
			return err
		}
		canceled = reservation
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationCancel,
		ActorID:       actor.UserID,
		ActorRole:     actor.Role,
		ReservationID: id,
		Slot:          canceled.Slot,
		PartySize:     canceled.PartySize,
		Error:         operationError,
	})
	return canceled, operationError
}

func (service *Service) markCanceled(reservation Reservation, reason string) Reservation {
	now := service.nowFn()
	reservation.Status = ReservationStatusCanceled
	reservation.OwnerID = nil
	reservation.ConfirmationToken = ""
	reservation.CancellationReason = reason
	reservation.CanceledAt = &now
	reservation.UpdatedAt = now
	return reservation
}

// DeleteReservation removes a reservation regardless of its status.
func (service *Service) DeleteReservation(ctx context.Context, actor Actor, id ReservationID) error {
	operationError := func() error {
		if !actor.IsAdmin() {
			return fmt.Errorf("%w: administrator role required", ErrForbidden)
		}
		return service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
			if _, err := transactionStore.GetReservation(ctx, id); err != nil {
				return err
			}
			return transactionStore.DeleteReservation(ctx, id)
		})
	}()
	service.logOperation(ctx, OperationLog{
		Operation:     operationDelete,
		ActorID:       actor.UserID,
		ActorRole:     actor.Role,
		ReservationID: id,
		Error:         operationError,
	})
	return operationError
}

// GetReservation returns a reservation the actor may see.
func (service *Service) GetReservation(ctx context.Context, actor Actor, id ReservationID) (Reservation, error) {
	reservation, err := service.store.GetReservation(ctx, id)
	if err != nil {
		return Reservation{}, err
	}
	if err := authorize(actor, reservation); err != nil {
		return Reservation{}, err
	}
	return reservation, nil
}

// ListReservations pages through reservations newest first. Regular users
// only ever see their own.
func (service *Service) ListReservations(ctx context.Context, actor Actor, query ListQuery) (ReservationPage, error) {
	if !actor.Authenticated() {
		return ReservationPage{}, fmt.Errorf("%w: authentication required", ErrForbidden)
	}
	ownerID := query.OwnerID
	if !actor.IsAdmin() {
		self := actor.UserID
		ownerID = &self
	}
	return service.store.ListReservations(ctx, ReservationQuery{
		OwnerID:  ownerID,
		Filter:   query.Filter,
		Order:    OrderNewestFirst,
		Page:     normalizePage(query.Page),
		PageSize: ReportPageSize,
	})
}

// Settings returns the current operational parameters.
func (service *Service) Settings(ctx context.Context) (SettingsSnapshot, error) {
	return (&Settings{store: service.store}).Snapshot(ctx)
}

// UpdateMaxCapacity lets an administrator change the per-slot seat ceiling.
func (service *Service) UpdateMaxCapacity(ctx context.Context, actor Actor, capacity int) error {
	operationError := func() error {
		if !actor.IsAdmin() {
			return fmt.Errorf("%w: administrator role required", ErrForbidden)
		}
		return (&Settings{store: service.store}).UpdateMaxCapacity(ctx, capacity)
	}()
	service.logOperation(ctx, OperationLog{
		Operation: operationSetCapacity,
		ActorID:   actor.UserID,
		ActorRole: actor.Role,
		Affected:  capacity,
		Error:     operationError,
	})
	return operationError
}

// SetReservationsPaused lets an administrator pause or resume new bookings.
func (service *Service) SetReservationsPaused(ctx context.Context, actor Actor, paused bool) error {
	operationError := func() error {
		if !actor.IsAdmin() {
			return fmt.Errorf("%w: administrator role required", ErrForbidden)
		}
		return (&Settings{store: service.store}).SetReservationsPaused(ctx, paused)
	}()
	service.logOperation(ctx, OperationLog{
		Operation: operationSetPaused,
		ActorID:   actor.UserID,
		ActorRole: actor.Role,
		Error:     operationError,
	})
	return operationError
}

// authorize is the single capability check preceding every transition:
// administrators act on anything, users only on reservations they own.
func authorize(actor Actor, reservation Reservation) error {
	if actor.IsAdmin() {
		return nil
	}
	if reservation.OwnedBy(actor.UserID) {
		return nil
	}
	return fmt.Errorf("%w: reservation %s", ErrForbidden, reservation.ID)
}

func (service *Service) lockSlot(ctx context.Context, slot Slot) (func(), error) {
	unlock, err := service.locker.Lock(ctx, slot)
	if err != nil {
		return nil, WrapError(errorOperationService, errorSubjectSlotLock, errorCodeAcquire, err)
	}
	return unlock, nil
}

func (service *Service) lockOwner(ctx context.Context, owner UserID) (func(), error) {
	unlock, err := service.ownerLocker.LockOwner(ctx, owner)
	if err != nil {
		return nil, WrapError(errorOperationService, errorSubjectOwnerLock, errorCodeAcquire, err)
	}
	return unlock, nil
}

func validateSlotAndSize(slot Slot, size PartySize) error {
	if slot.IsZero() {
		return fmt.Errorf("%w: slot is required", ErrInvalidSlot)
	}
	if size.Int() <= 0 {
		return fmt.Errorf("%w: must be greater than zero", ErrInvalidPartySize)
	}
	return nil
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}
