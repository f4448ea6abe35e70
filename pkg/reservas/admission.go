package reservas

import "context"

// Availability describes seat usage at one slot.
type Availability struct {
	Slot      Slot
	Capacity  int
	Occupied  int
	Remaining int
}

// Admits reports whether seats fit into the remaining capacity. The boundary
// is inclusive.
func (availability Availability) Admits(seats PartySize) bool {
	return seats.Int() <= availability.Remaining
}

// admission is one booking or edit request passing through the checks.
type admission struct {
	slot      Slot
	partySize PartySize
	owner     *UserID
	editing   ReservationID
}

func loadAvailability(ctx context.Context, store Store, slot Slot, exclude ReservationID) (Availability, error) {
	settings := &Settings{store: store}
	capacity, err := settings.MaxCapacity(ctx)
	if err != nil {
		return Availability{}, err
	}
	occupied, err := store.SumPartySize(ctx, slot, exclude)
	if err != nil {
		return Availability{}, err
	}
	remaining := capacity - occupied
	if remaining < 0 {
		remaining = 0
	}
	return Availability{Slot: slot, Capacity: capacity, Occupied: occupied, Remaining: remaining}, nil
}

func checkReservationLimit(ctx context.Context, store Store, ownerID UserID) (bool, error) {
	count, err := store.CountReservationsByOwner(ctx, ownerID)
	if err != nil {
		return false, err
	}
	return count < MaxReservationsPerUser, nil
}

// admitNew runs the creation checks in order: pause flag, availability,
// per-user limit (owned bookings only), party ceiling.
func admitNew(ctx context.Context, store Store, request admission) error {
	paused, err := (&Settings{store: store}).ReservationsPaused(ctx)
	if err != nil {
		return err
	}
	if paused {
		return ErrReservationsPaused
	}
	if err := admitSeats(ctx, store, request); err != nil {
		return err
	}
	if request.owner != nil {
		allowed, err := checkReservationLimit(ctx, store, *request.owner)
		if err != nil {
			return err
		}
		if !allowed {
			return ErrReservationLimitReached
		}
	}
	return admitPartySize(request.partySize)
}

// admitEdit re-runs availability and the party ceiling. Edits never count
// against the per-user limit.
func admitEdit(ctx context.Context, store Store, request admission) error {
	if err := admitSeats(ctx, store, request); err != nil {
		return err
	}
	return admitPartySize(request.partySize)
}

func admitSeats(ctx context.Context, store Store, request admission) error {
	availability, err := loadAvailability(ctx, store, request.slot, request.editing)
	if err != nil {
		return err
	}
	if !availability.Admits(request.partySize) {
		return ErrSlotUnavailable
	}
	return nil
}

func admitPartySize(size PartySize) error {
	if size.Int() > MaxSelfServicePartySize {
		return ErrPartyTooLarge
	}
	return nil
}

// CheckAvailability reports whether requested seats fit at slot.
func (service *Service) CheckAvailability(ctx context.Context, slot Slot, requested PartySize) (bool, error) {
	availability, err := loadAvailability(ctx, service.store, slot, 0)
	if err != nil {
		return false, err
	}
	return availability.Admits(requested), nil
}

// Availability returns the seat usage at slot.
func (service *Service) Availability(ctx context.Context, slot Slot) (Availability, error) {
	return loadAvailability(ctx, service.store, slot, 0)
}

// CheckReservationLimit reports whether ownerID may book another reservation.
func (service *Service) CheckReservationLimit(ctx context.Context, ownerID UserID) (bool, error) {
	return checkReservationLimit(ctx, service.store, ownerID)
}
