package reservas

import (
	"context"
	"time"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing reservation operation.
type OperationLog struct {
	Operation     string
	ActorID       UserID
	ActorRole     Role
	ReservationID ReservationID
	Slot          Slot
	PartySize     PartySize
	Affected      int
	Status        string
	Error         error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithSlotLocker replaces the in-process slot locker.
func WithSlotLocker(locker SlotLocker) ServiceOption {
	return func(service *Service) {
		if locker != nil {
			service.locker = locker
		}
	}
}

// WithOwnerLocker replaces the in-process per-user booking locker.
func WithOwnerLocker(locker OwnerLocker) ServiceOption {
	return func(service *Service) {
		if locker != nil {
			service.ownerLocker = locker
		}
	}
}

// WithTokenGenerator replaces the confirmation token source.
func WithTokenGenerator(generate func() (string, error)) ServiceOption {
	return func(service *Service) {
		if generate != nil {
			service.newToken = generate
		}
	}
}

// WithPublicBaseURL sets the origin confirmation links point at.
func WithPublicBaseURL(baseURL string) ServiceOption {
	return func(service *Service) {
		service.publicBaseURL = baseURL
	}
}

// WithPendingTTL sets how long a reservation may remain unconfirmed.
func WithPendingTTL(ttl time.Duration) ServiceOption {
	return func(service *Service) {
		if ttl > 0 {
			service.pendingTTL = ttl
		}
	}
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}
