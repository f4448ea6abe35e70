package reservas

import (
	"context"
	"time"
)

// ExpirePending cancels reservations still pending after the configured TTL.
// No notification is sent. It returns how many reservations were canceled.
func (service *Service) ExpirePending(ctx context.Context) (int, error) {
	cutoff := service.nowFn().Add(-service.pendingTTL)
	expired := 0
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		stale, err := transactionStore.ListPendingCreatedBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		for _, reservation := range stale {
			if err := transactionStore.UpdateReservation(ctx, service.markCanceled(reservation, "")); err != nil {
				return err
			}
		}
		expired = len(stale)
		return nil
	})
	if operationError != nil {
		expired = 0
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationExpirePending,
		Affected:  expired,
		Error:     operationError,
	})
	return expired, operationError
}

// RunExpiry calls ExpirePending every interval until ctx is done.
func (service *Service) RunExpiry(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = service.pendingTTL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = service.ExpirePending(ctx)
		}
	}
}
