package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBatchSize   = 50
	defaultMaxAttempts = 5
	defaultLease       = time.Minute
	defaultBaseBackoff = 30 * time.Second
	maxBackoff         = 30 * time.Minute
)

// DispatcherConfig tunes outbox delivery.
type DispatcherConfig struct {
	BatchSize   int
	MaxAttempts int
	Lease       time.Duration
	BaseBackoff time.Duration
}

// Dispatcher drains the outbox into a Sender with bounded retries.
type Dispatcher struct {
	store       OutboxStore
	sender      Sender
	logger      *zap.Logger
	nowFn       func() time.Time
	batchSize   int
	maxAttempts int
	lease       time.Duration
	baseBackoff time.Duration
}

// NewDispatcher validates dependencies and applies defaults.
func NewDispatcher(store OutboxStore, sender Sender, logger *zap.Logger, now func() time.Time, config DispatcherConfig) (*Dispatcher, error) {
	if store == nil || sender == nil || now == nil {
		return nil, fmt.Errorf("%w: store, sender and clock are required", ErrInvalidDispatcherConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := &Dispatcher{
		store:       store,
		sender:      sender,
		logger:      logger,
		nowFn:       now,
		batchSize:   config.BatchSize,
		maxAttempts: config.MaxAttempts,
		lease:       config.Lease,
		baseBackoff: config.BaseBackoff,
	}
	if dispatcher.batchSize <= 0 {
		dispatcher.batchSize = defaultBatchSize
	}
	if dispatcher.maxAttempts <= 0 {
		dispatcher.maxAttempts = defaultMaxAttempts
	}
	if dispatcher.lease <= 0 {
		dispatcher.lease = defaultLease
	}
	if dispatcher.baseBackoff <= 0 {
		dispatcher.baseBackoff = defaultBaseBackoff
	}
	return dispatcher, nil
}

// RunOnce claims one batch and attempts delivery of each message. It returns
// the number of messages delivered.
func (dispatcher *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	messages, err := dispatcher.store.ClaimDue(ctx, dispatcher.nowFn().UTC(), dispatcher.batchSize, dispatcher.lease)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for _, message := range messages {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		ok, err := dispatcher.deliver(ctx, message)
		if err != nil {
			return delivered, err
		}
		if ok {
			delivered++
		}
	}
	return delivered, nil
}

func (dispatcher *Dispatcher) deliver(ctx context.Context, message Message) (bool, error) {
	attempts := message.Attempts + 1
	email, renderErr := Render(message)
	if renderErr != nil {
		dispatcher.logger.Error("notification render failed", zap.String("message_id", message.ID), zap.Error(renderErr))
		return false, dispatcher.store.MarkDead(ctx, message.ID, attempts, renderErr.Error())
	}
	sendErr := dispatcher.sender.Send(ctx, email)
	if sendErr == nil {
		dispatcher.logger.Info("notification sent",
			zap.String("message_id", message.ID),
			zap.String("kind", string(message.Kind)),
			zap.Uint64("reservation_id", message.Payload.ReservationID),
		)
		return true, dispatcher.store.MarkSent(ctx, message.ID, dispatcher.nowFn().UTC())
	}
	if attempts >= dispatcher.maxAttempts {
		dispatcher.logger.Error("notification abandoned",
			zap.String("message_id", message.ID),
			zap.Int("attempts", attempts),
			zap.Error(sendErr),
		)
		return false, dispatcher.store.MarkDead(ctx, message.ID, attempts, sendErr.Error())
	}
	next := dispatcher.nowFn().UTC().Add(dispatcher.backoff(attempts))
	dispatcher.logger.Warn("notification retry scheduled",
		zap.String("message_id", message.ID),
		zap.Int("attempts", attempts),
		zap.Time("next_attempt", next),
		zap.Error(sendErr),
	)
	return false, dispatcher.store.MarkRetry(ctx, message.ID, attempts, next, sendErr.Error())
}

// backoff doubles per attempt and is capped.
func (dispatcher *Dispatcher) backoff(attempts int) time.Duration {
	delay := dispatcher.baseBackoff
	for index := 1; index < attempts; index++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// Run polls the outbox until ctx is canceled.
func (dispatcher *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := dispatcher.RunOnce(ctx); err != nil && ctx.Err() == nil {
				dispatcher.logger.Error("notification dispatch failed", zap.Error(err))
			}
		}
	}
}
