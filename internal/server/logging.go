package server

import (
	"context"

	"github.com/MarkoPoloResearchLab/reservas/pkg/reservas"
	"go.uber.org/zap"
)

// operationLogger forwards domain operation records to zap.
type operationLogger struct {
	logger *zap.Logger
}

func newOperationLogger(logger *zap.Logger) *operationLogger {
	return &operationLogger{logger: logger.Named("reservas")}
}

func (logger *operationLogger) LogOperation(_ context.Context, entry reservas.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	if !entry.ActorID.IsZero() {
		fields = append(fields, zap.String("actor_id", entry.ActorID.String()), zap.String("actor_role", string(entry.ActorRole)))
	}
	if entry.ReservationID != 0 {
		fields = append(fields, zap.Uint64("reservation_id", entry.ReservationID.Uint64()))
	}
	if !entry.Slot.IsZero() {
		fields = append(fields, zap.String("slot", entry.Slot.String()))
	}
	if entry.PartySize > 0 {
		fields = append(fields, zap.Int("party_size", entry.PartySize.Int()))
	}
	if entry.Affected != 0 {
		fields = append(fields, zap.Int("affected", entry.Affected))
	}
	if entry.Error == nil {
		logger.logger.Info("operation", fields...)
		return
	}
	fields = append(fields, zap.Error(entry.Error), zap.String("error_kind", string(reservas.KindOf(entry.Error))))
	if reservas.KindOf(entry.Error) == reservas.ErrorKindTransient {
		logger.logger.Error("operation", fields...)
		return
	}
	logger.logger.Info("operation", fields...)
}
