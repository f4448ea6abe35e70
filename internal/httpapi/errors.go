package httpapi

import (
	"errors"
	"net/http"

	"github.com/MarkoPoloResearchLab/reservas/pkg/reservas"
	"github.com/gin-gonic/gin"
)

type errorMapping struct {
	target  error
	code    string
	message string
}

// errorMappings are checked in order; the first match wins.
var errorMappings = []errorMapping{
	{target: reservas.ErrReservationsPaused, code: "reservations_paused", message: "Novas reservas foram pausadas pelo estabelecimento, tente mais tarde!"},
	{target: reservas.ErrSlotUnavailable, code: "slot_unavailable", message: "Reservas indisponíveis para esse horário."},
	{target: reservas.ErrReservationLimitReached, code: "reservation_limit_reached", message: "Somente 4 reservas por usuário"},
	{target: reservas.ErrPartyTooLarge, code: "party_too_large", message: "Reservas acima de 12 pessoas devem ser feitas diretamente com o restaurante"},
	{target: reservas.ErrReservationClosed, code: "reservation_closed", message: "Esta reserva já foi cancelada."},
	{target: reservas.ErrReservationNotFound, code: "reservation_not_found", message: "Reserva não encontrada"},
	{target: reservas.ErrReservationNotEditable, code: "reservation_not_editable", message: "Não é possível editar uma reserva já confirmada"},
	{target: reservas.ErrForbidden, code: "forbidden", message: "Você não tem permissão para realizar esta ação."},
	{target: reservas.ErrInvalidSlot, code: "invalid_slot", message: "Data ou hora inválida."},
	{target: reservas.ErrInvalidPartySize, code: "invalid_party_size", message: "Quantidade de pessoas inválida."},
	{target: reservas.ErrInvalidContact, code: "invalid_contact", message: "Nome e e-mail válidos são obrigatórios."},
	{target: reservas.ErrInvalidCapacity, code: "invalid_capacity", message: "A capacidade deve estar entre 1 e 160."},
	{target: reservas.ErrInvalidReservationID, code: "invalid_reservation_id", message: "Identificador de reserva inválido."},
	{target: reservas.ErrInvalidSearchField, code: "invalid_search_field", message: "Campo de busca inválido."},
	{target: reservas.ErrInvalidReportPeriod, code: "invalid_report_period", message: "Período de relatório inválido."},
}

func errorResponse(code string, message string) gin.H {
	return gin.H{"error": gin.H{"code": code, "message": message}}
}

func statusForKind(kind reservas.ErrorKind) int {
	switch kind {
	case reservas.ErrorKindPolicy:
		return http.StatusBadRequest
	case reservas.ErrorKindInvalid:
		return http.StatusUnprocessableEntity
	case reservas.ErrorKindNotFound:
		return http.StatusNotFound
	case reservas.ErrorKindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the transport form of a domain failure.
func (handler *httpHandler) respondError(ctx *gin.Context, err error) {
	kind := reservas.KindOf(err)
	status := statusForKind(kind)
	if status == http.StatusInternalServerError {
		_ = ctx.Error(err)
		ctx.JSON(status, errorResponse("internal_error", "Erro interno. Tente novamente mais tarde."))
		return
	}
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			ctx.JSON(status, errorResponse(mapping.code, mapping.message))
			return
		}
	}
	ctx.JSON(status, errorResponse(string(kind), "Dados inválidos."))
}
