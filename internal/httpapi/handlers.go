package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/MarkoPoloResearchLab/reservas/pkg/reservas"
	"github.com/gin-gonic/gin"
)

func (handler *httpHandler) requestContext(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
}

func (handler *httpHandler) bindJSON(ctx *gin.Context, target any) bool {
	if err := ctx.ShouldBindJSON(target); err != nil && !errors.Is(err, io.EOF) {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "Corpo JSON inválido."))
		return false
	}
	return true
}

func (handler *httpHandler) reservationID(ctx *gin.Context) (reservas.ReservationID, bool) {
	id, err := reservas.ParseReservationID(ctx.Param("id"))
	if err != nil {
		handler.respondError(ctx, err)
		return 0, false
	}
	return id, true
}

func (handler *httpHandler) handleCreate(ctx *gin.Context) {
	var request reservationRequest
	if !handler.bindJSON(ctx, &request) {
		return
	}
	slot, partySize, err := request.parse()
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	reservation, err := handler.service.CreateReservation(requestCtx, actorFrom(ctx), reservas.ReservationRequest{Slot: slot, PartySize: partySize})
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, toReservationResponse(reservation))
}

func (handler *httpHandler) handleCreateGuest(ctx *gin.Context) {
	var request guestReservationRequest
	if !handler.bindJSON(ctx, &request) {
		return
	}
	slot, partySize, err := request.parse()
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	contact, err := reservas.NewContact(request.Name, request.Email, request.Phone)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	reservation, err := handler.service.CreateGuestReservation(requestCtx, reservas.GuestReservationRequest{Slot: slot, PartySize: partySize, Contact: contact})
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, toReservationResponse(reservation))
}

// handleConfirmToken always redirects to the frontend; unknown tokens land on
// the already-confirmed page.
func (handler *httpHandler) handleConfirmToken(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	outcome, err := handler.service.ConfirmByToken(requestCtx, ctx.Param("token"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	target := confirmedRedirectPath
	if outcome.AlreadyConfirmed {
		target = alreadyConfirmedRedirect
	}
	ctx.Redirect(http.StatusFound, strings.TrimRight(handler.cfg.FrontendURL, "/")+target)
}

func (handler *httpHandler) handleGet(ctx *gin.Context) {
	id, ok := handler.reservationID(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	reservation, err := handler.service.GetReservation(requestCtx, actorFrom(ctx), id)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toReservationResponse(reservation))
}

func (handler *httpHandler) handleList(ctx *gin.Context) {
	filter, err := searchFilter(ctx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	query := reservas.ListQuery{Filter: filter, Page: pageParam(ctx)}
	if rawOwner := ctx.Query("user_id"); rawOwner != "" {
		ownerID, err := reservas.NewUserID(rawOwner)
		if err != nil {
			handler.respondError(ctx, err)
			return
		}
		query.OwnerID = &ownerID
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	page, err := handler.service.ListReservations(requestCtx, actorFrom(ctx), query)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toPageResponse(page))
}

func (handler *httpHandler) handleUpdate(ctx *gin.Context) {
	id, ok := handler.reservationID(ctx)
	if !ok {
		return
	}
	var request reservationRequest
	if !handler.bindJSON(ctx, &request) {
		return
	}
	slot, partySize, err := request.parse()
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	reservation, err := handler.service.UpdateReservation(requestCtx, actorFrom(ctx), id, reservas.ReservationChanges{Slot: slot, PartySize: partySize})
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toReservationResponse(reservation))
}

func (handler *httpHandler) handleCancel(ctx *gin.Context) {
	id, ok := handler.reservationID(ctx)
	if !ok {
		return
	}
	var request cancelRequest
	if !handler.bindJSON(ctx, &request) {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	reservation, err := handler.service.CancelReservation(requestCtx, actorFrom(ctx), id, request.Reason)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toReservationResponse(reservation))
}

func (handler *httpHandler) handleConfirm(ctx *gin.Context) {
	id, ok := handler.reservationID(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	reservation, err := handler.service.ConfirmReservation(requestCtx, actorFrom(ctx), id)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toReservationResponse(reservation))
}

func (handler *httpHandler) handleDelete(ctx *gin.Context) {
	id, ok := handler.reservationID(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	if err := handler.service.DeleteReservation(requestCtx, actorFrom(ctx), id); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (handler *httpHandler) handleReport(ctx *gin.Context) {
	kind, err := reservas.ParseReportPeriod(ctx.Param("periodo"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	filter, err := searchFilter(ctx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	report, err := handler.service.BuildReport(requestCtx, actorFrom(ctx), kind, filter, pageParam(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toReportResponse(report))
}

func (handler *httpHandler) handleSettings(ctx *gin.Context) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	snapshot, err := handler.service.Settings(requestCtx)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, settingsResponse{MaxCapacity: snapshot.MaxCapacity, ReservationsPaused: snapshot.ReservationsPaused})
}

func (handler *httpHandler) handleUpdateCapacity(ctx *gin.Context) {
	var request capacityRequest
	if !handler.bindJSON(ctx, &request) {
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	if err := handler.service.UpdateMaxCapacity(requestCtx, actorFrom(ctx), request.MaxCapacity); err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.handleSettings(ctx)
}

func (handler *httpHandler) handlePause(ctx *gin.Context) {
	handler.setPaused(ctx, true)
}

func (handler *httpHandler) handleResume(ctx *gin.Context) {
	handler.setPaused(ctx, false)
}

func (handler *httpHandler) setPaused(ctx *gin.Context, paused bool) {
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	if err := handler.service.SetReservationsPaused(requestCtx, actorFrom(ctx), paused); err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.handleSettings(ctx)
}

func (handler *httpHandler) handleAvailability(ctx *gin.Context) {
	slot, err := reservas.NewSlot(ctx.Query("data"), ctx.Query("hora"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	requested := 1
	if raw := ctx.Query("quantidade"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			handler.respondError(ctx, reservas.ErrInvalidPartySize)
			return
		}
		requested = parsed
	}
	partySize, err := reservas.NewPartySize(requested)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	requestCtx, cancel := handler.requestContext(ctx)
	defer cancel()
	availability, err := handler.service.Availability(requestCtx, slot)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, availabilityResponse{
		Date:      slot.Date(),
		Time:      slot.Time(),
		Capacity:  availability.Capacity,
		Occupied:  availability.Occupied,
		Remaining: availability.Remaining,
		Available: availability.Admits(partySize),
	})
}
