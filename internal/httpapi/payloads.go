package httpapi

import (
	"strconv"
	"time"

	"github.com/MarkoPoloResearchLab/reservas/pkg/reservas"
	"github.com/gin-gonic/gin"
)

type reservationRequest struct {
	Date      string `json:"data"`
	Time      string `json:"hora"`
	PartySize int    `json:"quantidade_cadeiras"`
}

func (request reservationRequest) parse() (reservas.Slot, reservas.PartySize, error) {
	slot, err := reservas.NewSlot(request.Date, request.Time)
	if err != nil {
		return reservas.Slot{}, 0, err
	}
	partySize, err := reservas.NewPartySize(request.PartySize)
	if err != nil {
		return reservas.Slot{}, 0, err
	}
	return slot, partySize, nil
}

type guestReservationRequest struct {
	reservationRequest
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type cancelRequest struct {
	Reason string `json:"motivo"`
}

type capacityRequest struct {
	MaxCapacity int `json:"capacidade_maxima"`
}

type reservationResponse struct {
	ID                 uint64     `json:"id"`
	Date               string     `json:"data"`
	Time               string     `json:"hora"`
	PartySize          int        `json:"quantidade_cadeiras"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	Phone              string     `json:"phone,omitempty"`
	Status             string     `json:"status"`
	CancellationReason string     `json:"motivo_cancelamento,omitempty"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func toReservationResponse(reservation reservas.Reservation) reservationResponse {
	return reservationResponse{
		ID:                 reservation.ID.Uint64(),
		Date:               reservation.Slot.Date(),
		Time:               reservation.Slot.Time(),
		PartySize:          reservation.PartySize.Int(),
		Name:               reservation.Contact.Name(),
		Email:              reservation.Contact.Email(),
		Phone:              reservation.Contact.Phone(),
		Status:             reservation.Status.String(),
		CancellationReason: reservation.CancellationReason,
		CanceledAt:         reservation.CanceledAt,
		CreatedAt:          reservation.CreatedAt,
		UpdatedAt:          reservation.UpdatedAt,
	}
}

type pageResponse struct {
	Items    []reservationResponse `json:"data"`
	Total    int                   `json:"total"`
	Page     int                   `json:"current_page"`
	PageSize int                   `json:"per_page"`
	LastPage int                   `json:"last_page"`
}

func toPageResponse(page reservas.ReservationPage) pageResponse {
	items := make([]reservationResponse, 0, len(page.Items))
	for _, reservation := range page.Items {
		items = append(items, toReservationResponse(reservation))
	}
	return pageResponse{
		Items:    items,
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
		LastPage: page.LastPage(),
	}
}

type settingsResponse struct {
	MaxCapacity        int  `json:"capacidade_maxima"`
	ReservationsPaused bool `json:"reservas_pausadas"`
}

type availabilityResponse struct {
	Date      string `json:"data"`
	Time      string `json:"hora"`
	Capacity  int    `json:"capacidade"`
	Occupied  int    `json:"ocupados"`
	Remaining int    `json:"disponiveis"`
	Available bool   `json:"disponivel"`
}

type weekdayResponse struct {
	Label string `json:"dia"`
	Count int    `json:"total"`
}

type weekResponse struct {
	Week  int    `json:"semana"`
	Start string `json:"inicio"`
	End   string `json:"fim"`
	Count int    `json:"total"`
}

type reportResponse struct {
	Period       string            `json:"periodo"`
	Start        string            `json:"inicio"`
	End          string            `json:"fim"`
	Total        int               `json:"total"`
	Confirmed    int               `json:"confirmadas"`
	Pending      int               `json:"pendentes"`
	Canceled     int               `json:"canceladas"`
	Reservations pageResponse      `json:"reservas"`
	Weekdays     []weekdayResponse `json:"por_dia_da_semana,omitempty"`
	Weeks        []weekResponse    `json:"por_semana,omitempty"`
}

func toReportResponse(report reservas.Report) reportResponse {
	response := reportResponse{
		Period:       string(report.Period.Kind),
		Start:        report.Period.StartDate(),
		End:          report.Period.EndDate(),
		Total:        report.Summary.Total,
		Confirmed:    report.Summary.Confirmed,
		Pending:      report.Summary.Pending,
		Canceled:     report.Summary.Canceled,
		Reservations: toPageResponse(report.Reservations),
	}
	for _, bucket := range report.Weekdays {
		response.Weekdays = append(response.Weekdays, weekdayResponse{Label: bucket.Label, Count: bucket.Count})
	}
	for _, bucket := range report.Weeks {
		response.Weeks = append(response.Weeks, weekResponse{
			Week:  bucket.Week,
			Start: bucket.Start.Format(time.DateOnly),
			End:   bucket.End.Format(time.DateOnly),
			Count: bucket.Count,
		})
	}
	return response
}

// searchFilter reads the campo/busca query pair.
func searchFilter(ctx *gin.Context) (reservas.SearchFilter, error) {
	field, err := reservas.ParseSearchField(ctx.Query("campo"))
	if err != nil {
		return reservas.SearchFilter{}, err
	}
	return reservas.SearchFilter{Field: field, Term: ctx.Query("busca")}, nil
}

func pageParam(ctx *gin.Context) int {
	page, err := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
