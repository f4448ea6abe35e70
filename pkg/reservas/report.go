package reservas

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ReportPeriod selects the window a report covers, relative to the service clock.
type ReportPeriod string

const (
	ReportPeriodDay   ReportPeriod = "dia"
	ReportPeriodWeek  ReportPeriod = "semana"
	ReportPeriodMonth ReportPeriod = "mes"
)

// ParseReportPeriod validates a period label.
func ParseReportPeriod(raw string) (ReportPeriod, error) {
	switch ReportPeriod(strings.ToLower(strings.TrimSpace(raw))) {
	case ReportPeriodDay:
		return ReportPeriodDay, nil
	case ReportPeriodWeek:
		return ReportPeriodWeek, nil
	case ReportPeriodMonth:
		return ReportPeriodMonth, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidReportPeriod, raw)
	}
}

// Period is an inclusive range of calendar days.
type Period struct {
	Kind  ReportPeriod
	Start time.Time
	End   time.Time
}

// PeriodFor returns the day, Monday-first week or month containing now.
func PeriodFor(kind ReportPeriod, now time.Time) (Period, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch kind {
	case ReportPeriodDay:
		return Period{Kind: kind, Start: today, End: today}, nil
	case ReportPeriodWeek:
		offset := (int(today.Weekday()) + 6) % 7
		start := today.AddDate(0, 0, -offset)
		return Period{Kind: kind, Start: start, End: start.AddDate(0, 0, 6)}, nil
	case ReportPeriodMonth:
		start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Period{Kind: kind, Start: start, End: start.AddDate(0, 1, -1)}, nil
	default:
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidReportPeriod, kind)
	}
}

// StartDate returns the first day as YYYY-MM-DD.
func (period Period) StartDate() string {
	return period.Start.Format(slotDateLayout)
}

// EndDate returns the last day as YYYY-MM-DD.
func (period Period) EndDate() string {
	return period.End.Format(slotDateLayout)
}

// StatusSummary counts reservations per status.
type StatusSummary struct {
	Total     int
	Confirmed int
	Pending   int
	Canceled  int
}

// Summarize counts days per status.
func Summarize(days []ReservationDay) StatusSummary {
	summary := StatusSummary{Total: len(days)}
	for _, day := range days {
		switch day.Status {
		case ReservationStatusConfirmed:
			summary.Confirmed++
		case ReservationStatusPending:
			summary.Pending++
		case ReservationStatusCanceled:
			summary.Canceled++
		}
	}
	return summary
}

// Report is a dashboard view of one period.
type Report struct {
	Period       Period
	Summary      StatusSummary
	Reservations ReservationPage
	Weekdays     []WeekdayBucket
	Weeks        []WeekOfMonthBucket
}

// BuildReport summarizes the period containing the service clock's today.
// Counts and buckets cover the whole period; filter only narrows the listing.
func (service *Service) BuildReport(ctx context.Context, actor Actor, kind ReportPeriod, filter SearchFilter, page int) (Report, error) {
	if !actor.IsAdmin() {
		return Report{}, fmt.Errorf("%w: administrator role required", ErrForbidden)
	}
	period, err := PeriodFor(kind, service.nowFn())
	if err != nil {
		return Report{}, err
	}
	days, err := service.store.ListReservationDays(ctx, period.StartDate(), period.EndDate())
	if err != nil {
		return Report{}, err
	}
	listing, err := service.store.ListReservations(ctx, ReservationQuery{
		FromDate: period.StartDate(),
		ToDate:   period.EndDate(),
		Filter:   filter,
		Order:    OrderByDate,
		Page:     normalizePage(page),
		PageSize: ReportPageSize,
	})
	if err != nil {
		return Report{}, err
	}
	report := Report{
		Period:       period,
		Summary:      Summarize(days),
		Reservations: listing,
	}
	switch kind {
	case ReportPeriodWeek:
		report.Weekdays = GroupByWeekday(days)
	case ReportPeriodMonth:
		report.Weeks = GroupByWeekOfMonth(period.Start, days)
	}
	return report, nil
}
