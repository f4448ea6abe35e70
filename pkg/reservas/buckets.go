package reservas

import "time"

const daysPerWeekBucket = 7

var weekdayOrder = []struct {
	weekday time.Weekday
	label   string
}{
	{time.Monday, "Segunda-feira"},
	{time.Tuesday, "Terça-feira"},
	{time.Wednesday, "Quarta-feira"},
	{time.Thursday, "Quinta-feira"},
	{time.Friday, "Sexta-feira"},
	{time.Saturday, "Sábado"},
	{time.Sunday, "Domingo"},
}

// WeekdayBucket counts reservations falling on one weekday.
type WeekdayBucket struct {
	Weekday time.Weekday
	Label   string
	Count   int
}

// GroupByWeekday returns seven buckets, Monday first, zero counts included.
func GroupByWeekday(days []ReservationDay) []WeekdayBucket {
	counts := make(map[time.Weekday]int, len(weekdayOrder))
	for _, day := range days {
		counts[day.Date.Weekday()]++
	}
	buckets := make([]WeekdayBucket, 0, len(weekdayOrder))
	for _, entry := range weekdayOrder {
		buckets = append(buckets, WeekdayBucket{
			Weekday: entry.weekday,
			Label:   entry.label,
			Count:   counts[entry.weekday],
		})
	}
	return buckets
}

// WeekOfMonthBucket counts reservations in a 7-day group of the month.
type WeekOfMonthBucket struct {
	Week  int
	Start time.Time
	End   time.Time
	Count int
}

// GroupByWeekOfMonth partitions the month containing month into groups of
// seven days starting on day 1; the last group ends on the month's last day.
// Days outside the month are ignored.
func GroupByWeekOfMonth(month time.Time, days []ReservationDay) []WeekOfMonthBucket {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	buckets := make([]WeekOfMonthBucket, 0, 5)
	for start := first; !start.After(last); start = start.AddDate(0, 0, daysPerWeekBucket) {
		end := start.AddDate(0, 0, daysPerWeekBucket-1)
		if end.After(last) {
			end = last
		}
		buckets = append(buckets, WeekOfMonthBucket{Week: len(buckets) + 1, Start: start, End: end})
	}
	for _, day := range days {
		if day.Date.Year() != first.Year() || day.Date.Month() != first.Month() {
			continue
		}
		buckets[(day.Date.Day()-1)/daysPerWeekBucket].Count++
	}
	return buckets
}
