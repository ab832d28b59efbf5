package services

import (
	"math"
	"time"
)

const billingStep = 6 * time.Minute

// BillableHours rounds the duration of [start,end) up to the next tenth of
// an hour. It works on whole durations so 2h is exactly 2.0, not 2.0000001.
func BillableHours(start, end time.Time) float64 {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	tenths := (d + billingStep - 1) / billingStep
	return float64(tenths) / 10
}

// RentalPrice is ceil(hours*10)/10 * hourlyRate, rounded to paise.
func RentalPrice(start, end time.Time, hourlyRate float64) (hours, price float64) {
	hours = BillableHours(start, end)
	price = math.Round(hours*hourlyRate*100) / 100
	return hours, price
}

// MarketTrend turns the ratio of current to last year's average hourly
// price into a multiplier within [0.8, 1.2]; growth is damped by 0.25.
// lastYear is index-aligned with current and a zero entry means unknown,
// in which case the current average stands in for it.
func MarketTrend(current, lastYear []float64) float64 {
	if len(current) == 0 {
		return 1.0
	}
	avgCurrent := mean(current)

	var sumLast float64
	for i := range current {
		last := avgCurrent
		if i < len(lastYear) && lastYear[i] > 0 {
			last = lastYear[i]
		}
		sumLast += last
	}
	avgLast := sumLast / float64(len(current))

	denom := avgLast
	if denom == 0 {
		denom = 1
	}
	growth := (avgCurrent - avgLast) / denom
	return 1 + math.Max(-0.20, math.Min(0.20, growth*0.25))
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
