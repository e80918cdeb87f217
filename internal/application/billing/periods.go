package billing

import (
	"time"

	"copro-backend/internal/domain"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// Period is one call period, already clipped to the requested window and to
// the charge validity window. Dates are inclusive.
type Period struct {
	Start       time.Time
	End         time.Time
	Days        int
	NominalDays int
}

// Full reports whether the period covers its whole nominal length.
func (p Period) Full() bool {
	return p.Days == p.NominalDays
}

// Amount is the part of annual called over this period: annual / divisor,
// prorated on days when the period is shorter than nominal.
func (p Period) Amount(annual decimal.Decimal, freq domain.Frequency) decimal.Decimal {
	divisor := decimal.NewFromInt(int64(freq.Divisor()))
	if p.Full() {
		return annual.Div(divisor).Round(2)
	}
	num := annual.Mul(decimal.NewFromInt(int64(p.Days)))
	den := divisor.Mul(decimal.NewFromInt(int64(p.NominalDays)))
	return num.Div(den).Round(2)
}

// SplitPeriods cuts [start, end] into consecutive periods of the frequency's
// length, starting at start. Period starts keep start's day of month, clamped
// to the last day of shorter months. The last period is clipped to end. Periods fully
// outside [validFrom, validTo] are dropped and the others are clipped to it.
func SplitPeriods(freq domain.Frequency, start, end time.Time, validFrom, validTo *time.Time) []Period {
	months := freq.Months()
	if months == 0 {
		return nil
	}
	start, end = domain.DateOnly(start), domain.DateOnly(end)
	var periods []Period
	for k := 0; ; k++ {
		chunkStart := addMonths(start, k*months)
		if chunkStart.After(end) {
			break
		}
		nominalEnd := addMonths(start, (k+1)*months).Add(-day)

		s, e := chunkStart, nominalEnd
		if e.After(end) {
			e = end
		}
		if validFrom != nil && s.Before(domain.DateOnly(*validFrom)) {
			s = domain.DateOnly(*validFrom)
		}
		if validTo != nil && e.After(domain.DateOnly(*validTo)) {
			e = domain.DateOnly(*validTo)
		}
		if s.After(e) {
			continue
		}
		periods = append(periods, Period{
			Start:       s,
			End:         e,
			Days:        daysInclusive(s, e),
			NominalDays: daysInclusive(chunkStart, nominalEnd),
		})
	}
	return periods
}

func daysInclusive(from, to time.Time) int {
	return int(to.Sub(from)/day) + 1
}

// addMonths moves t by n months, clamping the day to the end of the target month.
func addMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, n, 0)
	last := first.AddDate(0, 1, -1).Day()
	d := t.Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, t.Location())
}
