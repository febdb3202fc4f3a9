package registration

import (
	"math"
	"strconv"
)

// MonthHourCap is the maximum number of operating hours a single month
// may be allocated.
const MonthHourCap = 730

// SumTolerance is the allowed deviation of the percentage total from 100.
const SumTolerance = 0.01

// MonthNames lists the twelve calendar months in order.
var MonthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// MonthEntry is one month of the annual hour allocation. Raw holds the
// user's typed percentage as entered, so partial input like "12." survives
// a round trip without being coerced.
type MonthEntry struct {
	Month      string  `json:"month"`
	Percentage float64 `json:"percentage"`
	Raw        string  `json:"raw,omitempty"`
	Hours      float64 `json:"hours"`
	Error      string  `json:"error,omitempty"`
}

// Distribution allocates annual operating hours across the twelve months.
type Distribution struct {
	Entries [12]MonthEntry `json:"entries"`
	Even    bool           `json:"even"`
}

// ZeroDistribution returns a manual distribution with all percentages zero.
func ZeroDistribution() Distribution {
	var d Distribution
	for i := range d.Entries {
		d.Entries[i].Month = MonthNames[i]
	}
	return d
}

// EvenDistribution returns the fixed even split: 8.33% for the first
// eleven months and 8.37% for December, so the total is exactly 100.00
// regardless of operating hours.
func EvenDistribution(operatingHours float64) Distribution {
	d := ZeroDistribution()
	d.Even = true
	for i := range d.Entries {
		if i == 11 {
			d.Entries[i].Percentage = 8.37
		} else {
			d.Entries[i].Percentage = 8.33
		}
		d.Entries[i].Hours = monthHours(d.Entries[i].Percentage, operatingHours)
	}
	return d
}

// SetEven switches the distribution back to the even split, discarding
// manual percentages, raw input and per-month errors.
func (d Distribution) SetEven(operatingHours float64) Distribution {
	return EvenDistribution(operatingHours)
}

// UpdatePercentage records raw input for a month and, once it parses to a
// number in [0, 100], recomputes the month's hours. Hours above the cap
// clamp the percentage to the maximum valid value and flag the month.
func (d Distribution) UpdatePercentage(month int, raw string, operatingHours float64) (Distribution, error) {
	if month < 0 || month > 11 {
		return d, ErrInvalidMonth
	}
	entry := d.Entries[month]
	entry.Raw = raw

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 || value > 100 {
		// Partial typing state: keep the previous percentage until the
		// input becomes a valid number.
		d.Entries[month] = entry
		d.Even = false
		return d, nil
	}

	entry.Percentage = value
	entry.Hours = monthHours(value, operatingHours)
	entry.Error = ""
	if entry.Hours > MonthHourCap {
		entry.Percentage = MonthHourCap / operatingHours * 100
		entry.Hours = MonthHourCap
		entry.Raw = strconv.FormatFloat(entry.Percentage, 'f', 2, 64)
		entry.Error = "monthly hours may not exceed " + strconv.Itoa(MonthHourCap)
	}
	d.Entries[month] = entry
	d.Even = false
	return d, nil
}

// Recalculate recomputes every month's hours after a change to the
// operating-hours total.
func (d Distribution) Recalculate(operatingHours float64) Distribution {
	for i := range d.Entries {
		d.Entries[i].Hours = monthHours(d.Entries[i].Percentage, operatingHours)
		if d.Entries[i].Hours > MonthHourCap {
			d.Entries[i].Percentage = MonthHourCap / operatingHours * 100
			d.Entries[i].Hours = MonthHourCap
			d.Entries[i].Error = "monthly hours may not exceed " + strconv.Itoa(MonthHourCap)
		} else {
			d.Entries[i].Error = ""
		}
	}
	return d
}

// Total sums the twelve percentages.
func (d Distribution) Total() float64 {
	var total float64
	for i := range d.Entries {
		total += d.Entries[i].Percentage
	}
	return total
}

// Valid reports whether the total is within tolerance of 100 and no month
// exceeds the hour cap.
func (d Distribution) Valid(operatingHours float64) bool {
	if math.Abs(d.Total()-100) > SumTolerance {
		return false
	}
	for i := range d.Entries {
		if monthHours(d.Entries[i].Percentage, operatingHours) > MonthHourCap {
			return false
		}
	}
	return true
}

func monthHours(percentage, operatingHours float64) float64 {
	if operatingHours <= 0 {
		return 0
	}
	return percentage / 100 * operatingHours
}
