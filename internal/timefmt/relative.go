package timefmt

import (
	"fmt"
	"time"
)

// Relative returns a short label for how long ago t happened relative to
// now. Boundaries use whole elapsed minutes, hours and days, not calendar
// days. Timestamps in the future yield "".
func (f *Formatter) Relative(now, t time.Time) string {
	diff := now.Sub(t)

	switch {
	case diff < 0:
		return ""
	case diff < time.Minute:
		return "Just now"
	case diff < 2*time.Minute:
		return "1 min"
	case diff < time.Hour:
		return fmt.Sprintf("%d mins", int(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours", int(diff/time.Hour))
	default:
		return f.Format(t, DayOptions)
	}
}

// RelativeNow is Relative measured against the formatter's clock.
func (f *Formatter) RelativeNow(t time.Time) string {
	return f.Relative(f.now(), t)
}
