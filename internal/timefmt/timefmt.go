// Package timefmt renders message timestamps for display.
package timefmt

import (
	"fmt"
	"time"
)

// Style selects how a single date or time component is printed.
// The zero value omits the component.
type Style string

const (
	Numeric  Style = "numeric"
	TwoDigit Style = "2-digit"
	Long     Style = "long"
	Short    Style = "short"
)

type Options struct {
	Weekday Style
	Year    Style
	Month   Style
	Day     Style
	Hour    Style
	Minute  Style
	Hour12  bool
}

var (
	// SentAtOptions is the default used for message timestamps,
	// e.g. "Monday, January 5, 3:04 PM".
	SentAtOptions = Options{
		Weekday: Long,
		Month:   Long,
		Day:     Numeric,
		Hour:    Numeric,
		Minute:  Numeric,
		Hour12:  true,
	}

	// DayOptions is used by Relative for anything older than a day.
	DayOptions = Options{
		Day:     Numeric,
		Weekday: Long,
	}

	defaultOptions = Options{Year: Numeric, Month: Numeric, Day: Numeric}
)

type Formatter struct {
	locale   locale
	location *time.Location
	now      func() time.Time
}

// New returns a formatter for the given BCP 47 locale. Unsupported or
// malformed locales fall back to English; a nil location means UTC.
func New(localeName string, location *time.Location) *Formatter {
	if location == nil {
		location = time.UTC
	}
	return &Formatter{
		locale:   lookupLocale(localeName),
		location: location,
		now:      time.Now,
	}
}

// Format renders t according to opts. Zero Options print a numeric date.
func (f *Formatter) Format(t time.Time, opts Options) string {
	if opts == (Options{}) {
		opts = defaultOptions
	}
	t = t.In(f.location)

	date := f.date(t, opts)
	clock := f.clock(t, opts)
	return join(", ", date, clock)
}

func (f *Formatter) date(t time.Time, opts Options) string {
	day := number(t.Day(), opts.Day)
	year := number(t.Year(), opts.Year)
	if opts.Year == TwoDigit {
		year = fmt.Sprintf("%02d", t.Year()%100)
	}

	var core string
	switch opts.Month {
	case Long:
		name := f.locale.month(t, false)
		if day != "" {
			name = f.locale.monthAfterDay(t)
		}
		core = f.locale.textDate(day, name, year)
	case Short:
		core = f.locale.textDate(day, f.locale.month(t, true), year)
	case Numeric, TwoDigit:
		core = f.locale.numericDate(day, number(int(t.Month()), opts.Month), year)
	default:
		if day != "" && year == "" {
			core = day
		} else {
			core = join(" ", day, year)
		}
	}

	var weekday string
	switch opts.Weekday {
	case Long:
		weekday = f.locale.weekday(t, false)
	case Short, Numeric, TwoDigit:
		weekday = f.locale.weekday(t, true)
	}

	switch {
	case weekday == "":
		return core
	case core == "":
		return weekday
	case opts.Month == "" && opts.Year == "":
		return f.locale.weekdayDay(weekday, day)
	default:
		return weekday + ", " + core
	}
}

func (f *Formatter) clock(t time.Time, opts Options) string {
	if opts.Hour == "" && opts.Minute == "" {
		return ""
	}
	if opts.Hour == "" {
		return number(t.Minute(), opts.Minute)
	}

	hour := t.Hour()
	if opts.Hour12 {
		hour %= 12
		if hour == 0 {
			hour = 12
		}
	}

	out := number(hour, opts.Hour)
	if opts.Minute != "" {
		out += fmt.Sprintf(":%02d", t.Minute())
	}
	if opts.Hour12 {
		if t.Hour() < 12 {
			out += " " + f.locale.am
		} else {
			out += " " + f.locale.pm
		}
	}
	return out
}

func number(n int, style Style) string {
	switch style {
	case "":
		return ""
	case TwoDigit:
		return fmt.Sprintf("%02d", n)
	default:
		return fmt.Sprintf("%d", n)
	}
}
