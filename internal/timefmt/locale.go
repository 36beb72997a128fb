package timefmt

import (
	"strconv"
	"strings"
	"time"

	"github.com/goodsign/monday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// locale pairs the month and weekday names of a monday locale with the
// rules for joining date parts.
type locale struct {
	tag   language.Tag
	names monday.Locale
	// lowercase names, as Russian dates are written mid-sentence.
	lowercase bool

	am, pm string

	// numericDate joins numeric day, month and year parts.
	numericDate func(day, month, year string) string
	// textDate joins a spelled-out month with day and year.
	textDate func(day, month, year string) string
	// weekdayDay is used when only the day of month accompanies the weekday.
	weekdayDay func(weekday, day string) string
}

var english = locale{
	tag:   language.English,
	names: monday.LocaleEnUS,
	am:    "AM",
	pm:    "PM",
	numericDate: func(day, month, year string) string {
		return join("/", month, day, year)
	},
	textDate: func(day, month, year string) string {
		md := join(" ", month, day)
		if year == "" {
			return md
		}
		return join(", ", md, year)
	},
	weekdayDay: func(weekday, day string) string {
		return day + " " + weekday
	},
}

var russian = locale{
	tag:       language.Russian,
	names:     monday.LocaleRuRU,
	lowercase: true,
	am:        "AM",
	pm:        "PM",
	numericDate: func(day, month, year string) string {
		return join(".", day, month, year)
	},
	textDate: func(day, month, year string) string {
		return join(" ", day, month, year)
	},
	weekdayDay: func(weekday, day string) string {
		return weekday + ", " + day
	},
}

// supported is ordered by preference; the first entry is the fallback.
var (
	supported = []language.Tag{language.English, language.Russian}
	locales   = []locale{english, russian}
	matcher   = language.NewMatcher(supported)
)

func lookupLocale(name string) locale {
	tag, err := language.Parse(name)
	if err != nil {
		return english
	}
	_, i, _ := matcher.Match(tag)
	return locales[i]
}

func (l locale) name(t time.Time, layout string) string {
	s := monday.Format(t, layout, l.names)
	if l.lowercase {
		// Casers keep state, so one is made per call.
		s = cases.Lower(l.tag).String(s)
	}
	return s
}

func (l locale) weekday(t time.Time, short bool) string {
	if short {
		return l.name(t, "Mon")
	}
	return l.name(t, "Monday")
}

func (l locale) month(t time.Time, short bool) string {
	if short {
		return l.name(t, "Jan")
	}
	return l.name(t, "January")
}

// monthAfterDay returns the long month name in the form used after a day
// number, which is the genitive case in Russian.
func (l locale) monthAfterDay(t time.Time) string {
	return strings.TrimPrefix(l.name(t, "2 January"), strconv.Itoa(t.Day())+" ")
}

func join(sep string, parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += sep
		}
		out += p
	}
	return out
}
