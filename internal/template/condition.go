package template

import (
	"strconv"
	"strings"
	"time"

	"github.com/sottey/dispatchtoo/internal/calendar"
)

// evalExpr evaluates "clause&clause&..." as a conjunction. A clause with no
// "=", or with a key this parser does not know, makes the whole expression
// false rather than erroring.
func evalExpr(expr string, day time.Time) bool {
	for _, clause := range strings.Split(expr, "&") {
		if !evalClause(strings.TrimSpace(clause), day) {
			return false
		}
	}
	return true
}

func evalClause(clause string, day time.Time) bool {
	key, list, found := strings.Cut(clause, "=")
	if !found {
		return false
	}
	values := strings.Split(list, ",")
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "day":
		return matchWeekday(values, calendar.DayOfWeek(day))
	case "dom":
		return matchDayOfMonth(values, calendar.DayOfMonth(day))
	case "month":
		return matchMonth(values, calendar.Month(day))
	default:
		return false
	}
}

// matchWeekday accepts three-letter or full weekday names plus the
// "weekday" (Mon-Fri) and "weekend" (Sat-Sun) groups. Tokens it does not
// recognize match nothing, so day=bogus is false for every date.
func matchWeekday(tokens []string, wd time.Weekday) bool {
	full := strings.ToLower(wd.String())
	for _, tok := range tokens {
		tok = strings.ToLower(strings.TrimSpace(tok))
		switch tok {
		case "weekday":
			if wd >= time.Monday && wd <= time.Friday {
				return true
			}
		case "weekend":
			if wd == time.Saturday || wd == time.Sunday {
				return true
			}
		case full, full[:3]:
			return true
		}
	}
	return false
}

func matchDayOfMonth(tokens []string, dom int) bool {
	for _, tok := range tokens {
		n, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			continue
		}
		if n == dom {
			return true
		}
	}
	return false
}

func matchMonth(tokens []string, m time.Month) bool {
	full := strings.ToLower(m.String())
	for _, tok := range tokens {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == full || tok == full[:3] {
			return true
		}
	}
	return false
}
