// Package template expands a user-authored checklist note into concrete
// task specs for a target calendar day.
//
// The grammar is line-oriented. A markdown unchecked checkbox becomes a
// task; {{if:EXPR}} / {{endif}} lines open and close condition scopes; a
// {{if:EXPR}} with trailing text conditions that one line only. Everything
// else (headings, prose, blank lines) is ignored. The parser never errors:
// a broken template, unbalanced blocks included, degrades to fewer tasks,
// and an invalid target date degrades to none. A template must never be
// able to block dispatch creation.
package template

import (
	"regexp"
	"strings"
	"time"

	"github.com/sottey/dispatchtoo/internal/calendar"
)

// Spec is one materializable task: title plus optional YYYY-MM-DD due day.
type Spec struct {
	Title   string  `json:"title"`
	DueDate *string `json:"dueDate,omitempty"`
}

var (
	taskLineRe  = regexp.MustCompile(`^\s*[-*]\s+\[\s\]\s+(.+)$`)
	datePlaceRe = regexp.MustCompile(`\{\{date:([^}]*)\}\}`)
	dueSuffixRe = regexp.MustCompile(`\s+>(\d{4}-\d{2}-\d{2})\s*$`)
)

// Parse evaluates content against targetDate and returns the task specs in
// source order. An invalid targetDate yields nil, not an error.
func Parse(content, targetDate string) []Spec {
	day, ok := calendar.ParseDay(targetDate)
	if !ok {
		return nil
	}

	var specs []Spec
	// Stack of enclosing {{if:...}} results; a line emits only when every
	// enclosing scope evaluated true.
	var scopes []bool

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(strings.TrimSuffix(line, "\r"))

		if trimmed == "{{endif}}" {
			// Unmatched endif is a no-op, not an error.
			if len(scopes) > 0 {
				scopes = scopes[:len(scopes)-1]
			}
			continue
		}

		if expr, rest, ok := cutDirective(trimmed); ok {
			if rest != "" {
				// Inline form: conditions this one line, pushes no scope.
				if scopesTrue(scopes) && evalExpr(expr, day) {
					if spec, ok := parseTaskLine(rest, day); ok {
						specs = append(specs, spec)
					}
				}
				continue
			}
			scopes = append(scopes, evalExpr(expr, day))
			continue
		}

		if !scopesTrue(scopes) {
			continue
		}
		if spec, ok := parseTaskLine(trimmed, day); ok {
			specs = append(specs, spec)
		}
	}

	return specs
}

// cutDirective splits a "{{if:EXPR}}REST" line into its expression and
// whatever trails the closing braces. ok is false for non-directive lines.
func cutDirective(line string) (expr, rest string, ok bool) {
	const open = "{{if:"
	if !strings.HasPrefix(line, open) {
		return "", "", false
	}
	end := strings.Index(line, "}}")
	if end < len(open) {
		return "", "", false
	}
	return line[len(open):end], strings.TrimSpace(line[end+2:]), true
}

func scopesTrue(scopes []bool) bool {
	for _, s := range scopes {
		if !s {
			return false
		}
	}
	return true
}

// parseTaskLine matches the checkbox form and produces a spec: date
// placeholders rendered, then a trailing " >YYYY-MM-DD" due suffix (when it
// names a real day) split off. An empty remaining title produces nothing.
func parseTaskLine(line string, day time.Time) (Spec, bool) {
	m := taskLineRe.FindStringSubmatch(line)
	if m == nil {
		return Spec{}, false
	}
	text := datePlaceRe.ReplaceAllStringFunc(m[1], func(tok string) string {
		pattern := datePlaceRe.FindStringSubmatch(tok)[1]
		return calendar.RenderPattern(day, pattern)
	})

	var due *string
	if sm := dueSuffixRe.FindStringSubmatch(text); sm != nil && calendar.Valid(sm[1]) {
		d := sm[1]
		due = &d
		text = text[:len(text)-len(sm[0])]
	}

	title := strings.TrimSpace(text)
	if title == "" {
		return Spec{}, false
	}
	return Spec{Title: title, DueDate: due}, true
}
