package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// cronField is one matched position of a five-field cron expression. A nil
// values set means the field was "*" and matches everything.
type cronField struct {
	values map[int]bool
}

func (f cronField) anyValue() bool {
	return f.values == nil
}

func (f cronField) matches(v int) bool {
	return f.values == nil || f.values[v]
}

// CronSpec is a parsed five-field cron expression
// (minute hour day-of-month month day-of-week).
type CronSpec struct {
	expr   string
	minute cronField
	hour   cronField
	dom    cronField
	month  cronField
	dow    cronField
}

type cronBounds struct {
	name     string
	min, max int
}

var cronFieldBounds = []cronBounds{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day of month", 1, 31},
	{"month", 1, 12},
	{"day of week", 0, 6},
}

// ParseCronSpec parses a five-field cron expression. Fields accept "*",
// single values, comma lists, ranges (a-b) and steps (*/n or a-b/n).
func ParseCronSpec(expr string) (*CronSpec, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("%w: %q has %d fields, want 5", ErrInvalidCronSpec, expr, len(fields))
	}

	parsed := make([]cronField, 5)
	for i, field := range fields {
		f, err := parseCronField(field, cronFieldBounds[i])
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidCronSpec, expr, err)
		}
		parsed[i] = f
	}

	return &CronSpec{
		expr:   expr,
		minute: parsed[0],
		hour:   parsed[1],
		dom:    parsed[2],
		month:  parsed[3],
		dow:    parsed[4],
	}, nil
}

func parseCronField(field string, bounds cronBounds) (cronField, error) {
	if field == "*" {
		return cronField{}, nil
	}

	values := make(map[int]bool)
	for _, part := range strings.Split(field, ",") {
		lo, hi, step := bounds.min, bounds.max, 1

		rangePart := part
		if i := strings.IndexByte(part, '/'); i >= 0 {
			rangePart = part[:i]
			s, err := strconv.Atoi(part[i+1:])
			if err != nil || s <= 0 {
				return cronField{}, fmt.Errorf("bad step in %s field: %q", bounds.name, part)
			}
			step = s
		}

		switch {
		case rangePart == "*":
			// full range with the step applied
		case strings.Contains(rangePart, "-"):
			seg := strings.SplitN(rangePart, "-", 2)
			a, errA := strconv.Atoi(seg[0])
			b, errB := strconv.Atoi(seg[1])
			if errA != nil || errB != nil || a > b {
				return cronField{}, fmt.Errorf("bad range in %s field: %q", bounds.name, part)
			}
			lo, hi = a, b
		default:
			v, err := strconv.Atoi(rangePart)
			if err != nil {
				return cronField{}, fmt.Errorf("bad value in %s field: %q", bounds.name, part)
			}
			lo, hi = v, v
		}

		if lo < bounds.min || hi > bounds.max {
			return cronField{}, fmt.Errorf("%s value out of range [%d,%d]: %q", bounds.name, bounds.min, bounds.max, part)
		}
		for v := lo; v <= hi; v += step {
			values[v] = true
		}
	}

	return cronField{values: values}, nil
}

// String returns the original expression
func (s *CronSpec) String() string {
	return s.expr
}

// Matches reports whether the instant falls on the schedule (minute
// resolution). Day-of-month and day-of-week combine with OR when both are
// restricted, as classic cron does.
func (s *CronSpec) Matches(t time.Time) bool {
	if !s.minute.matches(t.Minute()) || !s.hour.matches(t.Hour()) || !s.month.matches(int(t.Month())) {
		return false
	}

	domMatch := s.dom.matches(t.Day())
	dowMatch := s.dow.matches(int(t.Weekday()))
	if !s.dom.anyValue() && !s.dow.anyValue() {
		return domMatch || dowMatch
	}
	return domMatch && dowMatch
}
