package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	"telegram-channel-autopilot/internal/domain"
)

// A Schedule is the set of wall-clock marks ("HH:MM", 24-hour) at which a
// bot wants to post, interpreted in the process-configured timezone.
// Marks are kept in ascending order so next-occurrence queries can scan
// forward.
type Schedule []string

var markPattern = regexp.MustCompile(`^\d{2}:\d{2}$`)

// ValidateMark reports whether a single "HH:MM" mark is well-formed.
func ValidateMark(mark string) error {
	if !markPattern.MatchString(mark) {
		return fmt.Errorf("%w: schedule mark %q must match HH:MM", domain.ErrInvalidArgument, mark)
	}
	hour, _ := strconv.Atoi(mark[:2])
	minute, _ := strconv.Atoi(mark[3:])
	if hour > 23 || minute > 59 {
		return fmt.Errorf("%w: schedule mark %q out of range", domain.ErrInvalidArgument, mark)
	}
	return nil
}

// NewSchedule validates marks and returns them sorted ascending.
// Duplicates are rejected: a schedule is a set.
func NewSchedule(marks []string) (Schedule, error) {
	seen := make(map[string]struct{}, len(marks))
	out := make(Schedule, 0, len(marks))
	for _, m := range marks {
		if err := ValidateMark(m); err != nil {
			return nil, err
		}
		if _, dup := seen[m]; dup {
			return nil, fmt.Errorf("%w: duplicate schedule mark %q", domain.ErrInvalidArgument, m)
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

// ParseSchedule decodes the persisted JSON form (an array of "HH:MM"
// strings; empty input means an empty schedule) and validates it.
func ParseSchedule(raw string) (Schedule, error) {
	if raw == "" {
		return Schedule{}, nil
	}
	var marks []string
	if err := json.Unmarshal([]byte(raw), &marks); err != nil {
		return nil, fmt.Errorf("%w: schedule is not a JSON array: %v", domain.ErrInvalidArgument, err)
	}
	return NewSchedule(marks)
}

// JSON returns the canonical persisted form. An empty schedule
// serializes as "[]", never as null.
func (s Schedule) JSON() string {
	if len(s) == 0 {
		return "[]"
	}
	b, _ := json.Marshal([]string(s))
	return string(b)
}

// IsDue decides whether a bot with this schedule should post at `now`.
//
// The current time is truncated to minute precision in loc and compared
// for exact equality against each mark; on a match the bot is due unless
// it already posted successfully on the current calendar date. A nil
// lastPostAt (never posted) is due on any matching mark.
//
// Exact-minute matching means the evaluation cadence must be at most one
// minute or due marks are silently skipped.
func (s Schedule) IsDue(lastPostAt *time.Time, now time.Time, loc *time.Location) bool {
	if len(s) == 0 {
		return false
	}
	local := now.In(loc)
	current := local.Format("15:04")
	matched := false
	for _, mark := range s {
		if mark == current {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	if lastPostAt == nil {
		return true
	}
	ly, lm, ld := lastPostAt.In(loc).Date()
	cy, cm, cd := local.Date()
	return !(ly == cy && lm == cm && ld == cd)
}

// NextOccurrence returns the earliest mark strictly after `now` today,
// or the earliest mark tomorrow when none is left. The second return is
// false for an empty schedule. Display only; dispatch decisions always
// go through IsDue.
func (s Schedule) NextOccurrence(now time.Time, loc *time.Location) (time.Time, bool) {
	if len(s) == 0 {
		return time.Time{}, false
	}
	local := now.In(loc)
	current := local.Format("15:04")
	for _, mark := range s {
		if mark > current {
			return markOn(local, mark, loc), true
		}
	}
	return markOn(local.AddDate(0, 0, 1), s[0], loc), true
}

func markOn(day time.Time, mark string, loc *time.Location) time.Time {
	hour, _ := strconv.Atoi(mark[:2])
	minute, _ := strconv.Atoi(mark[3:])
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
}
