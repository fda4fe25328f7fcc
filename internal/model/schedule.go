package model

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrISOFormat     = errors.New("invalid ISO8601 duration")
	ErrScheduleEmpty = errors.New("schedule needs either cron or duration")
	ErrScheduleBoth  = errors.New("schedule can't have both cron and duration")
)

// Validate checks the shape of a schedule. The cron expression itself is
// validated by the service which owns the cron parser.
func (s Schedule) Validate() error {
	switch {
	case s.Cron == "" && s.Duration == "":
		return fmt.Errorf("%s: %w", s.Workflow, ErrScheduleEmpty)
	case s.Cron != "" && s.Duration != "":
		return fmt.Errorf("%s: %w", s.Workflow, ErrScheduleBoth)
	case s.Duration != "":
		d, err := ParseISODuration(s.Duration)
		if err != nil {
			return fmt.Errorf("%s: parsing duration %q: %w", s.Workflow, s.Duration, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s: duration %q must be positive", s.Workflow, s.Duration)
		}
	}
	return nil
}

var isoDurationRx = regexp.MustCompile(`^P((?P<day>\d+)D)?(T?(?:(?P<hour>[+-]?\d+)H)?(?:(?P<minute>[+-]?\d+)M)?(?:(?P<second>[+-]?\d+(?:[.,]\d+)?)S)?)?$`)

var isoUnits = map[string]time.Duration{
	"day":    24 * time.Hour,
	"hour":   time.Hour,
	"minute": time.Minute,
	"second": time.Second,
}

// ParseISODuration parses the day and time subset of ISO8601 durations,
// e.g. P1D, PT30M or P1DT2H3.5S. Years, months and weeks are rejected.
func ParseISODuration(dur string) (time.Duration, error) {
	if dur == "" || dur == "P" || dur == "PT" || !isoDurationRx.MatchString(dur) {
		return 0, ErrISOFormat
	}
	match := isoDurationRx.FindStringSubmatch(dur)

	// without T, P2M would mean two months
	hasT := strings.Contains(dur, "T")
	hasHMS := false

	var ret time.Duration
	for i, name := range isoDurationRx.SubexpNames() {
		part := match[i]
		if i == 0 || name == "" || part == "" {
			continue
		}
		unit, ok := isoUnits[name]
		if !ok {
			return 0, fmt.Errorf("unknown component %s", name)
		}
		if name != "day" {
			hasHMS = true
		}
		if name == "hour" {
			// P1H2M reads as hours and minutes
			hasT = true
		}
		if name == "minute" && !hasT {
			return 0, ErrISOFormat
		}

		num, frac, err := splitNumber(part)
		if err != nil {
			return 0, err
		}
		ret += time.Duration(num) * unit
		if num >= 0 {
			ret += time.Duration(frac * float64(unit))
		} else {
			ret -= time.Duration(frac * float64(unit))
		}
	}

	// P2DT
	if hasT && !hasHMS {
		return 0, ErrISOFormat
	}
	return ret, nil
}

func splitNumber(s string) (num int, frac float64, err error) {
	s = strings.Replace(s, ",", ".", 1)
	a, b, ok := strings.Cut(s, ".")
	if ok {
		if len(b) > 9 {
			return 0, 0, ErrISOFormat
		}
		f, err := strconv.Atoi(b)
		if err != nil {
			return 0, 0, fmt.Errorf("parsing fraction: %w", err)
		}
		if f != 0 {
			frac = float64(f) / math.Pow10(len(b))
		}
	}
	num, err = strconv.Atoi(a)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing number: %w", err)
	}
	return num, frac, nil
}
