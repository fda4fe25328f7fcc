package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

var (
	parser5 = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	parser6 = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
)

// ParseFlexible parses a cron expression with 5 fields, or 6 when it starts
// with seconds, and returns the number of fields. Macros count as 5. A
// leading TZ= or CRON_TZ= location is not a field.
func ParseFlexible(expr string) (int, error) {
	e := strings.TrimSpace(expr)
	if e == "" {
		return 0, errors.New("empty cron expression")
	}

	body := e
	if strings.HasPrefix(e, "TZ=") || strings.HasPrefix(e, "CRON_TZ=") {
		_, body, _ = strings.Cut(e, " ")
		body = strings.TrimSpace(body)
	}

	// Macros / @every handled by ParseStandard
	if strings.HasPrefix(body, "@") {
		if _, err := cron.ParseStandard(e); err != nil {
			return 0, err
		}
		return 5, nil
	}

	switch n := len(strings.Fields(body)); n {
	case 5:
		if _, err := parser5.Parse(e); err != nil {
			return 0, err
		}
		return 5, nil
	case 6:
		if _, err := parser6.Parse(e); err != nil {
			return 0, err
		}
		return 6, nil
	default:
		return 0, fmt.Errorf("invalid field count: got %d (want 5 or 6)", n)
	}
}
