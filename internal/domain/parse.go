package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmptyInterval   = errors.New("empty interval")
	ErrInvalidInterval = errors.New("invalid interval")
	ErrTooSmall        = errors.New("interval too small")
	ErrTooLarge        = errors.New("interval too large")
)

var (
	hoursRe   = regexp.MustCompile(`(?i)(\d+)\s*h`)
	minutesRe = regexp.MustCompile(`(?i)(\d+)\s*m`)
)

// ParseIntervalMinutes parses human-friendly intervals like "30m", "1h30m",
// "2h" or a bare number of minutes ("90") into whole minutes.
// Bounds: MinIntervalMin <= v <= MaxIntervalMin.
func ParseIntervalMinutes(s string) (int, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, ErrEmptyInterval
	}

	var total int
	if isAllDigits(s) {
		total, _ = strconv.Atoi(s)
	} else {
		if mh := hoursRe.FindStringSubmatch(s); len(mh) == 2 {
			h, _ := strconv.Atoi(mh[1])
			total += h * 60
		}
		if mm := minutesRe.FindStringSubmatch(s); len(mm) == 2 {
			m, _ := strconv.Atoi(mm[1])
			total += m
		}
		if total == 0 {
			return 0, fmt.Errorf("%w: %s", ErrInvalidInterval, s)
		}
	}

	if total < MinIntervalMin {
		return 0, fmt.Errorf("%w: min %dm", ErrTooSmall, MinIntervalMin)
	}
	if total > MaxIntervalMin {
		return 0, fmt.Errorf("%w: max %dh", ErrTooLarge, MaxIntervalMin/60)
	}
	return total, nil
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ParseQuietWindow parses "HH:MM–HH:MM" or "HH:MM-HH:MM" into minutes since
// midnight. A window equal on both sides is rejected here so a full-day
// quiet window never reaches the scheduler.
func ParseQuietWindow(s string) (startM, endM int, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, errors.New("empty window")
	}
	sep := "–"
	if strings.Contains(s, "-") && !strings.Contains(s, "–") {
		sep = "-"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 2 {
		return 0, 0, errors.New("expected format HH:MM–HH:MM")
	}
	startM, err = parseHHMM(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("start: %w", err)
	}
	endM, err = parseHHMM(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("end: %w", err)
	}
	if startM == endM {
		return 0, 0, errors.New("window start and end must differ")
	}
	return startM, endM, nil
}

func parseHHMM(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, errors.New("expected HH:MM")
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, errors.New("invalid hour")
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, errors.New("invalid minute")
	}
	return h*60 + m, nil
}

// ValidateTZ checks that the tz is a valid IANA location.
func ValidateTZ(tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", err
	}
	return loc.String(), nil
}

// FormatMinutes returns HH:MM for minutes since midnight (00:00..23:59).
func FormatMinutes(mins int) string {
	if mins < 0 {
		mins = 0
	}
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// LocalizeTime formats t in the user's timezone as "Mon 15:04".
func LocalizeTime(t time.Time, tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", err
	}
	return t.In(loc).Format("Mon 15:04"), nil
}
