// Package availability decides whether an instant may be booked under the salon's
// working hours, weekend toggle and holiday calendar.
package availability

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/salonbook/salonbook/services/appointment-service/internal/model"
)

type Reason string

const (
	ReasonInvalidFormat       Reason = "invalid_format"
	ReasonOutsideWorkingHours Reason = "outside_working_hours"
	ReasonWeekendDisabled     Reason = "weekend_disabled"
	ReasonHoliday             Reason = "holiday"
)

// ErrRejected matches every *Rejection via errors.Is.
var ErrRejected = errors.New("availability rejected")

type Rejection struct {
	Reason Reason
}

func (r *Rejection) Error() string {
	return "availability rejected: " + string(r.Reason)
}

func (r *Rejection) Is(target error) bool {
	return target == ErrRejected
}

func reject(reason Reason) error {
	return &Rejection{Reason: reason}
}

// ReasonOf extracts the rejection reason from err, if any.
func ReasonOf(err error) (Reason, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	return "", false
}

const dateLayout = "2006-01-02"

// Zone-less inputs are read as wall-clock time in the operating timezone.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// RuleSet is the process-wide blackout calendar. It is immutable after NewRuleSet.
type RuleSet struct {
	startHour       int
	endHour         int
	weekendsEnabled bool
	holidays        map[string]struct{}
	loc             *time.Location
}

type Config struct {
	StartHour       int
	EndHour         int
	WeekendsEnabled bool
	Holidays        []string
	Location        *time.Location
}

func NewRuleSet(cfg Config) (*RuleSet, error) {
	if cfg.StartHour < 0 || cfg.StartHour > 23 {
		return nil, fmt.Errorf("availability: start hour %d out of range", cfg.StartHour)
	}
	if cfg.EndHour < 1 || cfg.EndHour > 24 {
		return nil, fmt.Errorf("availability: end hour %d out of range", cfg.EndHour)
	}
	if cfg.EndHour <= cfg.StartHour {
		return nil, fmt.Errorf("availability: end hour %d must be after start hour %d", cfg.EndHour, cfg.StartHour)
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	holidays := make(map[string]struct{}, len(cfg.Holidays))
	for _, raw := range cfg.Holidays {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if _, err := time.ParseInLocation(dateLayout, raw, loc); err != nil {
			return nil, fmt.Errorf("availability: invalid holiday %q (want YYYY-MM-DD)", raw)
		}
		holidays[raw] = struct{}{}
	}
	return &RuleSet{
		startHour:       cfg.StartHour,
		endHour:         cfg.EndHour,
		weekendsEnabled: cfg.WeekendsEnabled,
		holidays:        holidays,
		loc:             loc,
	}, nil
}

func (r *RuleSet) Location() *time.Location { return r.loc }

// Holidays returns the configured holiday dates in ascending order.
func (r *RuleSet) Holidays() []string {
	out := make([]string, 0, len(r.holidays))
	for d := range r.holidays {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Parse reads a requested instant. Failures are reported as a ReasonInvalidFormat rejection.
func (r *RuleSet) Parse(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, reject(ReasonInvalidFormat)
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, r.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, reject(ReasonInvalidFormat)
}

// Admit parses raw and runs the admission checks, returning the slot-normalized instant.
func (r *RuleSet) Admit(raw string) (time.Time, error) {
	t, err := r.Parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	if err := r.AdmitInstant(t); err != nil {
		return time.Time{}, err
	}
	return model.NormalizeSlot(t), nil
}

// AdmitInstant applies, in order: working hours, weekend toggle, holidays.
// The closing hour is exclusive: with an end of 17 the last admitted start is 16:59.
func (r *RuleSet) AdmitInstant(t time.Time) error {
	if t.IsZero() {
		return reject(ReasonInvalidFormat)
	}
	local := t.In(r.loc)

	h := local.Hour()
	if h < r.startHour || h >= r.endHour {
		return reject(ReasonOutsideWorkingHours)
	}
	if !r.weekendsEnabled {
		if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return reject(ReasonWeekendDisabled)
		}
	}
	if _, ok := r.holidays[local.Format(dateLayout)]; ok {
		return reject(ReasonHoliday)
	}
	return nil
}
