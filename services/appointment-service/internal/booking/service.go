// Package booking creates, changes, removes and lists appointments on the shared salon
// calendar, enforcing ownership, roles, allowed services and slot availability.
package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/salonbook/salonbook/services/appointment-service/internal/availability"
	"github.com/salonbook/salonbook/services/appointment-service/internal/clock"
	"github.com/salonbook/salonbook/services/appointment-service/internal/conflict"
	"github.com/salonbook/salonbook/services/appointment-service/internal/model"
	"github.com/salonbook/salonbook/services/appointment-service/internal/storage"
)

type Repository interface {
	conflict.SlotFinder
	Create(ctx context.Context, appt *model.Appointment) error
	FindByID(ctx context.Context, id string) (model.Appointment, error)
	FindMany(ctx context.Context, f storage.Filter) ([]model.Appointment, error)
	// Update writes every field except the owner and the status.
	Update(ctx context.Context, appt model.Appointment) (model.Appointment, error)
	UpdateStatus(ctx context.Context, id string, from, to model.Status) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context, f storage.Filter) (int, error)
	DistinctOwners(ctx context.Context, f storage.Filter) ([]string, error)
}

type Profiles interface {
	DisplayName(ctx context.Context, ownerID string) (string, error)
}

// Recorder receives one call per finished operation.
type Recorder interface {
	ObserveBooking(op, outcome string, took time.Duration)
}

type Config struct {
	// Timeout bounds every operation, including all repository calls it makes.
	Timeout         time.Duration
	AllowedServices []string
	// MonotonicAdminOverride rejects admin status changes that move an appointment backwards.
	MonotonicAdminOverride bool
	Recorder               Recorder
}

type Service struct {
	repo     Repository
	profiles Profiles
	rules    *availability.RuleSet
	detector *conflict.Detector
	clock    clock.Clock
	logger   *slog.Logger
	cfg      Config
	allowed  map[string]struct{}
}

func NewService(repo Repository, profiles Profiles, rules *availability.RuleSet, clk clock.Clock, logger *slog.Logger, cfg Config) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedServices))
	for _, svc := range cfg.AllowedServices {
		if svc = strings.TrimSpace(svc); svc != "" {
			allowed[svc] = struct{}{}
		}
	}
	return &Service{
		repo:     repo,
		profiles: profiles,
		rules:    rules,
		detector: conflict.NewDetector(repo),
		clock:    clk,
		logger:   logger,
		cfg:      cfg,
		allowed:  allowed,
	}
}

type CreateInput struct {
	DateTime   string
	Service    string
	Attribute  string
	ClientName string
}

// UpdateInput carries the fields an owner may change. Blank fields keep their current value.
type UpdateInput struct {
	DateTime   string
	Service    string
	Attribute  string
	ClientName string
}

type AdminUpdateInput struct {
	UpdateInput
	Status string
}

func (s *Service) Create(ctx context.Context, id model.Identity, in CreateInput) (appt model.Appointment, err error) {
	defer s.observe("create", time.Now(), &err)
	if id.OwnerID == "" {
		return model.Appointment{}, ErrNotAuthorized
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	in.Service = strings.TrimSpace(in.Service)
	in.Attribute = strings.TrimSpace(in.Attribute)
	in.ClientName = strings.TrimSpace(in.ClientName)
	if err := s.checkService(in.Service); err != nil {
		return model.Appointment{}, err
	}
	if in.Attribute == "" {
		return model.Appointment{}, invalid("attribute", "required")
	}
	if strings.TrimSpace(in.DateTime) == "" {
		return model.Appointment{}, invalid("dateTime", "required")
	}
	if in.ClientName == "" {
		name, err := s.profiles.DisplayName(ctx, id.OwnerID)
		if err != nil {
			return model.Appointment{}, repositoryError("profile lookup", err)
		}
		if in.ClientName = strings.TrimSpace(name); in.ClientName == "" {
			return model.Appointment{}, invalid("name", "required")
		}
	}

	at, err := s.rules.Admit(in.DateTime)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := s.checkSlot(ctx, at, ""); err != nil {
		return model.Appointment{}, err
	}

	appt = model.Appointment{
		OwnerID:    id.OwnerID,
		DateTime:   at,
		Service:    in.Service,
		ClientName: in.ClientName,
		Attribute:  in.Attribute,
		Status:     model.StatusPending,
	}
	if err := s.repo.Create(ctx, &appt); err != nil {
		return model.Appointment{}, s.writeError("create", err)
	}
	return appt, nil
}

// UpdateOwn lets the owner change time, service, attribute and name. A missing appointment is
// reported as ErrNotAuthorized so callers cannot discover ids they do not own.
func (s *Service) UpdateOwn(ctx context.Context, id model.Identity, appointmentID string, in UpdateInput) (appt model.Appointment, err error) {
	defer s.observe("update_own", time.Now(), &err)
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	current, err := s.repo.FindByID(ctx, appointmentID)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Appointment{}, ErrNotAuthorized
	}
	if err != nil {
		return model.Appointment{}, repositoryError("find", err)
	}
	if id.OwnerID == "" || current.OwnerID != id.OwnerID {
		return model.Appointment{}, ErrNotAuthorized
	}

	next, err := s.revise(ctx, current, in)
	if err != nil {
		return model.Appointment{}, err
	}
	updated, err := s.repo.Update(ctx, next)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Appointment{}, ErrNotAuthorized
	}
	if err != nil {
		return model.Appointment{}, s.writeError("update", err)
	}
	return updated, nil
}

// AdminUpdate changes any field of any appointment, including its status. The status is
// written only while the row still holds the status it was checked against; if the sweep or
// another admin moved it first, the check runs again on the fresh status.
func (s *Service) AdminUpdate(ctx context.Context, id model.Identity, appointmentID string, in AdminUpdateInput) (appt model.Appointment, err error) {
	defer s.observe("admin_update", time.Now(), &err)
	if !id.IsAdmin() {
		return model.Appointment{}, ErrNotAuthorized
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	current, err := s.repo.FindByID(ctx, appointmentID)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Appointment{}, ErrNotFound
	}
	if err != nil {
		return model.Appointment{}, repositoryError("find", err)
	}

	var target model.Status
	if raw := strings.TrimSpace(in.Status); raw != "" {
		target = model.Status(raw)
		if !target.Valid() {
			return model.Appointment{}, invalid("status", "unknown")
		}
		if err := s.checkOverride(current.Status, target); err != nil {
			return model.Appointment{}, err
		}
	}

	next, err := s.revise(ctx, current, in.UpdateInput)
	if err != nil {
		return model.Appointment{}, err
	}

	if target != "" && target != current.Status {
		from, err := s.overrideStatus(ctx, appointmentID, current.Status, target)
		if err != nil {
			return model.Appointment{}, err
		}
		if from != target {
			s.logger.Info("appointment status overridden",
				"appointment_id", appointmentID,
				"from", string(from),
				"to", string(target),
				"actor", id.OwnerID,
			)
		}
	}

	updated, err := s.repo.Update(ctx, next)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Appointment{}, ErrNotFound
	}
	if err != nil {
		return model.Appointment{}, s.writeError("update", err)
	}
	return updated, nil
}

const statusWriteAttempts = 3

// overrideStatus moves appointmentID from seen to target and returns the status it replaced.
func (s *Service) overrideStatus(ctx context.Context, appointmentID string, seen, target model.Status) (model.Status, error) {
	for attempt := 0; attempt < statusWriteAttempts; attempt++ {
		if seen == target {
			return seen, nil
		}
		if err := s.checkOverride(seen, target); err != nil {
			return "", err
		}
		changed, err := s.repo.UpdateStatus(ctx, appointmentID, seen, target)
		if err != nil {
			return "", repositoryError("update status", err)
		}
		if changed {
			return seen, nil
		}
		fresh, err := s.repo.FindByID(ctx, appointmentID)
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrNotFound
		}
		if err != nil {
			return "", repositoryError("find", err)
		}
		seen = fresh.Status
	}
	return "", ErrConflict
}

// checkOverride rejects backwards moves when overrides are monotonic. Rows carrying a status
// outside the vocabulary may be set to anything valid.
func (s *Service) checkOverride(from, to model.Status) error {
	if s.cfg.MonotonicAdminOverride && from.Valid() && !from.CanAdvanceTo(to) {
		return invalid("status", "backwards transition")
	}
	return nil
}

func (s *Service) DeleteOwn(ctx context.Context, id model.Identity, appointmentID string) (err error) {
	defer s.observe("delete_own", time.Now(), &err)
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	current, err := s.repo.FindByID(ctx, appointmentID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotAuthorized
	}
	if err != nil {
		return repositoryError("find", err)
	}
	if id.OwnerID == "" || current.OwnerID != id.OwnerID {
		return ErrNotAuthorized
	}
	deleted, err := s.repo.Delete(ctx, appointmentID)
	if err != nil {
		return repositoryError("delete", err)
	}
	if !deleted {
		return ErrNotAuthorized
	}
	return nil
}

func (s *Service) AdminDelete(ctx context.Context, id model.Identity, appointmentID string) (err error) {
	defer s.observe("admin_delete", time.Now(), &err)
	if !id.IsAdmin() {
		return ErrNotAuthorized
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	deleted, err := s.repo.Delete(ctx, appointmentID)
	if err != nil {
		return repositoryError("delete", err)
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

func (s *Service) ListOwn(ctx context.Context, id model.Identity) (out []model.Appointment, err error) {
	defer s.observe("list_own", time.Now(), &err)
	if id.OwnerID == "" {
		return nil, ErrNotAuthorized
	}
	return s.list(ctx, storage.Filter{OwnerID: id.OwnerID})
}

func (s *Service) ListAll(ctx context.Context, id model.Identity) (out []model.Appointment, err error) {
	defer s.observe("list_all", time.Now(), &err)
	if !id.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	return s.list(ctx, storage.Filter{})
}

type Stats struct {
	CountToday           int
	CountThisWeek        int
	DistinctActiveOwners int
	Today                []model.Appointment
}

// Stats summarizes the calendar for the current day and ISO week (Monday first) in the
// operating timezone.
func (s *Service) Stats(ctx context.Context, id model.Identity) (st Stats, err error) {
	defer s.observe("stats", time.Now(), &err)
	if !id.IsAdmin() {
		return Stats{}, ErrNotAuthorized
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	now := s.clock.Now()
	dayStart, dayEnd := DayRange(now, s.rules.Location())
	weekStart, weekEnd := WeekRange(now, s.rules.Location())

	if st.CountToday, err = s.repo.Count(ctx, storage.Filter{From: dayStart, To: dayEnd}); err != nil {
		return Stats{}, repositoryError("count today", err)
	}
	if st.CountThisWeek, err = s.repo.Count(ctx, storage.Filter{From: weekStart, To: weekEnd}); err != nil {
		return Stats{}, repositoryError("count week", err)
	}
	owners, err := s.repo.DistinctOwners(ctx, storage.Filter{Statuses: model.OpenStatuses})
	if err != nil {
		return Stats{}, repositoryError("distinct owners", err)
	}
	st.DistinctActiveOwners = len(owners)

	today, err := s.repo.FindMany(ctx, storage.Filter{From: dayStart, To: dayEnd})
	if err != nil {
		return Stats{}, repositoryError("list today", err)
	}
	SortForListing(today)
	st.Today = today
	return st, nil
}

// DayRange returns the half-open local calendar day containing now.
func DayRange(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// WeekRange returns the half-open ISO week (Monday to Monday) containing now.
func WeekRange(now time.Time, loc *time.Location) (time.Time, time.Time) {
	dayStart, _ := DayRange(now, loc)
	offset := (int(dayStart.Weekday()) + 6) % 7
	start := dayStart.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 7)
}

func (s *Service) list(ctx context.Context, f storage.Filter) ([]model.Appointment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	appts, err := s.repo.FindMany(ctx, f)
	if err != nil {
		return nil, repositoryError("list", err)
	}
	SortForListing(appts)
	return appts, nil
}

// revise merges in over current and re-runs the create pipeline on what changed. Admission
// and conflict detection run only for a new instant and the service list only for a new
// service, so a stored appointment stays editable after the rules change. Status is left
// untouched.
func (s *Service) revise(ctx context.Context, current model.Appointment, in UpdateInput) (model.Appointment, error) {
	next := current
	if v := strings.TrimSpace(in.Service); v != "" {
		next.Service = v
	}
	if v := strings.TrimSpace(in.Attribute); v != "" {
		next.Attribute = v
	}
	if v := strings.TrimSpace(in.ClientName); v != "" {
		next.ClientName = v
	}
	if next.Service != current.Service {
		if err := s.checkService(next.Service); err != nil {
			return model.Appointment{}, err
		}
	}
	if next.Attribute == "" {
		return model.Appointment{}, invalid("attribute", "required")
	}

	if strings.TrimSpace(in.DateTime) == "" {
		return next, nil
	}
	requested, err := s.rules.Parse(in.DateTime)
	if err != nil {
		return model.Appointment{}, err
	}
	at := model.NormalizeSlot(requested)
	if at.Equal(model.NormalizeSlot(current.DateTime)) {
		return next, nil
	}
	if err := s.rules.AdmitInstant(requested); err != nil {
		return model.Appointment{}, err
	}
	if err := s.checkSlot(ctx, at, current.ID); err != nil {
		return model.Appointment{}, err
	}
	next.DateTime = at
	return next, nil
}

func (s *Service) checkService(svc string) error {
	if svc == "" {
		return invalid("service", "required")
	}
	if _, ok := s.allowed[svc]; !ok {
		return invalid("service", "not offered")
	}
	return nil
}

func (s *Service) checkSlot(ctx context.Context, at time.Time, excludeID string) error {
	taken, err := s.detector.HasConflict(ctx, at, excludeID)
	if err != nil {
		return repositoryError("conflict check", err)
	}
	if taken {
		return ErrConflict
	}
	return nil
}

// writeError maps a write failure. A unique violation here means another request took the
// slot between the conflict check and the write.
func (s *Service) writeError(op string, err error) error {
	if errors.Is(err, storage.ErrSlotTaken) {
		s.logger.Debug("slot taken at write", "op", op)
		return ErrConflict
	}
	return repositoryError(op, err)
}

func (s *Service) observe(op string, started time.Time, errp *error) {
	if s.cfg.Recorder == nil {
		return
	}
	s.cfg.Recorder.ObserveBooking(op, Outcome(*errp), time.Since(started))
}
