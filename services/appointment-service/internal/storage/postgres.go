package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/salonbook/salonbook/libs/db"
	"github.com/salonbook/salonbook/services/appointment-service/internal/model"
	"github.com/salonbook/salonbook/services/appointment-service/internal/outbox"
)

const appointmentColumns = `id::text, owner_id, date_time, service, client_name, attribute, status, created_at, updated_at`

// PostgresRepository persists appointments. Every mutation writes its outbox event in the
// same transaction.
type PostgresRepository struct {
	pool   db.Querier
	outbox *outbox.Repository
}

func NewPostgresRepository(pool db.Querier, outboxRepo *outbox.Repository) *PostgresRepository {
	if outboxRepo == nil {
		outboxRepo = outbox.NewRepository()
	}
	return &PostgresRepository{pool: pool, outbox: outboxRepo}
}

func (r *PostgresRepository) Create(ctx context.Context, appt *model.Appointment) error {
	appt.ID = uuid.NewString()
	appt.DateTime = model.NormalizeSlot(appt.DateTime)

	return r.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO appointments (id, owner_id, date_time, service, client_name, attribute, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at, updated_at
		`, appt.ID, appt.OwnerID, appt.DateTime, appt.Service, appt.ClientName, appt.Attribute, string(appt.Status),
		).Scan(&appt.CreatedAt, &appt.UpdatedAt)
		if err != nil {
			return translate(err)
		}
		return r.emit(ctx, tx, outbox.EventAppointmentBooked, *appt)
	})
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (model.Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Appointment{}, ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		return model.Appointment{}, translate(err)
	}
	return appt, nil
}

func (r *PostgresRepository) FindByExactTime(ctx context.Context, at time.Time, excludeID string) (model.Appointment, bool, error) {
	args := []any{model.NormalizeSlot(at)}
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE date_time = $1`
	if excludeID != "" {
		args = append(args, excludeID)
		query += ` AND id::text <> $2`
	}
	query += ` LIMIT 1`

	appt, err := scanAppointment(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, false, nil
	}
	if err != nil {
		return model.Appointment{}, false, err
	}
	return appt, true, nil
}

// FindMany returns matching appointments, most recent date_time first.
func (r *PostgresRepository) FindMany(ctx context.Context, f Filter) ([]model.Appointment, error) {
	where, args := whereClause(f)
	rows, err := r.pool.Query(ctx, `SELECT `+appointmentColumns+` FROM appointments`+where+` ORDER BY date_time DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

// Update writes the editable fields. Status is left to UpdateStatus so a stale read can
// never move it backwards.
func (r *PostgresRepository) Update(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	if _, err := uuid.Parse(appt.ID); err != nil {
		return model.Appointment{}, ErrNotFound
	}
	appt.DateTime = model.NormalizeSlot(appt.DateTime)

	var updated model.Appointment
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE appointments
			SET date_time = $2, service = $3, client_name = $4, attribute = $5, updated_at = now()
			WHERE id = $1
			RETURNING `+appointmentColumns,
			appt.ID, appt.DateTime, appt.Service, appt.ClientName, appt.Attribute)
		var err error
		updated, err = scanAppointment(row)
		if err != nil {
			return translate(err)
		}
		return r.emit(ctx, tx, outbox.EventAppointmentUpdated, updated)
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return updated, nil
}

// UpdateStatus moves id from one status to another only if it still holds from, so a
// concurrent change is never overwritten. It reports whether a row changed.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, from, to model.Status) (bool, error) {
	changed := false
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE appointments
			SET status = $3, updated_at = now()
			WHERE id::text = $1 AND status = $2
			RETURNING `+appointmentColumns,
			id, string(from), string(to))
		appt, err := scanAppointment(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		changed = true
		return r.emitStatusChange(ctx, tx, appt, from)
	})
	return changed, err
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	deleted := false
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `DELETE FROM appointments WHERE id = $1 RETURNING `+appointmentColumns, id)
		appt, err := scanAppointment(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		deleted = true
		return r.emit(ctx, tx, outbox.EventAppointmentDeleted, appt)
	})
	return deleted, err
}

func (r *PostgresRepository) Count(ctx context.Context, f Filter) (int, error) {
	where, args := whereClause(f)
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM appointments`+where, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PostgresRepository) DistinctOwners(ctx context.Context, f Filter) ([]string, error) {
	where, args := whereClause(f)
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT owner_id FROM appointments`+where+` ORDER BY owner_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, err
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

func (r *PostgresRepository) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type appointmentEvent struct {
	AppointmentID  string `json:"appointment_id"`
	OwnerID        string `json:"owner_id"`
	DateTime       string `json:"date_time"`
	Service        string `json:"service"`
	ClientName     string `json:"client_name"`
	Attribute      string `json:"attribute"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previous_status,omitempty"`
}

func newAppointmentEvent(appt model.Appointment) appointmentEvent {
	return appointmentEvent{
		AppointmentID: appt.ID,
		OwnerID:       appt.OwnerID,
		DateTime:      appt.DateTime.UTC().Format(time.RFC3339),
		Service:       appt.Service,
		ClientName:    appt.ClientName,
		Attribute:     appt.Attribute,
		Status:        string(appt.Status),
	}
}

func (r *PostgresRepository) emit(ctx context.Context, tx pgx.Tx, eventType string, appt model.Appointment) error {
	return r.write(ctx, tx, eventType, appt.ID, newAppointmentEvent(appt))
}

func (r *PostgresRepository) emitStatusChange(ctx context.Context, tx pgx.Tx, appt model.Appointment, from model.Status) error {
	evt := newAppointmentEvent(appt)
	evt.PreviousStatus = string(from)
	return r.write(ctx, tx, outbox.EventAppointmentStatusChanged, appt.ID, evt)
}

func (r *PostgresRepository) write(ctx context.Context, tx pgx.Tx, eventType, id string, evt appointmentEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("storage: marshal %s: %w", eventType, err)
	}
	return r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: outbox.AggregateAppointment,
		AggregateID:   id,
		EventType:     eventType,
		Payload:       payload,
	})
}

func whereClause(f Filter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.OwnerID != "" {
		add("owner_id = ?", f.OwnerID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			statuses = append(statuses, string(s))
		}
		add("status = ANY(?)", statuses)
	}
	if !f.From.IsZero() {
		add("date_time >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		add("date_time < ?", f.To.UTC())
	}
	if f.ExcludeID != "" {
		add("id::text <> ?", f.ExcludeID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var status string
	err := row.Scan(
		&appt.ID,
		&appt.OwnerID,
		&appt.DateTime,
		&appt.Service,
		&appt.ClientName,
		&appt.Attribute,
		&status,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Status = model.Status(status)
	appt.DateTime = appt.DateTime.UTC()
	return appt, nil
}

func translate(err error) error {
	switch {
	case IsConflict(err):
		return ErrSlotTaken
	case IsNotFound(err):
		return ErrNotFound
	}
	return err
}

// IsConflict reports a unique violation (23505) on the date_time constraint.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, ErrNotFound)
}
