package appointments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/bookingbot/core/logger"
)

const uniqueViolation = "23505"

const (
	insertAppointment = `INSERT INTO appointments
	(id, user_id, user_name, appointment_date, appointment_time, notes, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at`

	selectAppointments = `SELECT id, user_id, user_name,
	to_char(appointment_date, 'YYYY-MM-DD') AS date,
	to_char(appointment_time, 'HH24:MI') AS time,
	notes, status, created_at
FROM appointments
WHERE user_id = $1 AND status = $2
ORDER BY appointment_date, appointment_time, created_at`

	lockAppointment = `SELECT user_id, status FROM appointments WHERE id = $1 FOR UPDATE`

	cancelAppointment = `UPDATE appointments SET status = $1, cancelled_at = now() WHERE id = $2`
)

// PostgresStore keeps appointments in PostgreSQL.
type PostgresStore struct {
	db    *sqlx.DB
	now   func() time.Time
	newID func() string
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps db. The appointments table is created by migrations.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now, newID: uuid.NewString}
}

// Create validates and inserts a new scheduled appointment.
func (s *PostgresStore) Create(ctx context.Context, a NewAppointment) (Appointment, error) {
	if err := Check(a, s.now()); err != nil {
		return Appointment{}, err
	}

	rec := Appointment{
		ID:       s.newID(),
		UserID:   a.UserID,
		UserName: a.UserName,
		Date:     a.Date.Format(DateLayout),
		Time:     a.Time.Format(TimeLayout),
		Notes:    a.Notes,
		Status:   StatusScheduled,
	}
	err := s.db.QueryRowxContext(ctx, insertAppointment,
		rec.ID, rec.UserID, rec.UserName, rec.Date, rec.Time, rec.Notes, rec.Status,
	).Scan(&rec.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return Appointment{}, &Error{Reason: ReasonSlotTaken, Err: err}
		}
		logger.SVCAppointments.Error("insert failed",
			slog.String("event", "appointment.create"),
			slog.Int64("user_id", a.UserID),
			slog.String("err", err.Error()),
		)
		return Appointment{}, &Error{Reason: ReasonUnavailable, Err: fmt.Errorf("insert appointment: %w", err)}
	}

	logger.SVCAppointments.Info("appointment created",
		slog.String("event", "appointment.create"),
		slog.String("status", "ok"),
		slog.Int64("user_id", rec.UserID),
		slog.String("appointment_id", rec.ID),
	)
	return rec, nil
}

// List returns the scheduled appointments of userID.
func (s *PostgresStore) List(ctx context.Context, userID int64) ([]Appointment, error) {
	var out []Appointment
	if err := s.db.SelectContext(ctx, &out, selectAppointments, userID, StatusScheduled); err != nil {
		return nil, &Error{Reason: ReasonUnavailable, Err: fmt.Errorf("list appointments: %w", err)}
	}
	return out, nil
}

// Cancel marks the appointment cancelled when it belongs to userID.
func (s *PostgresStore) Cancel(ctx context.Context, id string, userID int64) (err error) {
	if _, perr := uuid.Parse(id); perr != nil {
		return &Error{Reason: ReasonNotFound, Err: perr}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return &Error{Reason: ReasonUnavailable, Err: fmt.Errorf("begin: %w", err)}
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var owner struct {
		UserID int64  `db:"user_id"`
		Status string `db:"status"`
	}
	switch qerr := tx.QueryRowxContext(ctx, lockAppointment, id).StructScan(&owner); {
	case errors.Is(qerr, sql.ErrNoRows):
		return &Error{Reason: ReasonNotFound}
	case qerr != nil:
		return &Error{Reason: ReasonUnavailable, Err: fmt.Errorf("lookup appointment: %w", qerr)}
	}
	if owner.UserID != userID {
		logger.SVCAppointments.Warn("cancel rejected",
			slog.String("event", "appointment.cancel"),
			slog.Int64("user_id", userID),
			slog.String("appointment_id", id),
			slog.String("cause", "not_owner"),
		)
		return &Error{Reason: ReasonNotOwner}
	}
	if owner.Status == StatusCancelled {
		return &Error{Reason: ReasonAlreadyCancelled}
	}

	if _, err := tx.ExecContext(ctx, cancelAppointment, StatusCancelled, id); err != nil {
		return &Error{Reason: ReasonUnavailable, Err: fmt.Errorf("cancel appointment: %w", err)}
	}
	if err := tx.Commit(); err != nil {
		return &Error{Reason: ReasonUnavailable, Err: fmt.Errorf("commit: %w", err)}
	}

	logger.SVCAppointments.Info("appointment cancelled",
		slog.String("event", "appointment.cancel"),
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("appointment_id", id),
	)
	return nil
}
