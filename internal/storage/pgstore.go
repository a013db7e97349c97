package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tutorhq/tutorbook/internal/model"
)

// PGStore persists the collection in Postgres while keeping the same
// whole-collection Load/Save contract as FileStore. Appointments are never
// deleted, so Save is a transactional upsert of every record.
type PGStore struct {
	pool *pgxpool.Pool
}

func OpenPGStore(ctx context.Context, databaseURL string) (*PGStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &PGStore{pool: pool}, nil
}

func (s *PGStore) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// ReadyCheck is a named dependency probe for /readyz.
func (s *PGStore) ReadyCheck() func(context.Context) error {
	return func(ctx context.Context) error {
		return s.pool.Ping(ctx)
	}
}

func (s *PGStore) Load(ctx context.Context) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, requester_name, requester_contact, subject, timezone,
			start_time, status, created_at, reminder_sent
		FROM appointments
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		var a model.Appointment
		var status string
		if err := rows.Scan(
			&a.ID,
			&a.RequesterName,
			&a.RequesterContact,
			&a.Subject,
			&a.Timezone,
			&a.Start,
			&status,
			&a.CreatedAt,
			&a.ReminderSent,
		); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		a.Status = model.Status(status)
		a.Start = a.Start.UTC()
		a.CreatedAt = a.CreatedAt.UTC()
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("load appointments: %w", rows.Err())
	}
	return appts, nil
}

func (s *PGStore) Save(ctx context.Context, appts []model.Appointment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, a := range appts {
		_, err := tx.Exec(ctx, `
			INSERT INTO appointments
				(id, requester_name, requester_contact, subject, timezone, start_time, status, created_at, reminder_sent)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE
			SET start_time = EXCLUDED.start_time,
				status = EXCLUDED.status,
				reminder_sent = EXCLUDED.reminder_sent
		`, a.ID, a.RequesterName, a.RequesterContact, a.Subject, a.Timezone,
			a.Start.UTC(), string(a.Status), a.CreatedAt.UTC(), a.ReminderSent)
		if err != nil {
			return fmt.Errorf("upsert appointment %s: %w", a.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
