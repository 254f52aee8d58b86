package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend-fieldroute/internal/db"
	"backend-fieldroute/internal/shared/geo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Store persists tracking sessions.
type Store interface {
	CreateSession(ctx context.Context, salespersonID string) (Session, error)
	UpdateSession(ctx context.Context, id string, update SessionUpdate) error
	// ActiveSession returns nil, nil when the salesperson has no open session.
	ActiveSession(ctx context.Context, salespersonID string) (*Session, error)
	HistoricalSessions(ctx context.Context, salespersonID string, from, to time.Time) ([]Session, error)
	Session(ctx context.Context, id string) (Session, error)
}

// PGStore keeps sessions in the tracking_sessions table with points as a JSONB array.
type PGStore struct {
	db db.Querier
}

func NewPGStore(q db.Querier) *PGStore {
	return &PGStore{db: q}
}

func (s *PGStore) CreateSession(ctx context.Context, salespersonID string) (Session, error) {
	session := Session{
		ID:            uuid.NewString(),
		SalespersonID: salespersonID,
		Points:        []geo.GpsPoint{},
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO tracking_sessions (id, salesperson_id, points, started_at)
		VALUES ($1, $2, '[]'::jsonb, now())
		RETURNING started_at
	`, session.ID, salespersonID)
	if err := row.Scan(&session.StartedAt); err != nil {
		return Session{}, err
	}
	return session, nil
}

func (s *PGStore) UpdateSession(ctx context.Context, id string, update SessionUpdate) error {
	var points any
	if update.Points != nil {
		raw, err := json.Marshal(update.Points)
		if err != nil {
			return fmt.Errorf("encode points: %w", err)
		}
		points = string(raw)
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE tracking_sessions
		SET points = COALESCE($2::jsonb, points),
		    ended_at = COALESCE($3, ended_at),
		    total_km = COALESCE($4, total_km)
		WHERE id = $1
	`, id, points, update.EndedAt, update.TotalKm)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *PGStore) ActiveSession(ctx context.Context, salespersonID string) (*Session, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, salesperson_id, points, started_at, ended_at, total_km
		FROM tracking_sessions
		WHERE salesperson_id = $1 AND ended_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1
	`, salespersonID)
	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *PGStore) HistoricalSessions(ctx context.Context, salespersonID string, from, to time.Time) ([]Session, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, salesperson_id, points, started_at, ended_at, total_km
		FROM tracking_sessions
		WHERE salesperson_id = $1 AND started_at >= $2 AND started_at < $3
		ORDER BY started_at
	`, salespersonID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *PGStore) Session(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, salesperson_id, points, started_at, ended_at, total_km
		FROM tracking_sessions WHERE id = $1
	`, id)
	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	return session, err
}

// Salespeople lists everyone with a session started in [from, to).
func (s *PGStore) Salespeople(ctx context.Context, from, to time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT salesperson_id
		FROM tracking_sessions
		WHERE started_at >= $1 AND started_at < $2
		ORDER BY salesperson_id
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanSession(row pgx.Row) (Session, error) {
	var (
		session Session
		raw     []byte
	)
	if err := row.Scan(&session.ID, &session.SalespersonID, &raw, &session.StartedAt, &session.EndedAt, &session.TotalKm); err != nil {
		return Session{}, err
	}
	session.Points = []geo.GpsPoint{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &session.Points); err != nil {
			return Session{}, fmt.Errorf("decode points of session %s: %w", session.ID, err)
		}
	}
	return session, nil
}
