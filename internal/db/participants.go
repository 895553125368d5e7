package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Participant is a workshop participant that reports are generated for.
type Participant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     *string   `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateParticipant inserts a participant, or returns the existing one with the same email.
func (db *DB) CreateParticipant(ctx context.Context, name string, email *string) (*Participant, error) {
	var p Participant
	err := db.pool.QueryRow(ctx,
		`INSERT INTO participants (name, email)
		 VALUES ($1, $2)
		 ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, name, email, created_at`,
		name, email,
	).Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}
	return &p, nil
}

// GetParticipant retrieves a participant by id
func (db *DB) GetParticipant(ctx context.Context, id int64) (*Participant, error) {
	var p Participant
	err := db.pool.QueryRow(ctx,
		`SELECT id, name, email, created_at FROM participants WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return &p, nil
}

// SaveAssessment stores the raw assessment JSON of a participant, replacing any previous one.
func (db *DB) SaveAssessment(ctx context.Context, userID int64, data []byte) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO assessments (user_id, data)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		userID, data,
	)
	if err != nil {
		return fmt.Errorf("failed to save assessment: %w", err)
	}
	return nil
}

// GetAssessment returns the raw assessment JSON, nil when the participant has none.
func (db *DB) GetAssessment(ctx context.Context, userID int64) ([]byte, error) {
	var data []byte
	err := db.pool.QueryRow(ctx,
		`SELECT data FROM assessments WHERE user_id = $1`,
		userID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	return data, nil
}
