// Package store persists users, sessions, and shown UI cards in Postgres.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	mu        sync.Mutex
	sessionID string
	turn      int
}

func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// StartSession opens a conversation session for the given room and remembers
// it for subsequent message and card writes. The session starts unowned;
// RecordUser attaches the visitor once they identify.
func (s *Store) StartSession(ctx context.Context, roomName string) error {
	if s == nil || s.pool == nil {
		return nil
	}
	meta, _ := json.Marshal(map[string]any{"room": roomName})
	var sessionID string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO sessions (session_type, metadata)
		 VALUES ('conversation', $1)
		 RETURNING session_id`,
		meta,
	).Scan(&sessionID)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	s.mu.Lock()
	s.sessionID = sessionID
	s.turn = 0
	s.mu.Unlock()
	return nil
}

// EndSession marks the current session finished.
func (s *Store) EndSession(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.mu.Lock()
	sessionID := s.sessionID
	s.sessionID = ""
	s.mu.Unlock()
	if sessionID == "" {
		return nil
	}

	_, err := s.pool.Exec(ctx,
		`UPDATE sessions SET ended_at = now(), is_active = FALSE WHERE session_id = $1`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// RecordUser upserts the identified visitor, keyed by the frontend user id.
func (s *Store) RecordUser(ctx context.Context, userID, name, email string) error {
	if s == nil || s.pool == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (user_id, name, email)
		 VALUES ($1, $2, NULLIF($3, ''))
		 ON CONFLICT (user_id) DO UPDATE
		 SET name = EXCLUDED.name,
		     email = COALESCE(EXCLUDED.email, users.email),
		     last_active = now()`,
		userID, name, email,
	)
	if err != nil {
		return fmt.Errorf("record user %s: %w", userID, err)
	}

	s.mu.Lock()
	sessionID := s.sessionID
	s.mu.Unlock()
	if sessionID != "" {
		if _, err := s.pool.Exec(ctx,
			`UPDATE sessions SET user_id = $1 WHERE session_id = $2`,
			userID, sessionID,
		); err != nil {
			return fmt.Errorf("attach user to session: %w", err)
		}
	}
	return nil
}

// RecordMessage appends a conversation turn to the active session.
func (s *Store) RecordMessage(ctx context.Context, role, content string) error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.mu.Lock()
	sessionID := s.sessionID
	s.turn++
	turn := s.turn
	s.mu.Unlock()
	if sessionID == "" {
		return nil
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO session_messages (session_id, turn_number, role, content)
		 VALUES ($1, $2, $3, $4)`,
		sessionID, turn, role, content,
	)
	if err != nil {
		return fmt.Errorf("record message: %w", err)
	}
	return nil
}

// RecordCardShown logs one card published to the frontend at the current turn.
func (s *Store) RecordCardShown(ctx context.Context, cardType string, payload map[string]any, displayOrder int) error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.mu.Lock()
	sessionID := s.sessionID
	turn := s.turn
	s.mu.Unlock()
	if sessionID == "" {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal card payload: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO ui_cards_shown (session_id, turn_number, card_type, card_data, display_order)
		 VALUES ($1, $2, $3, $4, $5)`,
		sessionID, turn, cardType, data, displayOrder,
	)
	if err != nil {
		return fmt.Errorf("record card: %w", err)
	}
	return nil
}
