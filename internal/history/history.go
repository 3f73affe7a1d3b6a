package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"eddy/internal/db"
	"eddy/internal/stream"
)

// Store persists chat turns: the user input plus the assembled message.
type Store struct {
	conn *sql.DB
}

func NewStore(database *db.DB) *Store {
	return &Store{conn: database.Conn()}
}

func (s *Store) EnsureSession(ctx context.Context, sessionID, channel string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, channel) VALUES (?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		sessionID, channel,
	)
	return err
}

func (s *Store) SaveTurn(ctx context.Context, sessionID, userMessage string, msg *stream.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO turns (session_id, user_message, message_json) VALUES (?, ?, ?)`,
		sessionID, userMessage, string(raw),
	)
	return err
}

// Turn is one persisted exchange.
type Turn struct {
	ID          int64
	UserMessage string
	Message     *stream.Message
}

// Turns returns a session's exchanges, oldest first. Rows with unreadable
// message JSON are skipped rather than failing the whole load.
func (s *Store) Turns(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, user_message, message_json FROM turns WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var raw string
		if err := rows.Scan(&t.ID, &t.UserMessage, &raw); err != nil {
			return nil, err
		}
		var msg stream.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			slog.Warn("skipping turn with invalid message JSON", "turn_id", t.ID, "error", err)
			continue
		}
		t.Message = &msg
		turns = append(turns, t)
	}
	return turns, rows.Err()
}
