// Package conversation persists chat histories keyed by conversation id.
//
// Histories are stored as a single JSON document per conversation and
// replaced wholesale on update, so the last writer wins when two
// requests race on the same id.
package conversation

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/evolyn/concierge/internal/store"
)

// ErrNotFound is returned by Get when no conversation has the given id.
var ErrNotFound = errors.New("conversation not found")

// Message is a single turn in a conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Store persists conversations in the same database as the record store.
type Store struct {
	db     *sql.DB
	driver string
}

const schema = `
CREATE TABLE IF NOT EXISTS convos (
	conversation_id TEXT PRIMARY KEY,
	conversation_history TEXT,
	account_id TEXT,
	facility_id TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// NewStore prepares the conversations table on an open database handle.
func NewStore(db *sql.DB, driver string) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate convos: %w", err)
	}
	return &Store{db: db, driver: driver}, nil
}

func (s *Store) rebind(query string) string {
	return store.Rebind(s.driver, query)
}

// Create stores a new conversation and returns its generated id. A nil
// history is stored as an empty list.
func (s *Store) Create(history []Message, accountID, facilityID string) (string, error) {
	id := uuid.NewString()

	if history == nil {
		history = []Message{}
	}
	raw, err := json.Marshal(history)
	if err != nil {
		return "", fmt.Errorf("encode history: %w", err)
	}

	var acct, fac any
	if accountID != "" {
		acct = accountID
	}
	if facilityID != "" {
		fac = facilityID
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.Exec(s.rebind(`
		INSERT INTO convos (conversation_id, conversation_history, account_id, facility_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), id, string(raw), acct, fac, now, now)
	if err != nil {
		return "", fmt.Errorf("insert conversation: %w", err)
	}
	return id, nil
}

// Get returns the history for a conversation, or ErrNotFound. A null or
// empty stored history comes back as an empty slice, never nil.
func (s *Store) Get(conversationID string) ([]Message, error) {
	var raw sql.NullString
	err := s.db.QueryRow(s.rebind(
		`SELECT conversation_history FROM convos WHERE conversation_id = ?`), conversationID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}

	history := []Message{}
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &history); err != nil {
			return nil, fmt.Errorf("decode history for %s: %w", conversationID, err)
		}
		if history == nil {
			history = []Message{}
		}
	}
	return history, nil
}

// Update replaces the stored history for a conversation. It reports
// false when no conversation has the given id.
func (s *Store) Update(conversationID string, history []Message) (bool, error) {
	if history == nil {
		history = []Message{}
	}
	raw, err := json.Marshal(history)
	if err != nil {
		return false, fmt.Errorf("encode history: %w", err)
	}

	res, err := s.db.Exec(s.rebind(`
		UPDATE convos SET conversation_history = ?, updated_at = ?
		WHERE conversation_id = ?
	`), string(raw), time.Now().UTC().Format(time.RFC3339), conversationID)
	if err != nil {
		return false, fmt.Errorf("update conversation: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Exists reports whether a conversation with the given id exists.
func (s *Store) Exists(conversationID string) (bool, error) {
	var n int
	err := s.db.QueryRow(s.rebind(
		`SELECT COUNT(*) FROM convos WHERE conversation_id = ?`), conversationID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count conversations: %w", err)
	}
	return n > 0, nil
}
