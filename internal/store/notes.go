package store

import (
	"database/sql"
	"fmt"
)

// Note is a stored free-text note. At least one of AccountID or
// FacilityID is always set; notes are immutable once created.
type Note struct {
	NoteID      int64   `json:"note_id"`
	AccountID   *string `json:"account_id,omitempty"`
	FacilityID  *string `json:"facility_id,omitempty"`
	UserID      string  `json:"user_id"`
	NoteContent string  `json:"note_content"`
	CreatedAt   string  `json:"created_at"`
}

// InsertNote stores a note and returns the generated note id and
// creation timestamp. Empty accountID/facilityID are stored as NULL; the
// caller is responsible for validating that at least one is present and
// that referenced rows exist.
func (s *Store) InsertNote(userID, content, accountID, facilityID string) (int64, string, error) {
	createdAt := nowRFC3339()

	var acct, fac any
	if accountID != "" {
		acct = accountID
	}
	if facilityID != "" {
		fac = facilityID
	}

	// RETURNING works on both sqlite and postgres and avoids the
	// LastInsertId gap in the pgx stdlib adapter.
	var noteID int64
	err := s.db.QueryRow(s.rebind(`
		INSERT INTO notes (account_id, facility_id, user_id, note_content, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING note_id
	`), acct, fac, userID, content, createdAt).Scan(&noteID)
	if err != nil {
		return 0, "", fmt.Errorf("insert note: %w", err)
	}

	return noteID, createdAt, nil
}

// ListNotes returns up to limit notes for a user, newest first, scoped
// exactly to the identifier combination supplied:
//
//   - account only: notes tagged with that account and no facility
//   - facility only: notes tagged with that facility and no account
//   - both: account-only, facility-only, and dual-tagged notes
//
// At least one of accountID/facilityID must be non-empty.
func (s *Store) ListNotes(userID, accountID, facilityID string, limit int) ([]*Note, error) {
	if limit <= 0 {
		limit = 10
	}

	var scope string
	var args []any
	args = append(args, userID)

	switch {
	case accountID != "" && facilityID != "":
		scope = `((account_id = ? AND facility_id IS NULL)
			OR (facility_id = ? AND account_id IS NULL)
			OR (account_id = ? AND facility_id = ?))`
		args = append(args, accountID, facilityID, accountID, facilityID)
	case accountID != "":
		scope = `account_id = ? AND facility_id IS NULL`
		args = append(args, accountID)
	case facilityID != "":
		scope = `facility_id = ? AND account_id IS NULL`
		args = append(args, facilityID)
	default:
		return nil, fmt.Errorf("note scope requires account_id or facility_id")
	}

	args = append(args, limit)
	rows, err := s.db.Query(s.rebind(`
		SELECT note_id, account_id, facility_id, user_id, note_content, created_at
		FROM notes
		WHERE user_id = ? AND `+scope+`
		ORDER BY created_at DESC, note_id DESC
		LIMIT ?
	`), args...)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var notes []*Note
	for rows.Next() {
		var n Note
		var acct, fac sql.NullString
		if err := rows.Scan(&n.NoteID, &acct, &fac, &n.UserID, &n.NoteContent, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.AccountID = nullStr(acct)
		n.FacilityID = nullStr(fac)
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}
