package tools

import "github.com/evolyn/concierge/internal/store"

// Tool results are structured values, never errors: domain failures
// (not found, validation) come back as Success=false with a message so
// the model always has a well-formed value to reason over.

// AccountResult is the fetch_account_details result. On success the
// embedded account projection and facility list are populated.
type AccountResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`

	store.Account
	Facilities []store.FacilityInfo `json:"facilities,omitempty"`
}

// FacilityResult is the fetch_facility_details result. The embedded
// projection is populated only for a single exact match; zero-row and
// multi-row lookups carry a descriptive message instead.
type FacilityResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`

	store.Facility
}

// NoteSaveResult is the save_note result.
type NoteSaveResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	NoteID    *int64 `json:"note_id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// NoteInfo is a single note entry in a NotesListResult.
type NoteInfo struct {
	NoteID      int64  `json:"note_id"`
	NoteContent string `json:"note_content"`
	UserID      string `json:"user_id"`
	CreatedAt   string `json:"created_at"`
}

// NotesListResult is the get_notes result. An empty list is a success
// with TotalCount zero, not a failure.
type NotesListResult struct {
	Success    bool       `json:"success"`
	Message    string     `json:"message,omitempty"`
	Notes      []NoteInfo `json:"notes"`
	TotalCount int        `json:"total_count"`
}

// Results holds the most recent structured result per tool for one
// session. The orchestrator reads these to pass tool output through
// verbatim into response payloads.
type Results struct {
	Account   *AccountResult
	Facility  *FacilityResult
	NoteSave  *NoteSaveResult
	NotesList *NotesListResult
}
