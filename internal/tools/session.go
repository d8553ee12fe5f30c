// Package tools implements the database tools the model can call during
// a chat turn: account and facility lookups, note saving, and note
// retrieval. A Session is created per request with the resolved context
// baked in, so the model never controls which user or scope a note
// operation runs against.
package tools

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/evolyn/concierge/internal/resolve"
	"github.com/evolyn/concierge/internal/store"
)

// facilityMismatchReply is the fixed refusal for a facility id that
// contradicts the one supplied with the request.
const facilityMismatchReply = "Sorry, I don't have information for the Facility ID provided by user"

// Session executes tool calls for a single chat request.
type Session struct {
	logger   *slog.Logger
	store    *store.Store
	resolver *resolve.Resolver
	ctx      resolve.Context
	results  Results
}

// NewSession creates a per-request tool session bound to a resolved
// request context.
func NewSession(logger *slog.Logger, s *store.Store, r *resolve.Resolver, ctx resolve.Context) *Session {
	return &Session{logger: logger, store: s, resolver: r, ctx: ctx}
}

// Results returns the structured results recorded so far.
func (s *Session) Results() Results {
	return s.results
}

// Definitions returns the tool schemas advertised to the model.
func Definitions() []map[string]any {
	return []map[string]any{
		{
			"type": "function",
			"function": map[string]any{
				"name":        "fetch_account_details",
				"description": "Fetch full account details including balances, rewards, and the account's facilities. Uses the account from the conversation context when no account_id is given.",
				"parameters": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"account_id": map[string]any{
							"type":        "string",
							"description": "Account ID to look up. Optional when the conversation context already identifies an account.",
						},
					},
				},
			},
		},
		{
			"type": "function",
			"function": map[string]any{
				"name":        "fetch_facility_details",
				"description": "Fetch facility details including medical license, agreement, and shipping information. Uses the facility and account from the conversation context when ids are not given.",
				"parameters": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"facility_id": map[string]any{
							"type":        "string",
							"description": "Facility ID to look up.",
						},
						"account_id": map[string]any{
							"type":        "string",
							"description": "Restrict the lookup to facilities of this account.",
						},
					},
				},
			},
		},
		{
			"type": "function",
			"function": map[string]any{
				"name":        "save_note",
				"description": "Save a note for the current user, scoped to the account and/or facility of the conversation context.",
				"parameters": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"note_content": map[string]any{
							"type":        "string",
							"description": "The text of the note to save.",
						},
					},
					"required": []string{"note_content"},
				},
			},
		},
		{
			"type": "function",
			"function": map[string]any{
				"name":        "get_notes",
				"description": "Retrieve the current user's notes for the account and/or facility of the conversation context, newest first.",
				"parameters": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"limit": map[string]any{
							"type":        "integer",
							"description": "Maximum number of notes to return. Defaults to 10.",
						},
					},
				},
			},
		},
	}
}

// Execute runs a named tool and returns its result encoded as JSON.
// Unknown tool names and infrastructure failures return an error;
// domain failures are encoded into the result.
func (s *Session) Execute(name string, args map[string]any) (string, error) {
	s.logger.Debug("executing tool", "tool", name, "args", args)

	var (
		result any
		err    error
	)
	switch name {
	case "fetch_account_details":
		result, err = s.fetchAccount(stringArg(args, "account_id"))
	case "fetch_facility_details":
		result, err = s.fetchFacility(stringArg(args, "facility_id"), stringArg(args, "account_id"))
	case "save_note":
		result, err = s.saveNote(stringArg(args, "note_content"))
	case "get_notes":
		result, err = s.getNotes(intArg(args, "limit", 10))
	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
	if err != nil {
		return "", err
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encode %s result: %w", name, err)
	}
	return string(raw), nil
}

func (s *Session) fetchAccount(accountID string) (*AccountResult, error) {
	if accountID == "" {
		accountID = s.ctx.AccountID
	}
	if accountID == "" && s.ctx.FacilityID != "" {
		owner, err := s.resolver.AccountForFacility(s.ctx.FacilityID)
		if errors.Is(err, resolve.ErrFacilityNotFound) {
			return s.recordAccount(&AccountResult{
				Message: fmt.Sprintf("No facility found with ID '%s'; cannot determine the account.", s.ctx.FacilityID),
			}), nil
		}
		if err != nil {
			return nil, err
		}
		accountID = owner
	}
	if accountID == "" {
		return s.recordAccount(&AccountResult{
			Message: "An account ID is required to fetch account details.",
		}), nil
	}

	acct, err := s.store.GetAccount(accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return s.recordAccount(&AccountResult{
			Message: fmt.Sprintf("No account found with account ID '%s'.", accountID),
		}), nil
	}
	if err != nil {
		return nil, err
	}

	facilities, err := s.store.ListAccountFacilities(accountID)
	if err != nil {
		return nil, err
	}

	return s.recordAccount(&AccountResult{
		Success:    true,
		Account:    *acct,
		Facilities: facilities,
	}), nil
}

func (s *Session) fetchFacility(facilityID, accountID string) (*FacilityResult, error) {
	// The model cannot swap in a facility the caller did not ask about.
	if facilityID != "" && s.ctx.FacilityID != "" && facilityID != s.ctx.FacilityID {
		return s.recordFacility(&FacilityResult{Message: facilityMismatchReply}), nil
	}
	if facilityID == "" {
		facilityID = s.ctx.FacilityID
	}
	// A request-scoped account always constrains the lookup.
	if s.ctx.AccountID != "" {
		accountID = s.ctx.AccountID
	}

	if facilityID == "" && accountID == "" {
		return s.recordFacility(&FacilityResult{
			Message: "A facility ID or account ID is required to fetch facility details.",
		}), nil
	}

	facilities, err := s.store.FindFacilities(store.FacilityFilter{
		FacilityID: facilityID,
		AccountID:  accountID,
	})
	if err != nil {
		return nil, err
	}

	switch len(facilities) {
	case 0:
		return s.recordFacility(&FacilityResult{
			Message: "No facilities found matching your criteria.",
		}), nil
	case 1:
		return s.recordFacility(&FacilityResult{
			Success:  true,
			Facility: *facilities[0],
		}), nil
	default:
		var list []string
		for _, f := range facilities {
			list = append(list, fmt.Sprintf("- %s (ID: %s)", f.Name, f.ID))
		}
		return s.recordFacility(&FacilityResult{
			Success: true,
			Message: fmt.Sprintf("Found %d facilities matching your criteria:\n%s",
				len(facilities), strings.Join(list, "\n")),
		}), nil
	}
}

func (s *Session) saveNote(content string) (*NoteSaveResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return s.recordNoteSave(&NoteSaveResult{Message: "Note content cannot be empty."}), nil
	}
	if strings.TrimSpace(s.ctx.UserID) == "" {
		return s.recordNoteSave(&NoteSaveResult{Message: "A user ID is required to save a note."}), nil
	}
	if s.ctx.AccountID == "" && s.ctx.FacilityID == "" {
		return s.recordNoteSave(&NoteSaveResult{Message: "An account ID or facility ID is required to save a note."}), nil
	}

	if s.ctx.AccountID != "" {
		ok, err := s.store.AccountExists(s.ctx.AccountID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return s.recordNoteSave(&NoteSaveResult{
				Message: fmt.Sprintf("Account with ID '%s' not found. Cannot save note.", s.ctx.AccountID),
			}), nil
		}
	}
	if s.ctx.FacilityID != "" {
		ok, err := s.store.FacilityExists(s.ctx.FacilityID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return s.recordNoteSave(&NoteSaveResult{
				Message: fmt.Sprintf("Facility with ID '%s' not found. Cannot save note.", s.ctx.FacilityID),
			}), nil
		}
	}

	noteID, createdAt, err := s.store.InsertNote(s.ctx.UserID, content, s.ctx.AccountID, s.ctx.FacilityID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("note saved",
		"note_id", noteID,
		"user_id", s.ctx.UserID,
		"account_id", s.ctx.AccountID,
		"facility_id", s.ctx.FacilityID)

	return s.recordNoteSave(&NoteSaveResult{
		Success:   true,
		Message:   "Note saved successfully.",
		NoteID:    &noteID,
		CreatedAt: createdAt,
	}), nil
}

func (s *Session) getNotes(limit int) (*NotesListResult, error) {
	if strings.TrimSpace(s.ctx.UserID) == "" {
		return s.recordNotesList(&NotesListResult{
			Message: "A user ID is required to retrieve notes.",
			Notes:   []NoteInfo{},
		}), nil
	}
	if s.ctx.AccountID == "" && s.ctx.FacilityID == "" {
		return s.recordNotesList(&NotesListResult{
			Message: "An account ID or facility ID is required to retrieve notes.",
			Notes:   []NoteInfo{},
		}), nil
	}

	notes, err := s.store.ListNotes(s.ctx.UserID, s.ctx.AccountID, s.ctx.FacilityID, limit)
	if err != nil {
		return nil, err
	}

	infos := make([]NoteInfo, 0, len(notes))
	for _, n := range notes {
		infos = append(infos, NoteInfo{
			NoteID:      n.NoteID,
			NoteContent: n.NoteContent,
			UserID:      n.UserID,
			CreatedAt:   n.CreatedAt,
		})
	}

	result := &NotesListResult{
		Success:    true,
		Notes:      infos,
		TotalCount: len(infos),
	}
	if len(infos) == 0 {
		result.Message = "No notes found for the current context."
	}
	return s.recordNotesList(result), nil
}

func (s *Session) recordAccount(r *AccountResult) *AccountResult {
	s.results.Account = r
	return r
}

func (s *Session) recordFacility(r *FacilityResult) *FacilityResult {
	s.results.Facility = r
	return r
}

func (s *Session) recordNoteSave(r *NoteSaveResult) *NoteSaveResult {
	s.results.NoteSave = r
	return r
}

func (s *Session) recordNotesList(r *NotesListResult) *NotesListResult {
	s.results.NotesList = r
	return r
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}
