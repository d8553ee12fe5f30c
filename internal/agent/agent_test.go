package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/evolyn/concierge/internal/conversation"
	"github.com/evolyn/concierge/internal/llm"
	"github.com/evolyn/concierge/internal/resolve"
	"github.com/evolyn/concierge/internal/store"
)

// scriptedLLM returns canned responses in order.
type scriptedLLM struct {
	responses []*llm.ChatResponse
	calls     int
}

func (f *scriptedLLM) Chat(ctx context.Context, model string, messages []llm.Message, tools []map[string]any) (*llm.ChatResponse, error) {
	if f.calls >= len(f.responses) {
		return nil, errors.New("scripted llm exhausted")
	}
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

func (f *scriptedLLM) Ping(ctx context.Context) error { return nil }

func textTurn(content string) *llm.ChatResponse {
	return &llm.ChatResponse{Message: llm.Message{Role: "assistant", Content: content}, Done: true}
}

func toolTurn(name string, args map[string]any) *llm.ChatResponse {
	return &llm.ChatResponse{
		Message: llm.Message{
			Role: "assistant",
			ToolCalls: []llm.ToolCall{{
				ID:       "call_1",
				Function: llm.FunctionCall{Name: name, Arguments: args},
			}},
		},
		Done: true,
	}
}

func testFixtures(t *testing.T) (*store.Store, *conversation.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "agent_test.db")
	s, err := store.Open(store.DriverSQLite, dbPath)
	if err != nil {
		t.Fatalf("store.Open(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { s.Close() })

	convos, err := conversation.NewStore(s.DB(), s.Driver())
	if err != nil {
		t.Fatalf("conversation.NewStore(): %v", err)
	}

	if err := s.UpsertAccount(&store.Account{AccountID: "A-1", Name: "Riverbend Medical", Status: "active"}); err != nil {
		t.Fatalf("UpsertAccount(): %v", err)
	}
	if err := s.UpsertFacility(&store.Facility{ID: "F-1", Name: "Riverbend Clinic", Status: "active", AccountID: "A-1"}); err != nil {
		t.Fatalf("UpsertFacility(): %v", err)
	}
	return s, convos
}

func testOrchestrator(t *testing.T, client llm.Client) (*Orchestrator, *conversation.Store) {
	t.Helper()
	s, convos := testFixtures(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(logger, client, "test-model", 5, s, convos), convos
}

func TestChatSaveNoteThenGetNotes(t *testing.T) {
	fake := &scriptedLLM{responses: []*llm.ChatResponse{
		toolTurn("save_note", map[string]any{"note_content": "Patient called"}),
		textTurn("I've saved your note."),
		toolTurn("get_notes", nil),
		textTurn("Here is your note."),
	}}
	o, _ := testOrchestrator(t, fake)

	resp, err := o.Chat(context.Background(), Request{
		Message:   "Save this note: Patient called",
		UserID:    "a@b.com",
		AccountID: "A-1",
	})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.ConversationID == "" {
		t.Fatal("no conversation_id generated")
	}
	if resp.ResponseType != TypeConversational {
		t.Errorf("response_type = %s, want conversational", resp.ResponseType)
	}
	if resp.FinalResponse != "I've saved your note." {
		t.Errorf("final_response = %q", resp.FinalResponse)
	}

	resp2, err := o.Chat(context.Background(), Request{
		Message:        "show me my notes",
		UserID:         "a@b.com",
		AccountID:      "A-1",
		ConversationID: resp.ConversationID,
	})
	if err != nil {
		t.Fatalf("Chat(notes) error: %v", err)
	}
	if resp2.ResponseType != TypeNotesOverview {
		t.Fatalf("response_type = %s, want notes_overview", resp2.ResponseType)
	}
	if resp2.NotesData == nil || resp2.NotesData.TotalCount != 1 {
		t.Fatalf("notes_data = %+v", resp2.NotesData)
	}
	if resp2.NotesData.Notes[0].NoteContent != "Patient called" {
		t.Errorf("note content = %q", resp2.NotesData.Notes[0].NoteContent)
	}
}

func TestChatAccountOverviewAttachesPayload(t *testing.T) {
	fake := &scriptedLLM{responses: []*llm.ChatResponse{
		toolTurn("fetch_account_details", nil),
		textTurn("Here is your account overview."),
	}}
	o, _ := testOrchestrator(t, fake)

	resp, err := o.Chat(context.Background(), Request{
		Message:   "show me account overview",
		UserID:    "a@b.com",
		AccountID: "A-1",
	})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.ResponseType != TypeAccountOverview {
		t.Fatalf("response_type = %s", resp.ResponseType)
	}
	if resp.AccountDetails == nil || !resp.AccountDetails.Success {
		t.Fatalf("account_details = %+v", resp.AccountDetails)
	}
	if resp.AccountDetails.AccountID != "A-1" || resp.AccountDetails.Name != "Riverbend Medical" {
		t.Errorf("payload = %s %q", resp.AccountDetails.AccountID, resp.AccountDetails.Name)
	}
	if resp.FacilityDetails != nil || resp.NotesData != nil {
		t.Error("non-matching payloads populated")
	}
}

func TestChatOverviewWithoutToolDowngrades(t *testing.T) {
	fake := &scriptedLLM{responses: []*llm.ChatResponse{
		textTurn("Your account is in good shape."),
	}}
	o, _ := testOrchestrator(t, fake)

	resp, err := o.Chat(context.Background(), Request{
		Message:   "show me account overview",
		UserID:    "a@b.com",
		AccountID: "A-1",
	})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.ResponseType != TypeConversational {
		t.Errorf("response_type = %s, want conversational downgrade", resp.ResponseType)
	}
	if resp.AccountDetails != nil {
		t.Error("account_details populated without a tool run")
	}
}

func TestChatUnknownFacilityStaysConversational(t *testing.T) {
	fake := &scriptedLLM{responses: []*llm.ChatResponse{
		toolTurn("fetch_facility_details", map[string]any{"facility_id": "F-999"}),
		textTurn("Sorry, I don't have information for the Facility ID provided by user"),
	}}
	o, _ := testOrchestrator(t, fake)

	resp, err := o.Chat(context.Background(), Request{
		Message:    "is facility F-999 in good standing?",
		UserID:     "a@b.com",
		FacilityID: "F-999",
	})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.ResponseType != TypeConversational {
		t.Errorf("response_type = %s", resp.ResponseType)
	}
	if resp.FacilityDetails != nil {
		t.Error("facility_details populated for conversational turn")
	}
}

func TestChatMissingContext(t *testing.T) {
	o, _ := testOrchestrator(t, &scriptedLLM{})

	_, err := o.Chat(context.Background(), Request{
		Message: "hello",
		UserID:  "a@b.com",
	})
	if !errors.Is(err, resolve.ErrMissingContext) {
		t.Errorf("error = %v, want ErrMissingContext", err)
	}
}

func TestChatUnknownConversation(t *testing.T) {
	o, _ := testOrchestrator(t, &scriptedLLM{})

	_, err := o.Chat(context.Background(), Request{
		Message:        "hello",
		UserID:         "a@b.com",
		AccountID:      "A-1",
		ConversationID: "no-such-id",
	})
	if !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("error = %v, want ErrConversationNotFound", err)
	}
}

func TestChatMismatchRefusalPersisted(t *testing.T) {
	o, convos := testOrchestrator(t, &scriptedLLM{})

	resp, err := o.Chat(context.Background(), Request{
		Message:    "show me facility details",
		UserID:     "a@b.com",
		AccountID:  "A-2",
		FacilityID: "F-1",
	})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.ResponseType != TypeConversational {
		t.Errorf("response_type = %s", resp.ResponseType)
	}
	if resp.FinalResponse == "" {
		t.Error("refusal has no text")
	}
	if resp.ConversationID == "" {
		t.Fatal("refusal turn not persisted")
	}

	history, err := convos.Get(resp.ConversationID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if len(history) != 2 || history[1].Content != resp.FinalResponse {
		t.Errorf("history = %+v", history)
	}
}

func TestChatRequestFacilityNotFoundRefusal(t *testing.T) {
	o, _ := testOrchestrator(t, &scriptedLLM{})

	resp, err := o.Chat(context.Background(), Request{
		Message:    "account overview please",
		UserID:     "a@b.com",
		AccountID:  "A-1",
		FacilityID: "F-404",
	})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.FinalResponse != "Sorry, I don't have information for the Facility ID provided by user" {
		t.Errorf("final_response = %q", resp.FinalResponse)
	}
	if resp.ResponseType != TypeConversational {
		t.Errorf("response_type = %s", resp.ResponseType)
	}
}

func TestChatPersistsHistoryAcrossTurns(t *testing.T) {
	fake := &scriptedLLM{responses: []*llm.ChatResponse{
		textTurn("Hello! How can I help?"),
		textTurn("Your account is active."),
	}}
	o, convos := testOrchestrator(t, fake)

	first, err := o.Chat(context.Background(), Request{
		Message:   "hi",
		UserID:    "a@b.com",
		AccountID: "A-1",
	})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}

	second, err := o.Chat(context.Background(), Request{
		Message:        "is my account active?",
		UserID:         "a@b.com",
		AccountID:      "A-1",
		ConversationID: first.ConversationID,
	})
	if err != nil {
		t.Fatalf("Chat(second) error: %v", err)
	}
	if second.ConversationID != first.ConversationID {
		t.Errorf("conversation_id changed: %s vs %s", first.ConversationID, second.ConversationID)
	}

	history, err := convos.Get(first.ConversationID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	want := []conversation.Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "Hello! How can I help?"},
		{Role: "user", Content: "is my account active?"},
		{Role: "assistant", Content: "Your account is active."},
	}
	if len(history) != len(want) {
		t.Fatalf("history has %d messages, want %d", len(history), len(want))
	}
	for i := range want {
		if history[i] != want[i] {
			t.Errorf("history[%d] = %+v, want %+v", i, history[i], want[i])
		}
	}
}

func TestChatMaxIterationsForcesText(t *testing.T) {
	fake := &scriptedLLM{responses: []*llm.ChatResponse{
		toolTurn("get_notes", nil),
		toolTurn("get_notes", nil),
		textTurn("I could not finish the lookups, but here is what I found."),
	}}
	s, convos := testFixtures(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	o := New(logger, fake, "test-model", 2, s, convos)

	resp, err := o.Chat(context.Background(), Request{
		Message:   "show me my notes",
		UserID:    "a@b.com",
		AccountID: "A-1",
	})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.FinalResponse == "" {
		t.Error("no final text after exhausting iterations")
	}
	if fake.calls != 3 {
		t.Errorf("llm calls = %d, want 3", fake.calls)
	}
}
