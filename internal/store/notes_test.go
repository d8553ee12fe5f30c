package store

import "testing"

func seedNotesStore(t *testing.T) *Store {
	t.Helper()
	s := testStore(t)
	if err := s.UpsertAccount(testAccount("A-1")); err != nil {
		t.Fatalf("UpsertAccount() error: %v", err)
	}
	if err := s.UpsertFacility(testFacility("F-1", "A-1")); err != nil {
		t.Fatalf("UpsertFacility() error: %v", err)
	}
	return s
}

func TestInsertNoteReturnsIDAndTimestamp(t *testing.T) {
	s := seedNotesStore(t)

	id, createdAt, err := s.InsertNote("user-1", "first note", "A-1", "")
	if err != nil {
		t.Fatalf("InsertNote() error: %v", err)
	}
	if id == 0 {
		t.Error("InsertNote() returned note_id 0")
	}
	if createdAt == "" {
		t.Error("InsertNote() returned empty created_at")
	}

	id2, _, err := s.InsertNote("user-1", "second note", "A-1", "")
	if err != nil {
		t.Fatalf("InsertNote(second) error: %v", err)
	}
	if id2 <= id {
		t.Errorf("second note_id = %d, want > %d", id2, id)
	}
}

func TestListNotesNewestFirst(t *testing.T) {
	s := seedNotesStore(t)

	for _, content := range []string{"oldest", "middle", "newest"} {
		if _, _, err := s.InsertNote("user-1", content, "A-1", ""); err != nil {
			t.Fatalf("InsertNote(%q) error: %v", content, err)
		}
	}

	notes, err := s.ListNotes("user-1", "A-1", "", 10)
	if err != nil {
		t.Fatalf("ListNotes() error: %v", err)
	}
	if len(notes) != 3 {
		t.Fatalf("got %d notes, want 3", len(notes))
	}
	want := []string{"newest", "middle", "oldest"}
	for i, n := range notes {
		if n.NoteContent != want[i] {
			t.Errorf("notes[%d] = %q, want %q", i, n.NoteContent, want[i])
		}
	}
}

func TestListNotesScoping(t *testing.T) {
	s := seedNotesStore(t)

	if _, _, err := s.InsertNote("user-1", "account only", "A-1", ""); err != nil {
		t.Fatalf("InsertNote(account) error: %v", err)
	}
	if _, _, err := s.InsertNote("user-1", "facility only", "", "F-1"); err != nil {
		t.Fatalf("InsertNote(facility) error: %v", err)
	}
	if _, _, err := s.InsertNote("user-1", "both tagged", "A-1", "F-1"); err != nil {
		t.Fatalf("InsertNote(both) error: %v", err)
	}

	// Account scope excludes facility-tagged and dual-tagged notes.
	notes, err := s.ListNotes("user-1", "A-1", "", 10)
	if err != nil {
		t.Fatalf("ListNotes(account) error: %v", err)
	}
	if len(notes) != 1 || notes[0].NoteContent != "account only" {
		t.Errorf("account scope returned %d notes", len(notes))
	}

	// Facility scope mirrors that.
	notes, err = s.ListNotes("user-1", "", "F-1", 10)
	if err != nil {
		t.Fatalf("ListNotes(facility) error: %v", err)
	}
	if len(notes) != 1 || notes[0].NoteContent != "facility only" {
		t.Errorf("facility scope returned %d notes", len(notes))
	}

	// Both identifiers widen to all three combinations.
	notes, err = s.ListNotes("user-1", "A-1", "F-1", 10)
	if err != nil {
		t.Fatalf("ListNotes(both) error: %v", err)
	}
	if len(notes) != 3 {
		t.Errorf("both scope returned %d notes, want 3", len(notes))
	}
}

func TestListNotesFiltersByUser(t *testing.T) {
	s := seedNotesStore(t)

	if _, _, err := s.InsertNote("user-1", "mine", "A-1", ""); err != nil {
		t.Fatalf("InsertNote() error: %v", err)
	}
	if _, _, err := s.InsertNote("user-2", "theirs", "A-1", ""); err != nil {
		t.Fatalf("InsertNote() error: %v", err)
	}

	notes, err := s.ListNotes("user-1", "A-1", "", 10)
	if err != nil {
		t.Fatalf("ListNotes() error: %v", err)
	}
	if len(notes) != 1 || notes[0].NoteContent != "mine" {
		t.Errorf("got %d notes for user-1", len(notes))
	}
}

func TestListNotesLimit(t *testing.T) {
	s := seedNotesStore(t)

	for i := 0; i < 5; i++ {
		if _, _, err := s.InsertNote("user-1", "note", "A-1", ""); err != nil {
			t.Fatalf("InsertNote() error: %v", err)
		}
	}

	notes, err := s.ListNotes("user-1", "A-1", "", 2)
	if err != nil {
		t.Fatalf("ListNotes() error: %v", err)
	}
	if len(notes) != 2 {
		t.Errorf("got %d notes, want 2", len(notes))
	}

	// Non-positive limits fall back to the default of 10.
	notes, err = s.ListNotes("user-1", "A-1", "", 0)
	if err != nil {
		t.Fatalf("ListNotes(limit 0) error: %v", err)
	}
	if len(notes) != 5 {
		t.Errorf("got %d notes with default limit, want 5", len(notes))
	}
}

func TestListNotesRequiresScope(t *testing.T) {
	s := seedNotesStore(t)

	if _, err := s.ListNotes("user-1", "", "", 10); err == nil {
		t.Error("ListNotes with no scope expected error")
	}
}
