package agent

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		message string
		want    ResponseType
	}{
		// Account overviews.
		{"show me account overview", TypeAccountOverview},
		{"give me account details", TypeAccountOverview},
		{"account summary", TypeAccountOverview},
		{"fetch me account overview", TypeAccountOverview},
		{"I need complete account information", TypeAccountOverview},

		// Facility overviews.
		{"show me facility overview", TypeFacilityOverview},
		{"give me facility details", TypeFacilityOverview},
		{"facility summary", TypeFacilityOverview},
		{"Fetch me facility details of F-123456", TypeFacilityOverview},

		// Facility wins when both entities appear.
		{"facility details for my account", TypeFacilityOverview},
		{"show me details of the facilities on this account", TypeFacilityOverview},

		// Notes.
		{"show me my notes", TypeNotesOverview},
		{"last note", TypeNotesOverview},
		{"what was my second last note?", TypeNotesOverview},
		{"third note", TypeNotesOverview},
		{"note summary", TypeNotesOverview},

		// Saving is an action, not an overview.
		{"Save this note: Patient called", TypeConversational},
		{"please save a note saying the clinic closes early", TypeConversational},

		// Direct questions stay conversational.
		{"is my account active?", TypeConversational},
		{"what's my account status?", TypeConversational},
		{"what's my balance?", TypeConversational},
		{"when is my invoice due?", TypeConversational},
		{"hello there", TypeConversational},

		// Overview keyword with no entity.
		{"give me the details", TypeConversational},
		{"summary please", TypeConversational},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			if got := Classify(tt.message); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.message, got, tt.want)
			}
		})
	}
}
