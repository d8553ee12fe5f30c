package agent

import "strings"

// ResponseType classifies a chat turn. Structured payloads attach only
// to the overview kinds.
type ResponseType string

const (
	TypeAccountOverview  ResponseType = "account_overview"
	TypeFacilityOverview ResponseType = "facility_overview"
	TypeNotesOverview    ResponseType = "notes_overview"
	TypeConversational   ResponseType = "conversational"
)

// overviewKeywords are the explicit markers that make a request an
// overview rather than a conversational question.
var overviewKeywords = []string{"overview", "details", "summary", "complete account information"}

// Classify maps a user message to a response type. A non-conversational
// kind is chosen only when the user explicitly asks for an overview,
// details, or summary of an entity, or asks to see notes; everything
// else, including direct factual questions like "is my account
// active?", is conversational.
func Classify(message string) ResponseType {
	m := strings.ToLower(message)

	// Saving a note is an action, not a notes overview.
	if strings.Contains(m, "save") && strings.Contains(m, "note") {
		return TypeConversational
	}

	// Note retrieval, including ordinal requests like "second last note".
	if strings.Contains(m, "note") {
		return TypeNotesOverview
	}

	keyword := false
	for _, k := range overviewKeywords {
		if strings.Contains(m, k) {
			keyword = true
			break
		}
	}
	if !keyword {
		return TypeConversational
	}

	// Facility wins when both entities are named: "facility details for
	// my account" is about the facility.
	if strings.Contains(m, "facilit") {
		return TypeFacilityOverview
	}
	if strings.Contains(m, "account") {
		return TypeAccountOverview
	}

	// An overview keyword with no entity named is ambiguous.
	return TypeConversational
}
