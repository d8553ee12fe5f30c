// Package agent orchestrates a chat turn: it resolves request context,
// loads conversation history, runs the model's tool loop against the
// record store, classifies the response, and persists the updated
// history.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/evolyn/concierge/internal/conversation"
	"github.com/evolyn/concierge/internal/llm"
	"github.com/evolyn/concierge/internal/resolve"
	"github.com/evolyn/concierge/internal/store"
	"github.com/evolyn/concierge/internal/tools"
)

const defaultMaxIter = 5

// ErrConversationNotFound reports an unknown conversation_id on a
// request.
var ErrConversationNotFound = errors.New("conversation not found")

// facilityNotFoundReply is the fixed refusal when the request's
// facility id does not exist.
const facilityNotFoundReply = "Sorry, I don't have information for the Facility ID provided by user"

// mismatchReply is the fixed refusal when the request's facility does
// not belong to the request's account.
const mismatchReply = "Sorry, the facility ID provided does not belong to the account ID provided. Please check the identifiers and try again."

// Request is one inbound chat turn.
type Request struct {
	Message        string
	UserID         string
	AccountID      string
	FacilityID     string
	ConversationID string
}

// Response is the structured outcome of a chat turn. Exactly one of
// the payload fields is set, and only for the matching overview kind.
type Response struct {
	FinalResponse   string                 `json:"final_response"`
	Message         string                 `json:"message,omitempty"`
	ConversationID  string                 `json:"conversation_id"`
	ResponseType    ResponseType           `json:"response_type"`
	AccountDetails  *tools.AccountResult   `json:"account_details,omitempty"`
	FacilityDetails *tools.FacilityResult  `json:"facility_details,omitempty"`
	NotesData       *tools.NotesListResult `json:"notes_data,omitempty"`
}

// Orchestrator runs chat turns against one model and one record store.
type Orchestrator struct {
	logger   *slog.Logger
	llm      llm.Client
	model    string
	maxIter  int
	store    *store.Store
	convos   *conversation.Store
	resolver *resolve.Resolver
}

// New creates an orchestrator. maxIter bounds the tool loop; zero or
// negative means the default.
func New(logger *slog.Logger, client llm.Client, model string, maxIter int, s *store.Store, convos *conversation.Store) *Orchestrator {
	if maxIter <= 0 {
		maxIter = defaultMaxIter
	}
	return &Orchestrator{
		logger:   logger,
		llm:      client,
		model:    model,
		maxIter:  maxIter,
		store:    s,
		convos:   convos,
		resolver: resolve.New(s),
	}
}

// Chat handles one turn end to end. Validation failures on the request
// itself (missing context, unknown conversation) return errors for the
// transport to map; context refusals come back as ordinary responses
// and are persisted like any other turn.
func (o *Orchestrator) Chat(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	history, err := o.loadHistory(req.ConversationID)
	if err != nil {
		return nil, err
	}

	rctx, err := o.resolver.Resolve(req.UserID, req.AccountID, req.FacilityID)
	switch {
	case errors.Is(err, resolve.ErrMissingContext):
		return nil, err
	case errors.Is(err, resolve.ErrFacilityNotFound):
		return o.refuse(req, history, facilityNotFoundReply)
	case errors.Is(err, resolve.ErrAccountFacilityMismatch):
		return o.refuse(req, history, mismatchReply)
	case err != nil:
		return nil, err
	}

	session := tools.NewSession(o.logger, o.store, o.resolver, rctx)
	finalText, err := o.runToolLoop(ctx, session, history, req)
	if err != nil {
		return nil, err
	}

	resp := o.buildResponse(req.Message, finalText, session.Results())

	resp.ConversationID, err = o.persist(req, history, resp.FinalResponse)
	if err != nil {
		return nil, err
	}

	o.logger.Info("chat turn complete",
		"conversation_id", resp.ConversationID,
		"response_type", resp.ResponseType,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return resp, nil
}

func (o *Orchestrator) loadHistory(conversationID string) ([]conversation.Message, error) {
	if conversationID == "" {
		return []conversation.Message{}, nil
	}
	history, err := o.convos.Get(conversationID)
	if errors.Is(err, conversation.ErrNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return history, nil
}

// runToolLoop drives the model until it answers in text or the
// iteration budget runs out, executing requested tools in between.
func (o *Orchestrator) runToolLoop(ctx context.Context, session *tools.Session, history []conversation.Message, req Request) (string, error) {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{
		Role:    "user",
		Content: contextPrefix(req.AccountID, req.FacilityID, req.UserID) + req.Message,
	})

	toolDefs := tools.Definitions()

	for i := range o.maxIter {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("chat cancelled: %w", err)
		}

		o.logger.Debug("llm call", "iter", i, "model", o.model, "msgs", len(messages))

		resp, err := o.llm.Chat(ctx, o.model, messages, toolDefs)
		if err != nil {
			return "", fmt.Errorf("llm call failed (iter %d): %w", i, err)
		}

		if len(resp.Message.ToolCalls) == 0 {
			return resp.Message.Content, nil
		}

		messages = append(messages, resp.Message)
		for _, tc := range resp.Message.ToolCalls {
			result, err := session.Execute(tc.Function.Name, tc.Function.Arguments)
			if err != nil {
				o.logger.Error("tool exec failed", "tool", tc.Function.Name, "error", err)
				result = toolErrorJSON(err)
			}
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: tc.ID,
			})
		}
	}

	// Budget exhausted; one last call with no tools forces text output.
	o.logger.Warn("max tool iterations reached", "max_iter", o.maxIter)
	resp, err := o.llm.Chat(ctx, o.model, messages, nil)
	if err != nil {
		return "", fmt.Errorf("final llm call failed: %w", err)
	}
	return resp.Message.Content, nil
}

// buildResponse classifies the turn and attaches the matching tool
// result verbatim. A kind whose tool never ran downgrades to
// conversational rather than shipping an empty payload.
func (o *Orchestrator) buildResponse(userMessage, finalText string, results tools.Results) *Response {
	resp := &Response{
		FinalResponse: finalText,
		ResponseType:  Classify(userMessage),
	}

	switch resp.ResponseType {
	case TypeAccountOverview:
		if results.Account != nil {
			resp.AccountDetails = results.Account
			resp.Message = results.Account.Message
		} else {
			resp.ResponseType = TypeConversational
		}
	case TypeFacilityOverview:
		if results.Facility != nil {
			resp.FacilityDetails = results.Facility
			resp.Message = results.Facility.Message
		} else {
			resp.ResponseType = TypeConversational
		}
	case TypeNotesOverview:
		if results.NotesList != nil {
			resp.NotesData = results.NotesList
			resp.Message = results.NotesList.Message
		} else {
			resp.ResponseType = TypeConversational
		}
	}

	return resp
}

// refuse answers a context failure as a normal conversational turn and
// persists it, so the refusal is part of the dialogue record.
func (o *Orchestrator) refuse(req Request, history []conversation.Message, reply string) (*Response, error) {
	conversationID, err := o.persistTurns(req, history, reply)
	if err != nil {
		return nil, err
	}
	return &Response{
		FinalResponse:  reply,
		ConversationID: conversationID,
		ResponseType:   TypeConversational,
	}, nil
}

func (o *Orchestrator) persist(req Request, history []conversation.Message, finalText string) (string, error) {
	return o.persistTurns(req, history, finalText)
}

func (o *Orchestrator) persistTurns(req Request, history []conversation.Message, assistantText string) (string, error) {
	history = append(history,
		conversation.Message{Role: "user", Content: req.Message},
		conversation.Message{Role: "assistant", Content: assistantText},
	)

	if req.ConversationID == "" {
		id, err := o.convos.Create(history, req.AccountID, req.FacilityID)
		if err != nil {
			return "", fmt.Errorf("create conversation: %w", err)
		}
		return id, nil
	}

	ok, err := o.convos.Update(req.ConversationID, history)
	if err != nil {
		return "", fmt.Errorf("update conversation: %w", err)
	}
	if !ok {
		// The conversation existed when history loaded; treat a lost
		// row as not found.
		return "", ErrConversationNotFound
	}
	return req.ConversationID, nil
}

func toolErrorJSON(err error) string {
	raw, _ := json.Marshal(map[string]any{
		"success": false,
		"message": "Tool execution failed: " + err.Error(),
	})
	return string(raw)
}
