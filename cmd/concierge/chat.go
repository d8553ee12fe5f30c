package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/evolyn/concierge/internal/agent"
)

// exitWords end the interactive session.
var exitWords = map[string]bool{
	"quit":    true,
	"exit":    true,
	"bye":     true,
	"goodbye": true,
}

// runChat drives an interactive terminal conversation with the agent.
func runChat(ctx context.Context, stdout io.Writer, configPath string) error {
	_, _, orchestrator, recordStore, err := bootstrap(io.Discard, configPath)
	if err != nil {
		return err
	}
	defer recordStore.Close()

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)

	reader := bufio.NewReader(os.Stdin)

	fmt.Fprintln(stdout, "Evolyn Concierge - interactive chat")
	fmt.Fprintln(stdout, "Type 'quit', 'exit', or 'bye' to end the conversation.")
	fmt.Fprintln(stdout)

	userID, err := promptRequired(reader, stdout, "User ID (email) - required: ")
	if err != nil {
		return err
	}

	var accountID, facilityID string
	for {
		accountID, err = prompt(reader, stdout, "Account ID (optional, press Enter to skip): ")
		if err != nil {
			return err
		}
		facilityID, err = prompt(reader, stdout, "Facility ID (optional, press Enter to skip): ")
		if err != nil {
			return err
		}
		if accountID != "" || facilityID != "" {
			break
		}
		fmt.Fprintln(stdout, "Either Account ID or Facility ID is required. Please provide at least one.")
	}
	fmt.Fprintln(stdout)

	var conversationID string
	for {
		input, err := prompt(reader, stdout, "You: ")
		if err == io.EOF {
			fmt.Fprintln(stdout, "Goodbye!")
			return nil
		}
		if err != nil {
			return err
		}
		if input == "" {
			continue
		}
		if exitWords[strings.ToLower(input)] {
			fmt.Fprintln(stdout, "Goodbye! It was nice chatting with you.")
			return nil
		}

		resp, err := orchestrator.Chat(ctx, agent.Request{
			Message:        input,
			UserID:         userID,
			AccountID:      accountID,
			FacilityID:     facilityID,
			ConversationID: conversationID,
		})
		if err != nil {
			fmt.Fprintf(stdout, "Sorry, I encountered an error: %v\nPlease try again.\n\n", err)
			continue
		}
		conversationID = resp.ConversationID

		fmt.Fprint(stdout, renderMarkdown(renderer, resp.FinalResponse))
		fmt.Fprintln(stdout)
	}
}

// renderMarkdown pretty-prints model output, falling back to the raw
// text when the renderer is unavailable or fails.
func renderMarkdown(renderer *glamour.TermRenderer, text string) string {
	if renderer == nil {
		return text + "\n"
	}
	out, err := renderer.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}

func prompt(reader *bufio.Reader, stdout io.Writer, label string) (string, error) {
	fmt.Fprint(stdout, label)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptRequired(reader *bufio.Reader, stdout io.Writer, label string) (string, error) {
	for {
		v, err := prompt(reader, stdout, label)
		if err != nil {
			return "", err
		}
		if v != "" {
			return v, nil
		}
		fmt.Fprintln(stdout, "A value is required.")
	}
}
