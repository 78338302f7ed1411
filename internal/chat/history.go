package chat

import (
	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/quill/internal/store"
)

// buildHistory folds stored messages into the model message list. Tool
// call audit rows are not replayed; the assistant text already reflects
// their outcome.
func buildHistory(msgs []*store.Message) []*schema.Message {
	history := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case store.RoleUser:
			history = append(history, schema.UserMessage(m.Content))
		case store.RoleAssistant:
			// Empty assistant rows only anchor tool audit records from a
			// failed turn; there is no text to replay.
			if m.Content == "" {
				continue
			}
			history = append(history, schema.AssistantMessage(m.Content, nil))
		}
	}
	return history
}
