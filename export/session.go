package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hazyhaar/cahier/store"
)

// SessionExport is the JSON archive of one chat session.
type SessionExport struct {
	ExportedAt   string                 `json:"exported_at"`
	Session      *store.ChatSession     `json:"session"`
	InputTokens  int64                  `json:"input_tokens"`
	OutputTokens int64                  `json:"output_tokens"`
	Messages     []SessionExportMessage `json:"messages"`
}

// SessionExportMessage flattens a message for the archive, decoding ExtraJSON
// into a structured field when present.
type SessionExportMessage struct {
	Role        string          `json:"role"`
	MessageType string          `json:"message_type"`
	Content     string          `json:"content"`
	Extra       json.RawMessage `json:"extra,omitempty"`
	CreatedAt   int64           `json:"created_at"`
}

// Session builds the JSON export of a session and its messages.
func Session(session *store.ChatSession, messages []*store.Message) ([]byte, error) {
	exp := SessionExport{
		ExportedAt:   time.Now().UTC().Format(time.RFC3339),
		Session:      session,
		InputTokens:  session.InputTokens,
		OutputTokens: session.OutputTokens,
		Messages:     make([]SessionExportMessage, 0, len(messages)),
	}
	for _, m := range messages {
		em := SessionExportMessage{
			Role:        m.Role,
			MessageType: m.MessageType,
			Content:     m.Content,
			CreatedAt:   m.CreatedAt,
		}
		if m.ExtraJSON != "" && json.Valid([]byte(m.ExtraJSON)) {
			em.Extra = json.RawMessage(m.ExtraJSON)
		}
		exp.Messages = append(exp.Messages, em)
	}

	out, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal session export: %w", err)
	}
	return out, nil
}
