package retrieval

import (
	"strings"

	"github.com/google/uuid"

	types "github.com/yungbote/docqa-backend/internal/domain"
)

// Snippet is one piece of retrieved text attributed to its document.
type Snippet struct {
	FileID   uuid.UUID
	Filename string
	// AreaType is set for problem/solution area hits; "unknown" when the
	// vector metadata lacks it.
	AreaType string
	Text     string
}

func (s Snippet) IsArea() bool { return s.AreaType != "" }

// String renders the snippet the way it is placed into the prompt.
func (s Snippet) String() string {
	if s.IsArea() {
		return "From " + s.Filename + " [" + strings.ToUpper(s.AreaType) + " AREA]: " + s.Text
	}
	return "From " + s.Filename + ": " + s.Text
}

// HistoryMessage is one prior chat turn, oldest first.
type HistoryMessage struct {
	Role    string
	Content string
}

func HistoryFromMessages(msgs []*types.ChatMessage) []HistoryMessage {
	out := make([]HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		out = append(out, HistoryMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
