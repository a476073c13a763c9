package execute

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const stackCommentVersion = 1

func marker() string {
	return fmt.Sprintf("<!-- ryu-stack-v%d -->", stackCommentVersion)
}

// stackEntry is one PR's row in the rendered stack comment. StackPos
// is the bookmark's position in the stack (nearest-to-trunk = 0); the
// caller sorts entries by it before rendering so the comment reflects
// real stack order rather than map iteration order.
type stackEntry struct {
	Bookmark string `json:"bookmark"`
	Number   int    `json:"number"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	StackPos int    `json:"stack_pos"`
}

// stackPayload is the trailing JSON block a stack comment carries so
// later runs can locate and replace their own comment without relying
// on the human-readable text above it. CorrelationID is a fresh random
// id for each rendered body; the forge adapters find an existing
// comment by the marker alone and do not read it back.
type stackPayload struct {
	CorrelationID string       `json:"correlation_id"`
	Entries       []stackEntry `json:"entries"`
}

// buildStackComment renders the body for a PR whose stack is
// `entries`, newest-at-top, marking `current`. entries is expected
// ordered nearest-to-trunk first; the render reverses it.
func buildStackComment(entries []stackEntry, current string) string {
	var b strings.Builder
	b.WriteString(marker())
	b.WriteString("\n\n**Stack**\n\n")
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		prefix := "- "
		if e.Bookmark == current {
			prefix = "- **→ "
		}
		b.WriteString(prefix)
		if e.Bookmark == current {
			fmt.Fprintf(&b, "#%d %s**\n", e.Number, e.Title)
		} else {
			fmt.Fprintf(&b, "#%d %s\n", e.Number, e.Title)
		}
	}
	payload := stackPayload{CorrelationID: uuid.NewString(), Entries: entries}
	data, _ := json.Marshal(payload)
	b.WriteString("\n<!--ryu-stack-data:")
	b.Write(data)
	b.WriteString("-->\n")
	return b.String()
}
