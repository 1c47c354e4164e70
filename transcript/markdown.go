package transcript

import (
	"fmt"
	"strings"
	"time"

	"github.com/ankitkumar1302/mobilemodels/api"
)

// Markdown renders the conversation as a human-readable document with the
// sender labelled on every entry.
func Markdown(room api.ChatRoom, messages []api.Message, exportedAt time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Chat Export: %q\n\n", room.Title)
	fmt.Fprintf(&b, "**Exported on:** %s\n\n", exportedAt.Format("Jan 2, 2006 3:04 PM"))
	b.WriteString("---\n\n")
	b.WriteString("## Chat History\n\n")
	for _, message := range messages {
		sender := "Assistant"
		if message.FromUser() {
			sender = "User"
		}
		fmt.Fprintf(&b, "**%s:**\n%s\n\n", sender, message.Content)
	}
	return b.String()
}

// MarkdownFileName is the suggested name for a markdown export.
func MarkdownFileName(room api.ChatRoom, exportedAt time.Time) string {
	return fmt.Sprintf("export_%s_%d.md", room.Title, exportedAt.UnixMilli())
}
