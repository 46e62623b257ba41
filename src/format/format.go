package format

import (
	"strings"

	"github.com/seventv/PipelineNotifier/src/event"
)

type Message struct {
	Text string `json:"content"`
}

// Format renders the chat line for evt. Consumers parse this layout, so the
// missing space after "Pipeline" stays and the timestamp is passed through untouched.
func Format(evt event.StageExecutionEvent) Message {
	sb := strings.Builder{}
	sb.Grow(len(evt.Pipeline) + len(evt.Stage) + len(evt.State) + len(evt.OccurredAt) + 16)

	sb.WriteString("Pipeline")
	sb.WriteString(evt.Pipeline)
	sb.WriteByte(' ')
	sb.WriteString(evt.Stage)
	sb.WriteString(": ")
	sb.WriteString(string(evt.State))
	sb.WriteString(" at: ")
	sb.WriteString(evt.OccurredAt)

	return Message{Text: sb.String()}
}
