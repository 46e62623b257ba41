package format

import (
	"testing"

	"github.com/seventv/PipelineNotifier/src/event"
	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		evt      event.StageExecutionEvent
		expected string
	}{
		{
			name: "build succeeded",
			evt: event.StageExecutionEvent{
				Pipeline:   "Foo",
				Stage:      "Build",
				State:      event.Succeeded,
				OccurredAt: "2024-01-01T00:00:00Z",
			},
			expected: "PipelineFoo Build: SUCCEEDED at: 2024-01-01T00:00:00Z",
		},
		{
			name: "source started",
			evt: event.StageExecutionEvent{
				Pipeline:   "devops-pro-pipes",
				Stage:      "Source",
				State:      event.Started,
				OccurredAt: "2024-03-01T10:00:00Z",
			},
			expected: "Pipelinedevops-pro-pipes Source: STARTED at: 2024-03-01T10:00:00Z",
		},
		{
			name: "timestamp untouched",
			evt: event.StageExecutionEvent{
				Pipeline:   "p",
				Stage:      "Build",
				State:      event.Failed,
				OccurredAt: "2024-03-01T12:00:00.123+02:00",
			},
			expected: "Pipelinep Build: FAILED at: 2024-03-01T12:00:00.123+02:00",
		},
		{
			name:     "empty names",
			evt:      event.StageExecutionEvent{State: event.Failed, OccurredAt: "t"},
			expected: "Pipeline : FAILED at: t",
		},
		{
			name:     "empty event",
			evt:      event.StageExecutionEvent{},
			expected: "Pipeline :  at: ",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Format(tc.evt).Text)
		})
	}
}

func TestFormatDeterministic(t *testing.T) {
	evt := event.StageExecutionEvent{
		Pipeline:   "devops-pro-pipes",
		Stage:      "Build",
		State:      "SUPERSEDED",
		OccurredAt: "2024-03-01T10:00:00Z",
		Source:     "aws.codepipeline",
	}

	first := Format(evt)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Format(evt))
	}
}
