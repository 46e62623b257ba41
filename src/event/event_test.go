package event

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const codePipelineEvent = `{
	"version": "0",
	"id": "01234567-0123-0123-0123-012345678901",
	"detail-type": "CodePipeline Stage Execution State Change",
	"source": "aws.codepipeline",
	"account": "123456789012",
	"time": "2024-03-01T10:00:00Z",
	"region": "us-east-1",
	"resources": ["arn:aws:codepipeline:us-east-1:123456789012:devops-pro-pipes"],
	"detail": {
		"pipeline": "devops-pro-pipes",
		"execution-id": "c54fe9ce-0000-4fae-ad9a-1cbe7ad1de8a",
		"stage": "Source",
		"state": "STARTED",
		"version": 1,
		"execution-trigger": {"trigger-type": "StartPipelineExecution"}
	}
}`

func TestParseCodePipelineEvent(t *testing.T) {
	evt, err := Parse([]byte(codePipelineEvent))
	require.NoError(t, err)

	assert.Equal(t, StageExecutionEvent{
		ID:          "01234567-0123-0123-0123-012345678901",
		Pipeline:    "devops-pro-pipes",
		ExecutionID: "c54fe9ce-0000-4fae-ad9a-1cbe7ad1de8a",
		Stage:       "Source",
		State:       Started,
		OccurredAt:  "2024-03-01T10:00:00Z",
		Source:      "aws.codepipeline",
		DetailType:  "CodePipeline Stage Execution State Change",
		Account:     "123456789012",
		Region:      "us-east-1",
	}, evt)
}

func TestParseMinimalTriggerUsesDefaults(t *testing.T) {
	evt, err := Parse([]byte(`{"detail":{"pipeline":"devops-pro-pipes","stage":"Source","state":"STARTED"},"time":"2024-03-01T10:00:00Z"}`))
	require.NoError(t, err)

	assert.Equal(t, DefaultSource, evt.Source)
	assert.Equal(t, DefaultDetailType, evt.DetailType)
	assert.Equal(t, "2024-03-01T10:00:00Z", evt.OccurredAt)
}

func TestParseKeepsUnknownStateAndSource(t *testing.T) {
	evt, err := Parse([]byte(`{"source":"aws.s3","detail":{"pipeline":"p","stage":"Deploy","state":"SUPERSEDED"},"time":"t"}`))
	require.NoError(t, err)

	assert.Equal(t, "aws.s3", evt.Source)
	assert.Equal(t, State("SUPERSEDED"), evt.State)
	assert.Equal(t, "Deploy", evt.Stage)
}

func TestParseEmptyValuesAreNotMissing(t *testing.T) {
	evt, err := Parse([]byte(`{"detail":{"pipeline":"","stage":"","state":"FAILED"},"time":""}`))
	require.NoError(t, err)

	assert.Empty(t, evt.Pipeline)
	assert.Empty(t, evt.Stage)
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		missing []string
	}{
		{
			name:    "no detail",
			payload: `{"time":"2024-03-01T10:00:00Z"}`,
			missing: []string{"detail"},
		},
		{
			name:    "no time",
			payload: `{"detail":{"pipeline":"p","stage":"Build","state":"FAILED"}}`,
			missing: []string{"time"},
		},
		{
			name:    "partial detail",
			payload: `{"detail":{"stage":"Build"},"time":"t"}`,
			missing: []string{"detail.pipeline", "detail.state"},
		},
		{
			name:    "empty object",
			payload: `{}`,
			missing: []string{"detail", "time"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.payload))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)

			var mErr *MalformedError
			require.True(t, errors.As(err, &mErr))
			assert.Equal(t, tc.missing, mErr.Missing)
		})
	}
}

func TestParseInvalidJson(t *testing.T) {
	_, err := Parse([]byte(`{"detail":`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Parse([]byte(`"just a string"`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestMarshalRoundTrip(t *testing.T) {
	evt := StageExecutionEvent{
		ID:         "id-1",
		Pipeline:   "devops-pro-pipes",
		Stage:      "Build",
		State:      Succeeded,
		OccurredAt: "2024-01-01T00:00:00Z",
		Source:     "aws.codepipeline",
		DetailType: DefaultDetailType,
	}

	b, err := evt.Marshal()
	require.NoError(t, err)

	out, err := Parse(b)
	require.NoError(t, err)
	assert.Equal(t, evt, out)
}

func TestStateTerminal(t *testing.T) {
	assert.False(t, Started.Terminal())
	assert.True(t, Succeeded.Terminal())
	assert.True(t, Failed.Terminal())
	assert.False(t, State("RESUMED").Terminal())
}
