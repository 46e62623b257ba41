package pipeline

import (
	"testing"
	"time"

	"github.com/seventv/PipelineNotifier/src/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
}

func newRun(t *testing.T, p Pipeline) *Run {
	r, err := NewRun(p, fixedClock)
	require.NoError(t, err)
	return r
}

func TestSuccessfulRun(t *testing.T) {
	r := newRun(t, Default())

	stage, ok := r.Next()
	require.True(t, ok)
	assert.Equal(t, "Source", stage.Name)

	evt, err := r.Start("Source")
	require.NoError(t, err)
	assert.Equal(t, event.StageExecutionEvent{
		ID:          evt.ID,
		Pipeline:    "devops-pro-pipes",
		ExecutionID: r.ID(),
		Stage:       "Source",
		State:       event.Started,
		OccurredAt:  "2024-03-01T10:00:00Z",
		Source:      event.DefaultSource,
		DetailType:  event.DefaultDetailType,
	}, evt)

	_, ok = r.Next()
	assert.False(t, ok, "no stage may start while Source runs")

	evt, err = r.Succeed("Source")
	require.NoError(t, err)
	assert.Equal(t, event.Succeeded, evt.State)

	stage, ok = r.Next()
	require.True(t, ok)
	assert.Equal(t, "Build", stage.Name)

	_, err = r.Start("Build")
	require.NoError(t, err)
	_, err = r.Succeed("Build")
	require.NoError(t, err)

	_, ok = r.Next()
	assert.False(t, ok)
	assert.True(t, r.Completed())
	assert.False(t, r.Halted())
}

func TestFailedStageHaltsRun(t *testing.T) {
	r := newRun(t, Default())

	_, err := r.Start("Source")
	require.NoError(t, err)
	evt, err := r.Fail("Source")
	require.NoError(t, err)
	assert.Equal(t, event.Failed, evt.State)

	assert.True(t, r.Halted())
	assert.False(t, r.Completed())

	_, ok := r.Next()
	assert.False(t, ok)

	_, err = r.Start("Build")
	assert.ErrorIs(t, err, ErrRunHalted)
}

func TestIllegalTransitions(t *testing.T) {
	r := newRun(t, Default())

	_, err := r.Succeed("Source")
	assert.ErrorIs(t, err, ErrIllegalTransition, "STARTED is the only initial state")

	_, err = r.Fail("Source")
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, err = r.Start("Build")
	assert.ErrorIs(t, err, ErrStageNotReady)

	_, err = r.Start("Source")
	require.NoError(t, err)

	_, err = r.Start("Source")
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, err = r.Succeed("Source")
	require.NoError(t, err)

	_, err = r.Fail("Source")
	assert.ErrorIs(t, err, ErrIllegalTransition, "terminal states are final")

	_, err = r.Start("Deploy")
	assert.ErrorIs(t, err, ErrUnknownStage)

	_, err = r.State("Deploy")
	assert.ErrorIs(t, err, ErrUnknownStage)
}

func TestStateIsRecorded(t *testing.T) {
	r := newRun(t, Default())

	state, err := r.State("Build")
	require.NoError(t, err)
	assert.Empty(t, state)

	_, err = r.Start("Source")
	require.NoError(t, err)

	state, err = r.State("Source")
	require.NoError(t, err)
	assert.Equal(t, event.Started, state)

	execs := r.Executions()
	require.Len(t, execs, 2)
	assert.Equal(t, event.Started, execs[0].State)
	assert.Empty(t, execs[1].State)

	execs[1].State = event.Failed
	state, _ = r.State("Build")
	assert.Empty(t, state, "Executions returns a copy")
}

func TestThirdStageIsConfiguration(t *testing.T) {
	p := Default()
	p.Stages = append(p.Stages, Stage{Name: "Deploy", Category: "Deploy", Provider: "CodeDeploy"})

	r := newRun(t, p)

	var events []event.StageExecutionEvent
	for {
		stage, ok := r.Next()
		if !ok {
			break
		}

		evt, err := r.Start(stage.Name)
		require.NoError(t, err)
		events = append(events, evt)

		evt, err = r.Succeed(stage.Name)
		require.NoError(t, err)
		events = append(events, evt)
	}

	require.Len(t, events, 6, "one event per transition")
	assert.Equal(t, "Deploy", events[5].Stage)
	assert.True(t, r.Completed())
}

func TestNewRunWithoutStages(t *testing.T) {
	_, err := NewRun(Pipeline{Name: "empty"}, nil)
	assert.ErrorIs(t, err, ErrNoStages)
}
