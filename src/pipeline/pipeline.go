package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/seventv/PipelineNotifier/src/event"
)

var (
	ErrUnknownStage      = fmt.Errorf("unknown stage")
	ErrIllegalTransition = fmt.Errorf("illegal transition")
	ErrStageNotReady     = fmt.Errorf("previous stage has not succeeded")
	ErrRunHalted         = fmt.Errorf("run halted by failed stage")
	ErrNoStages          = fmt.Errorf("pipeline has no stages")
)

type Stage struct {
	Name     string `json:"name" mapstructure:"name"`
	Category string `json:"category,omitempty" mapstructure:"category,omitempty"`
	Provider string `json:"provider,omitempty" mapstructure:"provider,omitempty"`
}

type Pipeline struct {
	Name       string  `json:"name" mapstructure:"name"`
	Repository string  `json:"repository,omitempty" mapstructure:"repository,omitempty"`
	Branch     string  `json:"branch,omitempty" mapstructure:"branch,omitempty"`
	Stages     []Stage `json:"stages" mapstructure:"stages"`
}

func Default() Pipeline {
	return Pipeline{
		Name:       "devops-pro-pipes",
		Repository: "PhiBrandon/production-cu",
		Branch:     "main",
		Stages: []Stage{
			{Name: "Source", Category: "Source", Provider: "CodeStarSourceConnection"},
			{Name: "Build", Category: "Build", Provider: "CodeBuild"},
		},
	}
}

func (p Pipeline) index(stage string) int {
	for i, s := range p.Stages {
		if s.Name == stage {
			return i
		}
	}
	return -1
}

// Execution is the observed state of one stage within a run. An empty State
// means the stage has not started.
type Execution struct {
	Stage Stage
	State event.State
}

// Run records the stage executions of one pipeline run. It does not schedule
// stages, the pipeline engine does that.
type Run struct {
	id       string
	pipeline Pipeline
	now      func() time.Time

	mtx        sync.Mutex
	executions []Execution
}

func NewRun(p Pipeline, now func() time.Time) (*Run, error) {
	if len(p.Stages) == 0 {
		return nil, ErrNoStages
	}
	if now == nil {
		now = time.Now
	}

	executions := make([]Execution, len(p.Stages))
	for i, s := range p.Stages {
		executions[i] = Execution{Stage: s}
	}

	return &Run{
		id:         uuid.NewString(),
		pipeline:   p,
		now:        now,
		executions: executions,
	}, nil
}

func (r *Run) ID() string {
	return r.id
}

func (r *Run) Pipeline() Pipeline {
	return r.pipeline
}

func (r *Run) Executions() []Execution {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	out := make([]Execution, len(r.executions))
	copy(out, r.executions)
	return out
}

func (r *Run) State(stage string) (event.State, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	i := r.pipeline.index(stage)
	if i == -1 {
		return "", ErrUnknownStage
	}

	return r.executions[i].State, nil
}

// Start moves stage into STARTED. Only a stage that has not run yet may start,
// and every stage before it must have succeeded.
func (r *Run) Start(stage string) (event.StageExecutionEvent, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	i := r.pipeline.index(stage)
	if i == -1 {
		return event.StageExecutionEvent{}, ErrUnknownStage
	}

	if r.executions[i].State != "" {
		return event.StageExecutionEvent{}, fmt.Errorf("%w: %s %s -> %s", ErrIllegalTransition, stage, r.executions[i].State, event.Started)
	}

	for _, prev := range r.executions[:i] {
		switch prev.State {
		case event.Succeeded:
		case event.Failed:
			return event.StageExecutionEvent{}, ErrRunHalted
		default:
			return event.StageExecutionEvent{}, ErrStageNotReady
		}
	}

	return r.transition(i, event.Started), nil
}

func (r *Run) Succeed(stage string) (event.StageExecutionEvent, error) {
	return r.finish(stage, event.Succeeded)
}

func (r *Run) Fail(stage string) (event.StageExecutionEvent, error) {
	return r.finish(stage, event.Failed)
}

func (r *Run) finish(stage string, state event.State) (event.StageExecutionEvent, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	i := r.pipeline.index(stage)
	if i == -1 {
		return event.StageExecutionEvent{}, ErrUnknownStage
	}

	if r.executions[i].State != event.Started {
		return event.StageExecutionEvent{}, fmt.Errorf("%w: %s %q -> %s", ErrIllegalTransition, stage, r.executions[i].State, state)
	}

	return r.transition(i, state), nil
}

// must hold mtx
func (r *Run) transition(i int, state event.State) event.StageExecutionEvent {
	r.executions[i].State = state

	return event.StageExecutionEvent{
		ID:          uuid.NewString(),
		Pipeline:    r.pipeline.Name,
		ExecutionID: r.id,
		Stage:       r.executions[i].Stage.Name,
		State:       state,
		OccurredAt:  r.now().UTC().Format(time.RFC3339),
		Source:      event.DefaultSource,
		DetailType:  event.DefaultDetailType,
	}
}

// Next returns the stage that may start next. ok is false once the run is
// complete or halted.
func (r *Run) Next() (Stage, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	for _, e := range r.executions {
		switch e.State {
		case event.Succeeded:
			continue
		case "":
			return e.Stage, true
		default:
			return Stage{}, false
		}
	}

	return Stage{}, false
}

func (r *Run) Halted() bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	for _, e := range r.executions {
		if e.State == event.Failed {
			return true
		}
	}
	return false
}

func (r *Run) Completed() bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	for _, e := range r.executions {
		if e.State != event.Succeeded {
			return false
		}
	}
	return true
}
